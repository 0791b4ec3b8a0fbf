// Package tiling converts surfaces between linear and tiled byte layouts.
//
// The tiled layouts follow the micro/macro tile scheme used by the emulated
// GPU: surfaces are split into 8x8 micro tiles (8x8x4 for thick modes) whose
// elements are stored in a bit-interleaved order that depends on the element
// size and on whether the surface holds depth data. 2D modes additionally
// group micro tiles into 4x2 macro tiles whose placement is rotated by the
// bank and pipe bits of the surface swizzle.
//
// Every supported layout is a bijection over the surface, so for matching
// [Params]:
//
//	ToTiled(tiled, linear, p)  // inverse of
//	ToLinear(linear, tiled, p)
//
// Multisampled surfaces store one plane per sample inside each micro tile.
// Bytes beyond [SurfaceSize] are copied unchanged.
//
// Both functions are pure: they read src, write dst, and keep no state.
// [Converter] splits large surfaces across goroutines per sample plane and
// slice.
package tiling
