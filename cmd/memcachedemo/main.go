// Command memcachedemo runs the memory cache against the software GPU
// backend: it mirrors a surface for a number of frames, touching it on
// some of them, then reads it back and checks the round trip.
package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/software"

	"github.com/gogpu/memcache"
	"github.com/gogpu/memcache/tiling"
)

func main() {
	var (
		frames  = flag.Int("frames", 8, "number of submissions to run")
		touch   = flag.Int("touch", 3, "modify memory every N frames (0 never)")
		pitch   = flag.Uint("pitch", 256, "surface pitch in pixels")
		height  = flag.Uint("height", 128, "surface height in rows")
		mode    = flag.String("mode", "tiled", "transform: identity or tiled")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()
	if *frames < 1 {
		log.Fatal("-frames must be at least 1")
	}

	if *verbose {
		memcache.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	params := tiling.Params{
		Pitch:        uint32(*pitch),
		TileMode:     tiling.Tiled2DThin1,
		Swizzle:      0x300,
		Height:       uint32(*height),
		Depth:        1,
		Samples:      1,
		BitsPerPixel: 32,
	}
	size, err := tiling.SurfaceSize(params)
	if err != nil {
		log.Fatalf("Invalid surface: %v", err)
	}

	transform := memcache.Identity()
	switch *mode {
	case "identity":
	case "tiled":
		transform = memcache.Tiled(params)
	default:
		log.Fatalf("Unknown mode %q", *mode)
	}

	instance, err := software.API{}.CreateInstance(nil)
	if err != nil {
		log.Fatalf("Failed to create instance: %v", err)
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		log.Fatal("No software adapter")
	}
	dev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}
	defer dev.Device.Destroy()

	const base = memcache.PhysAddr(0x1000_0000)
	mem := memcache.NewFlatMemory(base, int(size))
	surface, err := mem.Span(base, uint32(size))
	if err != nil {
		log.Fatalf("Failed to map surface: %v", err)
	}
	for i := range surface {
		surface[i] = byte(i * 31)
	}

	d, err := memcache.New(dev.Device, dev.Queue, mem, memcache.WithLabel("demo"))
	if err != nil {
		log.Fatalf("Failed to create driver: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var want []byte
	for frame := 1; frame <= *frames; frame++ {
		if *touch > 0 && frame%*touch == 0 {
			surface[frame%len(surface)]++
		}
		if err := d.BeginSubmission(); err != nil {
			log.Fatalf("Frame %d: %v", frame, err)
		}
		entry, err := d.GetMemCache(base, uint32(size), transform)
		if err != nil {
			log.Fatalf("Frame %d: %v", frame, err)
		}
		if frame == *frames {
			if err := d.Invalidate(entry); err != nil {
				log.Fatalf("Frame %d: %v", frame, err)
			}
			// The writeback must restore what the GPU holds.
			want = bytes.Clone(surface)
			clear(surface)
		}
		if _, err := d.Submit(); err != nil {
			log.Fatalf("Frame %d: %v", frame, err)
		}
		if err := d.Poll(); err != nil {
			log.Fatalf("Frame %d: %v", frame, err)
		}
	}

	if err := d.Wait(ctx); err != nil {
		log.Fatalf("Wait failed: %v", err)
	}
	stats := d.Stats()
	if err := d.Close(); err != nil {
		log.Fatalf("Close failed: %v", err)
	}

	if !bytes.Equal(surface, want) {
		log.Fatal("Round trip mismatch")
	}
	log.Printf("%s round trip of %d bytes OK\n", transform.Mode, size)
	log.Println(stats)
}
