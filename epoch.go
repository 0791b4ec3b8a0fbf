package memcache

import "sync/atomic"

// Epoch identifies a command-submission generation. Epoch 0 means "never";
// the first submission runs in epoch 1.
type Epoch uint64

// epochCounter is the usage epoch of a driver. It is advanced only by the
// recording goroutine but may be read from any goroutine.
type epochCounter struct {
	current atomic.Uint64
}

// load returns the current epoch.
func (c *epochCounter) load() Epoch {
	return Epoch(c.current.Load())
}

// advance starts the next generation and returns it.
func (c *epochCounter) advance() Epoch {
	return Epoch(c.current.Add(1))
}
