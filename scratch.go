package memcache

import "sync"

// scratchPool hands out transform scratch buffers. Every conversion checks
// out its own buffer, so an upload on the recording goroutine and a
// writeback on a polling goroutine never share one.
type scratchPool struct {
	mu   sync.Mutex
	free [][]byte
	max  int
}

func newScratchPool(max int) *scratchPool {
	return &scratchPool{max: max}
}

// get returns a buffer of exactly size bytes. Contents are undefined.
func (p *scratchPool) get(size int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.free) - 1; i >= 0; i-- {
		b := p.free[i]
		if cap(b) < size {
			continue
		}
		last := len(p.free) - 1
		p.free[i] = p.free[last]
		p.free[last] = nil
		p.free = p.free[:last]
		return b[:size]
	}
	return make([]byte, size)
}

// put returns a buffer obtained from get. Buffers beyond the retention
// limit are left to the garbage collector, smallest first.
func (p *scratchPool) put(b []byte) {
	if b == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) < p.max {
		p.free = append(p.free, b)
		return
	}
	// Keep the largest buffers: they satisfy every smaller request.
	smallest := -1
	for i, f := range p.free {
		if cap(f) < cap(b) && (smallest < 0 || cap(f) < cap(p.free[smallest])) {
			smallest = i
		}
	}
	if smallest >= 0 {
		p.free[smallest] = b
	}
}

// idle returns the number of retained buffers.
func (p *scratchPool) idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
