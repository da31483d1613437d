package frame

import (
	"github.com/oxtoacart/bpool"
)

// Pool recycles fixed-size frame buffers so steady-state capture does not
// allocate. Buffers of the wrong size are dropped on Put.
type Pool struct {
	bytes *bpool.BytePool
	size  int
}

// NewPool creates a pool of buffers of exactly size bytes, keeping at most
// maxIdle of them between uses.
func NewPool(maxIdle, size int) *Pool {
	if maxIdle < 1 {
		maxIdle = 1
	}
	return &Pool{
		bytes: bpool.NewBytePool(maxIdle, size),
		size:  size,
	}
}

// NewPoolFor sizes the pool for one frame of the given format.
func NewPoolFor(maxIdle int, format Format, width, height int) *Pool {
	return NewPool(maxIdle, format.BufferSize(width, height))
}

// Get returns a buffer of Size bytes. Contents are undefined.
func (p *Pool) Get() []byte {
	b := p.bytes.Get()
	if len(b) != p.size {
		return make([]byte, p.size)
	}
	return b
}

// Put returns a buffer to the pool.
func (p *Pool) Put(b []byte) {
	if cap(b) < p.size {
		return
	}
	p.bytes.Put(b[:p.size])
}

// Size returns the buffer size handed out by Get.
func (p *Pool) Size() int {
	return p.size
}
