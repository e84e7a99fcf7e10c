// Package buffer provides the I/O buffer handles requests and streams pass
// around. Owners acquire a Handle, use Bytes and give it back with Recycle.
package buffer

import "sync"

// Handle is an owned I/O buffer.
type Handle interface {
	// Bytes returns the valid portion of the buffer.
	Bytes() []byte

	// Recycle returns the buffer to its origin; the handle must not be used afterwards.
	Recycle()
}

// Wrap returns a handle over data whose Recycle only drops the reference.
func Wrap(data []byte) Handle {
	return &Buffer{data: data}
}

// Buffer is a Handle optionally owned by a Pool.
type Buffer struct {
	data []byte
	pool *Pool
}

// Bytes implements Handle.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// SetLen resizes the valid portion within the buffer capacity.
func (b *Buffer) SetLen(n int) {
	if n < 0 {
		n = 0
	}
	if n > cap(b.data) {
		n = cap(b.data)
	}
	b.data = b.data[:n]
}

// Recycle implements Handle.
func (b *Buffer) Recycle() {
	if b == nil {
		return
	}
	pool := b.pool
	data := b.data
	b.data = nil
	b.pool = nil
	if pool != nil && data != nil {
		pool.put(data)
	}
}

// Pool hands out fixed size buffers.
type Pool struct {
	size      int
	pool      sync.Pool
	mu        sync.Mutex
	out       int
	allocated int
}

// NewPool creates a pool of buffers of size bytes.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	ret := &Pool{size: size}
	ret.pool.New = func() interface{} {
		ret.mu.Lock()
		ret.allocated++
		ret.mu.Unlock()
		data := make([]byte, size)
		return &data
	}
	return ret
}

// DefaultSize is the buffer size used when none is given.
const DefaultSize = 64 * 1024

// Size returns the buffer size.
func (p *Pool) Size() int { return p.size }

// Get returns a full length buffer.
func (p *Pool) Get() *Buffer {
	data := p.pool.Get().(*[]byte)
	p.mu.Lock()
	p.out++
	p.mu.Unlock()
	return &Buffer{data: (*data)[:p.size], pool: p}
}

// Outstanding returns the number of buffers not yet recycled.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}

func (p *Pool) put(data []byte) {
	p.mu.Lock()
	p.out--
	p.mu.Unlock()
	data = data[:cap(data)]
	p.pool.Put(&data)
}
