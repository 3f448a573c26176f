package core

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// GenericPool is a typed wrapper around sync.Pool.
type GenericPool[T any] struct {
	pool sync.Pool
}

// NewGenericPool creates a GenericPool that calls newItem when empty.
func NewGenericPool[T any](newItem func() T) *GenericPool[T] {
	return &GenericPool[T]{
		pool: sync.Pool{
			New: func() interface{} {
				return newItem()
			},
		},
	}
}

func (p *GenericPool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *GenericPool[T]) Put(item T) {
	p.pool.Put(item)
}

// BufferPool hands out reset bytes.Buffers for encoding log files. Buffers
// that grew beyond maxRetained are dropped on Put instead of being kept.
type BufferPool struct {
	pool        *GenericPool[*bytes.Buffer]
	maxRetained int

	hits    atomic.Uint64
	created atomic.Uint64
	dropped atomic.Uint64
}

// DefaultEncodeBufferSize is the initial capacity of pooled encode buffers.
const DefaultEncodeBufferSize = 32 * 1024

// EncodeBuffers holds the buffers checkpoint.Write encodes into.
var EncodeBuffers = NewBufferPool(DefaultEncodeBufferSize, 64<<20)

// NewBufferPool creates a pool of buffers with initialCapacity bytes each.
func NewBufferPool(initialCapacity, maxRetained int) *BufferPool {
	bp := &BufferPool{maxRetained: maxRetained}
	bp.pool = NewGenericPool(func() *bytes.Buffer {
		bp.created.Add(1)
		return bytes.NewBuffer(make([]byte, 0, initialCapacity))
	})
	return bp
}

// Get returns an empty buffer.
func (bp *BufferPool) Get() *bytes.Buffer {
	buf := bp.pool.Get()
	bp.hits.Add(1)
	return buf
}

// Put resets buf and returns it to the pool.
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	if bp.maxRetained > 0 && buf.Cap() > bp.maxRetained {
		bp.dropped.Add(1)
		return
	}
	buf.Reset()
	bp.pool.Put(buf)
}

// GetMetrics returns how many buffers were handed out, allocated and dropped.
func (bp *BufferPool) GetMetrics() (gets, created, dropped uint64) {
	return bp.hits.Load(), bp.created.Load(), bp.dropped.Load()
}
