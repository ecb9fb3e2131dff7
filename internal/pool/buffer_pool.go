package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// BufferPool recycles the buffers derivatives are encoded into before they
// are written out. Buffers that grew past maxRetain are dropped instead of
// being kept alive by the pool.
type BufferPool struct {
	pool      sync.Pool
	maxRetain int
	allocated int32
	inUse     int32
	gets      int64
	misses    int64
}

// NewBufferPool pre-allocates count buffers of initialSize bytes.
func NewBufferPool(count, initialSize int) *BufferPool {
	bp := &BufferPool{
		maxRetain: initialSize * 4,
	}

	bp.pool = sync.Pool{
		New: func() any {
			atomic.AddInt32(&bp.allocated, 1)
			atomic.AddInt64(&bp.misses, 1)
			return bytes.NewBuffer(make([]byte, 0, initialSize))
		},
	}

	for i := 0; i < count; i++ {
		atomic.AddInt32(&bp.allocated, 1)
		bp.pool.Put(bytes.NewBuffer(make([]byte, 0, initialSize)))
	}

	return bp
}

// Get returns an empty buffer.
func (bp *BufferPool) Get() *bytes.Buffer {
	atomic.AddInt32(&bp.inUse, 1)
	atomic.AddInt64(&bp.gets, 1)
	buf := bp.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put hands buf back for reuse.
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	atomic.AddInt32(&bp.inUse, -1)

	if bp.maxRetain > 0 && buf.Cap() > bp.maxRetain {
		atomic.AddInt32(&bp.allocated, -1)
		return
	}
	bp.pool.Put(buf)
}

// BufferPoolStats is a snapshot of pool counters.
type BufferPoolStats struct {
	Allocated int32
	InUse     int32
	Available int32
	Gets      int64
	Misses    int64
	HitRate   float64
}

// GetStats returns current statistics
func (bp *BufferPool) GetStats() BufferPoolStats {
	allocated := atomic.LoadInt32(&bp.allocated)
	inUse := atomic.LoadInt32(&bp.inUse)
	gets := atomic.LoadInt64(&bp.gets)
	misses := atomic.LoadInt64(&bp.misses)

	hitRate := 0.0
	if gets > 0 {
		hitRate = float64(gets-misses) / float64(gets) * 100
	}

	return BufferPoolStats{
		Allocated: allocated,
		InUse:     inUse,
		Available: allocated - inUse,
		Gets:      gets,
		Misses:    misses,
		HitRate:   hitRate,
	}
}
