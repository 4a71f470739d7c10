// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-size read buffer pools shared by all sessions of a server.

package pool

import "sync/atomic"

// DefaultBufferSize is used when a pool is requested with a non-positive size.
const DefaultBufferSize = 32 * 1024

// BufferPool hands out byte slices of one fixed size.
type BufferPool struct {
	size  int
	pool  *SyncPool[*[]byte]
	inUse atomic.Int64
}

var _ ObjectPool[[]byte] = (*BufferPool)(nil)

// NewBufferPool creates a pool of size-byte buffers.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &BufferPool{
		size: size,
		pool: NewSyncPool(func() *[]byte {
			b := make([]byte, size)
			return &b
		}),
	}
}

// Size returns the length of buffers returned by Get.
func (p *BufferPool) Size() int { return p.size }

// InUse returns the number of buffers handed out and not yet returned.
func (p *BufferPool) InUse() int64 { return p.inUse.Load() }

// Get returns a buffer of exactly Size bytes.
func (p *BufferPool) Get() []byte {
	p.inUse.Add(1)
	return (*p.pool.Get())[:p.size]
}

// Put returns buf to the pool. Buffers of a foreign capacity are dropped.
func (p *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	p.inUse.Add(-1)
	if cap(buf) < p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}
