//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

const poolMaxPerClass = 32

// BufferPool recycles GPU buffers between kernel launches. Staging
// buffers dominate here: every readback wants a MapRead buffer of the
// result size, and re-creating them per call is the main allocation
// cost of the readback path.
type BufferPool struct {
	device *wgpu.Device

	mu      sync.Mutex
	free    map[wgpu.BufferUsage][]pooledBuffer
	hits    uint64
	misses  uint64
	created uint64
}

type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

// NewBufferPool creates a pool allocating from the given device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{
		device: device,
		free:   make(map[wgpu.BufferUsage][]pooledBuffer),
	}
}

// Acquire returns a buffer of at least size bytes with exactly the
// given usage, reusing a pooled one when possible.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := p.free[usage]
	for i, pb := range class {
		if pb.size >= size {
			p.free[usage] = append(class[:i], class[i+1:]...)
			p.hits++
			return pb.buffer
		}
	}

	p.misses++
	p.created++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
}

// Release returns a buffer to the pool, or frees it when the usage
// class is full.
func (p *BufferPool) Release(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free[usage]) >= poolMaxPerClass {
		buffer.Release()
		return
	}
	p.free[usage] = append(p.free[usage], pooledBuffer{buffer: buffer, size: size})
}

// Clear frees every pooled buffer.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for usage, class := range p.free {
		for _, pb := range class {
			pb.buffer.Release()
		}
		delete(p.free, usage)
	}
}

// Stats reports pool effectiveness counters.
func (p *BufferPool) Stats() (created, hits, misses uint64, pooled int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, class := range p.free {
		pooled += len(class)
	}
	return p.created, p.hits, p.misses, pooled
}
