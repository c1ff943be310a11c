// Package cpu implements the CPU execution strategies for the sparse
// kernels: row-parallel sequential accumulation over incoming-edge-major
// CSR, and edge-parallel atomic scatter over COO.
package cpu

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/gravel-ml/gravel/internal/parallel"
	"github.com/gravel-ml/gravel/internal/tensor"
)

// Backend runs sparse kernels on the host CPU.
type Backend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a CPU backend with default parallelism.
func New() *Backend {
	return &Backend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// NewSequential creates a CPU backend that runs every kernel on one
// goroutine. Used by tests that pin down iteration order.
func NewSequential() *Backend {
	return &Backend{
		device: tensor.CPU,
		par:    parallel.Config{Enabled: false},
	}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return b.device
}

// floatSlice views a feature tensor as its typed slice, passing nil
// tensors through (short-circuited operands are never read).
func floatSlice[D tensor.Float](t *tensor.RawTensor) []D {
	if t == nil {
		return nil
	}
	var zero D
	switch any(zero).(type) {
	case float32:
		return any(t.AsFloat32()).([]D)
	default:
		return any(t.AsFloat64()).([]D)
	}
}

func indexSlice[I tensor.Index](t *tensor.RawTensor) []I {
	if t == nil {
		return nil
	}
	var zero I
	switch any(zero).(type) {
	case int32:
		return any(t.AsInt32()).([]I)
	default:
		return any(t.AsInt64()).([]I)
	}
}

// atomicCombine folds v into *addr with a compare-and-swap loop on the
// float's bit pattern. Linearizable, not wait-free: contended updates
// re-read and retry until the swap lands.
func atomicCombine[D tensor.Float](addr *D, v D, f func(acc, v D) D) {
	if unsafe.Sizeof(v) == 4 {
		p := (*uint32)(unsafe.Pointer(addr))
		for {
			oldBits := atomic.LoadUint32(p)
			next := f(D(math.Float32frombits(oldBits)), v)
			if atomic.CompareAndSwapUint32(p, oldBits, math.Float32bits(float32(next))) {
				return
			}
		}
	}
	p := (*uint64)(unsafe.Pointer(addr))
	for {
		oldBits := atomic.LoadUint64(p)
		next := f(D(math.Float64frombits(oldBits)), v)
		if atomic.CompareAndSwapUint64(p, oldBits, math.Float64bits(float64(next))) {
			return
		}
	}
}

func checkFloatDType(where string, dt tensor.DataType) {
	if dt != tensor.Float32 && dt != tensor.Float64 {
		panic(fmt.Sprintf("%s: unsupported compute dtype %s", where, dt))
	}
}
