package tensor

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/x448/float16"
)

// Device represents the compute device a tensor lives on.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// tensorBuffer is a reference-counted shared buffer for Copy-on-Write
// semantics. Cloning increments the count; inplace reuse is only legal
// when refCount == 1.
type tensorBuffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{
		data: make([]byte, size),
	}
	buf.refCount.Store(1)
	return buf
}

func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) == 0 {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.data = nil
	}
}

func (tb *tensorBuffer) isUnique() bool {
	return tb.refCount.Load() == 1
}

// RawTensor is the low-level tensor representation: a reference-counted
// byte buffer plus shape, strides, dtype and device. Kernels borrow
// RawTensors; they never own them.
type RawTensor struct {
	buffer *tensorBuffer
	shape  Shape
	stride []int
	dtype  DataType
	device Device
	offset int
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	byteSize := shape.NumElements() * dtype.Size()

	return &RawTensor{
		buffer: newTensorBuffer(byteSize),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
		offset: 0,
	}, nil
}

// MustNew is NewRaw for shapes known to be valid; it panics on error.
func MustNew(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return r
}

// FromInt32 copies an int32 slice into a fresh rank-1 CPU tensor.
func FromInt32(data []int32) *RawTensor {
	r := emptyVector(len(data), Int32)
	copy(r.AsInt32(), data)
	return r
}

// FromInt64 copies an int64 slice into a fresh rank-1 CPU tensor.
func FromInt64(data []int64) *RawTensor {
	r := emptyVector(len(data), Int64)
	copy(r.AsInt64(), data)
	return r
}

// FromFloat32 copies a float32 slice into a fresh CPU tensor of the given
// shape.
func FromFloat32(data []float32, shape Shape) *RawTensor {
	if shape.NumElements() != len(data) {
		panic(fmt.Sprintf("tensor: shape %v requires %d elements, got %d",
			shape, shape.NumElements(), len(data)))
	}
	r := MustNew(shape, Float32, CPU)
	copy(r.AsFloat32(), data)
	return r
}

// FromFloat64 copies a float64 slice into a fresh CPU tensor of the given
// shape.
func FromFloat64(data []float64, shape Shape) *RawTensor {
	if shape.NumElements() != len(data) {
		panic(fmt.Sprintf("tensor: shape %v requires %d elements, got %d",
			shape, shape.NumElements(), len(data)))
	}
	r := MustNew(shape, Float64, CPU)
	copy(r.AsFloat64(), data)
	return r
}

// emptyVector permits zero-length rank-1 tensors, which NewRaw rejects.
// Sparse matrices with zero edges still carry index arrays.
func emptyVector(n int, dtype DataType) *RawTensor {
	return &RawTensor{
		buffer: newTensorBuffer(n * dtype.Size()),
		shape:  Shape{n},
		stride: []int{1},
		dtype:  dtype,
		device: CPU,
	}
}

// NewVector creates a zero-filled rank-1 CPU tensor of length n (n >= 0).
func NewVector(n int, dtype DataType) *RawTensor {
	if n < 0 {
		panic(fmt.Sprintf("tensor: negative vector length %d", n))
	}
	return emptyVector(n, dtype)
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// Len returns the leading (node/edge) dimension, or 0 for rank-0 tensors.
func (r *RawTensor) Len() int {
	if len(r.shape) == 0 {
		return 0
	}
	return r.shape[0]
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
func (r *RawTensor) Data() []byte {
	return r.buffer.data[r.offset:]
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	n := r.NumElements()
	if n == 0 {
		return nil
	}
	data := r.buffer.data[r.offset:]
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), n)
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	n := r.NumElements()
	if n == 0 {
		return nil
	}
	data := r.buffer.data[r.offset:]
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), n)
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", r.dtype))
	}
	n := r.NumElements()
	if n == 0 {
		return nil
	}
	data := r.buffer.data[r.offset:]
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), n)
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	if r.dtype != Int64 {
		panic(fmt.Sprintf("tensor dtype is %s, not int64", r.dtype))
	}
	n := r.NumElements()
	if n == 0 {
		return nil
	}
	data := r.buffer.data[r.offset:]
	return unsafe.Slice((*int64)(unsafe.Pointer(&data[0])), n)
}

// AsFloat16 interprets the data as raw float16 bits.
// Panics if the tensor's dtype is not Float16.
func (r *RawTensor) AsFloat16() []uint16 {
	if r.dtype != Float16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16", r.dtype))
	}
	n := r.NumElements()
	if n == 0 {
		return nil
	}
	data := r.buffer.data[r.offset:]
	return unsafe.Slice((*uint16)(unsafe.Pointer(&data[0])), n)
}

// ToFloat32 widens a Float16 tensor into a fresh Float32 tensor.
// Float32 tensors are returned unchanged.
func (r *RawTensor) ToFloat32() *RawTensor {
	switch r.dtype {
	case Float32:
		return r
	case Float16:
		out := MustNew(r.shape, Float32, r.device)
		src := r.AsFloat16()
		dst := out.AsFloat32()
		for i, bits := range src {
			dst[i] = float16.Frombits(bits).Float32()
		}
		return out
	default:
		panic(fmt.Sprintf("tensor: cannot widen %s to float32", r.dtype))
	}
}

// CopyFromFloat32 narrows float32 values back into a Float16 tensor.
func (r *RawTensor) CopyFromFloat32(src *RawTensor) {
	if r.dtype != Float16 {
		panic(fmt.Sprintf("tensor: cannot narrow into %s", r.dtype))
	}
	if r.NumElements() != src.NumElements() {
		panic(fmt.Sprintf("tensor: element count mismatch %d vs %d",
			r.NumElements(), src.NumElements()))
	}
	dst := r.AsFloat16()
	for i, v := range src.AsFloat32() {
		dst[i] = float16.Fromfloat32(v).Bits()
	}
}

// Zero fills the tensor with zero bytes.
func (r *RawTensor) Zero() {
	data := r.buffer.data[r.offset:]
	for i := range data {
		data[i] = 0
	}
}

// FillFloat fills a floating tensor with the given value. Used by the
// kernel layer to seed reduction identities (0, +inf, -inf).
func (r *RawTensor) FillFloat(v float64) {
	switch r.dtype {
	case Float32:
		data := r.AsFloat32()
		f := float32(v)
		for i := range data {
			data[i] = f
		}
	case Float64:
		data := r.AsFloat64()
		for i := range data {
			data[i] = v
		}
	case Float16:
		data := r.AsFloat16()
		bits := float16.Fromfloat32(float32(v)).Bits()
		for i := range data {
			data[i] = bits
		}
	default:
		panic(fmt.Sprintf("tensor: FillFloat on %s", r.dtype))
	}
}

// FillIndex fills an index tensor with the given id (typically -1).
func (r *RawTensor) FillIndex(v int64) {
	switch r.dtype {
	case Int32:
		if v < math.MinInt32 || v > math.MaxInt32 {
			panic(fmt.Sprintf("tensor: %d overflows int32", v))
		}
		data := r.AsInt32()
		id := int32(v)
		for i := range data {
			data[i] = id
		}
	case Int64:
		data := r.AsInt64()
		for i := range data {
			data[i] = v
		}
	default:
		panic(fmt.Sprintf("tensor: FillIndex on %s", r.dtype))
	}
}

// Clone creates a shallow copy sharing the buffer via reference counting.
func (r *RawTensor) Clone() *RawTensor {
	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
		offset: r.offset,
	}
}

// Release decrements the reference count and deallocates if it reaches 0.
func (r *RawTensor) Release() {
	r.buffer.release()
}

// IsUnique returns true if this tensor is the only reference to the buffer.
func (r *RawTensor) IsUnique() bool {
	return r.buffer.isUnique()
}
