// Copyright 2025 The Gravel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	internaltensor "github.com/gravel-ml/gravel/internal/tensor"
)

// RawTensor is the low-level tensor representation shared by every
// kernel: a reference-counted buffer plus shape, dtype and device.
type RawTensor = internaltensor.RawTensor

// Shape represents the dimensions of a tensor. The leading dimension
// indexes nodes or edges; the rest is the feature shape.
type Shape = internaltensor.Shape

// DataType represents runtime type information for tensors.
type DataType = internaltensor.DataType

// Device represents the compute device a tensor lives on.
type Device = internaltensor.Device

// Supported data types.
const (
	Float16 = internaltensor.Float16
	Float32 = internaltensor.Float32
	Float64 = internaltensor.Float64
	Int32   = internaltensor.Int32
	Int64   = internaltensor.Int64
)

// Supported compute devices.
const (
	CPU    = internaltensor.CPU
	WebGPU = internaltensor.WebGPU
)

// NewRaw creates a new zero-filled tensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return internaltensor.NewRaw(shape, dtype, device)
}

// MustNew is NewRaw for shapes known to be valid; it panics on error.
func MustNew(shape Shape, dtype DataType, device Device) *RawTensor {
	return internaltensor.MustNew(shape, dtype, device)
}

// NewVector creates a zero-filled rank-1 CPU tensor of length n (n >= 0).
func NewVector(n int, dtype DataType) *RawTensor {
	return internaltensor.NewVector(n, dtype)
}

// FromInt32 copies an int32 slice into a fresh rank-1 CPU tensor.
func FromInt32(data []int32) *RawTensor {
	return internaltensor.FromInt32(data)
}

// FromInt64 copies an int64 slice into a fresh rank-1 CPU tensor.
func FromInt64(data []int64) *RawTensor {
	return internaltensor.FromInt64(data)
}

// FromFloat32 copies a float32 slice into a fresh CPU tensor of the
// given shape.
func FromFloat32(data []float32, shape Shape) *RawTensor {
	return internaltensor.FromFloat32(data, shape)
}

// FromFloat64 copies a float64 slice into a fresh CPU tensor of the
// given shape.
func FromFloat64(data []float64, shape Shape) *RawTensor {
	return internaltensor.FromFloat64(data, shape)
}
