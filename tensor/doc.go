// Copyright 2025 The Gravel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense buffer type the sparse kernels
// compute over.
//
// # Overview
//
// A RawTensor is a reference-counted byte buffer plus shape, strides,
// dtype and device. The leading dimension indexes nodes or edges; the
// trailing dimensions are the feature shape. Supported element types:
//   - Float16 (stored as raw bits, computed in float32)
//   - Float32 and Float64
//   - Int32 and Int64 (sparse index and argument arrays)
//
// # Basic Usage
//
//	import "github.com/gravel-ml/gravel/tensor"
//
//	func main() {
//	    feat := tensor.FromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
//	    out := tensor.MustNew(tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
//	    _ = feat
//	    _ = out
//	}
//
// # Ownership
//
// Kernels borrow tensors; they never take ownership. Clone shares the
// underlying buffer through reference counting, and in-place reuse is
// only legal while IsUnique reports true.
package tensor
