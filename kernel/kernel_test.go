// Copyright 2025 The Gravel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package kernel_test

import (
	"testing"

	"github.com/gravel-ml/gravel/kernel"
	"github.com/gravel-ml/gravel/sparse"
	"github.com/gravel-ml/gravel/tensor"
)

// Two sources feeding one destination through the public API.
func TestSpMMThroughPublicAPI(t *testing.T) {
	csr := sparse.NewCSR(2, 1,
		tensor.FromInt64([]int64{0, 1, 2}),
		tensor.FromInt64([]int64{0, 0}),
		nil, true)
	ufeat := tensor.FromFloat32([]float32{3, 4}, tensor.Shape{2, 1})
	out := tensor.MustNew(tensor.Shape{1, 1}, tensor.Float32, tensor.CPU)

	kernel.SpMMCSR("copy_lhs", "sum", csr, ufeat, nil, out, nil, nil)

	if got := out.AsFloat32()[0]; got != 7 {
		t.Fatalf("got %v, want 7", got)
	}
}

func TestSDDMMThroughPublicAPI(t *testing.T) {
	coo := sparse.NewCOO(2, 2,
		tensor.FromInt64([]int64{0, 1}),
		tensor.FromInt64([]int64{1, 0}),
		nil, true, false)
	nodes := tensor.FromFloat32([]float32{2, 5}, tensor.Shape{2, 1})
	out := tensor.MustNew(tensor.Shape{2, 1}, tensor.Float32, tensor.CPU)

	kernel.SDDMMCOO("mul", coo, nodes, nodes, out, kernel.TargetSrc, kernel.TargetDst)

	want := []float32{10, 10}
	for i, v := range out.AsFloat32() {
		if v != want[i] {
			t.Fatalf("edge %d: got %v, want %v", i, v, want[i])
		}
	}
}

func TestSegmentReduceThroughPublicAPI(t *testing.T) {
	feat := tensor.FromFloat32([]float32{1, 2, 3}, tensor.Shape{3, 1})
	offsets := tensor.FromInt64([]int64{0, 2, 3})
	out := tensor.MustNew(tensor.Shape{2, 1}, tensor.Float32, tensor.CPU)

	kernel.SegmentReduce("sum", feat, offsets, out, nil)

	if out.AsFloat32()[0] != 3 || out.AsFloat32()[1] != 3 {
		t.Fatalf("got %v, want [3 3]", out.AsFloat32())
	}
}
