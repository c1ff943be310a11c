//go:build windows

// Copyright 2025 The Gravel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated sparse
// kernels.
//
// The GPU path covers the float32 COO kernels (SpMM with the sum
// reducer, SDDMM, segment sum and scatter add) without feature
// broadcasting; everything else stays on the CPU backend. Index arrays
// are re-encoded as u32 for the shaders, so matrices must have fewer
// than 2^32 nodes and edges.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gpu.Release()
package webgpu

import (
	internalwebgpu "github.com/gravel-ml/gravel/internal/backend/webgpu"
)

// Backend runs the sparse kernels on GPU through WebGPU.
type Backend = internalwebgpu.Backend

// New creates a WebGPU backend, requesting an adapter, device and queue.
// Call Release when done to free the GPU resources.
//
// Returns an error if WebGPU initialization fails (e.g. no compatible
// GPU or missing native library).
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable reports whether a WebGPU adapter can be acquired. Useful
// for falling back to the CPU backend:
//
//	if webgpu.IsAvailable() {
//	    gpu, _ := webgpu.New()
//	    defer gpu.Release()
//	}
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
