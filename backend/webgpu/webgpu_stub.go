//go:build !windows

// Copyright 2025 The Gravel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated sparse
// kernels. On this platform no native WebGPU library is bundled, so the
// backend reports itself unavailable.
package webgpu

import "github.com/pkg/errors"

// Backend is the WebGPU backend. It cannot be constructed on this
// platform.
type Backend struct{}

// New always fails on platforms without the native WebGPU library.
func New() (*Backend, error) {
	return nil, errors.New("webgpu: not supported on this platform")
}

// IsAvailable reports whether a WebGPU adapter can be acquired.
func IsAvailable() bool {
	return false
}

// Release frees GPU resources; a no-op here.
func (b *Backend) Release() {}
