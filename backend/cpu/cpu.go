// Copyright 2025 The Gravel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/gravel-ml/gravel/internal/backend/cpu"
)

// Backend runs the sparse kernels on the host CPU.
type Backend = internalcpu.Backend

// New creates a CPU backend with default parallelism.
func New() *Backend {
	return internalcpu.New()
}

// NewSequential creates a CPU backend that runs every kernel on one
// goroutine. Useful when iteration order must be reproducible, or when
// the caller manages parallelism itself.
func NewSequential() *Backend {
	return internalcpu.NewSequential()
}
