// Copyright 2025 The Gravel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend for the sparse kernels.
//
// # Overview
//
// The CPU backend implements two execution strategies:
//   - CSR kernels transpose to incoming-edge-major form and process
//     output rows in parallel, each accumulated sequentially. No
//     atomics, and max/min tie-breaking is deterministic.
//   - COO kernels process edges in parallel and scatter into the output
//     with compare-and-swap atomics (accumulating reducers only).
//
// Float16 features are widened to float32 by the kernel layer before
// they reach this package; the kernels compute in float32 or float64.
//
// # Thread Safety
//
// A Backend is stateless apart from its parallelism configuration and
// is safe for concurrent use.
package cpu
