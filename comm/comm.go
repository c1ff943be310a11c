// Copyright 2025 The Gravel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package comm provides the collective communication primitives used to
// exchange sparse feature data between workers: all-to-all exchanges,
// id-space partitioning, and the sparse push/pull collectives built on
// top of them.
//
// A Group owns the mailboxes of a fixed set of ranks; every rank drives
// its collectives through a Communicator. Collectives are symmetric:
// all ranks of a group must call the same operation, and each call
// completes one communication round.
package comm

import (
	internalcomm "github.com/gravel-ml/gravel/internal/comm"
	"github.com/gravel-ml/gravel/tensor"
)

// UniqueIDBytes is the wire size of a group identifier.
const UniqueIDBytes = internalcomm.UniqueIDBytes

// UniqueID identifies one communication group. Ranks joining a group
// present the same id, obtained out of band from rank 0.
type UniqueID = internalcomm.UniqueID

// Group is an in-process communication group of a fixed number of ranks.
type Group = internalcomm.Group

// Communicator is one rank's handle on a group.
type Communicator = internalcomm.Communicator

// Elem constrains the element types the collectives exchange.
type Elem = internalcomm.Elem

// RemainderPartition assigns global ids to ranks by remainder, with a
// mask-and-shift fast path when the rank count is a power of two.
type RemainderPartition = internalcomm.RemainderPartition

// NewUniqueID generates a fresh random group id.
func NewUniqueID() (UniqueID, error) {
	return internalcomm.NewUniqueID()
}

// ParseUniqueID parses the hex form produced by UniqueID.String.
func ParseUniqueID(s string) (UniqueID, error) {
	return internalcomm.ParseUniqueID(s)
}

// NewGroup creates a group with the given number of ranks.
func NewGroup(size int) (*Group, error) {
	return internalcomm.NewGroup(size)
}

// NewRemainderPartition builds a remainder partition over size ranks.
func NewRemainderPartition(size int) *RemainderPartition {
	return internalcomm.NewRemainderPartition(size)
}

// AllToAll exchanges fixed-size blocks: block p of send goes to rank p,
// and the result holds one block from every rank, in rank order.
func AllToAll[T Elem](c *Communicator, send []T, blockSize int) ([]T, error) {
	return internalcomm.AllToAll(c, send, blockSize)
}

// AllToAllV exchanges variable-length slices: send[p] goes to rank p,
// and the result holds what every rank sent here, in rank order.
func AllToAllV[T Elem](c *Communicator, send [][]T) ([][]T, error) {
	return internalcomm.AllToAllV(c, send)
}

// SparseAllToAllPush routes (id, value-row) pairs to the ranks owning
// the ids under part. It returns the ids and rows pushed to this rank;
// their order within a sending rank is preserved, the interleaving
// across senders is not.
func SparseAllToAllPush(c *Communicator, part *RemainderPartition, idx, value *tensor.RawTensor) (*tensor.RawTensor, *tensor.RawTensor, error) {
	return internalcomm.SparseAllToAllPush(c, part, idx, value)
}

// SparseAllToAllPull fetches the value rows of remote ids: request ids
// are routed to their owners, served from local, and returned in
// request order, duplicates included.
func SparseAllToAllPull(c *Communicator, part *RemainderPartition, reqIdx, local *tensor.RawTensor) (*tensor.RawTensor, error) {
	return internalcomm.SparseAllToAllPull(c, part, reqIdx, local)
}
