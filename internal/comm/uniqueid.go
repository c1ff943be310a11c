// Package comm implements the sparse collective communication layer: a
// fixed-size in-process communicator group with blocking all-to-all
// exchanges, and sparse push/pull built on top of them.
package comm

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// UniqueIDBytes is the size of a communicator group id.
const UniqueIDBytes = 128

// UniqueID identifies one communicator group. It is opaque: ranks that
// want to rendezvous on the same group compare ids byte for byte.
type UniqueID [UniqueIDBytes]byte

// NewUniqueID draws a fresh id from the system entropy source.
func NewUniqueID() (UniqueID, error) {
	var id UniqueID
	if _, err := rand.Read(id[:]); err != nil {
		return UniqueID{}, errors.Wrap(err, "comm: generating unique id")
	}
	return id, nil
}

// String encodes the id as 256 lowercase hex characters.
func (id UniqueID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseUniqueID decodes the String form. Round-trips exactly.
func ParseUniqueID(s string) (UniqueID, error) {
	var id UniqueID
	if len(s) != 2*UniqueIDBytes {
		return id, errors.Errorf("comm: unique id must be %d hex chars, got %d",
			2*UniqueIDBytes, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, errors.Wrap(err, "comm: parsing unique id")
	}
	copy(id[:], raw)
	return id, nil
}
