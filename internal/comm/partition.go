package comm

import "github.com/pkg/errors"

// RemainderPartition assigns global ids to ranks by remainder: id mod
// size owns the id, and consecutive ids owned by one rank map to the
// dense local range id / size. Power-of-two sizes use mask and shift.
type RemainderPartition struct {
	size  int
	mask  int64
	shift uint
}

// NewRemainderPartition builds a partition over the given rank count.
func NewRemainderPartition(size int) *RemainderPartition {
	if size <= 0 {
		panic(errors.Errorf("comm: partition size must be positive, got %d", size))
	}
	p := &RemainderPartition{size: size, mask: -1}
	if size&(size-1) == 0 {
		p.mask = int64(size - 1)
		for 1<<p.shift < size {
			p.shift++
		}
	}
	return p
}

// Size returns the rank count.
func (p *RemainderPartition) Size() int { return p.size }

// Rank returns the rank owning a global id.
func (p *RemainderPartition) Rank(id int64) int {
	if id < 0 {
		panic(errors.Errorf("comm: negative global id %d", id))
	}
	if p.mask >= 0 {
		return int(id & p.mask)
	}
	return int(id % int64(p.size))
}

// LocalIndex maps a global id to its dense index on the owning rank.
func (p *RemainderPartition) LocalIndex(id int64) int64 {
	if p.mask >= 0 {
		return id >> p.shift
	}
	return id / int64(p.size)
}
