package comm

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Elem is the set of element types the collectives move.
type Elem interface {
	~int32 | ~int64 | ~float32 | ~float64
}

// Group is an in-process communicator fabric for a fixed number of
// ranks. Each ordered rank pair owns a one-slot mailbox, so a round's
// send never blocks and successive rounds stay in FIFO order per pair.
type Group struct {
	id    UniqueID
	size  int
	mail  [][]chan any
	comms []*Communicator
}

// NewGroup creates a group of the given size with a fresh UniqueID.
func NewGroup(size int) (*Group, error) {
	if size <= 0 {
		return nil, errors.Errorf("comm: group size must be positive, got %d", size)
	}
	id, err := NewUniqueID()
	if err != nil {
		return nil, err
	}
	g := &Group{id: id, size: size}
	g.mail = make([][]chan any, size)
	for src := range g.mail {
		g.mail[src] = make([]chan any, size)
		for dst := range g.mail[src] {
			g.mail[src][dst] = make(chan any, 1)
		}
	}
	g.comms = make([]*Communicator, size)
	for r := range g.comms {
		g.comms[r] = &Communicator{group: g, rank: r}
	}
	klog.V(2).Infof("comm: created group %s size %d", g.id, size)
	return g, nil
}

// ID returns the group's unique id.
func (g *Group) ID() UniqueID { return g.id }

// Size returns the number of ranks.
func (g *Group) Size() int { return g.size }

// Rank returns the communicator endpoint for one rank. Each endpoint is
// driven by exactly one goroutine; collectives block until every rank of
// the group has entered the same round.
func (g *Group) Rank(r int) *Communicator {
	if r < 0 || r >= g.size {
		panic(errors.Errorf("comm: rank %d out of range [0, %d)", r, g.size))
	}
	return g.comms[r]
}

// Communicator is one rank's endpoint into its group.
type Communicator struct {
	group *Group
	rank  int
}

// Rank returns this endpoint's rank.
func (c *Communicator) Rank() int { return c.rank }

// Size returns the group size.
func (c *Communicator) Size() int { return c.group.size }

// AllToAll exchanges one fixed-size block per peer: send holds size
// blocks of blockSize elements, block p going to rank p; the result
// holds the block received from each rank, in rank order. The self block
// is copied through like any other.
func AllToAll[T Elem](c *Communicator, send []T, blockSize int) ([]T, error) {
	size := c.group.size
	if len(send) != size*blockSize {
		return nil, errors.Errorf("comm: all-to-all send has %d elements, want %d ranks x %d",
			len(send), size, blockSize)
	}
	parts := make([][]T, size)
	for p := 0; p < size; p++ {
		parts[p] = send[p*blockSize : (p+1)*blockSize]
	}
	recvParts, err := AllToAllV(c, parts)
	if err != nil {
		return nil, err
	}
	recv := make([]T, 0, size*blockSize)
	for p, part := range recvParts {
		if len(part) != blockSize {
			return nil, errors.Errorf("comm: rank %d sent %d elements, want block of %d",
				p, len(part), blockSize)
		}
		recv = append(recv, part...)
	}
	return recv, nil
}

// AllToAllV exchanges one variable-length slice per peer. send[p] goes
// to rank p; the result holds the slice received from each rank. Zero
// length slices still participate, so every rank posts and drains
// exactly size messages per round. Blocks until all peers reach the
// round; element types must agree across ranks.
func AllToAllV[T Elem](c *Communicator, send [][]T) ([][]T, error) {
	size := c.group.size
	if len(send) != size {
		return nil, errors.Errorf("comm: all-to-all-v wants %d send buffers, got %d",
			size, len(send))
	}
	for p := 0; p < size; p++ {
		buf := send[p]
		if buf == nil {
			buf = []T{}
		}
		c.group.mail[c.rank][p] <- buf
	}
	recv := make([][]T, size)
	for p := 0; p < size; p++ {
		msg := <-c.group.mail[p][c.rank]
		buf, ok := msg.([]T)
		if !ok {
			return nil, errors.Errorf("comm: rank %d sent %T, element types disagree", p, msg)
		}
		recv[p] = buf
	}
	if klog.V(4).Enabled() {
		total := 0
		for _, r := range recv {
			total += len(r)
		}
		klog.Infof("comm: rank %d all-to-all-v round received %d elements", c.rank, total)
	}
	return recv, nil
}
