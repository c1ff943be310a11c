package comm

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueIDRoundTrip(t *testing.T) {
	id, err := NewUniqueID()
	require.NoError(t, err)

	s := id.String()
	assert.Len(t, s, 2*UniqueIDBytes)

	parsed, err := ParseUniqueID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseUniqueID("abc")
	assert.Error(t, err)
	_, err = ParseUniqueID(string(make([]byte, 2*UniqueIDBytes)))
	assert.Error(t, err)
}

func TestUniqueIDsDiffer(t *testing.T) {
	a, err := NewUniqueID()
	require.NoError(t, err)
	b, err := NewUniqueID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRemainderPartition(t *testing.T) {
	p := NewRemainderPartition(3)
	assert.Equal(t, 1, p.Rank(4))
	assert.Equal(t, int64(1), p.LocalIndex(4))
	assert.Equal(t, 0, p.Rank(0))
	assert.Equal(t, int64(2), p.LocalIndex(6))

	// Power-of-two sizes take the mask path; results must agree with the
	// general formula.
	p4 := NewRemainderPartition(4)
	for id := int64(0); id < 32; id++ {
		assert.Equal(t, int(id%4), p4.Rank(id))
		assert.Equal(t, id/4, p4.LocalIndex(id))
	}

	assert.Panics(t, func() { p.Rank(-1) })
	assert.Panics(t, func() { NewRemainderPartition(0) })
}

// runRanks drives one goroutine per rank and fails the test on any
// rank's error.
func runRanks(t *testing.T, g *Group, body func(c *Communicator) error) {
	t.Helper()
	var wg sync.WaitGroup
	errs := make([]error, g.Size())
	for r := 0; r < g.Size(); r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			errs[r] = body(g.Rank(r))
		}(r)
	}
	wg.Wait()
	for r, err := range errs {
		require.NoError(t, err, "rank %d", r)
	}
}

func TestAllToAllBlocks(t *testing.T) {
	g, err := NewGroup(3)
	require.NoError(t, err)

	var mu sync.Mutex
	got := make([][]int64, 3)
	runRanks(t, g, func(c *Communicator) error {
		// Rank r sends block value r*10+p to peer p.
		send := make([]int64, 3)
		for p := range send {
			send[p] = int64(c.Rank()*10 + p)
		}
		recv, err := AllToAll(c, send, 1)
		if err != nil {
			return err
		}
		mu.Lock()
		got[c.Rank()] = recv
		mu.Unlock()
		return nil
	})

	// Rank r receives p*10+r from each peer p.
	for r := 0; r < 3; r++ {
		assert.Equal(t, []int64{int64(r), int64(10 + r), int64(20 + r)}, got[r])
	}
}

func TestAllToAllVUnevenLengths(t *testing.T) {
	g, err := NewGroup(2)
	require.NoError(t, err)

	var mu sync.Mutex
	got := make([][][]float32, 2)
	runRanks(t, g, func(c *Communicator) error {
		send := make([][]float32, 2)
		for p := range send {
			// Rank 0 sends nothing to itself; lengths vary per pair.
			for k := 0; k < c.Rank()+p; k++ {
				send[p] = append(send[p], float32(100*c.Rank()+10*p+k))
			}
		}
		recv, err := AllToAllV(c, send)
		if err != nil {
			return err
		}
		mu.Lock()
		got[c.Rank()] = recv
		mu.Unlock()
		return nil
	})

	assert.Empty(t, got[0][0])
	assert.Equal(t, []float32{100}, got[0][1])
	assert.Equal(t, []float32{10}, got[1][0])
	assert.Equal(t, []float32{110, 111}, got[1][1])
}

func TestAllToAllVRepeatedRoundsStayOrdered(t *testing.T) {
	g, err := NewGroup(2)
	require.NoError(t, err)

	runRanks(t, g, func(c *Communicator) error {
		for round := 0; round < 50; round++ {
			send := [][]int32{{int32(round)}, {int32(round)}}
			recv, err := AllToAllV(c, send)
			if err != nil {
				return err
			}
			for p := range recv {
				if len(recv[p]) != 1 || recv[p][0] != int32(round) {
					return errors.Errorf("round %d: got %v from rank %d", round, recv[p], p)
				}
			}
		}
		return nil
	})
}
