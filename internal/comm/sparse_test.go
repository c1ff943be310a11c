package comm

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravel-ml/gravel/internal/tensor"
)

// Shard values for the global ids 0..5 across 3 ranks under the
// remainder partition: value of id is id*10.
func pullShard(rank, size int) *tensor.RawTensor {
	var rows []float32
	for id := rank; id < 6; id += size {
		rows = append(rows, float32(id*10))
	}
	return tensor.FromFloat32(rows, tensor.Shape{len(rows), 1})
}

func TestSparseAllToAllPush(t *testing.T) {
	g, err := NewGroup(3)
	require.NoError(t, err)
	part := NewRemainderPartition(3)

	// Every rank pushes two pairs carrying value id*10.
	sends := map[int][]int64{
		0: {1, 2},
		1: {2, 3},
		2: {4, 1},
	}

	var mu sync.Mutex
	gotIdx := make(map[int][]int64)
	gotVal := make(map[int][]float32)
	runRanks(t, g, func(c *Communicator) error {
		ids := sends[c.Rank()]
		vals := make([]float32, len(ids))
		for i, id := range ids {
			vals[i] = float32(id * 10)
		}
		idx := tensor.FromInt64(ids)
		value := tensor.FromFloat32(vals, tensor.Shape{len(vals), 1})

		recvIdx, recvVal, err := SparseAllToAllPush(c, part, idx, value)
		if err != nil {
			return err
		}
		mu.Lock()
		gotIdx[c.Rank()] = append([]int64(nil), recvIdx.AsInt64()...)
		gotVal[c.Rank()] = append([]float32(nil), recvVal.AsFloat32()...)
		mu.Unlock()
		return nil
	})

	// Each rank must hold exactly the pushed ids it owns, with the
	// paired values intact. Order is unspecified, so sort pairs.
	want := map[int][]int64{
		0: {3},       // from rank 1
		1: {1, 1, 4}, // from ranks 0, 2, 2
		2: {2, 2},    // from ranks 0, 1
	}
	for r := 0; r < 3; r++ {
		idx := gotIdx[r]
		val := gotVal[r]
		require.Len(t, val, len(idx), "rank %d", r)
		sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
		sort.Slice(val, func(i, j int) bool { return val[i] < val[j] })
		assert.Equal(t, want[r], idx, "rank %d ids", r)
		for i := range idx {
			assert.Equal(t, float32(idx[i]*10), val[i], "rank %d value %d", r, i)
		}
	}
}

func TestSparseAllToAllPullRequestOrder(t *testing.T) {
	g, err := NewGroup(3)
	require.NoError(t, err)
	part := NewRemainderPartition(3)

	// Rank 0 pulls [4, 0, 5, 4]; the others pull one id each. Results
	// must come back in request order, duplicates included.
	requests := map[int][]int64{
		0: {4, 0, 5, 4},
		1: {2},
		2: {3},
	}

	var mu sync.Mutex
	got := make(map[int][]float32)
	runRanks(t, g, func(c *Communicator) error {
		req := tensor.FromInt64(requests[c.Rank()])
		local := pullShard(c.Rank(), 3)
		out, err := SparseAllToAllPull(c, part, req, local)
		if err != nil {
			return err
		}
		mu.Lock()
		got[c.Rank()] = append([]float32(nil), out.AsFloat32()...)
		mu.Unlock()
		return nil
	})

	assert.Equal(t, []float32{40, 0, 50, 40}, got[0])
	assert.Equal(t, []float32{20}, got[1])
	assert.Equal(t, []float32{30}, got[2])
}

func TestSparsePushSingleRankPassthrough(t *testing.T) {
	g, err := NewGroup(1)
	require.NoError(t, err)
	part := NewRemainderPartition(1)

	idx := tensor.FromInt64([]int64{0, 2, 1})
	value := tensor.FromFloat32([]float32{0, 20, 10}, tensor.Shape{3, 1})
	c := g.Rank(0)

	outIdx, outVal, err := SparseAllToAllPush(c, part, idx, value)
	require.NoError(t, err)
	assert.Equal(t, idx.AsInt64(), outIdx.AsInt64())
	assert.Equal(t, value.AsFloat32(), outVal.AsFloat32())

	pulled, err := SparseAllToAllPull(c, part, tensor.FromInt64([]int64{2, 2, 0}), value)
	require.NoError(t, err)
	// Size 1 owns every id; local row index equals the global id.
	assert.Equal(t, []float32{10, 10, 0}, pulled.AsFloat32())
}

func TestSparsePullBadRequestFails(t *testing.T) {
	g, err := NewGroup(1)
	require.NoError(t, err)
	part := NewRemainderPartition(1)
	local := tensor.FromFloat32([]float32{1, 2}, tensor.Shape{2, 1})

	_, err = SparseAllToAllPull(g.Rank(0), part, tensor.FromInt64([]int64{5}), local)
	assert.Error(t, err)
}

func TestSparsePushMismatchedRowsFails(t *testing.T) {
	g, err := NewGroup(1)
	require.NoError(t, err)
	part := NewRemainderPartition(1)

	idx := tensor.FromInt64([]int64{0, 1})
	value := tensor.FromFloat32([]float32{1}, tensor.Shape{1, 1})
	_, _, err = SparseAllToAllPush(g.Rank(0), part, idx, value)
	assert.Error(t, err)
}
