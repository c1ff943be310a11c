package comm

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gravel-ml/gravel/internal/tensor"
)

// SparseAllToAllPush routes sparse (id, value-row) pairs to the ranks
// owning each id under the partition. Five phases: bucket the pairs by
// destination rank with a stable permutation, exchange per-rank counts,
// exchange the ids, exchange the value rows, then concatenate what
// arrived. The order of the returned pairs is unspecified; the pairing
// between ids and rows is preserved.
func SparseAllToAllPush(c *Communicator, part *RemainderPartition,
	idx, value *tensor.RawTensor) (*tensor.RawTensor, *tensor.RawTensor, error) {
	featLen, err := checkSparseArgs(idx, value)
	if err != nil {
		return nil, nil, err
	}
	if c.Size() == 1 {
		return idx, value, nil
	}

	switch idx.DType() {
	case tensor.Int32:
		return pushTyped(c, part, idx.AsInt32(), value, featLen, tensor.Int32)
	default:
		return pushTyped(c, part, idx.AsInt64(), value, featLen, tensor.Int64)
	}
}

// SparseAllToAllPull fetches the value rows of the requested global ids
// from their owning ranks. On top of the push phases it converts each
// received request to a partition-local row index, gathers from the
// local shard, runs the reverse value exchange, and applies the inverse
// bucket permutation, so the result matches request order exactly.
func SparseAllToAllPull(c *Communicator, part *RemainderPartition,
	reqIdx, local *tensor.RawTensor) (*tensor.RawTensor, error) {
	if reqIdx.DType() != tensor.Int32 && reqIdx.DType() != tensor.Int64 {
		return nil, errors.Errorf("comm: request index dtype %s, want int32 or int64", reqIdx.DType())
	}
	if !local.DType().IsFloat() {
		return nil, errors.Errorf("comm: local value dtype %s, want floating", local.DType())
	}
	featLen := local.Shape().FeatLen()

	switch reqIdx.DType() {
	case tensor.Int32:
		return pullTyped(c, part, reqIdx.AsInt32(), local, featLen)
	default:
		return pullTyped(c, part, reqIdx.AsInt64(), local, featLen)
	}
}

func checkSparseArgs(idx, value *tensor.RawTensor) (int, error) {
	if idx.DType() != tensor.Int32 && idx.DType() != tensor.Int64 {
		return 0, errors.Errorf("comm: index dtype %s, want int32 or int64", idx.DType())
	}
	if !value.DType().IsFloat() {
		return 0, errors.Errorf("comm: value dtype %s, want floating", value.DType())
	}
	if idx.Len() != value.Len() {
		return 0, errors.Errorf("comm: %d ids paired with %d value rows", idx.Len(), value.Len())
	}
	return value.Shape().FeatLen(), nil
}

func pushTyped[I tensor.Index](c *Communicator, part *RemainderPartition,
	ids []I, value *tensor.RawTensor, featLen int, idxType tensor.DataType) (*tensor.RawTensor, *tensor.RawTensor, error) {
	switch value.DType() {
	case tensor.Float32:
		outIdx, outVal, err := sparsePush(c, part, ids, value.AsFloat32(), featLen)
		if err != nil {
			return nil, nil, err
		}
		return idxTensor(outIdx, idxType), featTensor(outVal, featLen, tensor.Float32), nil
	case tensor.Float64:
		outIdx, outVal, err := sparsePush(c, part, ids, value.AsFloat64(), featLen)
		if err != nil {
			return nil, nil, err
		}
		return idxTensor(outIdx, idxType), featTensor(outVal, featLen, tensor.Float64), nil
	default:
		return nil, nil, errors.Errorf("comm: unsupported value dtype %s", value.DType())
	}
}

func pullTyped[I tensor.Index](c *Communicator, part *RemainderPartition,
	req []I, local *tensor.RawTensor, featLen int) (*tensor.RawTensor, error) {
	switch local.DType() {
	case tensor.Float32:
		out, err := sparsePull(c, part, req, local.AsFloat32(), featLen)
		if err != nil {
			return nil, err
		}
		return featTensor(out, featLen, tensor.Float32), nil
	case tensor.Float64:
		out, err := sparsePull(c, part, req, local.AsFloat64(), featLen)
		if err != nil {
			return nil, err
		}
		return featTensor(out, featLen, tensor.Float64), nil
	default:
		return nil, errors.Errorf("comm: unsupported value dtype %s", local.DType())
	}
}

// bucketByRank computes per-rank destination counts and the stable
// permutation that groups positions by rank: perm[k] is the original
// position of the k-th element in bucketed order. A partition that maps
// an id to a rank outside the group is an integrity violation and
// panics.
func bucketByRank[I tensor.Index](part *RemainderPartition, size int, ids []I) ([]int, []int) {
	counts := make([]int, size)
	ranks := make([]int, len(ids))
	for i, id := range ids {
		r := part.Rank(int64(id))
		if r >= size {
			panic(errors.Errorf("comm: partition maps id %d to rank %d, group size %d",
				int64(id), r, size))
		}
		ranks[i] = r
		counts[r]++
	}
	next := make([]int, size)
	for r := 1; r < size; r++ {
		next[r] = next[r-1] + counts[r-1]
	}
	perm := make([]int, len(ids))
	for i, r := range ranks {
		perm[next[r]] = i
		next[r]++
	}
	return counts, perm
}

func exchangeCounts(c *Communicator, counts []int) ([]int, error) {
	send := make([]int64, len(counts))
	for i, n := range counts {
		send[i] = int64(n)
	}
	recvRaw, err := AllToAll(c, send, 1)
	if err != nil {
		return nil, err
	}
	recv := make([]int, len(recvRaw))
	for i, n := range recvRaw {
		recv[i] = int(n)
	}
	return recv, nil
}

func sparsePush[I tensor.Index, D Elem](c *Communicator, part *RemainderPartition,
	ids []I, val []D, featLen int) ([]I, []D, error) {
	size := c.Size()
	counts, perm := bucketByRank(part, size, ids)

	sendIdx := make([][]I, size)
	sendVal := make([][]D, size)
	pos := 0
	for r := 0; r < size; r++ {
		n := counts[r]
		bi := make([]I, n)
		bv := make([]D, n*featLen)
		for k := 0; k < n; k++ {
			src := perm[pos+k]
			bi[k] = ids[src]
			copy(bv[k*featLen:(k+1)*featLen], val[src*featLen:(src+1)*featLen])
		}
		sendIdx[r], sendVal[r] = bi, bv
		pos += n
	}

	recvCounts, err := exchangeCounts(c, counts)
	if err != nil {
		return nil, nil, err
	}
	recvIdx, err := AllToAllV(c, sendIdx)
	if err != nil {
		return nil, nil, err
	}
	recvVal, err := AllToAllV(c, sendVal)
	if err != nil {
		return nil, nil, err
	}

	total := 0
	for r := 0; r < size; r++ {
		if len(recvIdx[r]) != recvCounts[r] || len(recvVal[r]) != recvCounts[r]*featLen {
			return nil, nil, errors.Errorf("comm: rank %d announced %d pairs, sent %d ids and %d values",
				r, recvCounts[r], len(recvIdx[r]), len(recvVal[r]))
		}
		total += recvCounts[r]
	}

	outIdx := make([]I, 0, total)
	outVal := make([]D, 0, total*featLen)
	for r := 0; r < size; r++ {
		outIdx = append(outIdx, recvIdx[r]...)
		outVal = append(outVal, recvVal[r]...)
	}
	klog.V(3).Infof("comm: rank %d push sent %d pairs, received %d", c.Rank(), len(ids), total)
	return outIdx, outVal, nil
}

func sparsePull[I tensor.Index, D Elem](c *Communicator, part *RemainderPartition,
	req []I, local []D, featLen int) ([]D, error) {
	size := c.Size()
	if size == 1 {
		return gatherLocal(part, req, local, featLen)
	}
	counts, perm := bucketByRank(part, size, req)

	sendReq := make([][]I, size)
	pos := 0
	for r := 0; r < size; r++ {
		n := counts[r]
		br := make([]I, n)
		for k := 0; k < n; k++ {
			br[k] = req[perm[pos+k]]
		}
		sendReq[r] = br
		pos += n
	}

	recvCounts, err := exchangeCounts(c, counts)
	if err != nil {
		return nil, err
	}
	recvReq, err := AllToAllV(c, sendReq)
	if err != nil {
		return nil, err
	}
	for r := 0; r < size; r++ {
		if len(recvReq[r]) != recvCounts[r] {
			return nil, errors.Errorf("comm: rank %d announced %d requests, sent %d",
				r, recvCounts[r], len(recvReq[r]))
		}
	}

	// Fulfill each rank's requests from the local shard, in the order
	// they arrived so the requester can place rows by position.
	sendVal := make([][]D, size)
	for r := 0; r < size; r++ {
		rows, err := gatherLocal(part, recvReq[r], local, featLen)
		if err != nil {
			return nil, errors.Wrapf(err, "serving rank %d", r)
		}
		sendVal[r] = rows
	}
	recvVal, err := AllToAllV(c, sendVal)
	if err != nil {
		return nil, err
	}

	// Inverse permutation: bucketed answer k belongs to request perm[k].
	out := make([]D, len(req)*featLen)
	pos = 0
	for r := 0; r < size; r++ {
		rows := recvVal[r]
		if len(rows) != counts[r]*featLen {
			return nil, errors.Errorf("comm: rank %d answered %d values for %d requests",
				r, len(rows), counts[r])
		}
		for k := 0; k < counts[r]; k++ {
			orig := perm[pos+k]
			copy(out[orig*featLen:(orig+1)*featLen], rows[k*featLen:(k+1)*featLen])
		}
		pos += counts[r]
	}
	klog.V(3).Infof("comm: rank %d pull resolved %d requests", c.Rank(), len(req))
	return out, nil
}

func gatherLocal[I tensor.Index, D Elem](part *RemainderPartition,
	ids []I, local []D, featLen int) ([]D, error) {
	numRows := len(local) / featLen
	out := make([]D, len(ids)*featLen)
	for k, id := range ids {
		li := part.LocalIndex(int64(id))
		if li < 0 || int(li) >= numRows {
			return nil, errors.Errorf("comm: global id %d maps to local row %d, shard has %d rows",
				int64(id), li, numRows)
		}
		copy(out[k*featLen:(k+1)*featLen], local[int(li)*featLen:(int(li)+1)*featLen])
	}
	return out, nil
}

func idxTensor[I tensor.Index](data []I, dtype tensor.DataType) *tensor.RawTensor {
	out := tensor.NewVector(len(data), dtype)
	switch d := any(data).(type) {
	case []int32:
		copy(out.AsInt32(), d)
	case []int64:
		copy(out.AsInt64(), d)
	}
	return out
}

// featTensor shapes flat row data as [rows, featLen]. Zero rows come
// back as an empty vector, since shapes carry no zero dims.
func featTensor[D Elem](data []D, featLen int, dtype tensor.DataType) *tensor.RawTensor {
	rows := len(data) / featLen
	if rows == 0 {
		return tensor.NewVector(0, dtype)
	}
	out := tensor.MustNew(tensor.Shape{rows, featLen}, dtype, tensor.CPU)
	switch d := any(data).(type) {
	case []float32:
		copy(out.AsFloat32(), d)
	case []float64:
		copy(out.AsFloat64(), d)
	}
	return out
}
