// Package binop holds the elementwise operator and reducer registries
// shared by the SpMM/SDDMM/segment kernels. Operators and reducers are
// enum-keyed here; name strings exist only at the public kernel boundary.
package binop

import (
	"fmt"
	"math"

	"github.com/gravel-ml/gravel/internal/tensor"
)

// Op identifies a binary elementwise operator.
type Op int

// Supported operators.
const (
	Add Op = iota
	Sub
	Mul
	Div
	CopyLhs
	CopyRhs
)

var opNames = map[string]Op{
	"add":      Add,
	"sub":      Sub,
	"mul":      Mul,
	"div":      Div,
	"copy_lhs": CopyLhs,
	"copy_rhs": CopyRhs,
	// Aliases used by message-function names.
	"copy_u":  CopyLhs,
	"copy_e":  CopyRhs,
	"use_lhs": CopyLhs,
	"use_rhs": CopyRhs,
}

// ParseOp resolves an operator name. Unknown names are a caller bug.
func ParseOp(name string) (Op, error) {
	op, ok := opNames[name]
	if !ok {
		return 0, fmt.Errorf("unsupported operator: %q", name)
	}
	return op, nil
}

// String returns the canonical operator name.
func (op Op) String() string {
	switch op {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Div:
		return "div"
	case CopyLhs:
		return "copy_lhs"
	case CopyRhs:
		return "copy_rhs"
	default:
		return "unknown"
	}
}

// UseLhs reports whether the operator reads its left operand.
// copy_rhs short-circuits the left read entirely.
func (op Op) UseLhs() bool { return op != CopyRhs }

// UseRhs reports whether the operator reads its right operand.
// copy_lhs short-circuits the right read entirely.
func (op Op) UseRhs() bool { return op != CopyLhs }

// Func returns the elementwise function for op. Kernels resolve it once
// before the edge loop; operands the operator does not use are passed as
// zero values and ignored.
func Func[D tensor.Float](op Op) func(l, r D) D {
	switch op {
	case Add:
		return func(l, r D) D { return l + r }
	case Sub:
		return func(l, r D) D { return l - r }
	case Mul:
		return func(l, r D) D { return l * r }
	case Div:
		return func(l, r D) D { return l / r }
	case CopyLhs:
		return func(l, _ D) D { return l }
	case CopyRhs:
		return func(_, r D) D { return r }
	default:
		panic(fmt.Sprintf("binop: unknown operator %d", op))
	}
}

// Reducer identifies how per-edge values are folded into an output row.
type Reducer int

// Supported reducers.
const (
	ReduceSum Reducer = iota
	ReduceMax
	ReduceMin
	ReduceMean
	ReduceProd
	ReduceNone
)

var reducerNames = map[string]Reducer{
	"sum":  ReduceSum,
	"max":  ReduceMax,
	"min":  ReduceMin,
	"mean": ReduceMean,
	"prod": ReduceProd,
	"none": ReduceNone,
}

// ParseReducer resolves a reducer name. Unknown names are a caller bug.
func ParseReducer(name string) (Reducer, error) {
	r, ok := reducerNames[name]
	if !ok {
		return 0, fmt.Errorf("unsupported reducer: %q", name)
	}
	return r, nil
}

// String returns the canonical reducer name.
func (r Reducer) String() string {
	switch r {
	case ReduceSum:
		return "sum"
	case ReduceMax:
		return "max"
	case ReduceMin:
		return "min"
	case ReduceMean:
		return "mean"
	case ReduceProd:
		return "prod"
	case ReduceNone:
		return "none"
	default:
		return "unknown"
	}
}

// IsCmp reports whether the reducer selects an extremum and therefore
// records arg ids.
func (r Reducer) IsCmp() bool {
	return r == ReduceMax || r == ReduceMin
}

// Identity returns the accumulator seed value for the reducer.
func Identity[D tensor.Float](r Reducer) D {
	switch r {
	case ReduceSum, ReduceMean, ReduceNone:
		return 0
	case ReduceProd:
		return 1
	case ReduceMax:
		return D(math.Inf(-1))
	case ReduceMin:
		return D(math.Inf(1))
	default:
		panic(fmt.Sprintf("binop: unknown reducer %d", r))
	}
}

// Combine returns the accumulate function for sum-family reducers.
func Combine[D tensor.Float](r Reducer) func(acc, v D) D {
	switch r {
	case ReduceSum, ReduceMean:
		return func(acc, v D) D { return acc + v }
	case ReduceProd:
		return func(acc, v D) D { return acc * v }
	default:
		panic(fmt.Sprintf("binop: %s is not an accumulate reducer", r))
	}
}

// Better returns the strict comparison for max/min reducers: it reports
// whether v beats acc. Strictness makes the first extremal edge win, so
// tie-breaking is deterministic under ascending edge iteration.
func Better[D tensor.Float](r Reducer) func(acc, v D) bool {
	switch r {
	case ReduceMax:
		return func(acc, v D) bool { return v > acc }
	case ReduceMin:
		return func(acc, v D) bool { return v < acc }
	default:
		panic(fmt.Sprintf("binop: %s is not a compare reducer", r))
	}
}
