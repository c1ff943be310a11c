package binop

import (
	"math"
	"testing"
)

func TestParseOp(t *testing.T) {
	cases := map[string]Op{
		"add":      Add,
		"sub":      Sub,
		"mul":      Mul,
		"div":      Div,
		"copy_lhs": CopyLhs,
		"copy_rhs": CopyRhs,
		"copy_u":   CopyLhs,
		"copy_e":   CopyRhs,
		"use_lhs":  CopyLhs,
		"use_rhs":  CopyRhs,
	}
	for name, want := range cases {
		op, err := ParseOp(name)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if op != want {
			t.Fatalf("%q: got %v, want %v", name, op, want)
		}
	}

	if _, err := ParseOp("pow"); err == nil {
		t.Fatal("unknown operator should fail")
	}
}

func TestParseReducer(t *testing.T) {
	for _, name := range []string{"sum", "max", "min", "mean", "prod", "none"} {
		r, err := ParseReducer(name)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if r.String() != name {
			t.Fatalf("%q round-tripped as %q", name, r.String())
		}
	}
	if _, err := ParseReducer("median"); err == nil {
		t.Fatal("unknown reducer should fail")
	}
}

func TestOpFunc(t *testing.T) {
	cases := []struct {
		op   Op
		want float64
	}{
		{Add, 9},
		{Sub, 3},
		{Mul, 18},
		{Div, 2},
		{CopyLhs, 6},
		{CopyRhs, 3},
	}
	for _, c := range cases {
		if got := Func[float64](c.op)(6, 3); got != c.want {
			t.Fatalf("%s(6, 3) = %v, want %v", c.op, got, c.want)
		}
	}
}

func TestOpOperandUse(t *testing.T) {
	if !Add.UseLhs() || !Add.UseRhs() {
		t.Fatal("add reads both operands")
	}
	if !CopyLhs.UseLhs() || CopyLhs.UseRhs() {
		t.Fatal("copy_lhs reads only the lhs")
	}
	if CopyRhs.UseLhs() || !CopyRhs.UseRhs() {
		t.Fatal("copy_rhs reads only the rhs")
	}
}

func TestReducerIdentity(t *testing.T) {
	if Identity[float32](ReduceSum) != 0 || Identity[float32](ReduceProd) != 1 {
		t.Fatal("wrong sum/prod seeds")
	}
	if !math.IsInf(float64(Identity[float32](ReduceMax)), -1) {
		t.Fatal("max must seed from -inf")
	}
	if !math.IsInf(Identity[float64](ReduceMin), 1) {
		t.Fatal("min must seed from +inf")
	}
}

func TestReducerBetterIsStrict(t *testing.T) {
	better := Better[float64](ReduceMax)
	if better(5, 5) {
		t.Fatal("ties must keep the incumbent")
	}
	if !better(5, 6) || better(5, 4) {
		t.Fatal("max comparison inverted")
	}

	better = Better[float64](ReduceMin)
	if better(5, 5) || !better(5, 4) {
		t.Fatal("min comparison inverted")
	}
}

func TestReducerKinds(t *testing.T) {
	if !ReduceMax.IsCmp() || !ReduceMin.IsCmp() {
		t.Fatal("max and min record arg ids")
	}
	if ReduceSum.IsCmp() || ReduceMean.IsCmp() || ReduceNone.IsCmp() {
		t.Fatal("only extremum reducers record arg ids")
	}

	if Combine[float64](ReduceSum)(2, 3) != 5 {
		t.Fatal("sum combine broken")
	}
	if Combine[float64](ReduceProd)(2, 3) != 6 {
		t.Fatal("prod combine broken")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("Combine on a compare reducer should panic")
		}
	}()
	Combine[float64](ReduceMax)
}
