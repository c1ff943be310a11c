package binop

import "fmt"

// Target names which per-entity feature array an SDDMM operand reads.
type Target int

// Operand targets. The numeric values are part of the public contract.
const (
	TargetSrc  Target = 0
	TargetDst  Target = 1
	TargetEdge Target = 2
)

var targetNames = map[string]Target{
	"u": TargetSrc,
	"v": TargetDst,
	"e": TargetEdge,
}

// ParseTarget resolves an operand target name.
func ParseTarget(name string) (Target, error) {
	t, ok := targetNames[name]
	if !ok {
		return 0, fmt.Errorf("unsupported operand target: %q", name)
	}
	return t, nil
}

// String returns the canonical target name.
func (t Target) String() string {
	switch t {
	case TargetSrc:
		return "u"
	case TargetDst:
		return "v"
	case TargetEdge:
		return "e"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the three defined targets.
func (t Target) Valid() bool {
	return t == TargetSrc || t == TargetDst || t == TargetEdge
}
