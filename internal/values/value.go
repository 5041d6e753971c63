// Package values defines the primitive value representation shared by the
// Metamodel (attribute defaults), the Intermediate Model (attribute data),
// and the Encoding (the AttrData sort). Keeping one tagged union here
// avoids three incompatible copies drifting apart.
package values

import "fmt"

// Kind tags which variant of Value is populated.
type Kind int

const (
	KindInt Kind = iota
	KindBool
	KindString
	// KindUnbound is the uninhabited/placeholder variant the spec reserves
	// for a future "unbound elements/values" extension. It is never
	// produced by this implementation; it exists so callers can match
	// exhaustively without a default case silently swallowing new kinds.
	KindUnbound
)

// Value is AttrData from spec.md §3: a tagged union of Int/Bool/Str plus an
// uninhabited placeholder variant.
type Value struct {
	Kind Kind
	I    int64
	B    bool
	S    string
}

func Int(i int64) Value     { return Value{Kind: KindInt, I: i} }
func Bool(b bool) Value     { return Value{Kind: KindBool, B: b} }
func String(s string) Value { return Value{Kind: KindString, S: s} }

// String representation used for diagnostics and Mangle constant encoding.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindBool:
		return fmt.Sprintf("%v", v.B)
	case KindString:
		return v.S
	default:
		return "<unbound>"
	}
}

// Equal reports whether two values denote the same AttrData element.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt:
		return a.I == b.I
	case KindBool:
		return a.B == b.B
	case KindString:
		return a.S == b.S
	default:
		return true
	}
}
