// Package im implements the Intermediate Model (spec.md §3, §4.2): a
// normalized, version-tagged entity graph built once per run from the
// external adapter's object graph, then treated as immutable.
package im

import "github.com/doml-verifier/mc/internal/values"

// ElementID is the Intermediate Model's synthetic, stable element
// identifier. Associations are stored by ID, never by direct reference,
// keeping the element graph an arena-style acyclic structure even though
// the associations it describes may be cyclic (spec.md §9).
type ElementID string

// Element is one IM entry: identifier, human-readable name, qualified
// class, and the mangled attribute/association multimaps.
type Element struct {
	ID    ElementID
	Name  string
	Class string

	// Attributes maps a mangled attribute name ("DeclaringClass::local")
	// to the list of primitive values on this element: the explicit
	// values, or the declared default where none is given. Never contains a nil/absent entry — spec.md §4.2's "no
	// attribute list contains null".
	Attributes map[string][]values.Value

	// Associations maps a mangled association name to the set of
	// target element identifiers.
	Associations map[string]map[ElementID]bool
}

// Model is the full Intermediate Model: an ordered mapping from
// ElementID to Element, plus the version it was built against.
type Model struct {
	Version string
	Order   []ElementID
	byID    map[ElementID]*Element
}

// Get looks up an element by id.
func (m *Model) Get(id ElementID) (*Element, bool) {
	e, ok := m.byID[id]
	return e, ok
}

// Elements returns the elements in construction order.
func (m *Model) Elements() []*Element {
	out := make([]*Element, 0, len(m.Order))
	for _, id := range m.Order {
		out = append(out, m.byID[id])
	}
	return out
}

// Len reports the number of elements.
func (m *Model) Len() int { return len(m.Order) }
