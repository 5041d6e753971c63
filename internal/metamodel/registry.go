// Package metamodel implements the Metamodel Registry (spec.md §4.1): it
// loads, for each supported DOML version, a schema document and inverse
// association list, and answers resolution queries against the
// inheritance chain.
package metamodel

import (
	"embed"
	"fmt"

	"github.com/doml-verifier/mc/internal/obslog"
	"github.com/doml-verifier/mc/internal/values"
)

//go:embed schemas
var embeddedSchemas embed.FS

// Registry is a read-only, process-wide table of metamodels, one per
// supported DOML version. It is built once at startup and shared by
// reference (spec.md §5, "Global registries").
type Registry struct {
	metamodels map[Version]*Metamodel
	inverses   map[Version][]InversePair
}

// NewRegistry loads every embedded version schema. A malformed embedded
// schema is a programmer error (it ships with the binary), so NewRegistry
// panics rather than returning an error a caller could plausibly recover
// from — mirroring the teacher's treatment of init-time global registries.
func NewRegistry() *Registry {
	r := &Registry{
		metamodels: make(map[Version]*Metamodel, len(AllVersions)),
		inverses:   make(map[Version][]InversePair, len(AllVersions)),
	}
	for _, v := range AllVersions {
		raw, err := embeddedSchemas.ReadFile(fmt.Sprintf("schemas/doml_meta_%s.yaml", v))
		if err != nil {
			panic(fmt.Sprintf("metamodel registry: missing embedded schema for %s: %v", v, err))
		}
		mm, inv, err := ParseMetamodel(v, raw)
		if err != nil {
			panic(fmt.Sprintf("metamodel registry: malformed schema for %s: %v", v, err))
		}
		r.metamodels[v] = mm
		r.inverses[v] = inv
		obslog.Debugf(obslog.CategoryLoad, "metamodel %s loaded: %d classes", v, len(mm.Classes))
	}
	return r
}

// ErrUnknownVersion is returned when a caller asks for a version this
// registry does not carry a schema for. This is fatal per spec.md §4.1.
type ErrUnknownVersion struct{ Version Version }

func (e *ErrUnknownVersion) Error() string {
	return fmt.Sprintf("unknown DOML version %q", e.Version)
}

// Metamodel returns the metamodel for a version.
func (r *Registry) Metamodel(v Version) (*Metamodel, error) {
	mm, ok := r.metamodels[v]
	if !ok {
		return nil, &ErrUnknownVersion{v}
	}
	return mm, nil
}

// InversePairs returns the declared inverse-association pairs for a
// version.
func (r *Registry) InversePairs(v Version) []InversePair {
	return r.inverses[v]
}

// Subclasses returns the reflexive, transitive set of subclasses of class
// (including class itself).
func (r *Registry) Subclasses(v Version, class string) ([]string, error) {
	mm, err := r.Metamodel(v)
	if err != nil {
		return nil, err
	}
	var out []string
	for qname, cls := range mm.Classes {
		if isSubclassOf(mm, qname, class) {
			_ = cls
			out = append(out, qname)
		}
	}
	return out, nil
}

// Superclasses returns the reflexive, transitive set of superclasses of
// class (including class itself), root last.
func (r *Registry) Superclasses(v Version, class string) ([]string, error) {
	mm, err := r.Metamodel(v)
	if err != nil {
		return nil, err
	}
	var out []string
	cur := class
	for cur != "" {
		cls, ok := mm.Classes[cur]
		if !ok {
			return nil, fmt.Errorf("unknown class %s", cur)
		}
		out = append(out, cur)
		cur = cls.Superclass
	}
	return out, nil
}

func isSubclassOf(mm *Metamodel, qname, ancestor string) bool {
	cur := qname
	for cur != "" {
		if cur == ancestor {
			return true
		}
		cls, ok := mm.Classes[cur]
		if !ok {
			return false
		}
		cur = cls.Superclass
	}
	return false
}

// ResolveAttribute walks the superclass chain of class looking for a
// locally declared attribute named local. It returns the declaring class's
// qualified name and the attribute. On failure it returns a
// *NotFoundError carrying close-match suggestions gathered across the
// whole chain.
func (r *Registry) ResolveAttribute(v Version, class, local string) (string, *Attribute, error) {
	mm, err := r.Metamodel(v)
	if err != nil {
		return "", nil, err
	}
	var pool []string
	cur := class
	for cur != "" {
		cls, ok := mm.Classes[cur]
		if !ok {
			return "", nil, fmt.Errorf("unknown class %s", cur)
		}
		if a, ok := cls.Attributes[local]; ok {
			return cls.Name, a, nil
		}
		for name := range cls.Attributes {
			pool = append(pool, name)
		}
		cur = cls.Superclass
	}
	return "", nil, &NotFoundError{Kind: "attribute", Class: class, Name: local, Suggestions: closeMatches(local, pool, 3)}
}

// ResolveAssociation is ResolveAttribute's analogue for associations.
func (r *Registry) ResolveAssociation(v Version, class, local string) (string, *Association, error) {
	mm, err := r.Metamodel(v)
	if err != nil {
		return "", nil, err
	}
	var pool []string
	cur := class
	for cur != "" {
		cls, ok := mm.Classes[cur]
		if !ok {
			return "", nil, fmt.Errorf("unknown class %s", cur)
		}
		if a, ok := cls.Associations[local]; ok {
			return cls.Name, a, nil
		}
		for name := range cls.Associations {
			pool = append(pool, name)
		}
		cur = cls.Superclass
	}
	return "", nil, &NotFoundError{Kind: "association", Class: class, Name: local, Suggestions: closeMatches(local, pool, 3)}
}

// DefaultsOf returns the merged (mangled attribute name -> default values)
// map for class, walking from the root down so that a subclass default
// shadows its superclass's.
func (r *Registry) DefaultsOf(v Version, class string) (map[string][]values.Value, error) {
	chain, err := r.Superclasses(v, class)
	if err != nil {
		return nil, err
	}
	mm, _ := r.Metamodel(v)
	out := make(map[string][]values.Value)
	for i := len(chain) - 1; i >= 0; i-- {
		cls := mm.Classes[chain[i]]
		for aname, a := range cls.Attributes {
			if a.Default != nil {
				out[cls.Name+"::"+aname] = a.Default
			}
		}
	}
	return out, nil
}

// NotFoundError reports an unresolved attribute/association name,
// surfaced to the DOMLR compiler as a named error with suggestions
// (spec.md §4.1).
type NotFoundError struct {
	Kind        string
	Class       string
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("%s %q not found on %s or its superclasses", e.Kind, e.Name, e.Class)
	}
	return fmt.Sprintf("%s %q not found on %s or its superclasses (did you mean %v?)", e.Kind, e.Name, e.Class, e.Suggestions)
}
