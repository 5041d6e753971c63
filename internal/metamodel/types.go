package metamodel

import "github.com/doml-verifier/mc/internal/values"

// Version identifies a supported DOML metamodel revision.
type Version string

const (
	V1_0   Version = "v1.0"
	V2_0   Version = "v2.0"
	V2_1   Version = "v2.1"
	V2_1_1 Version = "v2.1.1"
)

// AllVersions is ordered newest-first, matching the XMI adapter contract's
// "try newest first" version-inference rule (spec.md §6).
var AllVersions = []Version{V2_1_1, V2_1, V2_0, V1_0}

// PrimitiveType is one of the four attribute primitive kinds from spec §3.
type PrimitiveType string

const (
	Boolean  PrimitiveType = "Boolean"
	Integer  PrimitiveType = "Integer"
	String   PrimitiveType = "String"
	EnumKind PrimitiveType = "EnumKind"
)

// Multiplicity is a (lower, upper) pair drawn from {0,1} x {1,*}.
type Multiplicity struct {
	Lower string // "0" or "1"
	Upper string // "1" or "*"
}

func (m Multiplicity) Required() bool { return m.Lower == "1" }
func (m Multiplicity) Many() bool     { return m.Upper == "*" }

// Attribute is a DOMLAttribute declaration: name, primitive type,
// multiplicity, and an optional list of default values. EnumKind
// attributes additionally carry the closed set of admissible member
// tokens (the "reserved tokens" folded into the StringSymbol sort).
type Attribute struct {
	Name         string
	Type         PrimitiveType
	Multiplicity Multiplicity
	Default      []values.Value
	EnumValues   []string
}

// Association is a DOMLAssociation declaration: name, target qualified
// class, and multiplicity.
type Association struct {
	Name         string
	Target       string
	Multiplicity Multiplicity
}

// Class is one metamodel entry, keyed by its qualified name
// (layer-prefix + local name, e.g. "infrastructure_VirtualMachine").
type Class struct {
	Name         string
	Superclass   string // "" if none
	Attributes   map[string]*Attribute
	Associations map[string]*Association
}

// Metamodel maps qualified class name to its declaration.
type Metamodel struct {
	Version Version
	Classes map[string]*Class
}

// InversePair is an unordered pair of mangled association names whose
// extensions must be reciprocal.
type InversePair struct {
	A, B string
}
