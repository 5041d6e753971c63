package metamodel

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/doml-verifier/mc/internal/values"
)

// yamlDoc mirrors the on-disk schema shape: a mapping from layer prefix
// ("commons", "application", "infrastructure", "concrete") to a mapping
// from local class name to its declaration. Grounded in
// mc_openapi/doml_mc/intermediate_model/metamodel.py's parse_metamodel.
type yamlDoc map[string]map[string]yamlClass

type yamlClass struct {
	Superclass   string                    `yaml:"superclass"`
	Attributes   map[string]yamlAttribute  `yaml:"attributes"`
	Associations map[string]yamlAssoc      `yaml:"associations"`
}

type yamlAttribute struct {
	Type         string      `yaml:"type"`
	Multiplicity string      `yaml:"multiplicity"`
	Default      interface{} `yaml:"default"`
	Values       []string    `yaml:"values"`
}

type yamlAssoc struct {
	Class        string `yaml:"class"`
	Multiplicity string `yaml:"multiplicity"`
	InverseOf    string `yaml:"inverse_of"`
}

func parseMultiplicity(m string) (Multiplicity, error) {
	switch m {
	case "", "0..*":
		return Multiplicity{"0", "*"}, nil
	case "0..1":
		return Multiplicity{"0", "1"}, nil
	case "1":
		return Multiplicity{"1", "1"}, nil
	case "1..*":
		return Multiplicity{"1", "*"}, nil
	default:
		return Multiplicity{}, fmt.Errorf("unknown multiplicity %q", m)
	}
}

func parseDefault(typ PrimitiveType, raw interface{}) ([]values.Value, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		items = []interface{}{raw}
	}
	out := make([]values.Value, 0, len(items))
	for _, it := range items {
		v, err := coerceValue(typ, it)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func coerceValue(typ PrimitiveType, it interface{}) (values.Value, error) {
	switch typ {
	case Boolean:
		b, ok := it.(bool)
		if !ok {
			return values.Value{}, fmt.Errorf("default %v is not a Boolean", it)
		}
		return values.Bool(b), nil
	case Integer:
		switch n := it.(type) {
		case int:
			return values.Int(int64(n)), nil
		case int64:
			return values.Int(n), nil
		default:
			return values.Value{}, fmt.Errorf("default %v is not an Integer", it)
		}
	default: // String, EnumKind
		s, ok := it.(string)
		if !ok {
			return values.Value{}, fmt.Errorf("default %v is not a String", it)
		}
		return values.String(s), nil
	}
}

// ParseMetamodel decodes raw schema YAML bytes into a Metamodel, mangling
// every class name with its declaring layer prefix.
func ParseMetamodel(version Version, raw []byte) (*Metamodel, []InversePair, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse metamodel %s: %w", version, err)
	}

	mm := &Metamodel{Version: version, Classes: make(map[string]*Class)}
	var inverses []InversePair

	for layer, classes := range doc {
		for local, cdoc := range classes {
			qname := layer + "_" + local
			cls := &Class{
				Name:         qname,
				Superclass:   cdoc.Superclass,
				Attributes:   make(map[string]*Attribute, len(cdoc.Attributes)),
				Associations: make(map[string]*Association, len(cdoc.Associations)),
			}
			for aname, adoc := range cdoc.Attributes {
				typ := PrimitiveType(adoc.Type)
				mult, err := parseMultiplicity(adoc.Multiplicity)
				if err != nil {
					return nil, nil, fmt.Errorf("%s::%s: %w", qname, aname, err)
				}
				def, err := parseDefault(typ, adoc.Default)
				if err != nil {
					return nil, nil, fmt.Errorf("%s::%s: %w", qname, aname, err)
				}
				if len(adoc.Values) > 0 && typ != EnumKind {
					return nil, nil, fmt.Errorf("%s::%s: member values declared for non-enum type %s", qname, aname, typ)
				}
				cls.Attributes[aname] = &Attribute{
					Name: aname, Type: typ, Multiplicity: mult, Default: def, EnumValues: adoc.Values,
				}
			}
			for asname, asdoc := range cdoc.Associations {
				mult, err := parseMultiplicity(asdoc.Multiplicity)
				if err != nil {
					return nil, nil, fmt.Errorf("%s::%s: %w", qname, asname, err)
				}
				cls.Associations[asname] = &Association{
					Name: asname, Target: asdoc.Class, Multiplicity: mult,
				}
				if asdoc.InverseOf != "" {
					inverses = append(inverses, InversePair{
						A: asdoc.InverseOf,
						B: qname + "::" + asname,
					})
				}
			}
			mm.Classes[qname] = cls
		}
	}

	if err := validateMetamodel(mm); err != nil {
		return nil, nil, err
	}
	for _, p := range inverses {
		if err := validateInversePair(mm, p); err != nil {
			return nil, nil, err
		}
	}

	return mm, inverses, nil
}

func validateMetamodel(mm *Metamodel) error {
	for qname, cls := range mm.Classes {
		if cls.Superclass != "" {
			if _, ok := mm.Classes[cls.Superclass]; !ok {
				return fmt.Errorf("class %s: unresolved superclass %s", qname, cls.Superclass)
			}
		}
		for _, as := range cls.Associations {
			if _, ok := mm.Classes[as.Target]; !ok {
				return fmt.Errorf("association %s::%s: unknown target class %s", qname, as.Name, as.Target)
			}
		}
	}
	return nil
}

func validateInversePair(mm *Metamodel, p InversePair) error {
	for _, mangled := range []string{p.A, p.B} {
		cls, local, err := splitMangled(mangled)
		if err != nil {
			return fmt.Errorf("inverse pair %s/%s: %w", p.A, p.B, err)
		}
		c, ok := mm.Classes[cls]
		if !ok {
			return fmt.Errorf("inverse pair references unknown class %s", cls)
		}
		if _, ok := c.Associations[local]; !ok {
			return fmt.Errorf("inverse pair references unknown association %s::%s", cls, local)
		}
	}
	return nil
}

func splitMangled(name string) (class, local string, err error) {
	for i := len(name) - 1; i >= 1; i-- {
		if name[i] == ':' && name[i-1] == ':' {
			return name[:i-1], name[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("%q is not a mangled Class::name", name)
}
