package encoding

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/doml-verifier/mc/internal/im"
	"github.com/doml-verifier/mc/internal/metamodel"
	"github.com/doml-verifier/mc/internal/requirement"
)

// BuildConsistencyRequirements derives the optional consistency axioms a
// verification run may request (via the `check-consistency` DOMLR
// directive or a config override): attribute value-shape, attribute
// multiplicity, association target class conformance (the source class
// is not checked), association multiplicity, and per-inverse-pair
// bi-implication — the five families
// `consistency_reqs.py`'s `get_attribute_type_reqs`,
// `get_attribute_multiplicity_reqs`, `get_association_type_reqs`,
// `get_association_multiplicity_reqs`, and `get_inverse_association_reqs`
// emit. Unlike the background elem_class/attr/assoc facts — which are
// always loaded — these run only when asked, because they are expensive
// relative to what they check and because a conforming model never needs
// them.
//
// spec.md §4.2 is explicit that the Intermediate Model builder does not
// enforce multiplicity ("it is a consistency requirement"), and these are
// exactly the properties discharged here instead of at build time.
//
// The output order is fixed: families in the order above, classes and
// member names sorted within each family, so two runs over the same
// metamodel produce identical requirement lists.
func BuildConsistencyRequirements(mm *metamodel.Metamodel, pairs []metamodel.InversePair) []requirement.Requirement {
	var reqs []requirement.Requirement
	reqs = append(reqs, attributeTypeRequirements(mm)...)
	reqs = append(reqs, attributeMultiplicityRequirements(mm)...)
	reqs = append(reqs, associationConformanceRequirements(mm)...)
	reqs = append(reqs, associationMultiplicityRequirements(mm)...)
	sorted := append([]metamodel.InversePair(nil), pairs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].A != sorted[j].A {
			return sorted[i].A < sorted[j].A
		}
		return sorted[i].B < sorted[j].B
	})
	for _, p := range sorted {
		reqs = append(reqs, inverseReciprocationRequirement(p))
	}
	return reqs
}

func sortedClassNames(mm *metamodel.Metamodel) []string {
	out := make([]string, 0, len(mm.Classes))
	for qname := range mm.Classes {
		out = append(out, qname)
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// subclassesOf returns every qualified class name in mm (including
// target itself) whose superclass chain passes through target, sorted.
func subclassesOf(mm *metamodel.Metamodel, target string) []string {
	var out []string
	for qname := range mm.Classes {
		cur := qname
		for cur != "" {
			if cur == target {
				out = append(out, qname)
				break
			}
			cur = mm.Classes[cur].Superclass
		}
	}
	sort.Strings(out)
	return out
}

// attributeTypeRequirements emits one flipped requirement per attribute
// whose value domain is checkable at solver level: Boolean attributes
// must only carry /true or /false, and EnumKind attributes with a
// declared member set must only carry one of its tokens. Integer and
// String shapes are not re-checked here — the Intermediate Model builder
// coerces every raw literal through the declared primitive type before a
// fact is ever emitted, so only the closed-domain kinds can go wrong
// between IM and solver. Composite (special-parsed) attributes are
// skipped for the same reason: their normalized value shape is defined
// by the adapter, not by the declared primitive.
func attributeTypeRequirements(mm *metamodel.Metamodel) []requirement.Requirement {
	var reqs []requirement.Requirement
	for _, qname := range sortedClassNames(mm) {
		cls := mm.Classes[qname]
		for _, local := range sortedKeys(cls.Attributes) {
			attr := cls.Attributes[local]
			mangled := qname + "::" + local
			if im.IsComposite(mangled) {
				continue
			}

			var admissible []string
			switch {
			case attr.Type == metamodel.Boolean:
				admissible = []string{"/true", "/false"}
			case attr.Type == metamodel.EnumKind && len(attr.EnumValues) > 0:
				for _, v := range attr.EnumValues {
					admissible = append(admissible, strconv.Quote(v))
				}
			default:
				continue
			}

			guards := make([]string, 0, len(admissible))
			for _, a := range admissible {
				guards = append(guards, fmt.Sprintf("V != %s", a))
			}
			rule := fmt.Sprintf(`Decl bad_value(E, V).
bad_value(E, V) :- attr(E, %s, V), %s.
`, MemberLiteral(mangled), strings.Join(guards, ", "))
			reqs = append(reqs, requirement.Requirement{
				ID:          "consistency-attr-shape-" + sanitizeID(mangled),
				Description: fmt.Sprintf("every %s value lies in its declared domain", mangled),
				Source:      requirement.SourceConsistency,
				Flipped:     true,
				RuleText:    rule,
				QueryText:   "bad_value(E, V)",
				Template:    fmt.Sprintf("{E} carries out-of-domain value {V} for %s", local),
			})
		}
	}
	return reqs
}

// attributeMultiplicityRequirements emits the lower-bound (required
// attribute present on every instance, including subclass instances) and
// upper-bound (single-valued attribute carries at most one value) checks.
// Composite attributes skip the upper bound: their special parsers
// legitimately normalize one raw literal into several values.
func attributeMultiplicityRequirements(mm *metamodel.Metamodel) []requirement.Requirement {
	var reqs []requirement.Requirement
	for _, qname := range sortedClassNames(mm) {
		cls := mm.Classes[qname]
		for _, local := range sortedKeys(cls.Attributes) {
			attr := cls.Attributes[local]
			mangled := qname + "::" + local
			member := MemberLiteral(mangled)

			if attr.Multiplicity.Required() {
				var sb strings.Builder
				sb.WriteString("Decl missing_value(E).\n")
				for _, sub := range subclassesOf(mm, qname) {
					fmt.Fprintf(&sb, "missing_value(E) :- elem_class(E, %s), !has_value(E).\n", ClassLiteral(sub))
				}
				fmt.Fprintf(&sb, "Decl has_value(E).\nhas_value(E) :- attr(E, %s, _).\n", member)
				reqs = append(reqs, requirement.Requirement{
					ID:          "consistency-attr-required-" + sanitizeID(mangled),
					Description: fmt.Sprintf("every instance carries the required attribute %s", mangled),
					Source:      requirement.SourceConsistency,
					Flipped:     true,
					RuleText:    sb.String(),
					QueryText:   "missing_value(E)",
					Template:    fmt.Sprintf("{E} is missing required attribute %s", local),
				})
			}

			if !attr.Multiplicity.Many() && !im.IsComposite(mangled) {
				rule := fmt.Sprintf(`Decl excess_value(E).
excess_value(E) :- attr(E, %[1]s, V1), attr(E, %[1]s, V2), V1 != V2.
`, member)
				reqs = append(reqs, requirement.Requirement{
					ID:          "consistency-attr-single-" + sanitizeID(mangled),
					Description: fmt.Sprintf("the single-valued attribute %s carries at most one value", mangled),
					Source:      requirement.SourceConsistency,
					Flipped:     true,
					RuleText:    rule,
					QueryText:   "excess_value(E)",
					Template:    fmt.Sprintf("{E} carries more than one value for %s", local),
				})
			}
		}
	}
	return reqs
}

// associationConformanceRequirements emits one flipped requirement per
// declared association asking the solver to find an edge whose target
// is not an instance of the declared target class or one of its
// subclasses — a conformance property the Intermediate Model builder
// never checks (it trusts the external adapter to have respected the
// metamodel it claims to target).
func associationConformanceRequirements(mm *metamodel.Metamodel) []requirement.Requirement {
	var reqs []requirement.Requirement
	for _, qname := range sortedClassNames(mm) {
		cls := mm.Classes[qname]
		for _, local := range sortedKeys(cls.Associations) {
			assoc := cls.Associations[local]
			mangled := qname + "::" + local
			var sb strings.Builder
			fmt.Fprintf(&sb, "Decl bad_target(E, F).\nbad_target(E, F) :- assoc(E, %s, F), !conforms(F).\nDecl conforms(F).\n", MemberLiteral(mangled))
			for _, c := range subclassesOf(mm, assoc.Target) {
				fmt.Fprintf(&sb, "conforms(F) :- elem_class(F, %s).\n", ClassLiteral(c))
			}
			reqs = append(reqs, requirement.Requirement{
				ID:          "consistency-assoc-target-" + sanitizeID(mangled),
				Description: fmt.Sprintf("every %s target is an instance of %s or a subclass", mangled, assoc.Target),
				Source:      requirement.SourceConsistency,
				Flipped:     true,
				RuleText:    sb.String(),
				QueryText:   "bad_target(E, F)",
				Template:    fmt.Sprintf("{E}'s %s target {F} is not a %s", local, assoc.Target),
			})
		}
	}
	return reqs
}

// associationMultiplicityRequirements is attributeMultiplicityRequirements'
// analogue over assoc edges: a lower-bound-1 association must leave no
// instance without a target, and an upper-bound-1 association must never
// fan out to two distinct targets.
func associationMultiplicityRequirements(mm *metamodel.Metamodel) []requirement.Requirement {
	var reqs []requirement.Requirement
	for _, qname := range sortedClassNames(mm) {
		cls := mm.Classes[qname]
		for _, local := range sortedKeys(cls.Associations) {
			assoc := cls.Associations[local]
			mangled := qname + "::" + local
			member := MemberLiteral(mangled)

			if assoc.Multiplicity.Required() {
				var sb strings.Builder
				sb.WriteString("Decl missing_target(E).\n")
				for _, sub := range subclassesOf(mm, qname) {
					fmt.Fprintf(&sb, "missing_target(E) :- elem_class(E, %s), !has_target(E).\n", ClassLiteral(sub))
				}
				fmt.Fprintf(&sb, "Decl has_target(E).\nhas_target(E) :- assoc(E, %s, _).\n", member)
				reqs = append(reqs, requirement.Requirement{
					ID:          "consistency-assoc-required-" + sanitizeID(mangled),
					Description: fmt.Sprintf("every instance carries the required association %s", mangled),
					Source:      requirement.SourceConsistency,
					Flipped:     true,
					RuleText:    sb.String(),
					QueryText:   "missing_target(E)",
					Template:    fmt.Sprintf("{E} is missing required association %s", local),
				})
			}

			if !assoc.Multiplicity.Many() {
				rule := fmt.Sprintf(`Decl excess_target(E).
excess_target(E) :- assoc(E, %[1]s, F1), assoc(E, %[1]s, F2), F1 != F2.
`, member)
				reqs = append(reqs, requirement.Requirement{
					ID:          "consistency-assoc-single-" + sanitizeID(mangled),
					Description: fmt.Sprintf("the single-valued association %s carries at most one target", mangled),
					Source:      requirement.SourceConsistency,
					Flipped:     true,
					RuleText:    rule,
					QueryText:   "excess_target(E)",
					Template:    fmt.Sprintf("{E} has more than one %s target", local),
				})
			}
		}
	}
	return reqs
}

// inverseReciprocationRequirement emits a flipped requirement asking the
// solver to find an edge on one side of an inverse pair with no matching
// edge on the other — a bi-implication the Intermediate Model builder
// always establishes by construction (reciprocate in im/builder.go), so
// this should only ever fire if a future change to that builder regresses
// the guarantee.
func inverseReciprocationRequirement(pair metamodel.InversePair) requirement.Requirement {
	rule := fmt.Sprintf(`Decl broken_inverse(E, F).
broken_inverse(E, F) :- assoc(E, %[1]s, F), !assoc(F, %[2]s, E).
broken_inverse(E, F) :- assoc(F, %[2]s, E), !assoc(E, %[1]s, F).
`, MemberLiteral(pair.A), MemberLiteral(pair.B))
	return requirement.Requirement{
		ID:          "consistency-inverse-" + sanitizeID(pair.A) + "-" + sanitizeID(pair.B),
		Description: fmt.Sprintf("%s and %s are reciprocal", pair.A, pair.B),
		Source:      requirement.SourceConsistency,
		Flipped:     true,
		RuleText:    rule,
		QueryText:   "broken_inverse(E, F)",
		Template:    fmt.Sprintf("{E}/{F} violate the %s/%s inverse pair", pair.A, pair.B),
	}
}

func sanitizeID(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' {
			out[i] = '_'
		} else {
			out[i] = c
		}
	}
	return string(out)
}
