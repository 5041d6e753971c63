package im

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/doml-verifier/mc/internal/external"
	"github.com/doml-verifier/mc/internal/metamodel"
	"github.com/doml-verifier/mc/internal/obslog"
	"github.com/doml-verifier/mc/internal/values"
	"github.com/doml-verifier/mc/internal/verrors"
)

// idNamespace seeds the deterministic element-identifier derivation
// (spec.md §4.2: "a stable synthetic identifier derived from, but never
// equal to, the source document's own object identity").
var idNamespace = uuid.MustParse("6f9bd9c3-6c7e-4d2b-9d61-6d5e6a2f9e11")

// builder holds the per-run state needed to turn one external.Node graph
// into one im.Model: the target metamodel, a memo table keyed by source
// node identity (so a node referenced from two places is built once), and
// the accumulating element table.
type builder struct {
	reg     *metamodel.Registry
	mm      *metamodel.Metamodel
	version metamodel.Version

	memo  map[*external.Node]ElementID
	byID  map[ElementID]*Element
	order []ElementID
}

// Build walks root and produces the Intermediate Model for version,
// resolving every attribute and association against reg's metamodel. It
// fails fast with a *verrors.LoadError on the first unresolved class,
// attribute, or association — this module never guesses at a malformed
// source graph (spec.md §4.2).
func Build(root *external.Node, reg *metamodel.Registry, version metamodel.Version) (*Model, error) {
	mm, err := reg.Metamodel(version)
	if err != nil {
		return nil, &verrors.LoadError{Stage: "version", Err: err}
	}
	t := obslog.StartTimer(obslog.CategoryLoad, "im.Build")
	defer t.Stop()

	b := &builder{
		reg:     reg,
		mm:      mm,
		version: version,
		memo:    make(map[*external.Node]ElementID),
		byID:    make(map[ElementID]*Element),
	}
	if _, err := b.visit(root); err != nil {
		return nil, &verrors.LoadError{Stage: "im-build", Err: err}
	}
	reciprocate(b.byID, reg.InversePairs(version))
	validateInvariants(b)

	model := &Model{Version: string(version), Order: b.order, byID: b.byID}
	obslog.Infof(obslog.CategoryLoad, "intermediate model built: %d elements", model.Len())
	return model, nil
}

// visit builds (or returns the memoized) ElementID for node, recursing
// into its association targets first so that every Associations entry it
// writes refers to an already-registered element.
func (b *builder) visit(node *external.Node) (ElementID, error) {
	if id, ok := b.memo[node]; ok {
		return id, nil
	}

	_, ok := b.mm.Classes[node.Class]
	if !ok {
		return "", fmt.Errorf("element %q: unknown class %q", node.Identity, node.Class)
	}

	id := ElementID(uuid.NewSHA1(idNamespace, []byte(node.Class+"|"+node.Identity)).String())
	b.memo[node] = id

	el := &Element{
		ID:           id,
		Name:         node.Name,
		Class:        node.Class,
		Attributes:   make(map[string][]values.Value),
		Associations: make(map[string]map[ElementID]bool),
	}
	b.byID[id] = el
	b.order = append(b.order, id)

	defaults, err := b.reg.DefaultsOf(b.version, node.Class)
	if err != nil {
		return "", err
	}
	for mangled, dv := range defaults {
		el.Attributes[mangled] = dv
	}

	for local, raws := range node.Attributes {
		declClass, attr, err := b.reg.ResolveAttribute(b.version, node.Class, local)
		if err != nil {
			return "", fmt.Errorf("element %q (%s): %w", node.Identity, node.Class, err)
		}
		mangled := declClass + "::" + local
		vals, err := coerceAttribute(mangled, attr.Type, raws)
		if err != nil {
			return "", fmt.Errorf("element %q (%s) attribute %s: %w", node.Identity, node.Class, mangled, err)
		}
		el.Attributes[mangled] = vals
	}

	for local, targets := range node.References {
		declClass, assoc, err := b.reg.ResolveAssociation(b.version, node.Class, local)
		if err != nil {
			return "", fmt.Errorf("element %q (%s): %w", node.Identity, node.Class, err)
		}
		mangled := declClass + "::" + local
		set := el.Associations[mangled]
		if set == nil {
			set = make(map[ElementID]bool)
			el.Associations[mangled] = set
		}
		for _, tgt := range targets {
			tid, err := b.visit(tgt)
			if err != nil {
				return "", err
			}
			set[tid] = true
		}
		_ = assoc // multiplicity is a consistency requirement, not a build-time check (spec.md §4.2)
	}

	return id, nil
}

// coerceAttribute applies a registered special parser for mangled, falling
// back to the declared primitive coercion per raw literal (spec.md §4.2
// item 3).
func coerceAttribute(mangled string, t metamodel.PrimitiveType, raws []string) ([]values.Value, error) {
	if parser, ok := specialParsers[mangled]; ok {
		if len(raws) != 1 {
			return nil, fmt.Errorf("special parser expects exactly one literal, got %d", len(raws))
		}
		return parser(raws[0])
	}
	out := make([]values.Value, 0, len(raws))
	for _, raw := range raws {
		v, err := coercePrimitive(t, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func coercePrimitive(t metamodel.PrimitiveType, raw string) (values.Value, error) {
	switch t {
	case metamodel.Boolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return values.Value{}, fmt.Errorf("not a boolean: %q", raw)
		}
		return values.Bool(b), nil
	case metamodel.Integer:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return values.Value{}, fmt.Errorf("not an integer: %q", raw)
		}
		return values.Int(i), nil
	case metamodel.String, metamodel.EnumKind:
		return values.String(raw), nil
	default:
		return values.Value{}, fmt.Errorf("unsupported primitive type %q", t)
	}
}

// reciprocate closes every declared inverse-association pair over the
// built element table: if a is associated to b via pair.A, b must be
// associated back to a via pair.B, and vice versa. A single pass over
// every element suffices — there is no transitive chaining across
// distinct pairs (spec.md §4.2, "inverse-association reciprocation").
func reciprocate(byID map[ElementID]*Element, pairs []metamodel.InversePair) {
	reflect := func(fwd, rev string) {
		for id, el := range byID {
			for tid := range el.Associations[fwd] {
				tgt, ok := byID[tid]
				if !ok {
					continue
				}
				set := tgt.Associations[rev]
				if set == nil {
					set = make(map[ElementID]bool)
					tgt.Associations[rev] = set
				}
				set[id] = true
			}
		}
	}
	for _, pair := range pairs {
		reflect(pair.A, pair.B)
		reflect(pair.B, pair.A)
	}
}

// validateInvariants asserts the sanity properties the builder itself must
// never violate by construction — spec.md §7 classes these as "programmer
// errors" in the metamodel or IM builder, distinct from the resolution/type
// errors that are expected to surface from a malformed source document.
// Multiplicity bounds are deliberately NOT checked here: spec.md §4.2 is
// explicit that for the Intermediate Model "multiplicity is not enforced
// here (it is a consistency requirement)" — see
// encoding.BuildConsistencyRequirements, which discharges both attribute and
// association multiplicity (and value-shape and class-conformance) bounds
// to the solver instead, exactly as the original `consistency_reqs.py`
// does.
func validateInvariants(b *builder) {
	for _, el := range b.byID {
		chain, err := b.reg.Superclasses(b.version, el.Class)
		if err != nil {
			panic(fmt.Sprintf("im: element %s: superclasses of already-resolved class %q: %v", el.ID, el.Class, err))
		}
		for _, qname := range chain {
			cls := b.mm.Classes[qname]
			for local, attr := range cls.Attributes {
				mangled := cls.Name + "::" + local
				if len(attr.Default) == 0 {
					continue
				}
				if vals, ok := el.Attributes[mangled]; ok && len(vals) == 0 {
					panic(fmt.Sprintf("im: element %s (%s): attribute %s has a declared default but resolved to an empty value list", el.ID, el.Class, mangled))
				}
			}
			for local, assoc := range cls.Associations {
				mangled := cls.Name + "::" + local
				for tid := range el.Associations[mangled] {
					if _, ok := b.byID[tid]; !ok {
						panic(fmt.Sprintf("im: element %s (%s): association %s target %s was never built", el.ID, el.Class, mangled, tid))
					}
				}
				_ = assoc
			}
		}
	}
}
