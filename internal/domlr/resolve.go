package domlr

import (
	"fmt"

	"github.com/doml-verifier/mc/internal/metamodel"
	"github.com/doml-verifier/mc/internal/verrors"
)

// varStore records, per requirement, the variable names currently bound
// by an enclosing quantifier (spec.md §4.4 stage 2). A variable used
// in the body but never bound by an enclosing forall/exists is a
// resolution error.
type varStore struct {
	bound map[string]bool
}

func newVarStore() *varStore { return &varStore{bound: make(map[string]bool)} }

func (vs *varStore) bind(name string)      { vs.bound[name] = true }
func (vs *varStore) unbind(name string)    { delete(vs.bound, name) }
func (vs *varStore) isBound(name string) bool { return vs.bound[name] }

// checkBound raises a resolution error naming the requirement, mirroring
// verrors.ResolutionError's "variable" kind.
func checkBound(vs *varStore, reqName, name string) error {
	if !vs.isBound(name) {
		return &verrors.ResolutionError{Kind: "variable", Name: name, Requirement: reqName}
	}
	return nil
}

// resolveClass resolves a QualifiedRef to its exact metamodel
// qualified class name (after following the `is ClassName`/`has Attr`
// resolution rule: accept the class as given if it is itself a known
// class name).
func resolveClass(reg *metamodel.Registry, v metamodel.Version, ref QualifiedRef, reqName string) (string, error) {
	mm, err := reg.Metamodel(v)
	if err != nil {
		return "", err
	}
	if _, ok := mm.Classes[ref.ClassPart]; !ok {
		return "", &verrors.ResolutionError{
			Kind:        "class",
			Name:        ref.ClassPart,
			Requirement: reqName,
			Suggestions: classSuggestions(mm, ref.ClassPart),
		}
	}
	return ref.ClassPart, nil
}

// resolveAttr resolves a QualifiedRef naming an attribute to its mangled
// (declaring-class::local) name and declared primitive type.
func resolveAttr(reg *metamodel.Registry, v metamodel.Version, ref QualifiedRef, reqName string) (mangled string, typ metamodel.PrimitiveType, err error) {
	declClass, attr, rerr := reg.ResolveAttribute(v, ref.ClassPart, ref.Member)
	if rerr != nil {
		return "", "", wrapResolution(rerr, reqName)
	}
	return declClass + "::" + ref.Member, attr.Type, nil
}

// resolveAssoc resolves a QualifiedRef naming an association to its
// mangled name.
func resolveAssoc(reg *metamodel.Registry, v metamodel.Version, ref QualifiedRef, reqName string) (string, error) {
	declClass, _, rerr := reg.ResolveAssociation(v, ref.ClassPart, ref.Member)
	if rerr != nil {
		return "", wrapResolution(rerr, reqName)
	}
	return declClass + "::" + ref.Member, nil
}

// wrapResolution converts a *metamodel.NotFoundError into the DOMLR
// compiler's *verrors.ResolutionError, carrying the same suggestions.
func wrapResolution(err error, reqName string) error {
	if nf, ok := err.(*metamodel.NotFoundError); ok {
		return &verrors.ResolutionError{
			Kind:        nf.Kind,
			Name:        nf.Name,
			Requirement: reqName,
			Suggestions: nf.Suggestions,
		}
	}
	return fmt.Errorf("requirement %q: %w", reqName, err)
}

// validateVars walks a requirement body confirming every variable
// reference is bound by an enclosing Forall/Exists (spec.md §4.4 stage 2).
// It is the first resolution pass, run before lowering, so an unbound
// variable is reported as a ResolutionError rather than surfacing as a
// malformed Mangle rule later.
func validateVars(e Expr, reqName string) error {
	vs := newVarStore()
	return walkVars(e, vs, reqName)
}

func walkVars(e Expr, vs *varStore, reqName string) error {
	switch t := e.(type) {
	case *Forall:
		vs.bind(t.Var)
		defer vs.unbind(t.Var)
		return walkVars(t.Body, vs, reqName)
	case *Exists:
		vs.bind(t.Var)
		defer vs.unbind(t.Var)
		return walkVars(t.Body, vs, reqName)
	case *Not:
		return walkVars(t.X, vs, reqName)
	case *And:
		if err := walkVars(t.L, vs, reqName); err != nil {
			return err
		}
		return walkVars(t.R, vs, reqName)
	case *Or:
		if err := walkVars(t.L, vs, reqName); err != nil {
			return err
		}
		return walkVars(t.R, vs, reqName)
	case *Implies:
		if err := walkVars(t.L, vs, reqName); err != nil {
			return err
		}
		return walkVars(t.R, vs, reqName)
	case *Iff:
		if err := walkVars(t.L, vs, reqName); err != nil {
			return err
		}
		return walkVars(t.R, vs, reqName)
	case *IsClass:
		return checkBound(vs, reqName, t.Var)
	case *IsVar:
		if err := checkBound(vs, reqName, t.Var); err != nil {
			return err
		}
		return checkBound(vs, reqName, t.Other)
	case *HasAssoc:
		if err := checkBound(vs, reqName, t.Var); err != nil {
			return err
		}
		return checkBound(vs, reqName, t.Other)
	case *HasAttrLit:
		return checkBound(vs, reqName, t.Var)
	case *HasAttrAttr:
		if err := checkBound(vs, reqName, t.Var); err != nil {
			return err
		}
		return checkBound(vs, reqName, t.Other)
	}
	return nil
}

func classSuggestions(mm *metamodel.Metamodel, name string) []string {
	pool := make([]string, 0, len(mm.Classes))
	for qname := range mm.Classes {
		pool = append(pool, qname)
	}
	return metamodel.CloseMatches(name, pool, 3)
}
