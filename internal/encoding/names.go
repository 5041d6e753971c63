package encoding

import (
	"fmt"
	"strings"

	"github.com/google/mangle/ast"

	"github.com/doml-verifier/mc/internal/im"
	"github.com/doml-verifier/mc/internal/values"
)

// Mangle Name constants are "/"-prefixed path-like symbols. The
// Intermediate Model's element identifiers, qualified class names, and
// mangled attribute/association names all need to round-trip through
// this syntax, so every encoder in this package funnels through these
// three helpers rather than building ad hoc "/"+s literals.

// ElementName derives the Mangle Name-constant symbol for an IM element
// identifier. Hyphens are stripped (Mangle name segments are
// alphanumeric/underscore) — uniqueness survives because a v5 UUID
// string is unique before or after hyphen removal.
func ElementName(id im.ElementID) (ast.Constant, error) {
	return ast.Name("/e" + strings.ReplaceAll(string(id), "-", ""))
}

// ClassName derives the Name constant for a qualified metamodel class
// name (already a valid identifier, e.g. "infrastructure_VirtualMachine").
func ClassName(qualifiedClass string) (ast.Constant, error) {
	return ast.Name("/" + qualifiedClass)
}

// MemberName derives the Name constant for a mangled attribute or
// association name ("DeclaringClass::local"), replacing the "::"
// separator with "__" since Mangle names don't allow colons.
func MemberName(mangled string) (ast.Constant, error) {
	return ast.Name("/" + strings.ReplaceAll(mangled, "::", "__"))
}

// EncodeValue converts an AttrData value to the Mangle constant used as
// the third argument of an attr(...) fact.
func EncodeValue(v values.Value) (ast.BaseTerm, error) {
	switch v.Kind {
	case values.KindInt:
		return ast.Number(v.I), nil
	case values.KindBool:
		if v.B {
			return ast.TrueConstant, nil
		}
		return ast.FalseConstant, nil
	case values.KindString:
		return ast.String(v.S), nil
	default:
		return nil, fmt.Errorf("encoding: cannot encode value of kind %d", v.Kind)
	}
}

// ClassLiteral renders the Mangle source-text literal for a qualified
// metamodel class name, for callers (the built-in requirement library,
// the DOMLR compiler) that assemble rule text directly rather than
// through the ast.Constant constructors above. It must stay in lockstep
// with ClassName.
func ClassLiteral(qualifiedClass string) string {
	return "/" + qualifiedClass
}

// MemberLiteral renders the Mangle source-text literal for a mangled
// attribute or association name. It must stay in lockstep with
// MemberName.
func MemberLiteral(mangled string) string {
	return "/" + strings.ReplaceAll(mangled, "::", "__")
}

// WitnessLabel renders a witness constant for a diagnostic: an element
// constant resolves to its element's human-readable name, falling back to
// the element identifier when the source document carried none; any other
// constant renders as its literal value.
func (enc *Encoding) WitnessLabel(c ast.Constant) string {
	if c.Type == ast.NameType {
		if id, ok := enc.ElementIDFor(c.Symbol); ok {
			if el, found := enc.Model.Get(id); found {
				if el.Name != "" {
					return el.Name
				}
				return string(el.ID)
			}
		}
	}
	return DecodeName(c)
}

// DecodeName strips the symbol out of a Name/String constant produced by
// EvalQuery, for rendering back into a diagnostic.
func DecodeName(c ast.Constant) string {
	switch c.Type {
	case ast.NameType, ast.StringType, ast.BytesType:
		return c.Symbol
	case ast.NumberType:
		return fmt.Sprintf("%d", c.NumValue)
	default:
		return c.String()
	}
}
