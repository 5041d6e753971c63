package encoding

import (
	"fmt"

	"github.com/google/mangle/ast"

	"github.com/doml-verifier/mc/internal/im"
	"github.com/doml-verifier/mc/internal/metamodel"
)

// backgroundDecls declares the three extensional predicates the whole
// pipeline is built on (spec.md §3): elem_class is a partial function,
// attr and assoc are relations.
const backgroundDecls = `
Decl elem_class(Elem, Class).
Decl attr(Elem, Attr, Val).
Decl assoc(Elem, Assoc, Target).
`

// Encoding is the built Mangle-backed Encoding for one verification run:
// the populated Engine plus the lookup tables the DOMLR compiler and the
// driver's diagnostic renderer need to move between IM identifiers and
// Mangle Name symbols.
type Encoding struct {
	Engine    *Engine
	Metamodel *metamodel.Metamodel
	Model     *im.Model

	elementByName map[string]im.ElementID
	facts         []ast.Atom
}

// ElementIDFor resolves a Name-constant symbol (as produced by
// EvalQuery's witness bindings) back to the IM element it denotes.
func (enc *Encoding) ElementIDFor(symbol string) (im.ElementID, bool) {
	id, ok := enc.elementByName[symbol]
	return id, ok
}

// NewWorkerEngine builds a fresh Engine carrying the same background
// facts as enc.Engine but backed by its own fact store. The Verification
// Driver calls this once per parallel worker so that no solver context is
// ever touched by more than one goroutine, even though the background
// facts they all load are identical.
func (enc *Encoding) NewWorkerEngine(cfg Config) (*Engine, error) {
	engine := NewEngine(cfg)
	if err := engine.LoadBackground(backgroundDecls); err != nil {
		return nil, err
	}
	for _, fact := range enc.facts {
		engine.AddFact(fact)
	}
	return engine, nil
}

// Build derives the background Encoding from a Metamodel and an
// Intermediate Model: one elem_class fact per element, one attr fact per
// (element, mangled attribute, value) triple, one assoc fact per
// (element, mangled association, target) edge — exactly the "disjunctive
// characterization" of §4.3, represented as ground Mangle facts rather
// than a quantified bi-implication, since a finite, enumerated domain
// makes the two equivalent.
func Build(mm *metamodel.Metamodel, model *im.Model) (*Encoding, error) {
	engine := NewEngine(DefaultConfig())
	if err := engine.LoadBackground(backgroundDecls); err != nil {
		return nil, err
	}
	elemSym, _ := engine.Predicate("elem_class")
	attrSym, _ := engine.Predicate("attr")
	assocSym, _ := engine.Predicate("assoc")

	enc := &Encoding{
		Engine:        engine,
		Metamodel:     mm,
		Model:         model,
		elementByName: make(map[string]im.ElementID, model.Len()),
	}

	for _, el := range model.Elements() {
		elName, err := ElementName(el.ID)
		if err != nil {
			return nil, fmt.Errorf("encoding: element %s: %w", el.ID, err)
		}
		enc.elementByName[elName.Symbol] = el.ID

		clsName, err := ClassName(el.Class)
		if err != nil {
			return nil, fmt.Errorf("encoding: class %s: %w", el.Class, err)
		}
		fact := ast.Atom{Predicate: elemSym, Args: []ast.BaseTerm{elName, clsName}}
		engine.AddFact(fact)
		enc.facts = append(enc.facts, fact)

		for mangled, vals := range el.Attributes {
			attrName, err := MemberName(mangled)
			if err != nil {
				return nil, fmt.Errorf("encoding: attribute %s: %w", mangled, err)
			}
			for _, v := range vals {
				term, err := EncodeValue(v)
				if err != nil {
					return nil, fmt.Errorf("encoding: element %s attribute %s: %w", el.ID, mangled, err)
				}
				fact := ast.Atom{Predicate: attrSym, Args: []ast.BaseTerm{elName, attrName, term}}
				engine.AddFact(fact)
				enc.facts = append(enc.facts, fact)
			}
		}

		for mangled, targets := range el.Associations {
			assocName, err := MemberName(mangled)
			if err != nil {
				return nil, fmt.Errorf("encoding: association %s: %w", mangled, err)
			}
			for tid := range targets {
				tName, err := ElementName(tid)
				if err != nil {
					return nil, fmt.Errorf("encoding: association target %s: %w", tid, err)
				}
				fact := ast.Atom{Predicate: assocSym, Args: []ast.BaseTerm{elName, assocName, tName}}
				engine.AddFact(fact)
				enc.facts = append(enc.facts, fact)
			}
		}
	}

	return enc, nil
}
