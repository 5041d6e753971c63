package domlr

import (
	"github.com/doml-verifier/mc/internal/metamodel"
	"github.com/doml-verifier/mc/internal/requirement"
	"github.com/doml-verifier/mc/internal/verrors"
)

// CompileResult is the output of compiling one DOMLR source file: the
// directive flags (spec.md §3/§6) plus a requirement.Requirement per
// successfully compiled requirement block. A requirement that fails
// resolution or type-checking is dropped from Requirements and reported
// in Failures instead — spec.md §7: "resolution and type errors fail
// only the enclosing requirement, not the whole compile."
type CompileResult struct {
	Directives   []Directive
	Requirements []requirement.Requirement
	Failures     []error
}

// Compile lexes, parses, resolves, and lowers a DOMLR source file against
// one metamodel version (spec.md §4.4). The caller supplies the registry
// the rest of the run already loaded so compilation and verification
// share one metamodel snapshot.
func Compile(src string, reg *metamodel.Registry, v metamodel.Version) (*CompileResult, error) {
	file, err := ParseFile(src)
	if err != nil {
		if pe, ok := err.(*positionedError); ok {
			return nil, &verrors.SyntaxError{Line: pe.pos.Line, Col: pe.pos.Col, Got: pe.message, Expected: pe.expected, Hint: pe.hint}
		}
		return nil, err
	}

	out := &CompileResult{Directives: file.Directives}
	for _, r := range file.Requirements {
		req, cerr := compileOne(reg, v, r)
		if cerr != nil {
			out.Failures = append(out.Failures, cerr)
			continue
		}
		out.Requirements = append(out.Requirements, *req)
	}
	return out, nil
}

func compileOne(reg *metamodel.Registry, v metamodel.Version, r Requirement) (*requirement.Requirement, error) {
	if err := validateVars(r.Body, r.Name); err != nil {
		return nil, err
	}
	lowered, err := lower(reg, v, r)
	if err != nil {
		return nil, err
	}
	return &requirement.Requirement{
		ID:          r.Name,
		Description: r.Name,
		Source:      requirement.SourceUser,
		Flipped:     r.Flipped,
		RuleText:    lowered.RuleText,
		QueryText:   lowered.Query,
		Template:    r.Error,
	}, nil
}
