package domlr

import (
	"regexp"
	"strings"

	"github.com/google/mangle/ast"

	"github.com/doml-verifier/mc/internal/encoding"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Labeler maps a witness constant to the user-facing text substituted
// into a diagnostic template. Encoding.WitnessLabel is the usual
// implementation; a nil Labeler falls back to the constant's raw symbol.
type Labeler func(ast.Constant) string

// placeholderName recovers the DOMLR variable spelling ("vm") from the
// Mangle variable symbol bound in a witness ("Vm") by lowercasing its
// leading letter, the inverse of mangleVar. This only needs to round-trip
// the witness variables lower() itself produced, which are always
// mangleVar of a DOMLR identifier.
func placeholderName(symbol string) string {
	if symbol == "" {
		return symbol
	}
	return strings.ToLower(symbol[:1]) + symbol[1:]
}

// RenderDiagnostic substitutes `{var}` placeholders in template with the
// labels of the elements bound in witness, falling back to the template
// verbatim plus an explanatory note when a referenced placeholder has no
// witness binding (spec.md §4.4 stage 5 / §7: "no model available").
// Placeholders are matched both against the witness variable's exact
// symbol (the built-in catalog writes its templates in the Mangle
// spelling, "{Vm}") and against its DOMLR spelling ("{vm}", for compiled
// user requirements).
func RenderDiagnostic(template string, witness map[string]ast.Constant, label Labeler) string {
	if label == nil {
		label = encoding.DecodeName
	}
	missing := false
	rendered := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		for sym, c := range witness {
			if sym == name || placeholderName(sym) == name {
				return label(c)
			}
		}
		missing = true
		return m
	})
	if missing {
		return rendered + " (no witness bound for one or more placeholders; showing template verbatim)"
	}
	return rendered
}
