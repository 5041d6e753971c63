package domlr

import (
	"fmt"
	"strconv"
	"strings"
)

// Pretty renders a parsed DOMLR file in canonical surface form:
// directives one per line, a blank line, then each requirement as
//
//	[- ]"Name" {
//	  body
//	} error "template"
//
// with keyword connective spellings (forall/exists/not/and/or/implies/iff),
// dotted class references (Pkg.Class::member), and minimal parentheses.
// ParseFile(Pretty(f)) yields a file equal to f up to source positions,
// and Pretty is a fixpoint on its own output.
func Pretty(f *File) string {
	var sb strings.Builder
	for _, d := range f.Directives {
		sb.WriteString(prettyDirective(d))
		sb.WriteByte('\n')
	}
	if len(f.Directives) > 0 && len(f.Requirements) > 0 {
		sb.WriteByte('\n')
	}
	for i, r := range f.Requirements {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(prettyRequirement(r))
	}
	return sb.String()
}

func prettyDirective(d Directive) string {
	switch d.Kind {
	case DirectiveCheckConsistency:
		return "check consistency"
	case DirectiveIgnoreBuiltin:
		return "ignore builtin"
	case DirectiveSkip:
		return "skip " + d.Arg
	default:
		return "csp"
	}
}

func prettyRequirement(r Requirement) string {
	var sb strings.Builder
	if r.Flipped {
		sb.WriteString("- ")
	}
	sb.WriteString(quoteString(r.Name))
	sb.WriteString(" {\n  ")
	sb.WriteString(prettyExpr(r.Body, 0))
	sb.WriteString("\n} error ")
	sb.WriteString(quoteString(r.Error))
	sb.WriteByte('\n')
	return sb.String()
}

// Operator precedence, loosest to tightest, mirroring the parser:
// quantifiers extend maximally right (0), iff 1, implies 2, or 3, and 4,
// not 5, atoms 6. prettyExpr parenthesizes whenever a node's own level is
// below what its context requires.
func prettyExpr(e Expr, minPrec int) string {
	text, prec := renderExpr(e)
	if prec < minPrec {
		return "(" + text + ")"
	}
	return text
}

func renderExpr(e Expr) (string, int) {
	switch t := e.(type) {
	case *Forall:
		return fmt.Sprintf("forall %s. %s", t.Var, prettyExpr(t.Body, 0)), 0
	case *Exists:
		return fmt.Sprintf("exists %s. %s", t.Var, prettyExpr(t.Body, 0)), 0
	case *Iff:
		return prettyExpr(t.L, 1) + " iff " + prettyExpr(t.R, 2), 1
	case *Implies:
		return prettyExpr(t.L, 3) + " implies " + prettyExpr(t.R, 2), 2
	case *Or:
		return prettyExpr(t.L, 3) + " or " + prettyExpr(t.R, 4), 3
	case *And:
		return prettyExpr(t.L, 4) + " and " + prettyExpr(t.R, 5), 4
	case *Not:
		return "not " + prettyExpr(t.X, 5), 5
	case *IsClass:
		return fmt.Sprintf("%s is %s", t.Var, prettyRef(t.Class)), 6
	case *IsVar:
		return fmt.Sprintf("%s is %s", t.Var, t.Other), 6
	case *HasAssoc:
		return fmt.Sprintf("%s has %s %s", t.Var, prettyRef(t.Assoc), t.Other), 6
	case *HasAttrLit:
		return fmt.Sprintf("%s has %s %s %s", t.Var, prettyRef(t.Attr), t.Op, prettyLiteral(t.Lit)), 6
	case *HasAttrAttr:
		return fmt.Sprintf("%s has %s %s %s has %s", t.Var, prettyRef(t.Attr), t.Op, t.Other, prettyRef(t.Attr2)), 6
	default:
		return fmt.Sprintf("<%T>", e), 6
	}
}

// prettyRef prints a resolved-form reference back in dotted surface
// syntax: "infrastructure_VirtualMachine" becomes
// "infrastructure.VirtualMachine", members keep the "::" scope arrow. A
// class part with no layer prefix prints as written.
func prettyRef(ref QualifiedRef) string {
	cls := ref.ClassPart
	if idx := strings.Index(cls, "_"); idx > 0 {
		cls = cls[:idx] + "." + cls[idx+1:]
	}
	if ref.Member == "" {
		return cls
	}
	return cls + "::" + ref.Member
}

func prettyLiteral(lit Literal) string {
	switch lit.Kind {
	case LitInt:
		return strconv.FormatInt(lit.Int, 10)
	case LitBool:
		if lit.Bool {
			return "!True"
		}
		return "!False"
	default:
		return quoteString(lit.Str)
	}
}

// quoteString is the inverse of the lexer's string scanning: the only
// escapes the grammar knows are \" \\ \n \t.
func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
