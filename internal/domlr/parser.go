package domlr

import (
	"fmt"
	"strings"
)

// parser is a recursive-descent parser over the token stream, one token
// of lookahead. Precedence, loosest to tightest: iff, implies, or, and,
// unary (not/quantifier/atom).
type parser struct {
	lx   *lexer
	tok  token
	peek *token
}

func newParser(src string) (*parser, error) {
	p := &parser{lx: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) peekToken() (token, error) {
	if p.peek == nil {
		t, err := p.lx.next()
		if err != nil {
			return token{}, err
		}
		p.peek = &t
	}
	return *p.peek, nil
}

func expectedErr(pos Position, got string, expected []string, hint string) error {
	return &positionedError{pos, fmt.Sprintf("unexpected %q", got), expected, hint}
}

func (p *parser) tokenText() string {
	if p.tok.kind == tIdent {
		return p.tok.text
	}
	return kindText(p.tok.kind)
}

func kindText(k tokKind) string {
	switch k {
	case tEOF:
		return "<eof>"
	case tString:
		return "<string>"
	case tInt:
		return "<int>"
	case tBool:
		return "<bool>"
	case tLBrace:
		return "{"
	case tRBrace:
		return "}"
	case tLParen:
		return "("
	case tRParen:
		return ")"
	case tDot:
		return "."
	case tDColon:
		return "::"
	case tMinus:
		return "-"
	case tEq:
		return "=="
	case tNeq:
		return "!="
	case tLt:
		return "<"
	case tLe:
		return "<="
	case tGt:
		return ">"
	case tGe:
		return ">="
	default:
		return "<sym>"
	}
}

// ParseFile parses a full DOMLR source document into directives plus a
// requirement list, per spec.md §3/§6: optional flag directives one per
// line, then zero or more requirement blocks.
func ParseFile(src string) (*File, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	f := &File{}
	for {
		if p.tok.kind == tEOF {
			return f, nil
		}
		if p.tok.kind == tIdent && isDirectiveLead(p.tok.text) {
			d, err := p.parseDirective()
			if err != nil {
				return nil, err
			}
			f.Directives = append(f.Directives, d)
			continue
		}
		req, err := p.parseRequirement()
		if err != nil {
			return nil, err
		}
		f.Requirements = append(f.Requirements, req)
	}
}

func isDirectiveLead(word string) bool {
	switch word {
	case "check", "ignore", "skip", "csp":
		return true
	default:
		return false
	}
}

func (p *parser) parseDirective() (Directive, error) {
	switch p.tok.text {
	case "csp":
		if err := p.advance(); err != nil {
			return Directive{}, err
		}
		return Directive{Kind: DirectiveCSP}, nil
	case "check":
		if err := p.advance(); err != nil {
			return Directive{}, err
		}
		if p.tok.kind != tIdent || p.tok.text != "consistency" {
			return Directive{}, expectedErr(p.tok.pos, p.tokenText(), []string{"consistency"}, "")
		}
		if err := p.advance(); err != nil {
			return Directive{}, err
		}
		return Directive{Kind: DirectiveCheckConsistency}, nil
	case "ignore":
		if err := p.advance(); err != nil {
			return Directive{}, err
		}
		if p.tok.kind != tIdent || p.tok.text != "builtin" {
			return Directive{}, expectedErr(p.tok.pos, p.tokenText(), []string{"builtin"}, "")
		}
		if err := p.advance(); err != nil {
			return Directive{}, err
		}
		return Directive{Kind: DirectiveIgnoreBuiltin}, nil
	case "skip":
		if err := p.advance(); err != nil {
			return Directive{}, err
		}
		if p.tok.kind != tIdent {
			return Directive{}, expectedErr(p.tok.pos, p.tokenText(), []string{"<requirement id>"}, "")
		}
		id := p.tok.text
		idLine := p.tok.pos.Line
		if err := p.advance(); err != nil {
			return Directive{}, err
		}
		// Requirement ids may contain hyphens ("vm-has-interface"), which
		// the lexer splits; glue ident '-' ident runs on the id's line back
		// together.
		for p.tok.kind == tMinus && p.tok.pos.Line == idLine {
			nxt, err := p.peekToken()
			if err != nil {
				return Directive{}, err
			}
			if nxt.kind != tIdent || nxt.pos.Line != idLine {
				break
			}
			if err := p.advance(); err != nil { // consume '-'
				return Directive{}, err
			}
			id += "-" + p.tok.text
			if err := p.advance(); err != nil {
				return Directive{}, err
			}
		}
		return Directive{Kind: DirectiveSkip, Arg: id}, nil
	default:
		return Directive{}, expectedErr(p.tok.pos, p.tokenText(), []string{"check", "ignore", "skip", "csp"}, "")
	}
}

func (p *parser) parseRequirement() (Requirement, error) {
	pos := p.tok.pos
	flipped := false
	if p.tok.kind == tMinus {
		flipped = true
		if err := p.advance(); err != nil {
			return Requirement{}, err
		}
	}
	if p.tok.kind != tString {
		return Requirement{}, expectedErr(p.tok.pos, p.tokenText(), []string{"<requirement name string>"}, "")
	}
	name := p.tok.text
	if err := p.advance(); err != nil {
		return Requirement{}, err
	}
	if p.tok.kind != tLBrace {
		return Requirement{}, expectedErr(p.tok.pos, p.tokenText(), []string{"{"}, "")
	}
	if err := p.advance(); err != nil {
		return Requirement{}, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return Requirement{}, err
	}
	if p.tok.kind != tRBrace {
		return Requirement{}, expectedErr(p.tok.pos, p.tokenText(), []string{"}"}, "")
	}
	if err := p.advance(); err != nil {
		return Requirement{}, err
	}
	if p.tok.kind != tIdent || p.tok.text != "error" {
		return Requirement{}, expectedErr(p.tok.pos, p.tokenText(), []string{"error"}, "")
	}
	if err := p.advance(); err != nil {
		return Requirement{}, err
	}
	if p.tok.kind != tString {
		return Requirement{}, expectedErr(p.tok.pos, p.tokenText(), []string{"<error template string>"}, "")
	}
	tmpl := p.tok.text
	if err := p.advance(); err != nil {
		return Requirement{}, err
	}
	return Requirement{Flipped: flipped, Name: name, Body: body, Error: tmpl, Pos: pos}, nil
}

// parseExpr ::= Iff
func (p *parser) parseExpr() (Expr, error) { return p.parseIff() }

func (p *parser) parseIff() (Expr, error) {
	l, err := p.parseImplies()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tIffSym || (p.tok.kind == tIdent && p.tok.text == "iff") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		l = &Iff{L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseImplies() (Expr, error) {
	l, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tImpliesSym || (p.tok.kind == tIdent && p.tok.text == "implies") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		return &Implies{L: l, R: r}, nil
	}
	return l, nil
}

func (p *parser) parseOr() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tOrSym || (p.tok.kind == tIdent && p.tok.text == "or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &Or{L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tAndSym || (p.tok.kind == tIdent && p.tok.text == "and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &And{L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseUnary() (Expr, error) {
	pos := p.tok.pos
	switch {
	case p.tok.kind == tNotSym || (p.tok.kind == tIdent && p.tok.text == "not"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{X: x, Pos: pos}, nil
	case p.tok.kind == tForallSym || (p.tok.kind == tIdent && p.tok.text == "forall"):
		return p.parseQuantifier(pos, true)
	case p.tok.kind == tExistsSym || (p.tok.kind == tIdent && p.tok.text == "exists"):
		return p.parseQuantifier(pos, false)
	case p.tok.kind == tLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tRParen {
			return nil, expectedErr(p.tok.pos, p.tokenText(), []string{")"}, "")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return p.parsePredicate()
	}
}

func (p *parser) parseQuantifier(pos Position, universal bool) (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tIdent {
		return nil, expectedErr(p.tok.pos, p.tokenText(), []string{"<variable name>"}, "")
	}
	v := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tDot {
		return nil, expectedErr(p.tok.pos, p.tokenText(), []string{"."}, "a quantifier binds its variable with '.'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if universal {
		return &Forall{Var: v, Body: body, Pos: pos}, nil
	}
	return &Exists{Var: v, Body: body, Pos: pos}, nil
}

// parsePredicate parses `x is ...` or `x has ...`.
func (p *parser) parsePredicate() (Expr, error) {
	pos := p.tok.pos
	if p.tok.kind != tIdent {
		return nil, expectedErr(p.tok.pos, p.tokenText(), []string{"<variable>"}, "")
	}
	v := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	switch {
	case p.tok.kind == tIdent && p.tok.text == "is":
		return p.parseIs(v, pos)
	case p.tok.kind == tIdent && p.tok.text == "has":
		return p.parseHas(v, pos)
	default:
		return nil, expectedErr(p.tok.pos, p.tokenText(), []string{"is", "has"}, "")
	}
}

func (p *parser) parseIs(v string, pos Position) (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tIdent {
		return nil, expectedErr(p.tok.pos, p.tokenText(), []string{"<class name or variable>"}, "")
	}
	ref, err := p.parseQualifiedRef()
	if err != nil {
		return nil, err
	}
	if ref.Member == "" && !strings.Contains(ref.ClassPart, "_") {
		// A bare single-word identifier after "is" with no dot and no
		// mangled underscore is read as a variable (element identity);
		// resolution then requires it to be bound. A dotted or mangled
		// reference is always a class.
		return &IsVar{Var: v, Other: ref.ClassPart, Pos: pos}, nil
	}
	return &IsClass{Var: v, Class: ref, Pos: pos}, nil
}

func (p *parser) parseHas(v string, pos Position) (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tIdent {
		return nil, expectedErr(p.tok.pos, p.tokenText(), []string{"<attribute or association name>"}, "")
	}
	ref, err := p.parseQualifiedRef()
	if err != nil {
		return nil, err
	}

	switch {
	case p.tok.kind == tIdent:
		// `x has Assoc y`
		other := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &HasAssoc{Var: v, Assoc: ref, Other: other, Pos: pos}, nil
	case isCompareOp(p.tok.kind):
		op := opText(p.tok.kind)
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch p.tok.kind {
		case tInt:
			lit := Literal{Kind: LitInt, Int: p.tok.i}
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &HasAttrLit{Var: v, Attr: ref, Op: op, Lit: lit, Pos: pos}, nil
		case tString:
			lit := Literal{Kind: LitString, Str: p.tok.text}
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &HasAttrLit{Var: v, Attr: ref, Op: op, Lit: lit, Pos: pos}, nil
		case tBool:
			lit := Literal{Kind: LitBool, Bool: p.tok.b}
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &HasAttrLit{Var: v, Attr: ref, Op: op, Lit: lit, Pos: pos}, nil
		case tIdent:
			other := p.tok.text
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.kind != tIdent || p.tok.text != "has" {
				return nil, expectedErr(p.tok.pos, p.tokenText(), []string{"has"}, "cross-element attribute comparisons need 'y has Attr' on the right")
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			ref2, err := p.parseQualifiedRef()
			if err != nil {
				return nil, err
			}
			return &HasAttrAttr{Var: v, Attr: ref, Op: op, Other: other, Attr2: ref2, Pos: pos}, nil
		default:
			return nil, expectedErr(p.tok.pos, p.tokenText(), []string{"<literal>", "<variable> has <attribute>"}, "")
		}
	default:
		return nil, expectedErr(p.tok.pos, p.tokenText(), []string{"<variable>", "==", "!=", "<", "<=", ">", ">="}, "")
	}
}

func isCompareOp(k tokKind) bool {
	switch k {
	case tEq, tNeq, tLt, tLe, tGt, tGe:
		return true
	default:
		return false
	}
}

func opText(k tokKind) string {
	switch k {
	case tEq:
		return "=="
	case tNeq:
		return "!="
	case tLt:
		return "<"
	case tLe:
		return "<="
	case tGt:
		return ">"
	case tGe:
		return ">="
	default:
		return "?"
	}
}

// parseQualifiedRef parses a class reference and optional member local
// name, accepting both surface conventions spec.md §3/§6 describes:
// `Pkg.Class` or already-mangled `Pkg_Class` for the class part, and
// `::local` or `.local` for the member.
func (p *parser) parseQualifiedRef() (QualifiedRef, error) {
	pos := p.tok.pos
	first := p.tok.text
	if err := p.advance(); err != nil {
		return QualifiedRef{}, err
	}
	classPart := first
	if p.tok.kind == tDot && !strings.Contains(first, "_") {
		nxt, err := p.peekToken()
		if err != nil {
			return QualifiedRef{}, err
		}
		if nxt.kind == tIdent {
			if err := p.advance(); err != nil { // consume '.'
				return QualifiedRef{}, err
			}
			classPart = classPart + "_" + p.tok.text
			if err := p.advance(); err != nil { // consume second ident
				return QualifiedRef{}, err
			}
		}
	}
	member := ""
	if p.tok.kind == tDColon {
		if err := p.advance(); err != nil {
			return QualifiedRef{}, err
		}
		if p.tok.kind != tIdent {
			return QualifiedRef{}, expectedErr(p.tok.pos, p.tokenText(), []string{"<member name>"}, "")
		}
		member = p.tok.text
		if err := p.advance(); err != nil {
			return QualifiedRef{}, err
		}
	} else if p.tok.kind == tDot {
		if err := p.advance(); err != nil {
			return QualifiedRef{}, err
		}
		if p.tok.kind != tIdent {
			return QualifiedRef{}, expectedErr(p.tok.pos, p.tokenText(), []string{"<member name>"}, "a '.' where a scope arrow '::' might be expected still resolves as a member separator")
		}
		member = p.tok.text
		if err := p.advance(); err != nil {
			return QualifiedRef{}, err
		}
	}
	return QualifiedRef{ClassPart: classPart, Member: member, Pos: pos}, nil
}
