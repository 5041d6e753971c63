package domlr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/doml-verifier/mc/internal/encoding"
	"github.com/doml-verifier/mc/internal/metamodel"
	"github.com/doml-verifier/mc/internal/verrors"
)

// lowerer turns a resolved DOMLR body into Mangle rule text (spec.md
// §4.4 stage 3, "Lowering"). It compiles every node twice-over by
// construction — compilePos for the node as written, compileNeg for its
// negation — so that De Morgan pushdown never needs a separate AST
// rewrite pass: a compound node's negative form is expressed directly in
// terms of its children's positive/negative forms.
type lowerer struct {
	reg     *metamodel.Registry
	version metamodel.Version
	reqName string

	counter int
	decls   []string
	clauses []string
	err     error
}

func newLowerer(reg *metamodel.Registry, v metamodel.Version, reqName string) *lowerer {
	return &lowerer{reg: reg, version: v, reqName: reqName}
}

func mangleVar(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func (lw *lowerer) freshVar() string {
	lw.counter++
	return fmt.Sprintf("Z__%d", lw.counter)
}

func (lw *lowerer) freshPred() string {
	lw.counter++
	return fmt.Sprintf("aux__%d", lw.counter)
}

// newAux declares a fresh predicate over headVars and emits one rule
// clause per entry in clauseLits (multiple clauses = disjunction, the
// Datalog analogue of spec.md §4.3's "disjunctive characterization").
// Every clause gets an elem_class domain-generator goal prepended for
// each head variable, guaranteeing range-restriction regardless of
// whether the clause's own literals already bind that variable.
func (lw *lowerer) newAux(headVars []string, clauseLits [][]string) string {
	name := lw.freshPred()
	args := make([]string, len(headVars))
	for i, v := range headVars {
		args[i] = mangleVar(v)
	}
	argList := strings.Join(args, ", ")
	lw.decls = append(lw.decls, fmt.Sprintf("Decl %s(%s).", name, argList))
	for _, lits := range clauseLits {
		gens := make([]string, len(headVars))
		for i, v := range headVars {
			gens[i] = fmt.Sprintf("elem_class(%s, _)", mangleVar(v))
		}
		body := append(gens, lits...)
		lw.clauses = append(lw.clauses, fmt.Sprintf("%s(%s) :- %s.", name, argList, strings.Join(body, ", ")))
	}
	return fmt.Sprintf("%s(%s)", name, argList)
}

func compareBuiltin(op string) string {
	switch op {
	case "==":
		return ":eq"
	case "!=":
		return ":neq"
	case "<":
		return ":lt"
	case "<=":
		return ":le"
	case ">":
		return ":gt"
	case ">=":
		return ":ge"
	default:
		return ":eq"
	}
}

func negateOp(op string) string {
	switch op {
	case "==":
		return "!="
	case "!=":
		return "=="
	case "<":
		return ">="
	case "<=":
		return ">"
	case ">":
		return "<="
	case ">=":
		return "<"
	default:
		return op
	}
}

func literalText(lit Literal) (string, error) {
	switch lit.Kind {
	case LitInt:
		return strconv.FormatInt(lit.Int, 10), nil
	case LitString:
		return strconv.Quote(lit.Str), nil
	case LitBool:
		if lit.Bool {
			return "/true", nil
		}
		return "/false", nil
	default:
		return "", fmt.Errorf("unknown literal kind")
	}
}

// freeVars returns the set of variable names referenced in e but not
// bound by an enclosing quantifier within e itself, in first-appearance
// order.
func freeVars(e Expr) []string {
	seen := map[string]bool{}
	var order []string
	var walk func(e Expr, bound map[string]bool)
	use := func(v string, bound map[string]bool) {
		if bound[v] || seen[v] {
			return
		}
		seen[v] = true
		order = append(order, v)
	}
	walk = func(e Expr, bound map[string]bool) {
		switch t := e.(type) {
		case *Forall:
			inner := make(map[string]bool, len(bound)+1)
			for k := range bound {
				inner[k] = true
			}
			inner[t.Var] = true
			walk(t.Body, inner)
		case *Exists:
			inner := make(map[string]bool, len(bound)+1)
			for k := range bound {
				inner[k] = true
			}
			inner[t.Var] = true
			walk(t.Body, inner)
		case *Not:
			walk(t.X, bound)
		case *And:
			walk(t.L, bound)
			walk(t.R, bound)
		case *Or:
			walk(t.L, bound)
			walk(t.R, bound)
		case *Implies:
			walk(t.L, bound)
			walk(t.R, bound)
		case *Iff:
			walk(t.L, bound)
			walk(t.R, bound)
		case *IsClass:
			use(t.Var, bound)
		case *IsVar:
			use(t.Var, bound)
			use(t.Other, bound)
		case *HasAssoc:
			use(t.Var, bound)
			use(t.Other, bound)
		case *HasAttrLit:
			use(t.Var, bound)
		case *HasAttrAttr:
			use(t.Var, bound)
			use(t.Other, bound)
		}
	}
	walk(e, map[string]bool{})
	return order
}

func (lw *lowerer) compileBranch(e Expr, neg bool) []string {
	if neg {
		return lw.compileNeg(e)
	}
	return lw.compilePos(e)
}

func (lw *lowerer) compilePos(e Expr) []string {
	switch t := e.(type) {
	case *Not:
		return lw.compileNeg(t.X)
	case *And:
		return append(lw.compilePos(t.L), lw.compilePos(t.R)...)
	case *Or:
		call := lw.newAux(freeVars(t), [][]string{lw.compilePos(t.L), lw.compilePos(t.R)})
		return []string{call}
	case *Implies:
		call := lw.newAux(freeVars(t), [][]string{lw.compileNeg(t.L), lw.compilePos(t.R)})
		return []string{call}
	case *Iff:
		call := lw.newAux(freeVars(t), [][]string{
			append(lw.compilePos(t.L), lw.compilePos(t.R)...),
			append(lw.compileNeg(t.L), lw.compileNeg(t.R)...),
		})
		return []string{call}
	case *Exists:
		call := lw.counterCall(t.Var, t.Body, false, freeVars(t))
		return []string{call}
	case *Forall:
		call := lw.counterCall(t.Var, t.Body, true, freeVars(t))
		return []string{"!" + call}
	case *IsClass:
		lit, err := lw.classLiteral(t.Class)
		if err != nil {
			lw.fail(err)
			return nil
		}
		return []string{fmt.Sprintf("elem_class(%s, %s)", mangleVar(t.Var), lit)}
	case *IsVar:
		return []string{fmt.Sprintf("%s(%s, %s)", compareBuiltin("=="), mangleVar(t.Var), mangleVar(t.Other))}
	case *HasAssoc:
		lit, err := lw.assocLiteral(t.Assoc)
		if err != nil {
			lw.fail(err)
			return nil
		}
		return []string{fmt.Sprintf("assoc(%s, %s, %s)", mangleVar(t.Var), lit, mangleVar(t.Other))}
	case *HasAttrLit:
		lits, _, err := lw.attrLitLiterals(t, false)
		if err != nil {
			lw.fail(err)
			return nil
		}
		return lits
	case *HasAttrAttr:
		lits, err := lw.attrAttrLiterals(t, false)
		if err != nil {
			lw.fail(err)
			return nil
		}
		return lits
	default:
		lw.fail(fmt.Errorf("unhandled expression node %T", e))
		return nil
	}
}

func (lw *lowerer) compileNeg(e Expr) []string {
	switch t := e.(type) {
	case *Not:
		return lw.compilePos(t.X)
	case *And:
		call := lw.newAux(freeVars(t), [][]string{lw.compileNeg(t.L), lw.compileNeg(t.R)})
		return []string{call}
	case *Or:
		return append(lw.compileNeg(t.L), lw.compileNeg(t.R)...)
	case *Implies:
		return append(lw.compilePos(t.L), lw.compileNeg(t.R)...)
	case *Iff:
		call := lw.newAux(freeVars(t), [][]string{
			append(lw.compilePos(t.L), lw.compileNeg(t.R)...),
			append(lw.compileNeg(t.L), lw.compilePos(t.R)...),
		})
		return []string{call}
	case *Exists:
		call := lw.counterCall(t.Var, t.Body, false, freeVars(t))
		return []string{"!" + call}
	case *Forall:
		call := lw.counterCall(t.Var, t.Body, true, freeVars(t))
		return []string{call}
	case *IsClass:
		lit, err := lw.classLiteral(t.Class)
		if err != nil {
			lw.fail(err)
			return nil
		}
		return []string{fmt.Sprintf("!elem_class(%s, %s)", mangleVar(t.Var), lit)}
	case *IsVar:
		return []string{fmt.Sprintf("%s(%s, %s)", compareBuiltin("!="), mangleVar(t.Var), mangleVar(t.Other))}
	case *HasAssoc:
		lit, err := lw.assocLiteral(t.Assoc)
		if err != nil {
			lw.fail(err)
			return nil
		}
		return []string{fmt.Sprintf("!assoc(%s, %s, %s)", mangleVar(t.Var), lit, mangleVar(t.Other))}
	case *HasAttrLit:
		lits, _, err := lw.attrLitLiterals(t, true)
		if err != nil {
			lw.fail(err)
			return nil
		}
		return lits
	case *HasAttrAttr:
		lits, err := lw.attrAttrLiterals(t, true)
		if err != nil {
			lw.fail(err)
			return nil
		}
		return lits
	default:
		lw.fail(fmt.Errorf("unhandled expression node %T", e))
		return nil
	}
}

// counterCall builds (or reuses, by always reallocating — each call site
// has a distinct body) the "exists v such that body (negated if
// wantNegBody)" auxiliary predicate shared by Forall/Exists positive and
// negative compilation.
func (lw *lowerer) counterCall(v string, body Expr, wantNegBody bool, outerFree []string) string {
	bodyLits := lw.compileBranch(body, wantNegBody)
	clause := append([]string{fmt.Sprintf("elem_class(%s, _)", mangleVar(v))}, bodyLits...)
	return lw.newAux(outerFree, [][]string{clause})
}

func (lw *lowerer) classLiteral(ref QualifiedRef) (string, error) {
	qname, err := resolveClass(lw.reg, lw.version, ref, lw.reqName)
	if err != nil {
		return "", err
	}
	return encoding.ClassLiteral(qname), nil
}

func (lw *lowerer) assocLiteral(ref QualifiedRef) (string, error) {
	mangled, err := resolveAssoc(lw.reg, lw.version, ref, lw.reqName)
	if err != nil {
		return "", err
	}
	return encoding.MemberLiteral(mangled), nil
}

// attrLitLiterals renders `x has Attr op literal`. Integer comparisons
// always go through an existential projection variable per spec.md
// §4.4 stage 3; string/bool comparisons are direct membership tests and
// only permit ==/!=, a compile-time type error otherwise (spec.md §7).
func (lw *lowerer) attrLitLiterals(t *HasAttrLit, negate bool) ([]string, []string, error) {
	mangled, typ, err := resolveAttr(lw.reg, lw.version, t.Attr, lw.reqName)
	if err != nil {
		return nil, nil, err
	}
	memberLit := encoding.MemberLiteral(mangled)

	switch typ {
	case metamodel.Integer:
		if t.Lit.Kind != LitInt {
			return nil, nil, &verrors.TypeError{Requirement: lw.reqName, Detail: fmt.Sprintf("attribute %s is Integer but compared against a non-integer literal", mangled)}
		}
		val := lw.freshVar()
		// Negating by flipping the operator under the same existential is
		// sound only when the attribute always carries exactly one value
		// (single-valued and defaulted, like VirtualMachine::cpu_count).
		// Otherwise an element with no value would satisfy neither form,
		// so the positive comparison goes into an aux predicate whose call
		// is negated.
		if negate {
			if _, decl, derr := lw.reg.ResolveAttribute(lw.version, t.Attr.ClassPart, t.Attr.Member); derr == nil && (len(decl.Default) == 0 || decl.Multiplicity.Many()) {
				pos := []string{
					fmt.Sprintf("attr(%s, %s, %s)", mangleVar(t.Var), memberLit, val),
					fmt.Sprintf("%s(%s, %d)", compareBuiltin(t.Op), val, t.Lit.Int),
				}
				return []string{"!" + lw.newAux([]string{t.Var}, [][]string{pos})}, []string{t.Var}, nil
			}
		}
		op := t.Op
		if negate {
			op = negateOp(op)
		}
		lits := []string{
			fmt.Sprintf("attr(%s, %s, %s)", mangleVar(t.Var), memberLit, val),
			fmt.Sprintf("%s(%s, %d)", compareBuiltin(op), val, t.Lit.Int),
		}
		return lits, []string{t.Var}, nil
	case metamodel.Boolean, metamodel.String, metamodel.EnumKind:
		if t.Op != "==" && t.Op != "!=" {
			return nil, nil, &verrors.TypeError{Requirement: lw.reqName, Detail: fmt.Sprintf("attribute %s only supports ==/!= comparisons", mangled)}
		}
		if typ == metamodel.Boolean && t.Lit.Kind != LitBool {
			return nil, nil, &verrors.TypeError{Requirement: lw.reqName, Detail: fmt.Sprintf("attribute %s is Boolean but compared against a non-boolean literal", mangled)}
		}
		if typ != metamodel.Boolean && t.Lit.Kind != LitString {
			return nil, nil, &verrors.TypeError{Requirement: lw.reqName, Detail: fmt.Sprintf("attribute %s is String/EnumKind but compared against a non-string literal", mangled)}
		}
		litText, err := literalText(t.Lit)
		if err != nil {
			return nil, nil, err
		}
		eq := t.Op == "=="
		if negate {
			eq = !eq
		}
		atom := fmt.Sprintf("attr(%s, %s, %s)", mangleVar(t.Var), memberLit, litText)
		if !eq {
			atom = "!" + atom
		}
		return []string{atom}, []string{t.Var}, nil
	default:
		return nil, nil, fmt.Errorf("requirement %q: attribute %s has unsupported type %s", lw.reqName, mangled, typ)
	}
}

// attrAttrLiterals renders `x has AttrL op y has AttrR`, the
// cross-element numeric comparison spec.md §4.4 stage 3 describes.
func (lw *lowerer) attrAttrLiterals(t *HasAttrAttr, negate bool) ([]string, error) {
	mangledL, typL, err := resolveAttr(lw.reg, lw.version, t.Attr, lw.reqName)
	if err != nil {
		return nil, err
	}
	mangledR, typR, err := resolveAttr(lw.reg, lw.version, t.Attr2, lw.reqName)
	if err != nil {
		return nil, err
	}
	if typL != metamodel.Integer || typR != metamodel.Integer {
		return nil, &verrors.TypeError{Requirement: lw.reqName, Detail: fmt.Sprintf("cross-element comparison %s vs %s requires both attributes to be Integer", mangledL, mangledR)}
	}
	op := t.Op
	if negate {
		op = negateOp(op)
	}
	va, vb := lw.freshVar(), lw.freshVar()
	lits := []string{
		fmt.Sprintf("attr(%s, %s, %s)", mangleVar(t.Var), encoding.MemberLiteral(mangledL), va),
		fmt.Sprintf("attr(%s, %s, %s)", mangleVar(t.Other), encoding.MemberLiteral(mangledR), vb),
		fmt.Sprintf("%s(%s, %s)", compareBuiltin(op), va, vb),
	}
	return lits, nil
}

func (lw *lowerer) fail(err error) {
	if lw.err == nil {
		lw.err = err
	}
}

// compileTopWitness peels leading existentials off the effective (already
// polarity-flipped) top-level formula so their bound variables survive as
// extra head arguments on the final query predicate — the generic
// compilePos/compileNeg machinery projects a quantifier's bound variable
// out of its aux predicate's head, which is correct for satisfiability but
// would otherwise discard exactly the witness the diagnostic template
// needs (spec.md §4.4 stage 5, §8 scenario S4). Peeling stops at the first
// non-existential (after De Morgan) layer and falls back to the generic
// compiler for the remainder.
func (lw *lowerer) compileTopWitness(e Expr, neg bool) (headVars []string, lits []string) {
	switch t := e.(type) {
	case *Not:
		return lw.compileTopWitness(t.X, !neg)
	case *Exists:
		if !neg {
			inner, innerLits := lw.compileTopWitness(t.Body, false)
			gen := fmt.Sprintf("elem_class(%s, _)", mangleVar(t.Var))
			return prependVar(t.Var, inner), append([]string{gen}, innerLits...)
		}
	case *Forall:
		if neg {
			inner, innerLits := lw.compileTopWitness(t.Body, true)
			gen := fmt.Sprintf("elem_class(%s, _)", mangleVar(t.Var))
			return prependVar(t.Var, inner), append([]string{gen}, innerLits...)
		}
	}
	return freeVars(e), lw.compileBranch(e, neg)
}

// prependVar adds v to the front of vars unless it already occurs in it —
// a quantifier's own bound variable is often also a free occurrence inside
// its body (e.g. "forall v. v is C implies ..."), and a predicate head may
// not repeat a variable.
func prependVar(v string, vars []string) []string {
	for _, existing := range vars {
		if existing == v {
			return vars
		}
	}
	return append([]string{v}, vars...)
}

// loweredRequirement is the output of lowering one resolved DOMLR
// requirement body: complete Mangle source text plus the query to
// evaluate against it, and the witness variables (in DOMLR spelling) the
// query head exposes for diagnostic rendering.
type loweredRequirement struct {
	RuleText string
	Query    string
	Witness  []string
}

// lower compiles req.Body under the requirement's flip semantics (spec.md
// §4.4 stage 3: "Violated" means the effective, possibly-negated body is
// satisfiable) into a self-contained set of Mangle declarations and
// clauses plus a query atom.
func lower(reg *metamodel.Registry, v metamodel.Version, req Requirement) (*loweredRequirement, error) {
	lw := newLowerer(reg, v, req.Name)
	headVars, lits := lw.compileTopWitness(req.Body, !req.Flipped)
	if lw.err != nil {
		return nil, lw.err
	}

	topName := "req_top"
	args := make([]string, len(headVars))
	for i, hv := range headVars {
		args[i] = mangleVar(hv)
	}
	argList := strings.Join(args, ", ")
	gens := make([]string, len(headVars))
	for i, hv := range headVars {
		gens[i] = fmt.Sprintf("elem_class(%s, _)", mangleVar(hv))
	}
	body := append(append([]string{}, gens...), lits...)

	var sb strings.Builder
	for _, d := range lw.decls {
		sb.WriteString(d)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "Decl %s(%s).\n", topName, argList)
	for _, c := range lw.clauses {
		sb.WriteString(c)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%s(%s) :- %s.\n", topName, argList, strings.Join(body, ", "))

	return &loweredRequirement{
		RuleText: sb.String(),
		Query:    fmt.Sprintf("%s(%s)", topName, argList),
		Witness:  headVars,
	}, nil
}
