// Package encoding builds the SMT Sort & Encoding (spec.md §4.3) on top of
// a Mangle Datalog engine substituting for the spec's literal SMT solver:
// elem_class/attr/assoc become extensional predicates backed by a fact
// store, and a requirement body becomes an intensional rule checked by a
// single query. See DESIGN.md for why Mangle stands in for Z3 here.
package encoding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	_ "github.com/google/mangle/packages"
	"github.com/google/mangle/parse"
	"github.com/google/mangle/unionfind"

	"github.com/doml-verifier/mc/internal/obslog"
)

// Config controls one worker's solver context.
type Config struct {
	// QueryTimeout bounds a single requirement check (spec.md §4.6,
	// "a per-query timeout may be set on the solver").
	QueryTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{QueryTimeout: 5 * time.Second}
}

// Engine is a per-worker Mangle-backed solver context. Spec.md §5 asks
// that "each worker materializes its own Encoding structures to avoid
// cross-thread aliasing of solver objects" — an Engine is never shared
// across goroutines. Background facts are loaded once and never mutated;
// each Check call builds an ephemeral program (background decls plus one
// requirement rule), evaluates it, and discards it, which is the Mangle
// analogue of push/assert/check/pop over a non-incremental solver.
type Engine struct {
	config Config

	baseDecls map[ast.PredicateSym]*ast.Decl
	predIndex map[string]ast.PredicateSym
	store     factstore.FactStoreWithRemove
}

// NewEngine constructs an empty engine; call LoadBackground before any
// Check.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		config:    cfg,
		baseDecls: make(map[ast.PredicateSym]*ast.Decl),
		predIndex: make(map[string]ast.PredicateSym),
		store:     factstore.NewSimpleInMemoryStore(),
	}
}

// LoadBackground parses declText — one or more `Decl pred(Args...).`
// lines declaring the extensional predicates (elem_class, attr, assoc) —
// and records the resulting predicate symbols. It must be called exactly
// once, before any fact is added or any requirement checked.
func (e *Engine) LoadBackground(declText string) error {
	unit, err := parse.Unit(strings.NewReader(declText))
	if err != nil {
		return fmt.Errorf("encoding: background decl syntax: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return fmt.Errorf("encoding: background decl analysis: %w", err)
	}
	for sym, decl := range info.Decls {
		e.predIndex[sym.Symbol] = sym
		e.baseDecls[sym] = decl
	}
	return nil
}

// Predicate returns the PredicateSym registered for a background
// predicate name (used by callers building ast.Atom facts directly).
func (e *Engine) Predicate(name string) (ast.PredicateSym, bool) {
	sym, ok := e.predIndex[name]
	return sym, ok
}

// AddFact inserts one ground background fact (an elem_class/attr/assoc
// tuple) into the shared, read-only-after-load fact store.
func (e *Engine) AddFact(atom ast.Atom) {
	e.store.Add(atom)
}

// Result is the outcome of one requirement check: whether a witness was
// found, and if so, the first witness binding found for each free
// variable in the query (spec.md §4.4's diagnostic-substitution source).
type Result struct {
	Found   bool
	Witness map[string]ast.Constant
}

// Check merges ruleText (the `Decl` lines and rules of a witness
// predicate over the requirement's free witness variables, plus any
// helper predicates it uses) with the background declarations, evaluates
// queryText (normally `witness(Args...)`) against the fixed fact store,
// and returns whether any satisfying binding exists. The per-requirement
// rule is never retained: each call starts from the same base, so the
// next Check sees none of this one's effects.
func (e *Engine) Check(ctx context.Context, ruleText, queryText string) (Result, error) {
	fragment, err := parse.Unit(strings.NewReader(ruleText))
	if err != nil {
		return Result{}, fmt.Errorf("encoding: rule syntax: %w", err)
	}

	decls := make([]ast.Decl, 0, len(e.baseDecls)+len(fragment.Decls))
	for _, d := range e.baseDecls {
		decls = append(decls, *d)
	}
	decls = append(decls, fragment.Decls...)

	info, err := analysis.AnalyzeOneUnit(parse.SourceUnit{Decls: decls, Clauses: fragment.Clauses}, nil)
	if err != nil {
		return Result{}, fmt.Errorf("encoding: rule analysis: %w", err)
	}

	predToDecl := make(map[ast.PredicateSym]*ast.Decl, len(info.Decls))
	for sym, decl := range info.Decls {
		predToDecl[sym] = decl
	}
	predToRules := make(map[ast.PredicateSym][]ast.Clause)
	for _, clause := range info.Rules {
		predToRules[clause.Head.Predicate] = append(predToRules[clause.Head.Predicate], clause)
	}

	queryAtom, err := parse.Atom(strings.TrimSuffix(strings.TrimSpace(queryText), "."))
	if err != nil {
		return Result{}, fmt.Errorf("encoding: query syntax: %w", err)
	}
	decl, ok := predToDecl[queryAtom.Predicate]
	if !ok {
		return Result{}, fmt.Errorf("encoding: query predicate %s is not declared", queryAtom.Predicate.Symbol)
	}
	if len(decl.Modes()) == 0 {
		return Result{}, fmt.Errorf("encoding: query predicate %s has no mode declared", queryAtom.Predicate.Symbol)
	}
	mode := decl.Modes()[0]

	type binding struct {
		name  string
		index int
	}
	var vars []binding
	for i, arg := range queryAtom.Args {
		if v, ok := arg.(ast.Variable); ok {
			vars = append(vars, binding{name: v.Symbol, index: i})
		}
	}

	qctx := &mengine.QueryContext{PredToRules: predToRules, PredToDecl: predToDecl, Store: e.store}

	timeout := e.config.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().QueryTimeout
	}
	// Applied even under a run-wide deadline: WithTimeout keeps whichever
	// of the two expires first.
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t := obslog.StartTimer(obslog.CategoryVerify, "encoding.Check")
	defer t.Stop()

	resultCh := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		var found Result
		err := qctx.EvalQuery(queryAtom, mode, unionfind.New(), func(fact ast.Atom) error {
			if found.Found {
				return nil
			}
			row := make(map[string]ast.Constant, len(vars))
			for _, b := range vars {
				if b.index >= len(fact.Args) {
					continue
				}
				if c, ok := fact.Args[b.index].(ast.Constant); ok {
					row[b.name] = c
				}
			}
			found = Result{Found: true, Witness: row}
			return nil
		})
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- found
	}()

	select {
	case res := <-resultCh:
		return res, nil
	case err := <-errCh:
		return Result{}, err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
