// Package depgraph implements the per-scope symbol dependency graph
// (§4.5, §8 invariant on transitive invalidation) declaratively in Datalog
// using Google's Mangle engine, rather than a hand-maintained adjacency
// list: two base predicates (defines/2, references/2) plus one recursive
// rule (affects/2) give transitive "which files need recompiling"
// invalidation for free, with the engine guaranteeing it reaches a fixed
// point.
//
// Adapted from the teacher's production Mangle wrapper
// (internal/mangle/engine.go): a FactStoreWithRemove-backed store, a
// per-file reverse index for O(files-with-this-uri) retraction, and
// re-evaluation to a fixed point after every mutation. The recursive rule
// shape mirrors the teacher's own impact-analysis test
// (TestImpactAnalysisTransitiveClosure in
// internal/mangle/mangle_validation_test.go: "impacted(X) :-
// dependency_link(X, Y, _), modified(Y)." / "impacted(X) :-
// dependency_link(X, Z, _), impacted(Z).").
package depgraph

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

const schemaSource = `
Decl defines(File, Symbol).
Decl references(File, Symbol).
Decl depends_on(Dependent, Dependency).
Decl affects(Changed, Dependent).

depends_on(B, A) :- references(B, S), defines(A, S).

affects(A, B) :- depends_on(B, A).
affects(A, B) :- depends_on(C, A), affects(C, B).
`

// Graph is one scope's dependency graph: which file defines which symbol
// and which file references which symbol, with affects/2 as the derived
// transitive-invalidation relation.
type Graph struct {
	mu          sync.RWMutex
	baseStore   factstore.FactStoreWithRemove
	store       factstore.FactStore
	programInfo *analysis.ProgramInfo
	fileFacts   map[document.URI][]ast.Atom

	definesSym    ast.PredicateSym
	referencesSym ast.PredicateSym
	affectsSym    ast.PredicateSym
}

// NewGraph builds an empty Graph with the schema and rules loaded and
// analyzed.
func NewGraph() (*Graph, error) {
	unit, err := parse.Unit(strings.NewReader(schemaSource))
	if err != nil {
		return nil, fmt.Errorf("depgraph: parse schema: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("depgraph: analyze schema: %w", err)
	}
	base := factstore.NewSimpleInMemoryStore()
	return &Graph{
		baseStore:     base,
		store:         base,
		programInfo:   programInfo,
		fileFacts:     make(map[document.URI][]ast.Atom),
		definesSym:    ast.PredicateSym{Symbol: "defines", Arity: 2},
		referencesSym: ast.PredicateSym{Symbol: "references", Arity: 2},
		affectsSym:    ast.PredicateSym{Symbol: "affects", Arity: 2},
	}, nil
}

// ReplaceFileFacts atomically drops every fact previously recorded for uri
// and installs defines/references facts built from the given symbol
// names, then re-evaluates the program to a fixed point. This is the
// operation the Compilation Service calls after each successful parse
// (§4.5).
func (g *Graph) ReplaceFileFacts(uri document.URI, defines []string, references []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeFileFactsLocked(uri)

	fileTerm := ast.String(string(uri))
	var added []ast.Atom
	for _, sym := range defines {
		atom := ast.NewAtom("defines", fileTerm, ast.String(sym))
		if g.baseStore.Add(atom) {
			added = append(added, atom)
		}
	}
	for _, sym := range references {
		atom := ast.NewAtom("references", fileTerm, ast.String(sym))
		if g.baseStore.Add(atom) {
			added = append(added, atom)
		}
	}
	g.fileFacts[uri] = added

	_, err := mengine.EvalProgramWithStats(g.programInfo, g.store)
	if err != nil {
		return fmt.Errorf("depgraph: evaluate: %w", err)
	}
	return nil
}

func (g *Graph) removeFileFactsLocked(uri document.URI) {
	atoms, ok := g.fileFacts[uri]
	if !ok {
		return
	}
	for _, atom := range atoms {
		g.baseStore.Remove(atom)
	}
	delete(g.fileFacts, uri)
}

// RemoveFile drops every fact recorded for uri (the file was deleted or
// closed with no replacement) and re-evaluates.
func (g *Graph) RemoveFile(uri document.URI) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeFileFactsLocked(uri)
	_, err := mengine.EvalProgramWithStats(g.programInfo, g.store)
	return err
}

// AffectedBy returns every file transitively affected by a change to uri:
// any file that, directly or through a chain of intermediate files,
// references a symbol uri defines.
func (g *Graph) AffectedBy(uri document.URI) ([]document.URI, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	query := ast.NewQuery(g.affectsSym)
	target := string(uri)
	seen := make(map[document.URI]bool)
	var out []document.URI

	err := g.store.GetFacts(query, func(atom ast.Atom) error {
		if len(atom.Args) != 2 {
			return nil
		}
		changed, ok := stringValue(atom.Args[0])
		if !ok || changed != target {
			return nil
		}
		dependent, ok := stringValue(atom.Args[1])
		if !ok {
			return nil
		}
		u := document.URI(dependent)
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("depgraph: query affects: %w", err)
	}
	return out, nil
}

// Defines returns every symbol name the graph currently records as defined
// by uri.
func (g *Graph) Defines(uri document.URI) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for _, atom := range g.fileFacts[uri] {
		if atom.Predicate.Symbol != "defines" || len(atom.Args) != 2 {
			continue
		}
		if s, ok := stringValue(atom.Args[1]); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringValue(term ast.BaseTerm) (string, bool) {
	c, ok := term.(ast.Constant)
	if !ok {
		return "", false
	}
	switch c.Type {
	case ast.StringType, ast.NameType:
		return c.Symbol, true
	default:
		return "", false
	}
}
