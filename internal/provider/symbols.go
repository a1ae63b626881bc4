package provider

import (
	"context"
	"strings"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

// Symbol is one flattened declared name, ready for the document/workspace
// symbol response (§4.7).
type Symbol struct {
	Name      string
	Kind      SymbolKind
	Location  Location
	Container string
}

type DocumentSymbolsParams struct {
	URI document.URI
}

type DocumentSymbolsResult struct {
	Symbols []Symbol
}

// DocumentSymbols implements §4.7: flatten all declared names in one URI.
func DocumentSymbols(ctx context.Context, idx *astindex.Index, _ *document.Store, _ *scope.Scope, params DocumentSymbolsParams) (DocumentSymbolsResult, error) {
	if err := checkCancel(ctx); err != nil {
		return DocumentSymbolsResult{}, err
	}
	arena, ok := idx.Arena(params.URI)
	if !ok {
		return DocumentSymbolsResult{}, nil
	}
	return DocumentSymbolsResult{Symbols: flattenSymbols(arena, params.URI)}, nil
}

type WorkspaceSymbolsParams struct {
	Query string
}

type WorkspaceSymbolsResult struct {
	Symbols []Symbol
}

// WorkspaceSymbols implements §4.7: flatten all declared names across every
// scope URI, filtered by a case-insensitive substring match against Query
// (empty Query matches everything). A full-workspace scan can run long, so
// the cancellation token is checked once per URI in addition to the entry
// check (§5, §8 invariant 8) — the scenario that mechanism exists for.
func WorkspaceSymbols(ctx context.Context, idx *astindex.Index, _ *document.Store, _ *scope.Scope, params WorkspaceSymbolsParams) (WorkspaceSymbolsResult, error) {
	if err := checkCancel(ctx); err != nil {
		return WorkspaceSymbolsResult{}, err
	}
	var out []Symbol
	for _, uri := range idx.URIs() {
		if err := checkCancel(ctx); err != nil {
			return WorkspaceSymbolsResult{}, err
		}
		arena, ok := idx.Arena(uri)
		if !ok {
			continue
		}
		for _, sym := range flattenSymbols(arena, uri) {
			if matchesQuery(sym.Name, params.Query) {
				out = append(out, sym)
			}
		}
	}
	return WorkspaceSymbolsResult{Symbols: out}, nil
}

func flattenSymbols(arena *astindex.Arena, uri document.URI) []Symbol {
	var out []Symbol
	for _, n := range arena.NodesFor() {
		kind, ok := symbolKindFor(n.Kind)
		if !ok || n.Range == nil {
			continue
		}
		container := ""
		if parent, ok := arena.Node(n.Parent); ok {
			container = parent.Name
		}
		out = append(out, Symbol{
			Name:      n.Name,
			Kind:      kind,
			Location:  Location{URI: uri, Range: *n.Range},
			Container: container,
		})
	}
	return out
}

func matchesQuery(name, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(query))
}
