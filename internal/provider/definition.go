package provider

import (
	"context"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

// DefinitionParams locates the node under the cursor. Locator is optional
// (nil is fine) and is only consulted when the declaring node cannot be
// found in any currently-compiled arena.
type DefinitionParams struct {
	URI     document.URI
	Pos     document.Position
	Locator SourceLocator
}

// DefinitionResult is empty (zero Locations) when nothing resolves, per
// §4.7's "return a location or empty" for both definition and
// type-definition (the two share one algorithm, §4.7).
type DefinitionResult struct {
	Locations []Location
}

// Definition implements §4.7's definition / type-definition algorithm:
// locate the node at position, map it to its declaring node via the AST
// Index (already cross-file resolved by the Compilation Service), and if
// the declaring node lives outside any open arena, consult the source
// locator.
func Definition(ctx context.Context, idx *astindex.Index, _ *document.Store, _ *scope.Scope, params DefinitionParams) (DefinitionResult, error) {
	if err := checkCancel(ctx); err != nil {
		return DefinitionResult{}, err
	}
	arena, nodeID, ok := idx.NodeAt(params.URI, params.Pos)
	if !ok {
		return DefinitionResult{}, nil
	}
	node, ok := arena.Node(nodeID)
	if !ok {
		return DefinitionResult{}, nil
	}

	if node.DeclaringNode == astindex.NoNode {
		// The node is itself a declaration (or unresolved). A declaration
		// node is its own definition.
		if node.Range != nil {
			return DefinitionResult{Locations: []Location{{URI: params.URI, Range: *node.Range}}}, nil
		}
		if params.Locator != nil {
			if loc, ok := params.Locator.FindClassLocation(node.Name); ok {
				return DefinitionResult{Locations: []Location{loc}}, nil
			}
		}
		return DefinitionResult{}, nil
	}

	declArena, ok := idx.Arena(node.DeclaringURI)
	if !ok {
		if params.Locator != nil {
			if loc, ok := params.Locator.FindClassLocation(node.Name); ok {
				return DefinitionResult{Locations: []Location{loc}}, nil
			}
		}
		return DefinitionResult{}, nil
	}
	declNode, ok := declArena.Node(node.DeclaringNode)
	if !ok || declNode.Range == nil {
		return DefinitionResult{}, nil
	}
	return DefinitionResult{Locations: []Location{{URI: node.DeclaringURI, Range: *declNode.Range}}}, nil
}
