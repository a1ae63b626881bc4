package provider

import (
	"context"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

type ReferencesParams struct {
	URI                document.URI
	Pos                document.Position
	IncludeDeclaration bool
}

type ReferencesResult struct {
	Locations []Location
}

// declTarget identifies one declaration: the (uri, nodeID) pair every
// matching reference's DeclaringNode/DeclaringURI must equal.
type declTarget struct {
	uri document.URI
	id  astindex.NodeID
}

// resolveDeclTarget maps a cursor position to the declaration it names,
// whether the cursor sits on the declaration itself or on a reference to it.
func resolveDeclTarget(idx *astindex.Index, uri document.URI, pos document.Position) (declTarget, bool) {
	arena, nodeID, ok := idx.NodeAt(uri, pos)
	if !ok {
		return declTarget{}, false
	}
	node, ok := arena.Node(nodeID)
	if !ok {
		return declTarget{}, false
	}
	if node.DeclaringNode != astindex.NoNode {
		return declTarget{uri: node.DeclaringURI, id: node.DeclaringNode}, true
	}
	return declTarget{uri: uri, id: nodeID}, true
}

// References implements §4.7's references algorithm: scan every URI in the
// scope's AST Index, visiting every node, retaining those whose declaring
// node equals the query position's declaration. A scan over every URI can
// run long on a large workspace, so the cursor's cancellation token is
// checked once per URI in addition to the usual entry check (§5, §8
// invariant 8).
func References(ctx context.Context, idx *astindex.Index, _ *document.Store, _ *scope.Scope, params ReferencesParams) (ReferencesResult, error) {
	if err := checkCancel(ctx); err != nil {
		return ReferencesResult{}, err
	}
	target, ok := resolveDeclTarget(idx, params.URI, params.Pos)
	if !ok {
		return ReferencesResult{}, nil
	}

	var out []Location
	for _, uri := range idx.URIs() {
		if err := checkCancel(ctx); err != nil {
			return ReferencesResult{}, err
		}
		arena, ok := idx.Arena(uri)
		if !ok {
			continue
		}
		for _, n := range arena.NodesFor() {
			isDeclaration := n.DeclaringNode == astindex.NoNode && uri == target.uri && n.ID == target.id
			isReference := n.DeclaringNode != astindex.NoNode && n.DeclaringURI == target.uri && n.DeclaringNode == target.id
			if isDeclaration {
				if !params.IncludeDeclaration || n.Range == nil {
					continue
				}
				out = append(out, Location{URI: uri, Range: *n.Range})
			} else if isReference && n.Range != nil {
				out = append(out, Location{URI: uri, Range: *n.Range})
			}
		}
	}
	return ReferencesResult{Locations: out}, nil
}
