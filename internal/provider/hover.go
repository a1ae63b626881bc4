package provider

import (
	"context"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

type HoverParams struct {
	URI document.URI
	Pos document.Position
}

type HoverResult struct {
	Contents string
	Range    document.Range
	Found    bool
}

// Hover implements §4.7: render the declaring node as a one-line signature
// plus any attached documentation comment text.
func Hover(ctx context.Context, idx *astindex.Index, _ *document.Store, _ *scope.Scope, params HoverParams) (HoverResult, error) {
	if err := checkCancel(ctx); err != nil {
		return HoverResult{}, err
	}
	arena, nodeID, ok := idx.NodeAt(params.URI, params.Pos)
	if !ok {
		return HoverResult{}, nil
	}
	node, ok := arena.Node(nodeID)
	if !ok {
		return HoverResult{}, nil
	}

	target := node
	if node.DeclaringNode != astindex.NoNode {
		declArena, ok := idx.Arena(node.DeclaringURI)
		if !ok {
			return HoverResult{}, nil
		}
		declNode, ok := declArena.Node(node.DeclaringNode)
		if !ok {
			return HoverResult{}, nil
		}
		target = declNode
	}
	if target.Range == nil {
		return HoverResult{}, nil
	}

	contents := signature(target)
	if target.Doc != "" {
		contents += "\n\n" + target.Doc
	}
	return HoverResult{Contents: contents, Range: *node.Range, Found: true}, nil
}
