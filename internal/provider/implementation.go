package provider

import (
	"context"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

type ImplementationParams struct {
	URI document.URI
	Pos document.Position
}

type ImplementationResult struct {
	Locations []Location
}

// Implementation resolves the cursor to implementations rather than the
// declaration itself: for an interface, trait or class, every type in the
// scope whose extends/implements clause names it; for a method declared on
// an interface or trait, the same-named method on each implementing type.
// For anything else (a method declared on a class included) the result is
// empty — definition already covers it.
func Implementation(ctx context.Context, idx *astindex.Index, _ *document.Store, _ *scope.Scope, params ImplementationParams) (ImplementationResult, error) {
	if err := checkCancel(ctx); err != nil {
		return ImplementationResult{}, err
	}
	target, ok := resolveDeclTarget(idx, params.URI, params.Pos)
	if !ok {
		return ImplementationResult{}, nil
	}
	arena, ok := idx.Arena(target.uri)
	if !ok {
		return ImplementationResult{}, nil
	}
	decl, ok := arena.Node(target.id)
	if !ok {
		return ImplementationResult{}, nil
	}

	switch decl.Kind {
	case astindex.KindInterface, astindex.KindTrait, astindex.KindClass:
		return implementorsOf(ctx, idx, decl.Name, "")
	case astindex.KindMethod:
		parent, ok := arena.Node(decl.Parent)
		if !ok || (parent.Kind != astindex.KindInterface && parent.Kind != astindex.KindTrait) {
			return ImplementationResult{}, nil
		}
		return implementorsOf(ctx, idx, parent.Name, decl.Name)
	default:
		return ImplementationResult{}, nil
	}
}

// implementorsOf scans every arena for types whose Supertypes clause names
// superName. With method == "", the type declarations themselves are
// returned; otherwise the same-named method child of each implementor is.
func implementorsOf(ctx context.Context, idx *astindex.Index, superName, method string) (ImplementationResult, error) {
	var out []Location
	for _, uri := range idx.URIs() {
		if err := checkCancel(ctx); err != nil {
			return ImplementationResult{}, err
		}
		arena, ok := idx.Arena(uri)
		if !ok {
			continue
		}
		for _, n := range arena.NodesFor() {
			if !namesSupertype(n, superName) {
				continue
			}
			if method == "" {
				if n.Range != nil {
					out = append(out, Location{URI: uri, Range: *n.Range})
				}
				continue
			}
			for _, childID := range n.Children {
				child, ok := arena.Node(childID)
				if ok && child.Kind == astindex.KindMethod && child.Name == method && child.Range != nil {
					out = append(out, Location{URI: uri, Range: *child.Range})
				}
			}
		}
	}
	return ImplementationResult{Locations: out}, nil
}

func namesSupertype(n astindex.Node, superName string) bool {
	switch n.Kind {
	case astindex.KindClass, astindex.KindEnum, astindex.KindTrait, astindex.KindInterface:
	default:
		return false
	}
	for _, s := range n.Supertypes {
		if s == superName {
			return true
		}
	}
	return false
}
