package provider

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

type PrepareRenameParams struct {
	URI document.URI
	Pos document.Position
}

type PrepareRenameResult struct {
	// Range is the token to rename, zero if Refused.
	Range   document.Range
	Refused bool
	Reason  string
}

// PrepareRename resolves Open Question 2 conservatively (§4.7 expansion):
// refuse renaming any symbol whose declaring node isn't present in a
// currently-compiled arena, since that means it only resolves to an
// external classpath entry.
func PrepareRename(ctx context.Context, idx *astindex.Index, _ *document.Store, _ *scope.Scope, params PrepareRenameParams) (PrepareRenameResult, error) {
	if err := checkCancel(ctx); err != nil {
		return PrepareRenameResult{}, err
	}
	target, ok := resolveDeclTarget(idx, params.URI, params.Pos)
	if !ok {
		return PrepareRenameResult{Refused: true, Reason: "no symbol at this position"}, nil
	}
	declArena, ok := idx.Arena(target.uri)
	if !ok {
		return PrepareRenameResult{Refused: true, Reason: "cannot rename a symbol declared outside the workspace"}, nil
	}
	declNode, ok := declArena.Node(target.id)
	if !ok || declNode.Range == nil {
		return PrepareRenameResult{Refused: true, Reason: "cannot rename a symbol declared outside the workspace"}, nil
	}
	return PrepareRenameResult{Range: *declNode.Range}, nil
}

type RenameParams struct {
	URI     document.URI
	Pos     document.Position
	NewName string
}

type RenameResult struct {
	Edit    WorkspaceEdit
	Refused bool
	Reason  string
}

// Rename implements §4.7's rename algorithm: compute the reference set (as
// References, including the declaration), emit a text edit per occurrence,
// and additionally emit a file-rename operation when the declaring node is
// a top-level class whose name matches its file's stem.
func Rename(ctx context.Context, idx *astindex.Index, store *document.Store, sc *scope.Scope, params RenameParams) (RenameResult, error) {
	if err := checkCancel(ctx); err != nil {
		return RenameResult{}, err
	}
	target, ok := resolveDeclTarget(idx, params.URI, params.Pos)
	if !ok {
		return RenameResult{Refused: true, Reason: "no symbol at this position"}, nil
	}
	declArena, ok := idx.Arena(target.uri)
	if !ok {
		return RenameResult{Refused: true, Reason: "cannot rename a symbol declared outside the workspace"}, nil
	}
	declNode, ok := declArena.Node(target.id)
	if !ok {
		return RenameResult{Refused: true, Reason: "cannot rename a symbol declared outside the workspace"}, nil
	}

	refs, err := References(ctx, idx, store, sc, ReferencesParams{URI: params.URI, Pos: params.Pos, IncludeDeclaration: true})
	if err != nil {
		return RenameResult{}, err
	}

	edit := WorkspaceEdit{}
	for _, loc := range refs.Locations {
		edit.addEdit(loc.URI, TextEdit{Range: loc.Range, NewText: params.NewName})
	}

	if isTopLevelClassMatchingStem(declArena, declNode, target.uri) {
		newURI := renamedURI(target.uri, params.NewName)
		edit.Renames = append(edit.Renames, FileRename{OldURI: target.uri, NewURI: newURI})
	}

	return RenameResult{Edit: edit}, nil
}

func isTopLevelClassMatchingStem(arena *astindex.Arena, n astindex.Node, uri document.URI) bool {
	if n.Kind != astindex.KindClass {
		return false
	}
	parent, ok := arena.Node(n.Parent)
	if !ok || parent.Kind != astindex.KindModule {
		return false
	}
	stem := strings.TrimSuffix(filepath.Base(uri.Path()), filepath.Ext(uri.Path()))
	return stem == n.Name
}

func renamedURI(uri document.URI, newName string) document.URI {
	dir := filepath.Dir(uri.Path())
	ext := filepath.Ext(uri.Path())
	newPath := filepath.Join(dir, newName+ext)
	scheme := uri.Scheme()
	if scheme == "" {
		return document.URI(newPath)
	}
	return document.URI(scheme + "://" + newPath)
}
