package provider

import (
	"context"
	"strings"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

type HighlightKind int

const (
	HighlightRead HighlightKind = iota
	HighlightWrite
)

type Highlight struct {
	Range document.Range
	Kind  HighlightKind
}

type DocumentHighlightParams struct {
	URI document.URI
	Pos document.Position
}

type DocumentHighlightResult struct {
	Highlights []Highlight
}

// DocumentHighlight implements §4.7: same as references but restricted to
// one URI, each occurrence tagged Read or Write according to whether it is
// an assignment target.
func DocumentHighlight(ctx context.Context, idx *astindex.Index, store *document.Store, _ *scope.Scope, params DocumentHighlightParams) (DocumentHighlightResult, error) {
	if err := checkCancel(ctx); err != nil {
		return DocumentHighlightResult{}, err
	}
	target, ok := resolveDeclTarget(idx, params.URI, params.Pos)
	if !ok {
		return DocumentHighlightResult{}, nil
	}
	arena, ok := idx.Arena(params.URI)
	if !ok {
		return DocumentHighlightResult{}, nil
	}
	text, _ := store.Contents(params.URI)
	lines := strings.Split(text, "\n")

	var out []Highlight
	for _, n := range arena.NodesFor() {
		isDeclaration := n.DeclaringNode == astindex.NoNode && params.URI == target.uri && n.ID == target.id
		isReference := n.DeclaringNode != astindex.NoNode && n.DeclaringURI == target.uri && n.DeclaringNode == target.id
		if (!isDeclaration && !isReference) || n.Range == nil {
			continue
		}
		out = append(out, Highlight{Range: *n.Range, Kind: kindForOccurrence(lines, *n.Range)})
	}
	return DocumentHighlightResult{Highlights: out}, nil
}

// kindForOccurrence heuristically classifies an identifier occurrence as a
// Write when immediately followed by a bare "=" (not "==", "!=", "<=",
// ">=") on its own line — the only assignment-detection signal available
// without a real semantic compiler.
func kindForOccurrence(lines []string, r document.Range) HighlightKind {
	if r.End.Line >= len(lines) {
		return HighlightRead
	}
	line := lines[r.End.Line]
	rest := strings.TrimLeft(runesAfter(line, r.End.Column), " \t")
	if len(rest) == 0 || rest[0] != '=' {
		return HighlightRead
	}
	if len(rest) > 1 && rest[1] == '=' {
		return HighlightRead
	}
	return HighlightWrite
}

func runesAfter(line string, col int) string {
	runes := []rune(line)
	if col >= len(runes) {
		return ""
	}
	return string(runes[col:])
}
