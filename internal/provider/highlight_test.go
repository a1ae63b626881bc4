package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

func TestDocumentHighlightClassifiesWriteVersusRead(t *testing.T) {
	uri := document.URI("file:///ws/Script.groovy")
	text := "x = 1\nprintln(x)"
	store := document.NewStore()
	store.Open(uri, text, 1)

	arena := astindex.NewArena(uri)
	module := arena.Add(astindex.Node{Kind: astindex.KindModule, DeclaringNode: astindex.NoNode})
	decl := arena.Add(astindex.Node{Kind: astindex.KindVariable, Name: "x", Range: rng(0, 0, 0, 1), Parent: module, DeclaringNode: astindex.NoNode})
	ref := arena.Add(astindex.Node{Kind: astindex.KindIdentifier, Name: "x", Range: rng(1, 8, 1, 9), Parent: module, DeclaringNode: decl, DeclaringURI: uri})
	arena.AddChild(module, decl)
	arena.AddChild(module, ref)
	idx := astindex.NewIndex()
	idx.Set(uri, arena)

	result, err := DocumentHighlight(context.Background(), idx, store, nil, DocumentHighlightParams{URI: uri, Pos: document.Position{Line: 0, Column: 0}})
	assert.NoError(t, err)
	assert.Len(t, result.Highlights, 2)

	kinds := map[int]HighlightKind{}
	for _, h := range result.Highlights {
		kinds[h.Range.Start.Line] = h.Kind
	}
	assert.Equal(t, HighlightWrite, kinds[0])
	assert.Equal(t, HighlightRead, kinds[1])
}
