package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

func TestInlayHintsEmitParameterNamesAtCallSite(t *testing.T) {
	uri := document.URI("file:///ws/Caller.groovy")
	idx := buildGreetIndex(uri)

	store := document.NewStore()
	callLine := `    greet("hi", 3)`
	store.Open(uri, "class Caller {\n  def run() {\n"+callLine+"\n  }\n}\n", 1)

	result, err := InlayHints(context.Background(), idx, store, nil, InlayHintParams{URI: uri})
	assert.NoError(t, err)
	require.Len(t, result.Hints, 2)
	assert.Equal(t, "name:", result.Hints[0].Label)
	assert.Equal(t, document.Position{Line: 2, Column: strings.Index(callLine, `"hi"`)}, result.Hints[0].Pos)
	assert.Equal(t, "times:", result.Hints[1].Label)
	assert.Equal(t, document.Position{Line: 2, Column: strings.Index(callLine, "3")}, result.Hints[1].Pos)
}

func TestInlayHintsSkipNamedArguments(t *testing.T) {
	uri := document.URI("file:///ws/Caller.groovy")
	idx := buildGreetIndex(uri)

	store := document.NewStore()
	store.Open(uri, `greet(name: "hi", 3)`+"\n", 1)

	result, err := InlayHints(context.Background(), idx, store, nil, InlayHintParams{URI: uri})
	assert.NoError(t, err)
	require.Len(t, result.Hints, 1)
	assert.Equal(t, "times:", result.Hints[0].Label)
}

func TestInlayHintsSkipDeclarationLine(t *testing.T) {
	uri := document.URI("file:///ws/Caller.groovy")
	idx := buildGreetIndex(uri)

	store := document.NewStore()
	// Line 1 is where buildGreetIndex declares greet; its parameter list is
	// a declaration, not a call.
	store.Open(uri, "class Greeter {\n  def greet(String name, int times) {}\n}\n", 1)

	result, err := InlayHints(context.Background(), idx, store, nil, InlayHintParams{URI: uri})
	assert.NoError(t, err)
	assert.Empty(t, result.Hints)
}

func TestInlayHintsHonorRangeRestriction(t *testing.T) {
	uri := document.URI("file:///ws/Caller.groovy")
	idx := buildGreetIndex(uri)

	store := document.NewStore()
	store.Open(uri, "greet(\"a\", 1)\n\n\ngreet(\"b\", 2)\n", 1)

	window := document.Range{Start: document.Position{Line: 3, Column: 0}, End: document.Position{Line: 3, Column: 20}}
	result, err := InlayHints(context.Background(), idx, store, nil, InlayHintParams{URI: uri, Range: &window})
	assert.NoError(t, err)
	require.Len(t, result.Hints, 2)
	for _, h := range result.Hints {
		assert.Equal(t, 3, h.Pos.Line)
	}
}
