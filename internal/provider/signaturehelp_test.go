package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

func buildGreetIndex(uri document.URI) *astindex.Index {
	arena := astindex.NewArena(uri)
	module := arena.Add(astindex.Node{Kind: astindex.KindModule, DeclaringNode: astindex.NoNode})
	class := arena.Add(astindex.Node{Kind: astindex.KindClass, Name: "Greeter", Range: rng(0, 6, 0, 13), Parent: module, DeclaringNode: astindex.NoNode})
	method := arena.Add(astindex.Node{
		Kind: astindex.KindMethod, Name: "greet",
		Signature: "def greet(String name, int times)",
		Range:     rng(1, 2, 1, 35), Parent: class, DeclaringNode: astindex.NoNode,
	})
	arena.AddChild(module, class)
	arena.AddChild(class, method)

	idx := astindex.NewIndex()
	idx.Set(uri, arena)
	return idx
}

func TestSignatureHelpInsideCallReportsActiveParameter(t *testing.T) {
	uri := document.URI("file:///ws/Caller.groovy")
	idx := buildGreetIndex(uri)

	store := document.NewStore()
	line := `    greeter.greet("hi", `
	store.Open(uri, "class Caller {\n  def run() {\n"+line+"\n  }\n}\n", 1)

	result, err := SignatureHelp(context.Background(), idx, store, nil, SignatureHelpParams{URI: uri, Pos: ofsPos(2, len(line))})
	assert.NoError(t, err)
	require.Len(t, result.Signatures, 1)
	assert.Equal(t, "def greet(String name, int times)", result.Signatures[0].Label)
	assert.Equal(t, []string{"String name", "int times"}, result.Signatures[0].Parameters)
	assert.Equal(t, 1, result.ActiveParameter, "one comma typed -> second parameter active")
}

func TestSignatureHelpOutsideCallIsEmpty(t *testing.T) {
	uri := document.URI("file:///ws/Caller.groovy")
	idx := buildGreetIndex(uri)

	store := document.NewStore()
	store.Open(uri, "class Caller {\n  def x = 1\n}\n", 1)

	result, err := SignatureHelp(context.Background(), idx, store, nil, SignatureHelpParams{URI: uri, Pos: ofsPos(1, 10)})
	assert.NoError(t, err)
	assert.Empty(t, result.Signatures)
}

func TestSignatureHelpKeywordParenIsNotACall(t *testing.T) {
	uri := document.URI("file:///ws/Caller.groovy")
	idx := buildGreetIndex(uri)

	store := document.NewStore()
	line := `    if (ready, `
	store.Open(uri, line+"\n", 1)

	result, err := SignatureHelp(context.Background(), idx, store, nil, SignatureHelpParams{URI: uri, Pos: ofsPos(0, len(line))})
	assert.NoError(t, err)
	assert.Empty(t, result.Signatures)
}

func TestParameterLabelsHonorNestedGenerics(t *testing.T) {
	labels := parameterLabels("def configure(Map<String, Integer> opts, boolean strict)")
	assert.Equal(t, []string{"Map<String, Integer> opts", "boolean strict"}, labels)
}
