package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHoverRendersDeclaringNodeSignatureAndDoc(t *testing.T) {
	idx, _, ref := buildClassWithReference(testURI)
	arena, _ := idx.Arena(testURI)
	refNode, _ := arena.Node(ref)

	result, err := Hover(context.Background(), idx, nil, nil, HoverParams{URI: testURI, Pos: refNode.Range.Start})
	assert.NoError(t, err)
	assert.True(t, result.Found)
	assert.Contains(t, result.Contents, "Foo")
	assert.Contains(t, result.Contents, "Does a thing.")
}

func TestHoverEmptyWhenNothingAtPosition(t *testing.T) {
	idx, _, _ := buildClassWithReference(testURI)
	result, err := Hover(context.Background(), idx, nil, nil, HoverParams{URI: testURI, Pos: ofsPos(99, 0)})
	assert.NoError(t, err)
	assert.False(t, result.Found)
}
