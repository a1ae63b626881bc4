package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferencesIncludesOrExcludesDeclaration(t *testing.T) {
	idx, _, ref := buildClassWithReference(testURI)
	arena, _ := idx.Arena(testURI)
	refNode, _ := arena.Node(ref)

	withDecl, err := References(context.Background(), idx, nil, nil, ReferencesParams{URI: testURI, Pos: refNode.Range.Start, IncludeDeclaration: true})
	assert.NoError(t, err)
	assert.Len(t, withDecl.Locations, 2)

	withoutDecl, err := References(context.Background(), idx, nil, nil, ReferencesParams{URI: testURI, Pos: refNode.Range.Start, IncludeDeclaration: false})
	assert.NoError(t, err)
	assert.Len(t, withoutDecl.Locations, 1)
}

func TestReferencesEmptyWhenNothingAtPosition(t *testing.T) {
	idx, _, _ := buildClassWithReference(testURI)
	result, err := References(context.Background(), idx, nil, nil, ReferencesParams{URI: testURI, Pos: ofsPos(99, 0)})
	assert.NoError(t, err)
	assert.Empty(t, result.Locations)
}
