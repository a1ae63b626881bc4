package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenChangeClose(t *testing.T) {
	s := NewStore()
	uri := URI("file:///ws/Foo.groovy")

	s.Open(uri, "class Foo {}", 1)
	text, ok := s.Contents(uri)
	require.True(t, ok)
	assert.Equal(t, "class Foo {}", text)
	assert.True(t, s.IsOpen(uri))
	assert.True(t, s.HasChangedUnder(""))

	require.NoError(t, s.ChangeFull(uri, "class Bar {}", 2))
	text, ok = s.Contents(uri)
	require.True(t, ok)
	assert.Equal(t, "class Bar {}", text)

	s.Close(uri)
	assert.False(t, s.IsOpen(uri))
	_, ok = s.Contents(uri)
	assert.False(t, ok) // not on disk either
}

func TestChangeRangeRequiresOpen(t *testing.T) {
	s := NewStore()
	uri := URI("file:///ws/Foo.groovy")
	err := s.ChangeRange(uri, nil, "x", 1)
	require.Error(t, err)
}

func TestChangeRangeNilReplacesWholeDocument(t *testing.T) {
	s := NewStore()
	uri := URI("file:///ws/Foo.groovy")
	s.Open(uri, "old", 1)
	require.NoError(t, s.ChangeRange(uri, nil, "new", 2))
	text, _ := s.Contents(uri)
	assert.Equal(t, "new", text)
}

func TestChangeRangeAppliesMidLineEdit(t *testing.T) {
	s := NewStore()
	uri := URI("file:///ws/Foo.groovy")
	s.Open(uri, "class Foo {\n  int x\n}", 1)

	// Replace "int" on line 1 (0-based) with "long".
	rng := Range{Start: Position{Line: 1, Column: 2}, End: Position{Line: 1, Column: 5}}
	require.NoError(t, s.ChangeRange(uri, &rng, "long", 2))

	text, _ := s.Contents(uri)
	assert.Equal(t, "class Foo {\n  long x\n}", text)
}

func TestResetChangedSubset(t *testing.T) {
	s := NewStore()
	a, b := URI("file:///ws/A.groovy"), URI("file:///ws/B.groovy")
	s.Open(a, "a", 1)
	s.Open(b, "b", 1)

	s.ResetChanged(a)
	assert.False(t, s.HasChangedUnder("/ws/A"))
	assert.True(t, s.HasChangedUnder("/ws/B"))
}

func TestHasChangedUnderRoot(t *testing.T) {
	s := NewStore()
	s.Open(URI("file:///ws/a/Foo.groovy"), "x", 1)
	s.Open(URI("file:///ws/b/Bar.groovy"), "y", 1)

	assert.True(t, s.HasChangedUnder("/ws/a"))
	assert.False(t, s.HasChangedUnder("/ws/c"))
	assert.True(t, s.HasChangedUnder(""))
}
