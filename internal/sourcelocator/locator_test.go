package sourcelocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
)

func newTestLocator(t *testing.T) *Locator {
	t.Helper()
	l, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

const widgetSource = `class Widget {
  String name
  def greet() {}
  def greet(String who) {}
}
`

func TestRegisterDecompiledRoundTrip(t *testing.T) {
	l := newTestLocator(t)

	uri, err := l.RegisterDecompiled("com.acme.Widget", widgetSource)
	require.NoError(t, err)
	assert.Equal(t, "decompiled:///com/acme/Widget.groovy", string(uri))

	got, ok := l.SourceURI("com.acme.Widget")
	require.True(t, ok)
	assert.Equal(t, uri, got)

	content, ok := l.ContentByURI(uri)
	require.True(t, ok)
	assert.Equal(t, widgetSource, content)
}

func TestFindClassLocation(t *testing.T) {
	l := newTestLocator(t)
	_, err := l.RegisterDecompiled("com.acme.Widget", widgetSource)
	require.NoError(t, err)

	loc, ok := l.FindClassLocation("com.acme.Widget")
	require.True(t, ok)
	assert.Equal(t, 0, loc.Range.Start.Line)
}

func TestFindMethodLocationByArity(t *testing.T) {
	l := newTestLocator(t)
	_, err := l.RegisterDecompiled("com.acme.Widget", widgetSource)
	require.NoError(t, err)

	zeroArg, ok := l.FindMethodLocation("com.acme.Widget", "greet", 0)
	require.True(t, ok)
	oneArg, ok := l.FindMethodLocation("com.acme.Widget", "greet", 1)
	require.True(t, ok)
	assert.NotEqual(t, zeroArg.Range.Start.Line, oneArg.Range.Start.Line)

	_, ok = l.FindMethodLocation("com.acme.Widget", "greet", 2)
	assert.False(t, ok)

	any, ok := l.FindMethodLocation("com.acme.Widget", "greet", -1)
	require.True(t, ok)
	assert.Equal(t, zeroArg, any)
}

func TestFindFieldLocation(t *testing.T) {
	l := newTestLocator(t)
	_, err := l.RegisterDecompiled("com.acme.Widget", widgetSource)
	require.NoError(t, err)

	loc, ok := l.FindFieldLocation("com.acme.Widget", "name")
	require.True(t, ok)
	assert.Equal(t, 1, loc.Range.Start.Line)
}

func TestMarkRealWinsOverSubsequentRegisterDecompiled(t *testing.T) {
	l := newTestLocator(t)

	decompiledURI, err := l.RegisterDecompiled("com.acme.Widget", widgetSource)
	require.NoError(t, err)

	realURI := decompiledURI
	realURI = "file:///src/main/groovy/com/acme/Widget.groovy"
	require.NoError(t, l.MarkReal(classpath.New(nil), "com.acme.Widget", realURI, widgetSource))

	again, err := l.RegisterDecompiled("com.acme.Widget", "// a different decompilation\n")
	require.NoError(t, err)
	assert.Equal(t, realURI, again, "RegisterDecompiled must not overwrite a real indexed source")

	got, ok := l.SourceURI("com.acme.Widget")
	require.True(t, ok)
	assert.Equal(t, realURI, got)
}

func TestSourceURIUnknownFqcn(t *testing.T) {
	l := newTestLocator(t)
	_, ok := l.SourceURI("com.acme.Nope")
	assert.False(t, ok)
}
