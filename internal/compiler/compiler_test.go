package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/events"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/frontend"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

// TestMain checks for leaked goroutines across this package's tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newActiveScope(t *testing.T, root string) *scope.Scope {
	t.Helper()
	s := scope.New(classpath.Root(root))
	s.BeginResolving()
	s.ApplyClasspath(classpath.New(nil), "4.0.0")
	return s
}

func TestEnsureCompiledPopulatesIndex(t *testing.T) {
	store := document.NewStore()
	uri := document.URI("file:///ws/a/X.groovy")
	store.Open(uri, "class X {\n  def greet() {}\n}\n", 1)

	sc := newActiveScope(t, "/ws/a")
	idx := astindex.NewIndex()
	svc := New(frontend.NewLineScanner(), events.NewBus(8))

	require.NoError(t, svc.EnsureCompiled(sc, idx, store, []document.URI{uri}))
	arena, ok := idx.Arena(uri)
	require.True(t, ok)
	assert.NotEmpty(t, arena.NodesFor())
}

func TestEnsureCompiledSkipsUnchangedVersion(t *testing.T) {
	store := document.NewStore()
	uri := document.URI("file:///ws/a/X.groovy")
	store.Open(uri, "class X {}\n", 1)

	sc := newActiveScope(t, "/ws/a")
	idx := astindex.NewIndex()
	svc := New(frontend.NewLineScanner(), events.NewBus(8))

	require.NoError(t, svc.EnsureCompiled(sc, idx, store, []document.URI{uri}))
	first, _ := idx.Arena(uri)

	require.NoError(t, svc.EnsureCompiled(sc, idx, store, []document.URI{uri}))
	second, _ := idx.Arena(uri)
	assert.Same(t, first, second)
}

func TestEnsureCompiledRebuildsOnVersionBump(t *testing.T) {
	store := document.NewStore()
	uri := document.URI("file:///ws/a/X.groovy")
	store.Open(uri, "class X {}\n", 1)

	sc := newActiveScope(t, "/ws/a")
	idx := astindex.NewIndex()
	svc := New(frontend.NewLineScanner(), events.NewBus(8))
	require.NoError(t, svc.EnsureCompiled(sc, idx, store, []document.URI{uri}))
	first, _ := idx.Arena(uri)

	require.NoError(t, store.ChangeFull(uri, "class X { def y() {} }\n", 2))
	require.NoError(t, svc.EnsureCompiled(sc, idx, store, []document.URI{uri}))
	second, _ := idx.Arena(uri)
	assert.NotSame(t, first, second)
}

func TestCrossFileDeclaringNodeResolved(t *testing.T) {
	store := document.NewStore()
	a := document.URI("file:///ws/a/A.groovy")
	b := document.URI("file:///ws/a/B.groovy")
	store.Open(a, "class A {\n  def helper() {}\n}\n", 1)
	store.Open(b, "class B {\n  def use() {\n    helper()\n  }\n}\n", 1)

	sc := newActiveScope(t, "/ws/a")
	idx := astindex.NewIndex()
	svc := New(frontend.NewLineScanner(), events.NewBus(8))
	require.NoError(t, svc.EnsureCompiled(sc, idx, store, []document.URI{a, b}))

	arena, _ := idx.Arena(b)
	var found bool
	for _, n := range arena.NodesFor() {
		if n.Kind == astindex.KindIdentifier && n.Name == "helper" {
			found = true
			assert.NotEqual(t, astindex.NoNode, n.DeclaringNode)
			assert.Equal(t, a, n.DeclaringURI)
		}
	}
	assert.True(t, found)
}
