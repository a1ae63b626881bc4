package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

// TestMain checks for leaked goroutines across this package's tests, since
// Scope's lifecycle transitions are meant to be safe to drive from many
// goroutines at once (§4.3).
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLifecycleUnresolvedToActiveToEvicted(t *testing.T) {
	s := New(classpath.Root("/ws/a"))
	assert.Equal(t, StateUnresolved, s.State())

	assert.True(t, s.BeginResolving())
	assert.Equal(t, StateResolving, s.State())

	cp := classpath.New([]classpath.Entry{{Path: "/a.jar"}})
	s.ApplyClasspath(cp, "4.0.21")
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, "4.0.21", s.LanguageVersion())

	s.Evict()
	assert.Equal(t, StateEvicted, s.State())

	// A classpath was already resolved before eviction, so revival goes
	// straight back to Active instead of Unresolved (§4.3).
	s.Revive()
	assert.Equal(t, StateActive, s.State())
}

func TestReviveWithoutPriorClasspathGoesUnresolved(t *testing.T) {
	s := New(classpath.Root("/ws/a"))
	s.BeginResolving()
	s.Evict()
	assert.Equal(t, StateEvicted, s.State())

	s.Revive()
	assert.Equal(t, StateUnresolved, s.State())
}

func TestFailResolvingRevertsToUnresolved(t *testing.T) {
	s := New(classpath.Root("/ws/a"))
	assert.True(t, s.BeginResolving())
	s.FailResolving()
	assert.Equal(t, StateUnresolved, s.State())

	// a second attempt must be possible again
	assert.True(t, s.BeginResolving())
}

func TestBeginResolvingRejectsConcurrentResolve(t *testing.T) {
	s := New(classpath.Root("/ws/a"))
	assert.True(t, s.BeginResolving())
	assert.False(t, s.BeginResolving())
}

func TestInvalidateOnlyAffectsActive(t *testing.T) {
	s := New(classpath.Root("/ws/a"))
	s.Invalidate() // no-op while Unresolved
	assert.Equal(t, StateUnresolved, s.State())

	s.BeginResolving()
	s.ApplyClasspath(classpath.New(nil), "")
	s.Invalidate()
	assert.Equal(t, StateUnresolved, s.State())
}

func TestOpenDocumentsTracked(t *testing.T) {
	s := New(classpath.Root("/ws/a"))
	assert.False(t, s.HasOpenDocuments())

	s.OpenDocument(document.URI("file:///ws/a/Foo.groovy"))
	assert.True(t, s.HasOpenDocuments())
	assert.Equal(t, 1, s.OpenDocumentCount())

	s.CloseDocument(document.URI("file:///ws/a/Foo.groovy"))
	assert.False(t, s.HasOpenDocuments())
}

func TestApplyClasspathBumpsCompileGeneration(t *testing.T) {
	s := New(classpath.Root("/ws/a"))
	assert.Equal(t, uint64(0), s.CompileGeneration())
	s.ApplyClasspath(classpath.New(nil), "")
	assert.Equal(t, uint64(1), s.CompileGeneration())
	s.ApplyClasspath(classpath.New(nil), "")
	assert.Equal(t, uint64(2), s.CompileGeneration())
}
