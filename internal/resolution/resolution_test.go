package resolution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/compiler"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/config"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/events"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/frontend"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scopemanager"
)

// TestMain checks for leaked goroutines: every Coordinator spawns pool
// workers on its bounded errgroup, and every test here must Shutdown its
// Coordinator before returning.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProvider struct {
	calls atomic.Int32
	delay time.Duration
	cp    classpath.Path
	err   error
}

func (f *fakeProvider) Resolve(ctx context.Context, root classpath.Root) (classpath.Path, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return classpath.Path{}, ctx.Err()
		}
	}
	return f.cp, f.err
}

func newCoordinator(t *testing.T, ws string, provider ClasspathProvider) (*Coordinator, *scopemanager.Manager) {
	t.Helper()
	mgr := scopemanager.New(config.Default(), nil, nil)
	store := document.NewStore()
	svc := compiler.New(frontend.NewLineScanner(), events.NewBus(8))
	c := New(context.Background(), config.Default(), ws, mgr, store, svc, frontend.NewLineScanner(), provider, events.NewBus(8))
	t.Cleanup(c.Shutdown)
	return c, mgr
}

func TestEnsureResolvedAppliesClasspath(t *testing.T) {
	ws := t.TempDir()
	provider := &fakeProvider{cp: classpath.New([]classpath.Entry{{Path: "/libs/a.jar"}})}
	c, mgr := newCoordinator(t, ws, provider)

	root := classpath.Root(ws)
	require.NoError(t, c.EnsureResolved(context.Background(), root))

	sc, ok := mgr.Scope(root)
	require.True(t, ok)
	assert.Equal(t, scope.StateActive, sc.State())
	cp, _ := sc.Classpath()
	assert.Equal(t, 1, cp.Len())
	assert.EqualValues(t, 1, provider.calls.Load())
}

func TestEnsureResolvedSingleFlight(t *testing.T) {
	ws := t.TempDir()
	provider := &fakeProvider{cp: classpath.New(nil), delay: 50 * time.Millisecond}
	c, _ := newCoordinator(t, ws, provider)
	root := classpath.Root(ws)

	errCh := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() { errCh <- c.EnsureResolved(context.Background(), root) }()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-errCh)
	}
	assert.EqualValues(t, 1, provider.calls.Load())
}

func TestEnsureResolvedFailurePreservesUnresolved(t *testing.T) {
	ws := t.TempDir()
	provider := &fakeProvider{err: fmt.Errorf("boom")}
	c, mgr := newCoordinator(t, ws, provider)
	root := classpath.Root(ws)

	err := c.EnsureResolved(context.Background(), root)
	assert.Error(t, err)

	sc, _ := mgr.Scope(root)
	assert.Equal(t, scope.StateUnresolved, sc.State())
}

func TestWarmStartAppliesValidCacheWithoutInvokingProvider(t *testing.T) {
	ws := t.TempDir()
	jarPath := filepath.Join(ws, "a.jar")
	require.NoError(t, os.WriteFile(jarPath, []byte("x"), 0o644))

	provider := &fakeProvider{}
	c, mgr := newCoordinator(t, ws, provider)
	root := classpath.Root(ws)

	require.NoError(t, c.EnsureResolved(context.Background(), root))
	sc, _ := mgr.Scope(root)
	require.Equal(t, scope.StateActive, sc.State())

	require.NoError(t, c.writeBackCache(root, classpath.New([]classpath.Entry{{Path: jarPath}}), "4.0.21"))

	mgr2 := scopemanager.New(config.Default(), nil, nil)
	store2 := document.NewStore()
	svc2 := compiler.New(frontend.NewLineScanner(), events.NewBus(8))
	provider2 := &fakeProvider{}
	c2 := New(context.Background(), config.Default(), ws, mgr2, store2, svc2, frontend.NewLineScanner(), provider2, events.NewBus(8))
	t.Cleanup(c2.Shutdown)

	require.NoError(t, c2.WarmStart([]classpath.Root{root}))
	sc2, ok := mgr2.Scope(root)
	require.True(t, ok)
	assert.Equal(t, scope.StateActive, sc2.State())
	assert.Equal(t, "4.0.21", sc2.LanguageVersion())
	assert.EqualValues(t, 0, provider2.calls.Load())
}
