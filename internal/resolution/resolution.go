// Package resolution implements the Resolution Coordinator (§4.5): the
// cache-first, single-flight, lazily-dispatched classpath resolution
// pipeline that turns an Unresolved Project Scope into an Active one
// without ever blocking the request path.
//
// Grounded on the teacher's internal/session/spawner.go bounded-pool-with-
// registry shape, rebuilt directly over golang.org/x/sync's errgroup and
// singleflight rather than kept as the spawner file itself — a real task
// queue here has nothing left in common with spawning LLM subagents once the
// payload is "resolve one project's classpath" instead of "run one shard".
package resolution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/cache"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/compiler"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/config"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/errs"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/events"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/frontend"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scopemanager"
)

// ClasspathProvider is the opaque collaborator that actually knows how to
// invoke a build tool and list dependency artifacts (§1: treated as a tag,
// never implemented here). Resolve may take seconds and must honor ctx
// cancellation.
type ClasspathProvider interface {
	Resolve(ctx context.Context, root classpath.Root) (classpath.Path, error)
}

// Coordinator is the Resolution Coordinator. One Coordinator serves every
// Project Root discovered in a workspace.
type Coordinator struct {
	cfg           config.Config
	workspaceRoot string

	manager  *scopemanager.Manager
	store    *document.Store
	svc      *compiler.Service
	fe       frontend.Frontend
	provider ClasspathProvider
	bus      *events.Bus

	pool    *errgroup.Group
	poolCtx context.Context
	sf      singleflight.Group

	cacheMu sync.Mutex
	cacheF  *cache.File

	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// New wires a Coordinator. ctx is the server's root context; the pool's
// lifetime (and every background backfill task submitted into it) is bound
// to it, per §5's "Import pool" description.
func New(ctx context.Context, cfg config.Config, workspaceRoot string, manager *scopemanager.Manager, store *document.Store, svc *compiler.Service, fe frontend.Frontend, provider ClasspathProvider, bus *events.Bus) *Coordinator {
	bgCtx, cancel := context.WithCancel(ctx)
	// A plain Group, not errgroup.WithContext: one root's resolution failure
	// must not cancel every other root's in-flight or queued resolution, so
	// the pool's bound context is just bgCtx, never auto-cancelled on error.
	pool := &errgroup.Group{}
	limit := cfg.ResolverConcurrency
	if limit <= 0 {
		limit = 4
	}
	pool.SetLimit(limit)
	return &Coordinator{
		cfg:           cfg,
		workspaceRoot: workspaceRoot,
		manager:       manager,
		store:         store,
		svc:           svc,
		fe:            fe,
		provider:      provider,
		bus:           bus,
		pool:          pool,
		poolCtx:       bgCtx,
		bgCtx:         bgCtx,
		bgCancel:      cancel,
	}
}

// Shutdown cancels every in-flight and queued background task (sibling
// backfill has no other way to be "cancelled first on shutdown", per §4.5's
// expansion) and waits for the pool to drain.
func (c *Coordinator) Shutdown() {
	c.bgCancel()
	_ = c.pool.Wait()
}

func (c *Coordinator) publish(root classpath.Root, state, message string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{Kind: eventKindFor(state), ProjectRoot: root.String(), Message: message})
}

func eventKindFor(state string) events.Kind {
	switch state {
	case "importing":
		return events.KindResolutionStarted
	case "ready":
		return events.KindResolutionFinished
	case "error":
		return events.KindResolutionFailed
	default:
		return events.KindResolutionProgress
	}
}

// WarmStart implements §4.5 step 1: for each discovered root, load the
// on-disk cache and apply it directly (skipping the provider entirely) when
// still valid.
func (c *Coordinator) WarmStart(roots []classpath.Root) error {
	f, err := cache.Load(c.workspaceRoot)
	if err != nil && !errs.OfKind(err, errs.KindCacheCorrupt) {
		return err
	}
	if f == nil {
		f = &cache.File{WorkspaceRoot: c.workspaceRoot}
	}
	c.cacheMu.Lock()
	c.cacheF = f
	c.cacheMu.Unlock()

	started := time.Now()
	var hits []classpath.Root
	for _, root := range roots {
		sc := c.manager.Register(root)
		entry, ok := f.FindProject(root.String())
		if !ok || !cache.Valid(entry) {
			continue
		}
		if !sc.BeginResolving() {
			continue
		}
		cp := classpath.New(toEntries(entry.Classpath))
		sc.ApplyClasspath(cp, entry.DetectedLanguageVersion)
		logging.Resolution("cache hit for %s (%d entries)", root, cp.Len())
		hits = append(hits, root)
	}
	if len(hits) > 0 {
		msg := fmt.Sprintf("Using cached classpath (%d projects, %dms)", len(hits), time.Since(started).Milliseconds())
		for _, root := range hits {
			c.publish(root, "importing", msg)
			c.publish(root, "ready", "ready")
		}
	}
	return nil
}

func toEntries(paths []string) []classpath.Entry {
	out := make([]classpath.Entry, len(paths))
	for i, p := range paths {
		out[i] = classpath.Entry{Path: p, Kind: classpath.EntryArchive}
	}
	return out
}

// EnsureResolved implements §4.5 steps 2 and 4: the lazy-dispatch entry
// point invoked on a root's first document open. A root already Active or
// currently Resolving shares the in-flight result via singleflight; a root
// that is Unresolved submits one resolution task to the bounded pool.
// Returns once root is Active, Evicted-but-retaining-a-classpath, or the
// resolution failed (err is non-nil only on the latter, or on ctx
// cancellation).
func (c *Coordinator) EnsureResolved(ctx context.Context, root classpath.Root) error {
	sc, ok := c.manager.Scope(root)
	if !ok {
		sc = c.manager.Register(root)
	}
	switch sc.State() {
	case scope.StateActive, scope.StateEvicted:
		return nil
	}

	resultCh := c.sf.DoChan(root.String(), func() (interface{}, error) {
		done := make(chan error, 1)
		c.pool.Go(func() error {
			err := c.resolveOne(c.poolCtx, root, sc)
			done <- err
			return err
		})
		return nil, <-done
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultCh:
		return res.Err
	}
}

// resolveOne runs §4.5 step 4's task body for one root. Every log line for
// this attempt carries the same task handle, so "resolving" and its
// matching "resolved"/"failed" line are provably the same task even when
// several roots are resolving concurrently in the pool.
func (c *Coordinator) resolveOne(ctx context.Context, root classpath.Root, sc *scope.Scope) error {
	if !sc.BeginResolving() {
		// Another caller's singleflight key collision lost the race to begin
		// resolving; treat as already-in-flight and let the shared result win.
		return nil
	}
	task := uuid.NewString()
	c.publish(root, "importing", fmt.Sprintf("Resolving classpath for %s", root))
	logging.Resolution("[%s] resolving classpath for %s", task, root)

	cp, err := c.provider.Resolve(ctx, root)
	if err != nil {
		sc.FailResolving()
		c.publish(root, "error", err.Error())
		logging.Resolution("[%s] resolution failed for %s: %v", task, root, err)
		return err
	}

	langVersion := c.fe.DetectLanguageVersion(cp)
	sc.ApplyClasspath(cp, langVersion)
	c.publish(root, "ready", fmt.Sprintf("Resolved %d classpath entries", cp.Len()))
	logging.Resolution("[%s] resolved %s: %d entries, language %q", task, root, cp.Len(), langVersion)

	c.recompileOpenDocuments(sc, root)
	if err := c.writeBackCache(root, cp, langVersion); err != nil {
		logging.Resolution("[%s] cache write-back failed for %s: %v", task, root, err)
	}

	if c.cfg.BackfillSiblingProjects {
		c.scheduleSiblingBackfill(root)
	}
	return nil
}

// recompileOpenDocuments implements §4.5 step 4's "recompile any documents
// currently open in the scope".
func (c *Coordinator) recompileOpenDocuments(sc *scope.Scope, root classpath.Root) {
	uris := sc.OpenDocumentURIs()
	if len(uris) == 0 {
		return
	}
	idx, ok := c.manager.Index(root)
	if !ok {
		return
	}
	if err := c.svc.EnsureCompiled(sc, idx, c.store, uris); err != nil {
		logging.Resolution("post-resolution recompile failed for %s: %v", root, err)
	}
}

// writeBackCache implements §4.5 step 5.
func (c *Coordinator) writeBackCache(root classpath.Root, cp classpath.Path, langVersion string) error {
	_, descriptorFiles := classpath.DetectDescriptor(root.String())
	entry, err := cache.BuildProjectEntry(root.String(), descriptorFiles, cp, langVersion)
	if err != nil {
		return err
	}

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if c.cacheF == nil {
		c.cacheF = &cache.File{WorkspaceRoot: c.workspaceRoot}
	}
	c.cacheF.Upsert(entry)
	return cache.Save(c.workspaceRoot, c.cacheF)
}

// scheduleSiblingBackfill implements §4.5 step 3: neighbouring subprojects
// declared by root's build descriptor are pre-resolved in the background,
// submitted into the same bounded pool once root's own resolution has
// finished. The pool has no priority levels: a queued sibling takes a slot
// exactly as a didOpen-triggered resolution does. Shutdown cancels them
// with every other pool task.
func (c *Coordinator) scheduleSiblingBackfill(root classpath.Root) {
	for _, dir := range classpath.SiblingDescriptors(root) {
		ok, _, _ := classpath.Qualifies(dir)
		if !ok {
			continue
		}
		sibling := classpath.Root(classpath.NormalizePath(dir))
		if sibling == root {
			continue
		}
		if sc, exists := c.manager.Scope(sibling); exists && sc.State() != scope.StateUnresolved {
			continue
		}
		sc := c.manager.Register(sibling)
		c.pool.Go(func() error {
			return c.resolveOne(c.poolCtx, sibling, sc)
		})
	}
}
