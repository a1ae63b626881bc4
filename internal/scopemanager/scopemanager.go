// Package scopemanager implements the Scope Manager (§4.4): the registry
// that owns every Project Scope, routes a document URI to its owning scope
// by longest-matching Project Root prefix, and runs the background TTL and
// memory-pressure eviction sweeps.
package scopemanager

import (
	"container/heap"
	"runtime"
	"sync"
	"time"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/config"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

// entry pairs a Scope with the heavy per-scope payload the manager (not the
// Scope itself) owns: its AST arena index. Kept separate from scope.Scope
// so the Scope Manager can drop this payload on eviction without the Scope
// type needing to know about astindex.
type entry struct {
	s     *scope.Scope
	index *astindex.Index
}

// Counts carries the lifecycle-state cardinalities §4.4 exposes for client
// memory reporting. Resolving counts as Unresolved: the classpath is not
// applied yet, so requests in that scope are still served best-effort.
type Counts struct {
	Active     int
	Evicted    int
	Unresolved int
}

// Sample is one memory-pressure probe reading, handed to the onSample
// callback so the entry point can publish a memoryUsage notification.
type Sample struct {
	HeapUsed uint64
	HeapSys  uint64
	Counts   Counts
}

// Manager is the Scope Manager: a registry of Project Scopes keyed by root,
// plus the eviction scheduler.
type Manager struct {
	mu       sync.RWMutex
	entries  map[classpath.Root]*entry
	cfg      config.Config
	onEvict  func(root classpath.Root)
	onSample func(Sample)
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates an empty Manager. onEvict, if non-nil, is invoked (outside
// the manager's lock) whenever a scope is evicted, so callers can release
// compiler handles and publish an eviction event. onSample, if non-nil, is
// invoked on every memory-pressure probe with the reading taken.
func New(cfg config.Config, onEvict func(root classpath.Root), onSample func(Sample)) *Manager {
	return &Manager{
		entries:  make(map[classpath.Root]*entry),
		cfg:      cfg,
		onEvict:  onEvict,
		onSample: onSample,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Register adds a newly discovered Project Root, returning its Scope. If
// root is already registered, the existing Scope is returned unchanged.
func (m *Manager) Register(root classpath.Root) *scope.Scope {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[root]; ok {
		return e.s
	}
	s := scope.New(root)
	m.entries[root] = &entry{s: s, index: astindex.NewIndex()}
	logging.ScopeMgr("registered project root %s", root)
	return s
}

// Lookup returns the scope owning uri by longest-matching Project Root
// prefix (§4.4's routing rule), along with its AST index.
func (m *Manager) Lookup(uri document.URI) (*scope.Scope, *astindex.Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path := classpath.NormalizePath(uri.Path())
	var bestEntry *entry
	bestLen := -1
	for root, e := range m.entries {
		if !classpath.IsUnderRoot(string(root), path) {
			continue
		}
		if l := len(string(root)); l > bestLen {
			bestLen = l
			bestEntry = e
		}
	}
	if bestEntry == nil {
		return nil, nil, false
	}
	return bestEntry.s, bestEntry.index, true
}

// Index returns the AST index for root, if root is registered.
func (m *Manager) Index(root classpath.Root) (*astindex.Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[root]
	if !ok {
		return nil, false
	}
	return e.index, true
}

// Scope returns the Scope registered for root exactly (not by prefix match),
// used by the Resolution Coordinator once a root has already been chosen.
func (m *Manager) Scope(root classpath.Root) (*scope.Scope, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[root]
	if !ok {
		return nil, false
	}
	return e.s, true
}

// Roots returns every registered Project Root.
func (m *Manager) Roots() []classpath.Root {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]classpath.Root, 0, len(m.entries))
	for root := range m.entries {
		out = append(out, root)
	}
	return out
}

// Count returns the number of registered scopes (active or evicted).
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// StateCounts returns the (active, evicted, unresolved) cardinalities §4.4
// exposes on demand.
func (m *Manager) StateCounts() Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var c Counts
	for _, e := range m.entries {
		switch e.s.State() {
		case scope.StateActive:
			c.Active++
		case scope.StateEvicted:
			c.Evicted++
		default:
			c.Unresolved++
		}
	}
	return c
}

// evictCandidate ranks one entry for eviction selection.
type evictCandidate struct {
	root          classpath.Root
	hasOpenDocs   bool
	lastAccess    time.Time
}

// evictionHeap orders candidates so the best eviction victim sorts first:
// scopes with no open documents strictly ahead of scopes with some open,
// and within each group, oldest lastAccess first (§4.4, resolving the
// spec's eviction-tie Open Question in favor of the "never evict a scope
// backing an open buffer while any other candidate exists" rule).
type evictionHeap []evictCandidate

func (h evictionHeap) Len() int { return len(h) }
func (h evictionHeap) Less(i, j int) bool {
	if h[i].hasOpenDocs != h[j].hasOpenDocs {
		return !h[i].hasOpenDocs // no-open-docs sorts first
	}
	return h[i].lastAccess.Before(h[j].lastAccess)
}
func (h evictionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *evictionHeap) Push(x any)        { *h = append(*h, x.(evictCandidate)) }
func (h *evictionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// sweepTTL evicts every Active scope whose lastAccess exceeds the
// configured TTL. A zero TTL disables this sweep entirely.
func (m *Manager) sweepTTL() {
	ttl := m.cfg.TTL()
	if ttl <= 0 {
		return
	}
	now := time.Now()
	var toEvict []classpath.Root

	m.mu.RLock()
	for root, e := range m.entries {
		if e.s.State() != scope.StateActive {
			continue
		}
		if now.Sub(e.s.LastAccess()) >= ttl {
			toEvict = append(toEvict, root)
		}
	}
	m.mu.RUnlock()

	for _, root := range toEvict {
		m.Evict(root)
	}
}

// sweepMemoryPressure evicts the worst Active candidate (per evictionHeap's
// ordering) when heap usage is at or above the configured threshold
// fraction of the runtime's reported system memory. Each probe evicts at
// most one scope, so eviction continues probe by probe until usage drops
// back under the threshold or no Active scope remains.
func (m *Manager) sweepMemoryPressure() {
	threshold := m.cfg.MemoryPressureThreshold
	if threshold <= 0 || threshold >= 1 {
		return
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.Sys == 0 {
		return
	}
	if m.onSample != nil {
		m.onSample(Sample{HeapUsed: ms.HeapAlloc, HeapSys: ms.Sys, Counts: m.StateCounts()})
	}
	usage := float64(ms.HeapAlloc) / float64(ms.Sys)
	if usage < threshold {
		return
	}

	m.mu.RLock()
	h := make(evictionHeap, 0, len(m.entries))
	for root, e := range m.entries {
		if e.s.State() != scope.StateActive {
			continue
		}
		h = append(h, evictCandidate{root: root, hasOpenDocs: e.s.HasOpenDocuments(), lastAccess: e.s.LastAccess()})
	}
	m.mu.RUnlock()

	heap.Init(&h)
	// Evict only the single worst candidate per sweep, so a single spike
	// doesn't thrash every open project at once.
	budget := 1
	for i := 0; i < budget && h.Len() > 0; i++ {
		c := heap.Pop(&h).(evictCandidate)
		m.Evict(c.root)
	}
}

// Evict transitions root's scope to Evicted and drops its AST index.
func (m *Manager) Evict(root classpath.Root) {
	m.mu.Lock()
	e, ok := m.entries[root]
	if !ok {
		m.mu.Unlock()
		return
	}
	e.s.Evict()
	for _, uri := range e.index.URIs() {
		e.index.Invalidate(uri)
	}
	m.mu.Unlock()

	logging.ScopeMgr("evicted project root %s", root)
	if m.onEvict != nil {
		m.onEvict(root)
	}
}

// Run starts the background TTL and memory-pressure sweep loops; it
// returns once Stop is called.
func (m *Manager) Run() {
	defer close(m.doneCh)
	ttlTick := time.NewTicker(m.tickInterval())
	defer ttlTick.Stop()
	memTick := time.NewTicker(m.memoryInterval())
	defer memTick.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ttlTick.C:
			m.sweepTTL()
		case <-memTick.C:
			m.sweepMemoryPressure()
		}
	}
}

func (m *Manager) tickInterval() time.Duration {
	if m.cfg.EvictionTickInterval > 0 {
		return m.cfg.EvictionTickInterval
	}
	return 30 * time.Second
}

func (m *Manager) memoryInterval() time.Duration {
	if m.cfg.MemoryPressureSampleInterval > 0 {
		return m.cfg.MemoryPressureSampleInterval
	}
	return 5 * time.Second
}

// Stop halts the background sweep loops and waits for Run to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}
