// Package scope implements the Project Scope (§4.3): one compiled "world"
// per Project Root, holding its classpath, compiler handle, AST index
// slice, open-document set, and lifecycle state, guarded by a single
// RWMutex in the style of the teacher's BaseShardAgent
// (internal/core/shard_base.go) — a coarse state field flipped under lock,
// read-mostly accessors taking RLock.
package scope

import (
	"sync"
	"time"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

// State is the Project Scope lifecycle state (§4.3).
type State int

const (
	StateUnresolved State = iota
	StateResolving
	StateActive
	StateEvicted
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolving:
		return "resolving"
	case StateActive:
		return "active"
	case StateEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// Scope is one Project Scope: the unit of classpath resolution,
// compilation, and eviction.
type Scope struct {
	mu sync.RWMutex

	root classpath.Root

	state           State
	classpathHash   string
	cp              classpath.Path
	languageVersion string

	openDocs map[document.URI]struct{}

	lastAccess time.Time
	createdAt  time.Time

	compileGeneration uint64
}

// New creates an Unresolved scope rooted at root.
func New(root classpath.Root) *Scope {
	now := time.Now()
	return &Scope{
		root:       root,
		state:      StateUnresolved,
		openDocs:   make(map[document.URI]struct{}),
		lastAccess: now,
		createdAt:  now,
	}
}

func (s *Scope) Root() classpath.Root { return s.root }

func (s *Scope) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// BeginResolving transitions Unresolved/Evicted -> Resolving. Returns false
// if a resolution is already in flight (Resolving) — callers rely on the
// Resolution Coordinator's singleflight to prevent this in practice, but
// the scope enforces it independently as a safety net.
func (s *Scope) BeginResolving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateResolving {
		return false
	}
	s.state = StateResolving
	return true
}

// FailResolving reverts a Resolving scope back to Unresolved after a failed
// resolution attempt, so the next didOpen triggers another attempt rather
// than finding the scope stuck mid-resolution forever (§4.5 step 4: "on
// failure: leave Unresolved, emit a diagnostic event, schedule no automatic
// retry").
func (s *Scope) FailResolving() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateResolving {
		s.state = StateUnresolved
	}
}

// ApplyClasspath installs a newly resolved classpath and transitions to
// Active (§4.3's apply_classpath operation).
func (s *Scope) ApplyClasspath(cp classpath.Path, languageVersion string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp = cp
	s.classpathHash = cp.Hash()
	s.languageVersion = languageVersion
	s.state = StateActive
	s.compileGeneration++
}

// Classpath returns the currently installed classpath and its hash.
func (s *Scope) Classpath() (classpath.Path, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cp, s.classpathHash
}

func (s *Scope) LanguageVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.languageVersion
}

// CompileGeneration is bumped every time the classpath changes; the
// Compilation Service uses it to detect that a previously-built compiler
// handle is stale (§4.5).
func (s *Scope) CompileGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compileGeneration
}

// Invalidate forces re-resolution on next access without discarding the
// scope's identity (§4.3: a build descriptor changed underneath it).
func (s *Scope) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive {
		s.state = StateUnresolved
	}
}

// Touch records an access for LRU/TTL bookkeeping (§4.4).
func (s *Scope) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
}

func (s *Scope) LastAccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}

// OpenDocument / CloseDocument track the scope's open-document set, which
// the eviction comparator needs to prefer evicting scopes with none open.
func (s *Scope) OpenDocument(uri document.URI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openDocs[uri] = struct{}{}
	s.lastAccess = time.Now()
}

func (s *Scope) CloseDocument(uri document.URI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.openDocs, uri)
}

func (s *Scope) HasOpenDocuments() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.openDocs) > 0
}

func (s *Scope) OpenDocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.openDocs)
}

// OpenDocumentURIs returns every currently open document's URI, used by the
// Resolution Coordinator to recompile a scope's open buffers right after a
// classpath resolution succeeds (§4.5 step 4).
func (s *Scope) OpenDocumentURIs() []document.URI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]document.URI, 0, len(s.openDocs))
	for u := range s.openDocs {
		out = append(out, u)
	}
	return out
}

// Evict transitions to Evicted, releasing the heavy state a caller should
// already have dropped (compiler handle, AST index) — Scope itself only
// tracks lifecycle, not the heavy payload, which lives in the owning
// Scope Manager entry (§4.4).
func (s *Scope) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateEvicted
}

// Revive transitions an Evicted scope back to a usable state: Active if a
// classpath was already resolved before eviction (the common case — §4.3:
// "re-creating the compiler handle from the retained classpath"), or
// Unresolved if eviction happened before any resolution ever completed.
// The caller (Compilation Service's ensure_compiled) still has to rebuild
// the compiler handle and AST Index; Scope only flips its own lifecycle
// state here.
func (s *Scope) Revive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEvicted {
		return
	}
	if s.cp.Len() > 0 {
		s.state = StateActive
	} else {
		s.state = StateUnresolved
	}
}
