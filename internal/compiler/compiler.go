// Package compiler implements the Compilation Service (§4.6): per-scope
// ensure_compiled, the dependency-graph-driven invalidation, and the two
// computed diagnostic categories (unused import, override missing).
package compiler

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/depgraph"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/events"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/frontend"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

// handleKey identifies a compiler handle (§4.6: "keyed by (classpath-hash,
// language-version-tag)").
type handleKey struct {
	classpathHash string
	languageTag   string
}

// projectState is the per-root bookkeeping the Service keeps outside of
// scope.Scope and scopemanager.Manager's entry: the dependency graph, the
// active handle key, and per-URI "last compiled at generation/version" so
// ensure_compiled can skip unnecessary recompiles.
type projectState struct {
	mu           sync.Mutex
	graph        *depgraph.Graph
	handle       handleKey
	compiledAt   map[document.URI]compiledStamp
	globalSyms   map[string]symRef // name -> declaring (uri, node), last-compiled snapshot
}

type compiledStamp struct {
	generation uint64
	version    int
}

type symRef struct {
	uri document.URI
	id  astindex.NodeID
}

// Service is the Compilation Service. One Service is shared by every scope
// in the workspace; per-root state is created lazily.
type Service struct {
	fe  frontend.Frontend
	bus *events.Bus

	mu    sync.Mutex
	roots map[classpath.Root]*projectState
}

// New creates a Service over the given Frontend, publishing diagnostics and
// log events onto bus.
func New(fe frontend.Frontend, bus *events.Bus) *Service {
	return &Service{fe: fe, bus: bus, roots: make(map[classpath.Root]*projectState)}
}

func (s *Service) stateFor(root classpath.Root) *projectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.roots[root]
	if !ok {
		g, err := depgraph.NewGraph()
		if err != nil {
			// The schema/rules are a fixed literal; a failure here is a
			// programming error, not a runtime condition to recover from
			// per-request. Fall back to a graph-less state rather than
			// panicking the listener (§7 principle).
			logging.Compiler("failed to build dependency graph for %s: %v", root, err)
			g = nil
		}
		ps = &projectState{graph: g, compiledAt: make(map[document.URI]compiledStamp), globalSyms: make(map[string]symRef)}
		s.roots[root] = ps
	}
	return ps
}

// EnsureCompiled guarantees idx's AST for every uri in uris (plus every URI
// transitively affected through the dependency graph) is current with
// respect to store, recompiling only what changed (§4.3's ensure_compiled
// contract).
func (s *Service) EnsureCompiled(sc *scope.Scope, idx *astindex.Index, store *document.Store, uris []document.URI) error {
	if sc.State() == scope.StateEvicted {
		// §4.3: ensure_compiled revives an Evicted scope it observes,
		// recreating the compiler handle from the retained classpath.
		sc.Revive()
	}

	ps := s.stateFor(sc.Root())
	ps.mu.Lock()
	defer ps.mu.Unlock()

	cp, hash := sc.Classpath()
	langTag := sc.LanguageVersion()
	key := handleKey{classpathHash: hash, languageTag: langTag}
	generation := sc.CompileGeneration()
	handleChanged := key != ps.handle
	if handleChanged {
		ps.handle = key
	}

	work := s.collectWorkLocked(ps, idx, store, uris, generation, handleChanged)
	if len(work) == 0 {
		return nil
	}

	for _, uri := range work {
		text, ok := store.Contents(uri)
		if !ok {
			idx.Invalidate(uri)
			delete(ps.compiledAt, uri)
			if ps.graph != nil {
				_ = ps.graph.RemoveFile(uri)
			}
			continue
		}
		result := s.fe.Compile(uri, text, cp)
		idx.Set(uri, result.Arena)
		if ps.graph != nil {
			if err := ps.graph.ReplaceFileFacts(uri, result.Defines, result.References); err != nil {
				return fmt.Errorf("compiler: replace facts for %s: %w", uri, err)
			}
		}
		version, _ := store.Version(uri)
		ps.compiledAt[uri] = compiledStamp{generation: generation, version: version}

		diags := diagnosticsFor(result)
		s.publishDiagnostics(uri, diags)
	}

	s.resolveDeclaringNodesLocked(ps, idx)
	return nil
}

// collectWorkLocked determines which URIs actually need recompiling: every
// requested URI whose version or handle changed since it was last
// compiled, plus everything the dependency graph says is transitively
// affected by a changed URI (§4.6's dependency graph contract).
func (s *Service) collectWorkLocked(ps *projectState, idx *astindex.Index, store *document.Store, uris []document.URI, generation uint64, handleChanged bool) []document.URI {
	seen := make(map[document.URI]bool)
	var queue []document.URI

	add := func(u document.URI) {
		if !seen[u] {
			seen[u] = true
			queue = append(queue, u)
		}
	}

	for _, uri := range uris {
		version, _ := store.Version(uri)
		stamp, compiled := ps.compiledAt[uri]
		_, hasArena := idx.Arena(uri)
		if handleChanged || !compiled || !hasArena || stamp.generation != generation || stamp.version != version {
			add(uri)
		}
	}

	if ps.graph != nil {
		for _, uri := range append([]document.URI(nil), queue...) {
			affected, err := ps.graph.AffectedBy(uri)
			if err != nil {
				continue
			}
			for _, dep := range affected {
				if _, ok := idx.Arena(dep); ok {
					add(dep)
				}
			}
		}
	}

	return queue
}

// resolveDeclaringNodesLocked rebuilds the per-root global symbol table
// from every currently-compiled arena and stamps every Identifier node's
// DeclaringNode with the first matching declaration, enabling definition/
// references/rename to cross file boundaries within one scope (§4.7).
func (s *Service) resolveDeclaringNodesLocked(ps *projectState, idx *astindex.Index) {
	syms := make(map[string]symRef)
	for _, uri := range idx.URIs() {
		arena, ok := idx.Arena(uri)
		if !ok {
			continue
		}
		for _, n := range arena.NodesFor() {
			if isDeclarationKind(n.Kind) {
				if _, exists := syms[n.Name]; !exists {
					syms[n.Name] = symRef{uri: uri, id: n.ID}
				}
			}
		}
	}
	ps.globalSyms = syms

	for _, uri := range idx.URIs() {
		arena, ok := idx.Arena(uri)
		if !ok {
			continue
		}
		for i, n := range arena.Nodes {
			if n.Kind != astindex.KindIdentifier {
				continue
			}
			if ref, found := syms[n.Name]; found && !(ref.uri == uri && ref.id == n.ID) {
				arena.Nodes[i].DeclaringNode = ref.id
				arena.Nodes[i].DeclaringURI = ref.uri
			}
		}
	}
}

func isDeclarationKind(k astindex.Kind) bool {
	switch k {
	case astindex.KindClass, astindex.KindInterface, astindex.KindEnum, astindex.KindTrait,
		astindex.KindMethod, astindex.KindConstructor, astindex.KindField, astindex.KindProperty,
		astindex.KindVariable:
		return true
	default:
		return false
	}
}

func (s *Service) publishDiagnostics(uri document.URI, diags []events.Diagnostic) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Kind: events.KindDiagnosticsPublished, URI: uri, Diagnostics: diags})
}

// diagnosticsFor combines the front end's own diagnostics (unused imports
// among them) with the override-missing diagnostics computed here (§4.6).
func diagnosticsFor(r frontend.Result) []events.Diagnostic {
	out := make([]events.Diagnostic, 0, len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		out = append(out, events.Diagnostic{Range: d.Range, Severity: d.Severity, Code: d.Code, Message: d.Message, Source: "groovy"})
	}
	out = append(out, overrideMissingDiagnostics(r.Arena)...)
	return out
}

// commonOverridableNames are the well-known java.lang.Object methods a
// Groovy class override without an explicit @Override is flagged for; a
// full semantic override check needs the real compiler's supertype
// resolution, which is out of scope (§1) — this heuristic is documented as
// a simplification in DESIGN.md.
var commonOverridableNames = map[string]bool{"toString": true, "equals": true, "hashCode": true}

func overrideMissingDiagnostics(arena *astindex.Arena) []events.Diagnostic {
	if arena == nil {
		return nil
	}
	var out []events.Diagnostic
	for _, n := range arena.NodesFor() {
		if n.Kind != astindex.KindMethod || n.Range == nil {
			continue
		}
		if !commonOverridableNames[n.Name] {
			continue
		}
		if hasOverrideAnnotation(arena, n) {
			continue
		}
		out = append(out, events.Diagnostic{
			Range:    *n.Range,
			Severity: "warning",
			Code:     "override-missing",
			Message:  fmt.Sprintf("%s overrides a supertype method without @Override", n.Name),
			Source:   "groovy",
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.Start.Line < out[j].Range.Start.Line })
	return out
}

func hasOverrideAnnotation(arena *astindex.Arena, method astindex.Node) bool {
	parent, ok := arena.Node(method.Parent)
	if !ok {
		return false
	}
	for _, childID := range parent.Children {
		child, ok := arena.Node(childID)
		if !ok || child.Kind != astindex.KindAnnotation {
			continue
		}
		if strings.EqualFold(child.Name, "@Override") && child.Range != nil && method.Range != nil && child.Range.Start.Line == method.Range.Start.Line-1 {
			return true
		}
	}
	return false
}

// Invalidate drops one URI's compiled result so the next EnsureCompiled
// call rebuilds it even if its version is unchanged (§4.3's invalidate
// operation, used when a dependency elsewhere forces a rebuild outside the
// version-driven path).
func (s *Service) Invalidate(root classpath.Root, uri document.URI) {
	ps := s.stateFor(root)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.compiledAt, uri)
}

// GlobalSymbol looks up name in root's last-resolved cross-file symbol
// table, used by completion/hover to offer declarations from files not
// currently queried.
func (s *Service) GlobalSymbol(root classpath.Root, name string) (document.URI, astindex.NodeID, bool) {
	ps := s.stateFor(root)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ref, ok := ps.globalSyms[name]
	return ref.uri, ref.id, ok
}

// Symbols returns every declared name currently known for root, used by
// completion's "scope's symbol universe" (§4.7).
func (s *Service) Symbols(root classpath.Root) []string {
	ps := s.stateFor(root)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]string, 0, len(ps.globalSyms))
	for name := range ps.globalSyms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DropProject releases a root's dependency graph and bookkeeping, called on
// scope eviction (§4.3: an evicted scope "has no AST Index, no compiler
// handle").
func (s *Service) DropProject(root classpath.Root) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roots, root)
}
