// Package sourcelocator implements the §6 source-locator interface: the
// pluggable collaborator providers consult when a declaring node resolves
// outside any open scope's AST Index (an external classpath entry). This
// core never decompiles anything itself — decompilation and source-JAR
// extraction are explicit non-goals — it only persists whatever a caller
// hands it via RegisterDecompiled and serves it back, modeled on the
// teacher's own reference-counted store packages (internal/store) wired to
// modernc.org/sqlite rather than mattn/go-sqlite3, and its versioned-schema
// discipline (internal/store/migrations.go) trimmed to the one table §1's
// expansion describes.
package sourcelocator

import (
	"database/sql"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/errs"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/frontend"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/provider"
)

const schema = `
CREATE TABLE IF NOT EXISTS source_index (
	classpath_hash TEXT NOT NULL,
	fqcn           TEXT NOT NULL,
	uri            TEXT NOT NULL,
	content        TEXT NOT NULL,
	PRIMARY KEY (classpath_hash, fqcn)
);
`

type overlayEntry struct {
	uri  document.URI
	real bool
}

// Locator is the reference source-locator implementation: a small SQLite
// table for content that survives restarts, plus an in-memory overlay that
// enforces "never overwrites a real source indexed later" without a DB
// round trip on every lookup. It parses registered content with the same
// Frontend the Compilation Service uses, caching one Arena per URI, so
// find_class/method/field_location read off the same AST shape every other
// provider does.
type Locator struct {
	db *sql.DB
	fe frontend.Frontend

	mu      sync.RWMutex
	overlay map[string]overlayEntry // fqcn -> entry
	arenas  map[document.URI]*astindex.Arena
}

// New opens (creating if absent) the SQLite-backed decompiled-content cache
// at dbPath. dbPath may be ":memory:" for tests.
func New(dbPath string) (*Locator, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindCacheCorrupt, "open source index db", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.KindCacheCorrupt, "migrate source index schema", err)
	}
	logging.Cache("source index ready at %s", dbPath)
	return &Locator{
		db:      db,
		fe:      frontend.NewLineScanner(),
		overlay: make(map[string]overlayEntry),
		arenas:  make(map[document.URI]*astindex.Arena),
	}, nil
}

func (l *Locator) Close() error {
	return l.db.Close()
}

// fqcnURI renders the synthetic decompiled:// URI a fqcn maps to absent any
// real indexed source, e.g. "com.acme.Widget" -> "decompiled:///com/acme/Widget.groovy".
func fqcnURI(fqcn string) document.URI {
	return document.URI("decompiled:///" + strings.ReplaceAll(fqcn, ".", "/") + ".groovy")
}

func simpleName(fqcn string) string {
	if i := strings.LastIndex(fqcn, "."); i >= 0 {
		return fqcn[i+1:]
	}
	return fqcn
}

// SourceURI resolves fqcn to the URI of whatever source (real or
// decompiled) is currently indexed for it.
func (l *Locator) SourceURI(fqcn string) (document.URI, bool) {
	l.mu.RLock()
	if e, ok := l.overlay[fqcn]; ok {
		l.mu.RUnlock()
		return e.uri, true
	}
	l.mu.RUnlock()

	var uri string
	row := l.db.QueryRow(`SELECT uri FROM source_index WHERE fqcn = ? LIMIT 1`, fqcn)
	if err := row.Scan(&uri); err != nil {
		return "", false
	}
	return document.URI(uri), true
}

// ContentByURI returns the text indexed for uri, or ok=false if nothing is
// known about it.
func (l *Locator) ContentByURI(uri document.URI) (string, bool) {
	var content string
	row := l.db.QueryRow(`SELECT content FROM source_index WHERE uri = ? LIMIT 1`, string(uri))
	if err := row.Scan(&content); err != nil {
		return "", false
	}
	return content, true
}

// RegisterDecompiled persists text as the decompiled source for fqcn and
// returns its URI. If a real source has already been indexed for fqcn (via
// MarkReal), the existing real URI is returned unchanged and text is
// discarded — "never overwrites a real source indexed later".
func (l *Locator) RegisterDecompiled(fqcn, text string) (document.URI, error) {
	l.mu.Lock()
	if e, ok := l.overlay[fqcn]; ok && e.real {
		l.mu.Unlock()
		return e.uri, nil
	}
	uri := fqcnURI(fqcn)
	l.overlay[fqcn] = overlayEntry{uri: uri, real: false}
	delete(l.arenas, uri)
	l.mu.Unlock()

	if _, err := l.db.Exec(
		`INSERT INTO source_index (classpath_hash, fqcn, uri, content) VALUES ('', ?, ?, ?)
		 ON CONFLICT (classpath_hash, fqcn) DO UPDATE SET uri = excluded.uri, content = excluded.content`,
		fqcn, string(uri), text,
	); err != nil {
		return "", errs.Wrap(errs.KindCacheCorrupt, "register decompiled source", err)
	}
	return uri, nil
}

// MarkReal records that a real source for fqcn has been found at uri with
// the given content, keyed under cp's hash so a different classpath's
// resolution of the same fqcn doesn't collide. Once marked, RegisterDecompiled
// for the same fqcn is a no-op. Nothing in this core calls MarkReal today —
// decompilation and source-JAR extraction are out of scope — but it is the
// seam a future real source-JAR indexer binds to.
func (l *Locator) MarkReal(cp classpath.Path, fqcn string, uri document.URI, content string) error {
	l.mu.Lock()
	l.overlay[fqcn] = overlayEntry{uri: uri, real: true}
	delete(l.arenas, uri)
	l.mu.Unlock()

	if _, err := l.db.Exec(
		`INSERT INTO source_index (classpath_hash, fqcn, uri, content) VALUES (?, ?, ?, ?)
		 ON CONFLICT (classpath_hash, fqcn) DO UPDATE SET uri = excluded.uri, content = excluded.content`,
		cp.Hash(), fqcn, string(uri), content,
	); err != nil {
		return errs.Wrap(errs.KindCacheCorrupt, "index real source", err)
	}
	return nil
}

// arenaFor parses (or returns the cached parse of) the content registered
// for uri, so FindClassLocation et al. can walk it the same way every other
// provider walks a compiled arena.
func (l *Locator) arenaFor(uri document.URI) (*astindex.Arena, bool) {
	l.mu.RLock()
	if a, ok := l.arenas[uri]; ok {
		l.mu.RUnlock()
		return a, true
	}
	l.mu.RUnlock()

	content, ok := l.ContentByURI(uri)
	if !ok {
		return nil, false
	}
	result := l.fe.Compile(uri, content, classpath.Path{})

	l.mu.Lock()
	l.arenas[uri] = result.Arena
	l.mu.Unlock()
	return result.Arena, true
}

// FindClassLocation implements provider.SourceLocator.
func (l *Locator) FindClassLocation(fqcn string) (provider.Location, bool) {
	uri, ok := l.SourceURI(fqcn)
	if !ok {
		return provider.Location{}, false
	}
	arena, ok := l.arenaFor(uri)
	if !ok {
		return provider.Location{}, false
	}
	name := simpleName(fqcn)
	for _, n := range arena.NodesFor() {
		if isTypeKind(n.Kind) && n.Name == name && n.Range != nil {
			return provider.Location{URI: uri, Range: *n.Range}, true
		}
	}
	return provider.Location{}, false
}

// FindMethodLocation locates method in fqcn's indexed source. arity == -1
// matches any overload; otherwise only a method whose parsed parameter
// count equals arity matches.
func (l *Locator) FindMethodLocation(fqcn, method string, arity int) (provider.Location, bool) {
	uri, ok := l.SourceURI(fqcn)
	if !ok {
		return provider.Location{}, false
	}
	arena, ok := l.arenaFor(uri)
	if !ok {
		return provider.Location{}, false
	}
	for _, n := range arena.NodesFor() {
		if n.Kind != astindex.KindMethod && n.Kind != astindex.KindConstructor {
			continue
		}
		if n.Name != method || n.Range == nil {
			continue
		}
		if arity >= 0 && paramCount(n.Signature) != arity {
			continue
		}
		return provider.Location{URI: uri, Range: *n.Range}, true
	}
	return provider.Location{}, false
}

// FindFieldLocation locates a field or property named name in fqcn's
// indexed source.
func (l *Locator) FindFieldLocation(fqcn, name string) (provider.Location, bool) {
	uri, ok := l.SourceURI(fqcn)
	if !ok {
		return provider.Location{}, false
	}
	arena, ok := l.arenaFor(uri)
	if !ok {
		return provider.Location{}, false
	}
	for _, n := range arena.NodesFor() {
		if (n.Kind == astindex.KindField || n.Kind == astindex.KindProperty) && n.Name == name && n.Range != nil {
			return provider.Location{URI: uri, Range: *n.Range}, true
		}
	}
	return provider.Location{}, false
}

func isTypeKind(k astindex.Kind) bool {
	switch k {
	case astindex.KindClass, astindex.KindInterface, astindex.KindEnum, astindex.KindTrait:
		return true
	default:
		return false
	}
}

// paramCount counts the comma-separated parameters in sig's first
// parenthesized group. Signature text is whatever frontend.LineScanner
// recorded verbatim, e.g. "def greet(String name, int times)".
func paramCount(sig string) int {
	open := strings.Index(sig, "(")
	close := strings.LastIndex(sig, ")")
	if open < 0 || close <= open {
		return 0
	}
	inner := strings.TrimSpace(sig[open+1 : close])
	if inner == "" {
		return 0
	}
	return len(strings.Split(inner, ","))
}
