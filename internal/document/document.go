// Package document implements the File Contents Store (§4.1): the single
// source of truth for what the compiler sees for each open or on-disk URI.
package document

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf16"

	"github.com/google/uuid"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/errs"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
)

// URI identifies a document. Schemes in use: file, decompiled, jar, jrt.
type URI string

// Scheme returns the URI's scheme, or "" if it has none.
func (u URI) Scheme() string {
	if i := strings.Index(string(u), "://"); i >= 0 {
		return string(u)[:i]
	}
	return ""
}

// Path strips the scheme, returning a plain filesystem-shaped path.
func (u URI) Path() string {
	s := string(u)
	if i := strings.Index(s, "://"); i >= 0 {
		return s[i+3:]
	}
	return s
}

// Position is 0-based line and a UTF-16 code-unit column, per the editor
// protocol (§4.1).
type Position struct {
	Line   int
	Column int
}

// Range is a half-open [Start, End) span over a document's text.
type Range struct {
	Start Position
	End   Position
}

type entry struct {
	text    string
	isOpen  bool
	changed bool
	version int

	// correlationID is a fresh token stamped on every open, so two log lines
	// about "version 3 of this document" across the File Contents Store and
	// the Compilation Service are provably about the same open, not just the
	// same version number recycled after a close/reopen.
	correlationID string
}

// Store is the single, thread-safe owner of in-memory document text.
type Store struct {
	mu      sync.RWMutex
	entries map[URI]*entry

	// seq is a monotonically increasing counter advanced only by NextSeq;
	// mutations do not stamp it. Per-URI ordering (§5, ordering guarantee 1)
	// comes from the transport handling notifications inline instead.
	seq atomic.Uint64
}

func NewStore() *Store {
	return &Store{entries: make(map[URI]*entry)}
}

// NextSeq returns the next per-store sequence number. The transport does
// not call it; it keeps arrival order by running notifications on its
// single reader goroutine (see transport.Server.Serve).
func (s *Store) NextSeq() uint64 {
	return s.seq.Add(1)
}

// Open inserts or replaces a document, marking it open and changed. Each
// open is stamped with a fresh correlation token (see CorrelationID).
func (s *Store) Open(uri URI, text string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.entries[uri] = &entry{text: text, isOpen: true, changed: true, version: version, correlationID: id}
	logging.Document("opened %s (version %d, %d bytes, correlation %s)", uri, version, len(text), id)
}

// ChangeFull replaces the text of an open document wholesale.
func (s *Store) ChangeFull(uri URI, newText string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[uri]
	if !ok || !e.isOpen {
		return errs.New(errs.KindUriNotOpen, string(uri))
	}
	e.text = newText
	e.changed = true
	e.version = version
	return nil
}

// ChangeRange applies a range edit using UTF-16 code-unit offsets. A nil
// rng replaces the whole document, per §4.1's policy.
func (s *Store) ChangeRange(uri URI, rng *Range, replacement string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[uri]
	if !ok || !e.isOpen {
		return errs.New(errs.KindUriNotOpen, string(uri))
	}
	if rng == nil {
		e.text = replacement
	} else {
		e.text = applyRangeEdit(e.text, *rng, replacement)
	}
	e.changed = true
	e.version = version
	return nil
}

// applyRangeEdit rewrites text[start:end) with replacement, treating
// positions as 0-based line + UTF-16 column offsets.
func applyRangeEdit(text string, rng Range, replacement string) string {
	lines := strings.Split(text, "\n")
	startOff := lineColToUTF16Offset(lines, rng.Start)
	endOff := lineColToUTF16Offset(lines, rng.End)

	u16 := utf16.Encode([]rune(text))
	if startOff > len(u16) {
		startOff = len(u16)
	}
	if endOff > len(u16) {
		endOff = len(u16)
	}
	if endOff < startOff {
		endOff = startOff
	}

	var out []uint16
	out = append(out, u16[:startOff]...)
	out = append(out, utf16.Encode([]rune(replacement))...)
	out = append(out, u16[endOff:]...)
	return string(utf16.Decode(out))
}

// lineColToUTF16Offset converts a (line, UTF-16 column) position into an
// absolute UTF-16 code-unit offset into the joined text.
func lineColToUTF16Offset(lines []string, pos Position) int {
	offset := 0
	for i := 0; i < pos.Line && i < len(lines); i++ {
		offset += len(utf16.Encode([]rune(lines[i]))) + 1 // +1 for the '\n'
	}
	if pos.Line < len(lines) {
		colUnits := utf16.Encode([]rune(lines[pos.Line]))
		col := pos.Column
		if col > len(colUnits) {
			col = len(colUnits)
		}
		offset += col
	}
	return offset
}

// Close drops in-memory text; future reads fall back to the filesystem.
func (s *Store) Close(uri URI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[uri]; ok {
		e.isOpen = false
		e.text = ""
	}
	logging.Document("closed %s", uri)
}

// Contents returns the current text for uri: in-memory if open, otherwise a
// filesystem read; ("", false) if both miss.
func (s *Store) Contents(uri URI) (string, bool) {
	s.mu.RLock()
	e, ok := s.entries[uri]
	if ok && e.isOpen {
		text := e.text
		s.mu.RUnlock()
		return text, true
	}
	s.mu.RUnlock()

	if uri.Scheme() != "" && uri.Scheme() != "file" {
		return "", false
	}
	data, err := os.ReadFile(uri.Path())
	if err != nil {
		return "", false
	}
	return string(data), true
}

// IsOpen reports whether uri currently has an open in-memory buffer.
func (s *Store) IsOpen(uri URI) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[uri]
	return ok && e.isOpen
}

// Version returns the document's current version counter.
func (s *Store) Version(uri URI) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[uri]
	if !ok {
		return 0, false
	}
	return e.version, true
}

// CorrelationID returns the token stamped on uri's current open, so two log
// lines naming the same version can be tied back to the same open/close
// cycle rather than just the same recycled version number.
func (s *Store) CorrelationID(uri URI) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[uri]
	if !ok || !e.isOpen {
		return "", false
	}
	return e.correlationID, true
}

// ResetChanged clears the "changed" flag for the given URIs, or for every
// document if uris is empty.
func (s *Store) ResetChanged(uris ...URI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(uris) == 0 {
		for _, e := range s.entries {
			e.changed = false
		}
		return
	}
	for _, u := range uris {
		if e, ok := s.entries[u]; ok {
			e.changed = false
		}
	}
}

// HasChangedUnder reports whether any changed URI's path starts with root;
// all changes count if root is "".
func (s *Store) HasChangedUnder(root string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for uri, e := range s.entries {
		if !e.changed {
			continue
		}
		if root == "" || strings.HasPrefix(uri.Path(), root) {
			return true
		}
	}
	return false
}

// ChangedUnder returns every changed URI whose path starts with root (all
// changed URIs if root is "").
func (s *Store) ChangedUnder(root string) []URI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []URI
	for uri, e := range s.entries {
		if !e.changed {
			continue
		}
		if root == "" || strings.HasPrefix(uri.Path(), root) {
			out = append(out, uri)
		}
	}
	return out
}
