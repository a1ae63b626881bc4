// Package classpath defines the Classpath and Project Root data model (§3):
// ordered, deduplicated lists of archive/directory entries, and the
// recognized-descriptor / recognized-source-directory rules that qualify a
// directory as a Project Root.
package classpath

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EntryKind distinguishes an archive file from a class-output directory.
type EntryKind int

const (
	EntryArchive EntryKind = iota
	EntryDirectory
)

// Entry is one classpath element.
type Entry struct {
	Path string
	Kind EntryKind
}

// Path is an ordered, deduplicated classpath. Order matters for name
// resolution tie-breaks (§3); duplicates are removed preserving first
// occurrence.
type Path struct {
	entries []Entry
}

// New builds a Path from raw entries, deduplicating by Path while
// preserving first-occurrence order.
func New(entries []Entry) Path {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if seen[e.Path] {
			continue
		}
		seen[e.Path] = true
		out = append(out, e)
	}
	return Path{entries: out}
}

// Entries returns the ordered, deduplicated entry list. Callers must not
// mutate the returned slice.
func (p Path) Entries() []Entry { return p.entries }

// Len returns the number of entries.
func (p Path) Len() int { return len(p.entries) }

// Strings returns the plain path strings, in classpath order.
func (p Path) Strings() []string {
	out := make([]string, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Path
	}
	return out
}

// Hash is an order-independent content key: a sorted copy's SHA-256, hex
// encoded. Two permutations of the same entries hash identically (§8
// invariant 5), which is exactly what the reference-counted source-JAR
// index cache keys on (§5).
func (p Path) Hash() string {
	sorted := append([]Entry(nil), p.entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	h := sha256.New()
	for _, e := range sorted {
		h.Write([]byte(e.Path))
		h.Write([]byte{byte(e.Kind)})
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ExistingCount returns how many entries still exist on disk — used by the
// cache validity check (§3, §8 invariant 6-adjacent sanity check).
func (p Path) ExistingCount() int {
	n := 0
	for _, e := range p.entries {
		if _, err := os.Stat(e.Path); err == nil {
			n++
		}
	}
	return n
}

// Root is an absolute filesystem path recognized as a Project Root (§3).
type Root string

func (r Root) String() string { return string(r) }

// Descriptor identifies one of the two recognized build-tool descriptors.
type Descriptor int

const (
	DescriptorNone Descriptor = iota
	// DescriptorScripted: directory-based script files (build-tool A).
	DescriptorScripted
	// DescriptorManifest: an XML manifest (build-tool B).
	DescriptorManifest
)

var scriptedDescriptorNames = []string{"build.gradle", "build.gradle.kts", "settings.gradle", "settings.gradle.kts"}

const manifestDescriptorName = "pom.xml"

var recognizedSourceDirs = []string{
	filepath.Join("src", "main", "groovy"),
	filepath.Join("src", "test", "groovy"),
	filepath.Join("src", "main", "java"),
	filepath.Join("src", "test", "java"),
}

// DetectDescriptor reports which recognized build descriptor (if any) lives
// directly in dir, and the descriptor file paths found.
func DetectDescriptor(dir string) (Descriptor, []string) {
	var found []string
	for _, name := range scriptedDescriptorNames {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			found = append(found, p)
		}
	}
	if len(found) > 0 {
		return DescriptorScripted, found
	}
	p := filepath.Join(dir, manifestDescriptorName)
	if fileExists(p) {
		return DescriptorManifest, []string{p}
	}
	return DescriptorNone, nil
}

// HasRecognizedSourceDir reports whether dir contains at least one of the
// recognized source directories (§3: "a root qualifies only if...").
func HasRecognizedSourceDir(dir string) bool {
	for _, rel := range recognizedSourceDirs {
		info, err := os.Stat(filepath.Join(dir, rel))
		if err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// Qualifies reports whether dir is a valid Project Root: it has a
// recognized descriptor AND at least one recognized source directory.
func Qualifies(dir string) (bool, Descriptor, []string) {
	desc, files := DetectDescriptor(dir)
	if desc == DescriptorNone {
		return false, DescriptorNone, nil
	}
	if !HasRecognizedSourceDir(dir) {
		return false, DescriptorNone, nil
	}
	return true, desc, files
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// NormalizePath returns an absolute, cleaned, forward-slash path suitable
// for prefix comparisons (used by the Scope Manager's routing rule, §4.4).
func NormalizePath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	return filepath.ToSlash(filepath.Clean(abs))
}

// IsUnderRoot reports whether path is root itself or nested under it, after
// normalization.
func IsUnderRoot(root, path string) bool {
	r := NormalizePath(root)
	p := NormalizePath(path)
	if p == r {
		return true
	}
	return strings.HasPrefix(p, r+"/")
}
