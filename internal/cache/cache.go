// Package cache implements the on-disk Classpath Cache File (§3, §6): a
// single YAML file per workspace root, written atomically (write-to-temp +
// rename) and validated per-project against build-descriptor stamps and a
// "enough entries still exist" sanity check.
//
// Atomic-write pattern grounded on the teacher's own
// cmd/nerd/cmd_init_scan.go ("tmpPath := path + \".tmp\"" / os.Rename).
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/errs"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
)

const currentVersion = 1
const cacheDirName = ".glsp"
const cacheFileName = "classpath-cache"

// Stamp is a build-descriptor file's recorded modification signature.
type Stamp struct {
	MTimeUnixNano int64 `yaml:"mtime"`
	Size          int64 `yaml:"size"`
}

func (s Stamp) String() string { return fmt.Sprintf("%d:%d", s.MTimeUnixNano, s.Size) }

// ProjectEntry is one project's cached resolution result.
type ProjectEntry struct {
	Root                     string            `yaml:"root"`
	BuildDescriptorStamps    map[string]Stamp  `yaml:"build_descriptor_stamps"`
	Classpath                []string          `yaml:"classpath"`
	DetectedLanguageVersion  string            `yaml:"detected_language_version,omitempty"`
}

// File is the full on-disk document (§6's layout table).
type File struct {
	Version       int            `yaml:"version"`
	WorkspaceRoot string         `yaml:"workspace_root"`
	Projects      []ProjectEntry `yaml:"projects"`
}

func pathFor(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, cacheDirName, cacheFileName)
}

// Load reads and parses the cache file for workspaceRoot. A missing file is
// not an error (returns an empty File); a malformed file is CacheCorrupt,
// per §7 — callers should discard it and re-discover from scratch.
func Load(workspaceRoot string) (*File, error) {
	path := pathFor(workspaceRoot)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &File{Version: currentVersion, WorkspaceRoot: workspaceRoot}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		logging.Cache("cache file %s is corrupt, discarding: %v", path, err)
		return &File{Version: currentVersion, WorkspaceRoot: workspaceRoot}, errs.Wrap(errs.KindCacheCorrupt, path, err)
	}
	return &f, nil
}

// Save atomically persists f under workspaceRoot (write-to-temp + rename,
// §8 invariant 9: never a torn write).
func Save(workspaceRoot string, f *File) error {
	path := pathFor(workspaceRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: mkdir: %w", err)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("cache: write temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("cache: rename: %w", err)
	}
	logging.Cache("wrote classpath cache to %s (%d projects)", path, len(f.Projects))
	return nil
}

// StampFile computes the current on-disk stamp for path.
func StampFile(path string) (Stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stamp{}, err
	}
	return Stamp{MTimeUnixNano: info.ModTime().UnixNano(), Size: info.Size()}, nil
}

// Valid reports whether entry is still valid: every recorded build
// descriptor must exist with its recorded stamp, and at least 5 (or all, if
// fewer than 5) of its classpath entries must still exist (§3).
func Valid(entry ProjectEntry) bool {
	for path, want := range entry.BuildDescriptorStamps {
		got, err := StampFile(path)
		if err != nil || got != want {
			return false
		}
	}
	required := 5
	if len(entry.Classpath) < required {
		required = len(entry.Classpath)
	}
	cp := classpath.New(toEntries(entry.Classpath))
	return cp.ExistingCount() >= required
}

func toEntries(paths []string) []classpath.Entry {
	out := make([]classpath.Entry, len(paths))
	for i, p := range paths {
		kind := classpath.EntryArchive
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			kind = classpath.EntryDirectory
		}
		out[i] = classpath.Entry{Path: p, Kind: kind}
	}
	return out
}

// FindProject returns the cached entry for root, if present.
func (f *File) FindProject(root string) (ProjectEntry, bool) {
	for _, p := range f.Projects {
		if p.Root == root {
			return p, true
		}
	}
	return ProjectEntry{}, false
}

// Upsert replaces (or appends) the entry for entry.Root.
func (f *File) Upsert(entry ProjectEntry) {
	for i, p := range f.Projects {
		if p.Root == entry.Root {
			f.Projects[i] = entry
			return
		}
	}
	f.Projects = append(f.Projects, entry)
}

// BuildProjectEntry stamps every descriptor path and packages a ready-to-
// persist ProjectEntry after a successful resolution (§4.5 step 5).
func BuildProjectEntry(root string, descriptorPaths []string, cp classpath.Path, languageVersion string) (ProjectEntry, error) {
	stamps := make(map[string]Stamp, len(descriptorPaths))
	for _, p := range descriptorPaths {
		s, err := StampFile(p)
		if err != nil {
			return ProjectEntry{}, fmt.Errorf("cache: stamp %s: %w", p, err)
		}
		stamps[p] = s
	}
	return ProjectEntry{
		Root:                    root,
		BuildDescriptorStamps:   stamps,
		Classpath:               cp.Strings(),
		DetectedLanguageVersion: languageVersion,
	}, nil
}
