// Discovery implements the fast phase of the two-phase pipeline (§1, §4.5
// "Inputs at boot"): a single filesystem walk of the workspace root that
// finds every qualifying Project Root without touching a build tool or a
// classpath provider. The slow phase (classpath resolution) is entirely the
// Resolution Coordinator's job (internal/resolution) and never runs here.
package classpath

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// defaultRejectedDirs are directories the walk never descends into, even
// before any user-configured rejectedPackages (§6) are applied — build
// output and VCS metadata can contain arbitrarily deep trees of irrelevant
// files.
var defaultRejectedDirs = map[string]bool{
	".git":         true,
	".glsp":        true,
	"node_modules": true,
	"build":        true,
	"target":       true,
	".gradle":      true,
	"out":          true,
}

// DiscoverRoots walks workspaceRoot and returns every qualifying Project
// Root (§3), sorted so discovery order is deterministic across restarts.
// rejectedPackages (§6's initialization option) additionally prunes
// directory names from the walk.
func DiscoverRoots(workspaceRoot string, rejectedPackages []string) []Root {
	rejected := make(map[string]bool, len(defaultRejectedDirs)+len(rejectedPackages))
	for k, v := range defaultRejectedDirs {
		rejected[k] = v
	}
	for _, p := range rejectedPackages {
		rejected[p] = true
	}

	var roots []string
	_ = filepath.Walk(workspaceRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best-effort: an unreadable subtree is skipped, not fatal
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if rejected[base] && path != workspaceRoot {
			return filepath.SkipDir
		}
		if ok, _, _ := Qualifies(path); ok {
			roots = append(roots, path)
			// A Project Root's own subdirectories may contain nested
			// modules (sibling subprojects, §4.5 step 3) so the walk
			// continues underneath it rather than skipping.
		}
		return nil
	})

	sort.Strings(roots)
	out := make([]Root, len(roots))
	for i, r := range roots {
		out[i] = Root(NormalizePath(r))
	}
	return out
}

// WorkspaceDefaultRoot is the synthetic scope used when a document's path is
// inside the workspace but under no discovered Project Root (§4.4 routing
// rule, step 3).
func WorkspaceDefaultRoot(workspaceRoot string) Root {
	return Root(NormalizePath(workspaceRoot))
}

// SiblingDescriptors returns the build-descriptor-declared subproject
// directories neighbouring root, read straight out of its descriptor file
// (best-effort text scan, since the out-of-scope build-tool front end is
// the only thing that truly understands these files) — feeds sibling
// backfill (§4.5 step 3).
func SiblingDescriptors(root Root) []string {
	desc, files := DetectDescriptor(string(root))
	if desc != DescriptorScripted {
		return nil
	}
	var out []string
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "include ") && !strings.HasPrefix(line, "include(") {
				continue
			}
			for _, tok := range strings.FieldsFunc(line, func(r rune) bool {
				return r == '\'' || r == '"' || r == ',' || r == '(' || r == ')'
			}) {
				tok = strings.TrimSpace(tok)
				if strings.HasPrefix(tok, ":") {
					rel := strings.ReplaceAll(strings.TrimPrefix(tok, ":"), ":", string(filepath.Separator))
					out = append(out, filepath.Join(string(root), rel))
				}
			}
		}
	}
	return out
}
