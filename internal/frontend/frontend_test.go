package frontend

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

const sample = `import a.b.C
import a.b.D
class X {
    C c
    def greet(String name) {
        println "hi " + name
    }
}
`

func TestCompileExtractsDeclarations(t *testing.T) {
	r := NewLineScanner().Compile(document.URI("file:///ws/X.groovy"), sample, classpath.Path{})
	assert.Contains(t, r.Defines, "X")
	assert.Contains(t, r.Defines, "c")
	assert.Contains(t, r.Defines, "greet")
}

func TestCompileFlagsUnusedImport(t *testing.T) {
	r := NewLineScanner().Compile(document.URI("file:///ws/X.groovy"), sample, classpath.Path{})
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, "unnecessary", r.Diagnostics[0].Code)
	assert.Contains(t, r.Diagnostics[0].Message, "a.b.D")
}

// TestCompileDiagnosticsSnapshot pins the exact shape of the diagnostics
// slice Compile emits for sample, so a future change to unused-import
// detection has to justify the diff rather than silently drift.
func TestCompileDiagnosticsSnapshot(t *testing.T) {
	r := NewLineScanner().Compile(document.URI("file:///ws/X.groovy"), sample, classpath.Path{})
	want := []Diagnostic{
		{
			Range:    document.Range{Start: document.Position{Line: 1, Column: 0}, End: document.Position{Line: 1, Column: 12}},
			Severity: "hint",
			Code:     "unnecessary",
			Message:  "unused import: a.b.D",
		},
	}
	if diff := cmp.Diff(want, r.Diagnostics); diff != "" {
		t.Fatalf("diagnostics snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileNodeAtResolvesMethod(t *testing.T) {
	r := NewLineScanner().Compile(document.URI("file:///ws/X.groovy"), sample, classpath.Path{})
	id, ok := r.Arena.NodeAt(document.Position{Line: 4, Column: 10})
	require.True(t, ok)
	n, _ := r.Arena.Node(id)
	assert.Equal(t, astindex.KindMethod, n.Kind)
}

func TestDetectLanguageVersion(t *testing.T) {
	cp := classpath.New([]classpath.Entry{{Path: "/libs/groovy-4.0.15.jar", Kind: classpath.EntryArchive}})
	assert.Equal(t, "4.0.15", NewLineScanner().DetectLanguageVersion(cp))
}

func TestDetectLanguageVersionAbsent(t *testing.T) {
	cp := classpath.New([]classpath.Entry{{Path: "/libs/other.jar", Kind: classpath.EntryArchive}})
	assert.Equal(t, "", NewLineScanner().DetectLanguageVersion(cp))
}
