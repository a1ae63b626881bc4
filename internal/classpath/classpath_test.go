package classpath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupPreservesFirstOccurrence(t *testing.T) {
	p := New([]Entry{
		{Path: "/a.jar", Kind: EntryArchive},
		{Path: "/b.jar", Kind: EntryArchive},
		{Path: "/a.jar", Kind: EntryArchive},
	})
	assert.Equal(t, []string{"/a.jar", "/b.jar"}, p.Strings())
}

func TestHashIsPermutationIndependent(t *testing.T) {
	p1 := New([]Entry{{Path: "/a.jar"}, {Path: "/b.jar"}})
	p2 := New([]Entry{{Path: "/b.jar"}, {Path: "/a.jar"}})
	assert.Equal(t, p1.Hash(), p2.Hash())
}

func TestHashDiffersOnDifferentContent(t *testing.T) {
	p1 := New([]Entry{{Path: "/a.jar"}})
	p2 := New([]Entry{{Path: "/a.jar"}, {Path: "/b.jar"}})
	assert.NotEqual(t, p1.Hash(), p2.Hash())
}

func TestQualifiesRequiresDescriptorAndSourceDir(t *testing.T) {
	dir := t.TempDir()
	ok, _, _ := Qualifies(dir)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.gradle"), []byte(""), 0o644))
	ok, _, _ = Qualifies(dir) // still missing source dir
	assert.False(t, ok)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "main", "groovy"), 0o755))
	ok, desc, files := Qualifies(dir)
	assert.True(t, ok)
	assert.Equal(t, DescriptorScripted, desc)
	assert.Len(t, files, 1)
}

func TestQualifiesManifestDescriptor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pom.xml"), []byte(""), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "test", "java"), 0o755))
	ok, desc, _ := Qualifies(dir)
	assert.True(t, ok)
	assert.Equal(t, DescriptorManifest, desc)
}

func TestIsUnderRoot(t *testing.T) {
	assert.True(t, IsUnderRoot("/ws/a", "/ws/a/sub/Foo.groovy"))
	assert.True(t, IsUnderRoot("/ws/a", "/ws/a"))
	assert.False(t, IsUnderRoot("/ws/a", "/ws/ab/Foo.groovy"))
}
