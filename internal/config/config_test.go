package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesSpec(t *testing.T) {
	d := Default()
	assert.Equal(t, LogLevelInfo, d.LogLevel)
	assert.True(t, d.ClasspathCache)
	assert.False(t, d.BackfillSiblingProjects)
	assert.Equal(t, 300, d.ScopeEvictionTTLSeconds)
	assert.Equal(t, 0.85, d.MemoryPressureThreshold)
}

func TestTTLZeroDisables(t *testing.T) {
	c := Default()
	c.ScopeEvictionTTLSeconds = 0
	assert.Equal(t, int64(0), int64(c.TTL()))
}

func TestMergeOnlyOverridesSetFields(t *testing.T) {
	falseVal := false
	merged := Merge(RawOptions{ClasspathCache: &falseVal})
	assert.False(t, merged.ClasspathCache)
	// Untouched fields keep their defaults.
	assert.Equal(t, 300, merged.ScopeEvictionTTLSeconds)
}

func TestImporterEnabledEmptyMeansAll(t *testing.T) {
	c := Default()
	assert.True(t, c.ImporterEnabled("gradle"))
	c.EnabledImporters = []string{"gradle"}
	assert.True(t, c.ImporterEnabled("gradle"))
	assert.False(t, c.ImporterEnabled("maven"))
}
