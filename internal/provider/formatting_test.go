package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

func TestFormattingReindentsByBraceDepthWithoutChangingLineCount(t *testing.T) {
	uri := document.URI("file:///ws/Widget.groovy")
	text := "class Widget {\nString name\nvoid run() {\nprintln name\n}\n}"
	store := document.NewStore()
	store.Open(uri, text, 1)

	var idx *astindex.Index
	result, err := Formatting(context.Background(), idx, store, nil, FormattingParams{URI: uri})
	assert.NoError(t, err)

	for _, e := range result.Edits {
		assert.Equal(t, e.Range.Start.Line, e.Range.End.Line)
	}
	// the three body lines and the inner closing brace should be reindented
	assert.NotEmpty(t, result.Edits)
}

func TestFormattingEmptyWhenURINotOpen(t *testing.T) {
	store := document.NewStore()
	var idx *astindex.Index
	result, err := Formatting(context.Background(), idx, store, nil, FormattingParams{URI: "file:///missing.groovy"})
	assert.NoError(t, err)
	assert.Empty(t, result.Edits)
}
