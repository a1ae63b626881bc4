package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDRoundTripNumber(t *testing.T) {
	id := NewNumID(42)
	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, "42", string(data))

	var got ID
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, int64(42), got.Num)
	assert.False(t, got.IsStr)
}

func TestIDRoundTripString(t *testing.T) {
	id := NewStrID("req-1")
	data, err := json.Marshal(id)
	require.NoError(t, err)

	var got ID
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.IsStr)
	assert.Equal(t, "req-1", got.Str)
}

func TestRequestIsNotificationWithoutID(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","method":"textDocument/didOpen","params":{}}`)
	var req Request
	require.NoError(t, json.Unmarshal(raw, &req))
	assert.True(t, req.IsNotification())
}

func TestDefaultCapabilitiesEnablesEveryProvider(t *testing.T) {
	caps := DefaultCapabilities()
	assert.True(t, caps.DefinitionProvider)
	assert.True(t, caps.ImplementationProvider)
	assert.True(t, caps.InlayHintProvider)
	assert.True(t, caps.SemanticTokensProvider)
	assert.Equal(t, 2, caps.TextDocumentSync)
	require.NotNil(t, caps.CompletionProvider)
	assert.Equal(t, []string{"."}, caps.CompletionProvider.TriggerCharacters)
	require.NotNil(t, caps.SignatureHelpProvider)
	assert.Equal(t, []string{"(", ","}, caps.SignatureHelpProvider.TriggerCharacters)
	require.NotNil(t, caps.ExecuteCommandProvider)
	assert.Contains(t, caps.ExecuteCommandProvider.Commands, CommandOrganizeImports)
}
