package transport

import (
	"encoding/json"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/protocol"
)

// Wire-level request parameter shapes. Kept local to transport rather than
// added to internal/protocol since these are per-method payload shapes, not
// the shared envelope/capability types protocol.go owns. Positions and
// ranges reuse protocol.Position/protocol.Range, the one wire coordinate
// model the whole module shares.

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type versionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type textDocumentItem struct {
	URI     string `json:"uri"`
	Text    string `json:"text"`
	Version int    `json:"version"`
}

type didOpenParams struct {
	TextDocument textDocumentItem `json:"textDocument"`
}

type contentChange struct {
	Range *protocol.Range `json:"range"`
	Text  string         `json:"text"`
}

type didChangeParams struct {
	TextDocument   versionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange                 `json:"contentChanges"`
}

type didCloseParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type textDocumentPositionParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     protocol.Position       `json:"position"`
}

type referenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type referenceParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     protocol.Position       `json:"position"`
	Context      referenceContext       `json:"context"`
}

type renameParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     protocol.Position       `json:"position"`
	NewName      string                 `json:"newName"`
}

type documentSymbolParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type workspaceSymbolParams struct {
	Query string `json:"query"`
}

type codeActionParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Range        protocol.Range          `json:"range"`
}

type semanticTokensParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	// Range is present on semanticTokens/range requests only.
	Range *protocol.Range `json:"range"`
}

type inlayHintParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Range        *protocol.Range         `json:"range"`
}

type executeCommandParams struct {
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
}

type getDecompiledContentParams struct {
	URI string `json:"uri"`
}

type formattingOptions struct {
	TabSize int `json:"tabSize"`
}

type formattingParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Options      formattingOptions      `json:"options"`
}

type cancelParams struct {
	ID any `json:"id"`
}

// fileEvent mirrors one entry of workspace/didChangeWatchedFiles (§6): a
// changed URI plus a change-kind tag the core doesn't need to distinguish
// (created/changed/deleted all invalidate the same way, §4.3's Invalidate).
type fileEvent struct {
	URI  string `json:"uri"`
	Type int    `json:"type"`
}

type didChangeWatchedFilesParams struct {
	Changes []fileEvent `json:"changes"`
}

// didChangeConfigurationParams carries the settings push (§6). Settings
// reuses the initialize-time RawOptions shape, so both entry points accept
// the same keys.
type didChangeConfigurationParams struct {
	Settings json.RawMessage `json:"settings"`
}

type initializeParams struct {
	RootURI               string          `json:"rootUri"`
	InitializationOptions json.RawMessage `json:"initializationOptions"`
}
