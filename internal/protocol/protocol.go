// Package protocol defines the wire-level JSON-RPC 2.0 envelope and the
// editor-protocol method names, request/response payload shapes, and
// capability negotiation structs used by the Transport & Dispatch layer.
//
// Envelope shape grounded on the teacher's internal/mcp JSON-RPC structs
// (mcpRequest/mcpResponse in internal/mcp/transport_stdio.go), generalized
// from MCP's subset to full bidirectional LSP-style request/response/
// notification traffic.
package protocol

import "encoding/json"

const JSONRPCVersion = "2.0"

// Method name constants for every operation SPEC_FULL.md names.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "initialized"
	MethodShutdown    = "shutdown"
	MethodExit        = "exit"

	MethodDidOpen   = "textDocument/didOpen"
	MethodDidChange = "textDocument/didChange"
	MethodDidClose  = "textDocument/didClose"
	MethodDidSave   = "textDocument/didSave"

	MethodDidChangeWatchedFiles = "workspace/didChangeWatchedFiles"
	MethodDidChangeConfiguration = "workspace/didChangeConfiguration"
	MethodExecuteCommand         = "workspace/executeCommand"

	MethodDefinition      = "textDocument/definition"
	MethodTypeDefinition  = "textDocument/typeDefinition"
	MethodImplementation  = "textDocument/implementation"
	MethodReferences      = "textDocument/references"
	MethodRename          = "textDocument/rename"
	MethodPrepareRename   = "textDocument/prepareRename"
	MethodCompletion      = "textDocument/completion"
	MethodHover           = "textDocument/hover"
	MethodSignatureHelp   = "textDocument/signatureHelp"
	MethodInlayHint       = "textDocument/inlayHint"
	MethodDocumentSymbol  = "textDocument/documentSymbol"
	MethodWorkspaceSymbol = "workspace/symbol"
	MethodDocumentHighlight = "textDocument/documentHighlight"
	MethodCodeAction      = "textDocument/codeAction"
	MethodSemanticTokensFull  = "textDocument/semanticTokens/full"
	MethodSemanticTokensRange = "textDocument/semanticTokens/range"
	MethodFormatting      = "textDocument/formatting"

	MethodPublishDiagnostics = "textDocument/publishDiagnostics"
	MethodProgress           = "$/progress"
	MethodLogMessage         = "window/logMessage"
	MethodCancelRequest      = "$/cancelRequest"

	// Custom, non-editor-protocol-standard methods this core adds (§6
	// expansion): decompiled content retrieval for the source locator,
	// resolution progress status updates, and a diagnostic memory-usage
	// probe for the memory-pressure eviction sweep.
	MethodGetDecompiledContent = "groovy/getDecompiledContent"
	MethodStatusUpdate         = "groovy/statusUpdate"
	MethodMemoryUsage          = "groovy/memoryUsage"
)

// ID is a JSON-RPC request identifier: either a number or a string. A nil
// ID marks a notification (no response expected).
type ID struct {
	Num    int64
	Str    string
	IsStr  bool
	IsNull bool
}

func NewNumID(n int64) ID  { return ID{Num: n} }
func NewStrID(s string) ID { return ID{Str: s, IsStr: true} }

func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsNull {
		return []byte("null"), nil
	}
	if id.IsStr {
		return json.Marshal(id.Str)
	}
	return json.Marshal(id.Num)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.IsNull = true
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		id.Num = n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id.Str = s
	id.IsStr = true
	return nil
}

// Request is an inbound JSON-RPC call. ID is omitted for notifications.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (r Request) IsNotification() bool { return r.ID == nil }

// ResponseError mirrors a JSON-RPC error object.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error codes per the JSON-RPC and editor-protocol specs.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
	ErrCodeRequestCancelled = -32800
	ErrCodeServerError    = -32000
)

// Response is an outbound JSON-RPC reply.
type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      ID             `json:"id"`
	Result  any            `json:"result,omitempty"`
	Error   *ResponseError `json:"error,omitempty"`
}

func NewResult(id ID, result any) Response {
	return Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

func NewError(id ID, code int, message string) Response {
	return Response{JSONRPC: JSONRPCVersion, ID: id, Error: &ResponseError{Code: code, Message: message}}
}

// Notification is an outbound message with no ID, carrying server-initiated
// events (diagnostics, progress, log messages) to the client.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

func NewNotification(method string, params any) Notification {
	return Notification{JSONRPC: JSONRPCVersion, Method: method, Params: params}
}

// Position and Range are the wire-level (UTF-16 code-unit) coordinates
// exchanged with the client, distinct from internal/document's types so
// the wire format can evolve independently of the in-process model.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// CompletionOptions advertises completion trigger characters (§6:
// "completion (trigger `.`)").
type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters"`
}

// SignatureHelpOptions advertises signature-help trigger characters (§6:
// "signature help (triggers `(` `,`)").
type SignatureHelpOptions struct {
	TriggerCharacters []string `json:"triggerCharacters"`
}

// ExecuteCommandOptions names the commands workspace/executeCommand accepts.
type ExecuteCommandOptions struct {
	Commands []string `json:"commands"`
}

// ServerCapabilities advertised in the initialize response (§1).
type ServerCapabilities struct {
	TextDocumentSync         int  `json:"textDocumentSyncKind"`
	DefinitionProvider       bool `json:"definitionProvider"`
	TypeDefinitionProvider   bool `json:"typeDefinitionProvider"`
	ImplementationProvider   bool `json:"implementationProvider"`
	ReferencesProvider       bool `json:"referencesProvider"`
	RenameProvider           bool `json:"renameProvider"`
	CompletionProvider       *CompletionOptions `json:"completionProvider,omitempty"`
	HoverProvider            bool `json:"hoverProvider"`
	SignatureHelpProvider    *SignatureHelpOptions `json:"signatureHelpProvider,omitempty"`
	InlayHintProvider        bool `json:"inlayHintProvider"`
	DocumentSymbolProvider   bool `json:"documentSymbolProvider"`
	WorkspaceSymbolProvider  bool `json:"workspaceSymbolProvider"`
	DocumentHighlightProvider bool `json:"documentHighlightProvider"`
	CodeActionProvider       bool `json:"codeActionProvider"`
	ExecuteCommandProvider   *ExecuteCommandOptions `json:"executeCommandProvider,omitempty"`
	SemanticTokensProvider   bool `json:"semanticTokensProvider"`
	DocumentFormattingProvider bool `json:"documentFormattingProvider"`
}

// CommandOrganizeImports is the one command workspace/executeCommand
// recognizes today: recompute the organize-imports edit for a URI.
const CommandOrganizeImports = "groovy.organizeImports"

func DefaultCapabilities() ServerCapabilities {
	return ServerCapabilities{
		TextDocumentSync:          2, // incremental
		DefinitionProvider:        true,
		TypeDefinitionProvider:    true,
		ImplementationProvider:    true,
		ReferencesProvider:        true,
		RenameProvider:            true,
		CompletionProvider:        &CompletionOptions{TriggerCharacters: []string{"."}},
		HoverProvider:             true,
		SignatureHelpProvider:     &SignatureHelpOptions{TriggerCharacters: []string{"(", ","}},
		InlayHintProvider:         true,
		DocumentSymbolProvider:    true,
		WorkspaceSymbolProvider:   true,
		DocumentHighlightProvider: true,
		CodeActionProvider:        true,
		ExecuteCommandProvider:    &ExecuteCommandOptions{Commands: []string{CommandOrganizeImports}},
		SemanticTokensProvider:    true,
		DocumentFormattingProvider: true,
	}
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity"`
	Code     string `json:"code,omitempty"`
	Source   string `json:"source,omitempty"`
	Message  string `json:"message"`
}

const (
	SeverityError       = 1
	SeverityWarning     = 2
	SeverityInformation = 3
	SeverityHint        = 4
)

type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Version     *int         `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}
