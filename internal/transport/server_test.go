package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/compiler"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/config"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/events"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/frontend"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/protocol"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/provider"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scopemanager"
)

// The frame-channel tests below drive newFrameChannel over in-memory
// buffers with the same framing the real stdio/tcp channels use, writing a
// raw request and reading a raw response without a live process on either
// end.

// TestMain checks for leaked goroutines: Serve's per-request pool and its
// event-drain goroutine must both exit once a test's Serve call returns.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func encodeFrame(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return []byte(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body))
}

func TestFrameChannelRoundTrip(t *testing.T) {
	req := protocol.Request{JSONRPC: protocol.JSONRPCVersion, ID: &protocol.ID{Num: 1}, Method: "initialize"}
	var in bytes.Buffer
	in.Write(encodeFrame(t, req))

	var out bytes.Buffer
	ch := newFrameChannel(&in, &out, nil)

	got, err := ch.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, "initialize", got.Method)
	require.NotNil(t, got.ID)
	assert.Equal(t, int64(1), got.ID.Num)

	require.NoError(t, ch.WriteMessage(protocol.NewResult(*got.ID, map[string]any{"ok": true})))
	assert.Contains(t, out.String(), "Content-Length:")
	assert.Contains(t, out.String(), `"ok":true`)
}

func TestFrameChannelReadRequestEOF(t *testing.T) {
	ch := newFrameChannel(bytes.NewReader(nil), io.Discard, nil)
	_, err := ch.ReadRequest()
	assert.ErrorIs(t, err, io.EOF)
}

// scriptedChannel feeds a fixed sequence of requests to Serve and records
// every response written back, unblocking a test without a real pipe.
type scriptedChannel struct {
	reqs      []*protocol.Request
	i         int
	responses chan protocol.Response
	closed    chan struct{}
}

func newScriptedChannel(reqs []*protocol.Request) *scriptedChannel {
	return &scriptedChannel{reqs: reqs, responses: make(chan protocol.Response, len(reqs)), closed: make(chan struct{})}
}

func (c *scriptedChannel) ReadRequest() (*protocol.Request, error) {
	if c.i >= len(c.reqs) {
		<-c.closed
		return nil, io.EOF
	}
	req := c.reqs[c.i]
	c.i++
	return req, nil
}

func (c *scriptedChannel) WriteMessage(v any) error {
	if resp, ok := v.(protocol.Response); ok {
		c.responses <- resp
	}
	return nil
}

func (c *scriptedChannel) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func newTestServer(t *testing.T, workspaceRoot string) *Server {
	t.Helper()
	store := document.NewStore()
	manager := scopemanager.New(config.Default(), nil, nil)
	svc := compiler.New(frontend.NewLineScanner(), events.NewBus(8))
	return NewServer(workspaceRoot, store, manager, svc, nil, nil, nil)
}

func numReq(id int64, method string, params any) *protocol.Request {
	body, _ := json.Marshal(params)
	return &protocol.Request{JSONRPC: protocol.JSONRPCVersion, ID: &protocol.ID{Num: id}, Method: method, Params: body}
}

func notification(method string, params any) *protocol.Request {
	body, _ := json.Marshal(params)
	return &protocol.Request{JSONRPC: protocol.JSONRPCVersion, Method: method, Params: body}
}

func TestServeDidOpenThenDocumentSymbol(t *testing.T) {
	s := newTestServer(t, "/ws")
	uri := "file:///ws/src/Greeter.groovy"

	ch := newScriptedChannel([]*protocol.Request{
		notification(protocol.MethodDidOpen, didOpenParams{
			TextDocument: textDocumentItem{URI: uri, Text: "class Greeter {\n  def greet() {}\n}\n", Version: 1},
		}),
		numReq(1, protocol.MethodDocumentSymbol, documentSymbolParams{TextDocument: textDocumentIdentifier{URI: uri}}),
		notification(protocol.MethodExit, nil),
	})

	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), ch) }()

	select {
	case resp := <-ch.responses:
		assert.Equal(t, int64(1), resp.ID.Num)
		assert.Nil(t, resp.Error)
		syms, ok := resp.Result.([]map[string]any)
		require.True(t, ok)
		require.NotEmpty(t, syms)
		assert.Equal(t, "Greeter", syms[0]["name"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for documentSymbol response")
	}

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after exit")
	}

	root := classpath.WorkspaceDefaultRoot("/ws")
	_, ok := s.manager.Scope(root)
	assert.True(t, ok, "didOpen for a uri under no discovered root should register the workspace-default scope")
}

func TestHandleCancelCancelsTrackedContext(t *testing.T) {
	s := newTestServer(t, "/ws")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := protocol.ID{Num: 42}
	var called bool
	s.trackCancel(id, func() { called = true })

	params, _ := json.Marshal(cancelParams{ID: float64(42)})
	s.handleCancel(&protocol.Request{Method: protocol.MethodCancelRequest, Params: params})

	assert.True(t, called)
	_ = ctx
}

func TestServeWithEventBusWritesNoResponseAndExits(t *testing.T) {
	store := document.NewStore()
	manager := scopemanager.New(config.Default(), nil, nil)
	svc := compiler.New(frontend.NewLineScanner(), events.NewBus(8))
	bus := events.NewBus(8)
	s := NewServer("/ws", store, manager, svc, nil, nil, bus)

	ch := newScriptedChannel([]*protocol.Request{notification(protocol.MethodExit, nil)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ch) }()

	bus.Publish(events.Event{Kind: events.KindResolutionStarted, ProjectRoot: "/ws", Message: "resolving"})

	select {
	case resp := <-ch.responses:
		t.Fatalf("unexpected response, wanted a notification: %+v", resp)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Serve to exit")
	case err := <-done:
		assert.NoError(t, err)
	}
}

func TestNotificationForMapsProgressContractStates(t *testing.T) {
	cases := map[events.Kind]string{
		events.KindResolutionStarted:  "importing",
		events.KindResolutionProgress: "importing",
		events.KindResolutionFinished: "ready",
		events.KindResolutionFailed:   "error",
	}
	for kind, want := range cases {
		note, ok := notificationFor(events.Event{Kind: kind, ProjectRoot: "/ws/a", Message: "m"})
		require.True(t, ok)
		assert.Equal(t, protocol.MethodStatusUpdate, note.Method)
		params, isMap := note.Params.(map[string]any)
		require.True(t, isMap)
		assert.Equal(t, want, params["state"])
	}
}

func TestNotificationForMemoryUsageCarriesScopeCounts(t *testing.T) {
	note, ok := notificationFor(events.Event{Kind: events.KindMemoryUsage, HeapUsed: 10, HeapSys: 100, Active: 1, Evicted: 2, Unresolved: 3})
	require.True(t, ok)
	assert.Equal(t, protocol.MethodMemoryUsage, note.Method)
	params, isMap := note.Params.(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, map[string]int{"active": 1, "evicted": 2, "unresolved": 3}, params["scopes"])
}

func TestHandleDidChangeWatchedFilesInvalidatesScope(t *testing.T) {
	s := newTestServer(t, "/ws")
	root := classpath.Root("/ws/proj")
	sc := s.manager.Register(root)
	sc.ApplyClasspath(classpath.New(nil), "2.5")
	require.Equal(t, scope.StateActive, sc.State())

	params, _ := json.Marshal(didChangeWatchedFilesParams{
		Changes: []fileEvent{{URI: "file:///ws/proj/build.gradle", Type: 2}},
	})
	s.handleDidChangeWatchedFiles(&protocol.Request{Method: protocol.MethodDidChangeWatchedFiles, Params: params})

	assert.Equal(t, scope.StateUnresolved, sc.State(), "a watched build-descriptor change should invalidate the owning scope")
}

// wiredLocator fakes the source locator's two transport-facing slices: the
// narrow provider.SourceLocator plus raw content lookup.
type wiredLocator struct {
	content map[document.URI]string
}

func (wiredLocator) FindClassLocation(string) (provider.Location, bool) {
	return provider.Location{}, false
}

func (l wiredLocator) ContentByURI(uri document.URI) (string, bool) {
	text, ok := l.content[uri]
	return text, ok
}

func TestHandleGetDecompiledContentServesIndexedSource(t *testing.T) {
	store := document.NewStore()
	manager := scopemanager.New(config.Default(), nil, nil)
	svc := compiler.New(frontend.NewLineScanner(), events.NewBus(8))
	locator := wiredLocator{content: map[document.URI]string{
		"decompiled:///com/acme/Widget.groovy": "class Widget {}\n",
	}}
	s := NewServer("/ws", store, manager, svc, nil, locator, nil)

	id := protocol.ID{Num: 3}
	params, _ := json.Marshal(getDecompiledContentParams{URI: "decompiled:///com/acme/Widget.groovy"})
	resp := s.handleGetDecompiledContent(id, &protocol.Request{Params: params})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "class Widget {}\n", result["content"])
}

func TestHandleGetDecompiledContentRejectsFileScheme(t *testing.T) {
	s := newTestServer(t, "/ws")
	id := protocol.ID{Num: 4}
	params, _ := json.Marshal(getDecompiledContentParams{URI: "file:///ws/Widget.groovy"})
	resp := s.handleGetDecompiledContent(id, &protocol.Request{Params: params})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ErrCodeInvalidParams, resp.Error.Code)
}

func TestHandleExecuteCommandRejectsUnknownCommand(t *testing.T) {
	s := newTestServer(t, "/ws")
	id := protocol.ID{Num: 5}
	params, _ := json.Marshal(executeCommandParams{Command: "groovy.noSuchCommand"})
	resp := s.handleExecuteCommand(context.Background(), id, &protocol.Request{ID: &id, Method: protocol.MethodExecuteCommand, Params: params})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ErrCodeInvalidParams, resp.Error.Code)
}

func TestHandleExecuteCommandOrganizeImports(t *testing.T) {
	s := newTestServer(t, "/ws")
	uri := "file:///ws/src/Widget.groovy"
	s.handleDidOpen(notification(protocol.MethodDidOpen, didOpenParams{
		TextDocument: textDocumentItem{
			URI:     uri,
			Text:    "import z.y.Used\nimport a.b.Unused\nclass Widget {\n  Used u\n}\n",
			Version: 1,
		},
	}))

	id := protocol.ID{Num: 6}
	params, _ := json.Marshal(executeCommandParams{Command: protocol.CommandOrganizeImports, Arguments: []string{uri}})
	resp := s.handleExecuteCommand(context.Background(), id, &protocol.Request{ID: &id, Method: protocol.MethodExecuteCommand, Params: params})
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	changes, ok := result["changes"].(map[string][]map[string]any)
	require.True(t, ok)
	edits := changes[uri]
	require.Len(t, edits, 1)
	assert.Equal(t, "import z.y.Used", edits[0]["newText"])
}

// Every method §6's surface table names must dispatch to a real handler;
// anything reaching the default arm would answer MethodNotFound.
func TestHandleDispatchCoversSpecSurface(t *testing.T) {
	s := newTestServer(t, "/ws")
	methods := []string{
		protocol.MethodImplementation,
		protocol.MethodSignatureHelp,
		protocol.MethodInlayHint,
		protocol.MethodSemanticTokensRange,
		protocol.MethodExecuteCommand,
		protocol.MethodGetDecompiledContent,
	}
	for _, method := range methods {
		resp, isNotification := s.handle(context.Background(), numReq(9, method, map[string]any{}))
		assert.False(t, isNotification, method)
		if resp.Error != nil {
			assert.NotEqual(t, protocol.ErrCodeMethodNotFound, resp.Error.Code, method)
		}
	}
}

func TestHandleUnknownMethodReturnsError(t *testing.T) {
	s := newTestServer(t, "/ws")
	id := protocol.ID{Num: 7}
	resp, isNotification := s.handle(context.Background(), &protocol.Request{ID: &id, Method: "textDocument/bogus"})
	assert.False(t, isNotification)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ErrCodeMethodNotFound, resp.Error.Code)
}
