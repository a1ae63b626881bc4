package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/compiler"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/config"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/events"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/protocol"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/provider"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/resolution"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scopemanager"
)

// Server wires the Transport & Dispatch layer to the rest of the core: the
// Scope Manager (routes a URI to its owning scope), the Compilation
// Service (ensure_compiled before every query), the Resolution Coordinator
// (lazy classpath resolution on first open), and the Editor-Query
// Providers.
type Server struct {
	workspaceRoot string
	store         *document.Store
	manager       *scopemanager.Manager
	svc           *compiler.Service
	coord         *resolution.Coordinator
	locator       provider.SourceLocator
	bus           *events.Bus

	cancelMu sync.Mutex
	inFlight map[string]context.CancelFunc

	shutdownRequested bool
}

// NewServer wires the given collaborators into a dispatcher. locator may be
// nil; providers that consult it (definition/type-definition) simply fall
// back to an empty result for out-of-workspace symbols. bus may be nil, in
// which case Serve skips the event-drain goroutine entirely.
func NewServer(workspaceRoot string, store *document.Store, manager *scopemanager.Manager, svc *compiler.Service, coord *resolution.Coordinator, locator provider.SourceLocator, bus *events.Bus) *Server {
	return &Server{
		workspaceRoot: workspaceRoot,
		store:         store,
		manager:       manager,
		svc:           svc,
		coord:         coord,
		locator:       locator,
		bus:           bus,
		inFlight:      make(map[string]context.CancelFunc),
	}
}

// Serve drives ch until the client disconnects, sends "exit", or ctx is
// canceled. One message at a time is read off the channel (matching the
// teacher's single-reader ServeStdio loop). Notifications run inline so
// document edits are observed in arrival order; requests are dispatched
// onto the Request pool (§5: "size = CPU count") so a slow provider call
// on one URI never blocks another, while a burst of requests still can't
// spawn unbounded goroutines. A second goroutine drains the Event Bus
// (§2 expansion) into protocol notifications for the same lifetime.
func (s *Server) Serve(ctx context.Context, ch Channel) error {
	defer logClose(ch)

	var eventWG sync.WaitGroup
	defer eventWG.Wait()
	if s.bus != nil {
		eventWG.Add(1)
		go func() {
			defer eventWG.Done()
			s.drainEvents(ctx, ch)
		}()
	}

	pool := &errgroup.Group{}
	pool.SetLimit(runtime.GOMAXPROCS(0))
	defer pool.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := ch.ReadRequest()
		if err != nil {
			return err
		}

		if req.Method == protocol.MethodExit {
			logging.Transport("received exit, shutting down")
			return nil
		}
		if req.Method == protocol.MethodCancelRequest {
			s.handleCancel(req)
			continue
		}

		// Notifications (document edits above all) run inline on the single
		// reader goroutine: a didChange and the request that follows it in
		// the stream must observe the edit in arrival order (§5, ordering
		// guarantee 1). Only requests fan out onto the pool.
		if req.ID == nil {
			s.safeDispatch(ctx, ch, req)
			continue
		}

		reqCtx, cancel := context.WithCancel(ctx)
		s.trackCancel(*req.ID, cancel)

		// pool.Go blocks the single reader goroutine once GOMAXPROCS
		// requests are already in flight, giving the Request pool real
		// backpressure instead of an unbounded goroutine-per-request fan-out.
		pool.Go(func() error {
			defer cancel()
			s.safeDispatch(reqCtx, ch, req)
			s.untrackCancel(*req.ID)
			return nil
		})
	}
}

func idKey(id protocol.ID) string {
	if id.IsStr {
		return "s:" + id.Str
	}
	return fmt.Sprintf("n:%d", id.Num)
}

func (s *Server) trackCancel(id protocol.ID, cancel context.CancelFunc) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	s.inFlight[idKey(id)] = cancel
}

func (s *Server) untrackCancel(id protocol.ID) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	delete(s.inFlight, idKey(id))
}

func (s *Server) handleCancel(req *protocol.Request) {
	var params cancelParams
	_ = json.Unmarshal(req.Params, &params)
	var key string
	switch v := params.ID.(type) {
	case string:
		key = "s:" + v
	case float64:
		key = fmt.Sprintf("n:%d", int64(v))
	default:
		return
	}
	s.cancelMu.Lock()
	cancel, ok := s.inFlight[key]
	s.cancelMu.Unlock()
	if ok {
		cancel()
	}
}

// safeDispatch handles one request/notification, writing a response for
// requests (ID != nil). Handler errors are reported as a JSON-RPC error
// object rather than killing the connection, and a panicking handler is
// the ProviderBug boundary (§7): logged with its stack, answered with an
// empty result, never a crash of the listener.
func (s *Server) safeDispatch(ctx context.Context, ch Channel, req *protocol.Request) {
	defer func() {
		if r := recover(); r != nil {
			logging.Transport("handler panic in %s: %v\n%s", req.Method, r, debug.Stack())
			if req.ID != nil {
				if err := ch.WriteMessage(protocol.NewResult(*req.ID, nil)); err != nil {
					logging.Transport("write recovery response for %s failed: %v", req.Method, err)
				}
			}
		}
	}()

	resp, isNotification := s.handle(ctx, req)
	if isNotification {
		return
	}
	if err := ch.WriteMessage(resp); err != nil {
		logging.Transport("write response for %s failed: %v", req.Method, err)
	}
}

func (s *Server) handle(ctx context.Context, req *protocol.Request) (protocol.Response, bool) {
	if req.ID == nil {
		s.handleNotification(req)
		return protocol.Response{}, true
	}
	id := *req.ID

	select {
	case <-ctx.Done():
		return protocol.NewError(id, protocol.ErrCodeRequestCancelled, "request canceled"), false
	default:
	}

	switch req.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(id, req), false
	case protocol.MethodShutdown:
		s.shutdownRequested = true
		return protocol.NewResult(id, nil), false
	case protocol.MethodDefinition, protocol.MethodTypeDefinition:
		return s.handleDefinition(ctx, id, req), false
	case protocol.MethodImplementation:
		return s.handleImplementation(ctx, id, req), false
	case protocol.MethodReferences:
		return s.handleReferences(ctx, id, req), false
	case protocol.MethodPrepareRename:
		return s.handlePrepareRename(ctx, id, req), false
	case protocol.MethodRename:
		return s.handleRename(ctx, id, req), false
	case protocol.MethodHover:
		return s.handleHover(ctx, id, req), false
	case protocol.MethodCompletion:
		return s.handleCompletion(ctx, id, req), false
	case protocol.MethodSignatureHelp:
		return s.handleSignatureHelp(ctx, id, req), false
	case protocol.MethodInlayHint:
		return s.handleInlayHint(ctx, id, req), false
	case protocol.MethodDocumentSymbol:
		return s.handleDocumentSymbol(ctx, id, req), false
	case protocol.MethodWorkspaceSymbol:
		return s.handleWorkspaceSymbol(ctx, id, req), false
	case protocol.MethodDocumentHighlight:
		return s.handleDocumentHighlight(ctx, id, req), false
	case protocol.MethodCodeAction:
		return s.handleCodeAction(ctx, id, req), false
	case protocol.MethodSemanticTokensFull, protocol.MethodSemanticTokensRange:
		return s.handleSemanticTokens(ctx, id, req), false
	case protocol.MethodFormatting:
		return s.handleFormatting(ctx, id, req), false
	case protocol.MethodExecuteCommand:
		return s.handleExecuteCommand(ctx, id, req), false
	case protocol.MethodGetDecompiledContent:
		return s.handleGetDecompiledContent(id, req), false
	default:
		return protocol.NewError(id, protocol.ErrCodeMethodNotFound, "unknown method: "+req.Method), false
	}
}

func (s *Server) handleNotification(req *protocol.Request) {
	switch req.Method {
	case protocol.MethodInitialized:
	case protocol.MethodDidOpen:
		s.handleDidOpen(req)
	case protocol.MethodDidChange:
		s.handleDidChange(req)
	case protocol.MethodDidClose:
		s.handleDidClose(req)
	case protocol.MethodDidSave:
		// Content is already current via didChange; nothing further to do.
	case protocol.MethodDidChangeWatchedFiles:
		s.handleDidChangeWatchedFiles(req)
	case protocol.MethodDidChangeConfiguration:
		s.handleDidChangeConfiguration(req)
	default:
		logging.Transport("unhandled notification %s", req.Method)
	}
}

// handleInitialize captures the client's workspace root and initialization
// options (§6) and answers with the advertised capabilities. Options are
// merged over the defaults the same way a later settings push is; the
// process-level flags (cmd/groovy-language-server) already seeded every
// component, so the merge here is recorded for the operator rather than
// re-plumbed into running pools.
func (s *Server) handleInitialize(id protocol.ID, req *protocol.Request) protocol.Response {
	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err == nil {
		if params.RootURI != "" {
			logging.Transport("initialize: client workspace root %s (serving %s)", params.RootURI, s.workspaceRoot)
		}
		if len(params.InitializationOptions) > 0 {
			var opts config.RawOptions
			if err := json.Unmarshal(params.InitializationOptions, &opts); err == nil {
				merged := config.Merge(opts)
				logging.Transport("initialize options: logLevel=%s classpathCache=%t ttl=%ds pressure=%.2f backfill=%t",
					merged.LogLevel, merged.ClasspathCache, merged.ScopeEvictionTTLSeconds,
					merged.MemoryPressureThreshold, merged.BackfillSiblingProjects)
			}
		}
	}
	return protocol.NewResult(id, protocol.InitializeResult{Capabilities: protocol.DefaultCapabilities()})
}

// handleDidChangeConfiguration accepts the settings push (§6). The sweep
// intervals and pool bounds are fixed at construction, so a mid-session
// push only re-merges the recognized keys and records the result; anything
// that must rebuild a pool still requires a restart.
func (s *Server) handleDidChangeConfiguration(req *protocol.Request) {
	var params didChangeConfigurationParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return
	}
	var opts config.RawOptions
	if err := json.Unmarshal(params.Settings, &opts); err != nil {
		logging.Transport("ignoring malformed configuration push: %v", err)
		return
	}
	merged := config.Merge(opts)
	logging.Transport("configuration push accepted: logLevel=%s ttl=%ds pressure=%.2f",
		merged.LogLevel, merged.ScopeEvictionTTLSeconds, merged.MemoryPressureThreshold)
}

// resolveScopeForOpen routes uri to its owning scope. Discovered Project
// Roots are already registered at boot (cmd/groovy-language-server), so
// Lookup's longest-prefix match (§4.4) finds them here; a uri under no
// discovered root falls back to the synthetic workspace-default scope
// (§4.4 routing rule, step 3), registered lazily on first such open.
func (s *Server) resolveScopeForOpen(ctx context.Context, uri document.URI) {
	if _, _, ok := s.manager.Lookup(uri); ok {
		return
	}
	root := classpath.WorkspaceDefaultRoot(s.workspaceRoot)
	s.manager.Register(root)
	if s.coord != nil {
		if err := s.coord.EnsureResolved(ctx, root); err != nil {
			logging.Transport("resolve %s failed: %v", root, err)
		}
	}
}

func (s *Server) handleDidOpen(req *protocol.Request) {
	var params didOpenParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return
	}
	uri := document.URI(params.TextDocument.URI)
	s.store.Open(uri, params.TextDocument.Text, params.TextDocument.Version)
	s.resolveScopeForOpen(context.Background(), uri)
	if sc, idx, ok := s.manager.Lookup(uri); ok {
		sc.OpenDocument(uri)
		_ = s.svc.EnsureCompiled(sc, idx, s.store, []document.URI{uri})
	}
}

func (s *Server) handleDidChange(req *protocol.Request) {
	var params didChangeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return
	}
	uri := document.URI(params.TextDocument.URI)
	for _, change := range params.ContentChanges {
		if change.Range == nil {
			_ = s.store.ChangeFull(uri, change.Text, params.TextDocument.Version)
			continue
		}
		rng := protocol.ToDocumentRange(*change.Range)
		_ = s.store.ChangeRange(uri, &rng, change.Text, params.TextDocument.Version)
	}
	if sc, idx, ok := s.manager.Lookup(uri); ok {
		sc.Touch()
		_ = s.svc.EnsureCompiled(sc, idx, s.store, []document.URI{uri})
	}
}

func (s *Server) handleDidClose(req *protocol.Request) {
	var params didCloseParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return
	}
	uri := document.URI(params.TextDocument.URI)
	s.store.Close(uri)
	if sc, _, ok := s.manager.Lookup(uri); ok {
		sc.CloseDocument(uri)
	}
}

// handleDidChangeWatchedFiles implements workspace/didChangeWatchedFiles
// (§6): a filesystem change the client observed outside the File Contents
// Store (most commonly a build descriptor edited by hand or by another
// tool) invalidates the owning scope, so the next request against it
// re-resolves the classpath and recompiles rather than serving
// indefinitely stale state (§4.3's Invalidate operation).
func (s *Server) handleDidChangeWatchedFiles(req *protocol.Request) {
	var params didChangeWatchedFilesParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return
	}
	seen := make(map[classpath.Root]bool)
	for _, ch := range params.Changes {
		sc, _, ok := s.manager.Lookup(document.URI(ch.URI))
		if !ok || seen[sc.Root()] {
			continue
		}
		seen[sc.Root()] = true
		sc.Invalidate()
		logging.Transport("invalidated scope %s after watched-file change", sc.Root())
	}
}

// lookupForQuery ensures uri's owning scope is compiled and returns the
// scope plus its AST index, or ok=false if uri belongs to no known root.
func (s *Server) lookupForQuery(uri document.URI) (*scope.Scope, *astindex.Index, bool) {
	sc, idx, ok := s.manager.Lookup(uri)
	if !ok {
		return nil, nil, false
	}
	uris := append([]document.URI{uri}, sc.OpenDocumentURIs()...)
	_ = s.svc.EnsureCompiled(sc, idx, s.store, uris)
	return sc, idx, true
}
