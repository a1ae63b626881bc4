package transport

import (
	"context"
	"encoding/json"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/errs"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/protocol"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/provider"
)

// errorResponse maps a provider error to a JSON-RPC error response, giving
// a cancelled request its own protocol error code (§8 invariant 8: "on
// cancellation it returns Cancelled... without publishing") rather than
// reporting it as an internal error.
func errorResponse(id protocol.ID, err error) protocol.Response {
	if errs.OfKind(err, errs.KindCancelled) {
		return protocol.NewError(id, protocol.ErrCodeRequestCancelled, err.Error())
	}
	return protocol.NewError(id, protocol.ErrCodeInternalError, err.Error())
}

func (s *Server) handleDefinition(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params textDocumentPositionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, nil)
	}
	result, err := provider.Definition(ctx, idx, s.store, sc, provider.DefinitionParams{
		URI: uri, Pos: protocol.ToDocumentPosition(params.Position), Locator: s.locator,
	})
	if err != nil {
		return errorResponse(id, err)
	}
	return protocol.NewResult(id, locationsToWire(result.Locations))
}

func (s *Server) handleReferences(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params referenceParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, []protocol.Location{})
	}
	result, err := provider.References(ctx, idx, s.store, sc, provider.ReferencesParams{
		URI: uri, Pos: protocol.ToDocumentPosition(params.Position), IncludeDeclaration: params.Context.IncludeDeclaration,
	})
	if err != nil {
		return errorResponse(id, err)
	}
	return protocol.NewResult(id, locationsToWire(result.Locations))
}

func (s *Server) handlePrepareRename(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params textDocumentPositionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewError(id, protocol.ErrCodeInvalidRequest, "no project scope for this document")
	}
	result, err := provider.PrepareRename(ctx, idx, s.store, sc, provider.PrepareRenameParams{URI: uri, Pos: protocol.ToDocumentPosition(params.Position)})
	if err != nil {
		return errorResponse(id, err)
	}
	if result.Refused {
		return protocol.NewError(id, protocol.ErrCodeRequestCancelled, result.Reason)
	}
	return protocol.NewResult(id, protocol.FromDocumentRange(result.Range))
}

func (s *Server) handleRename(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params renameParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewError(id, protocol.ErrCodeInvalidRequest, "no project scope for this document")
	}
	result, err := provider.Rename(ctx, idx, s.store, sc, provider.RenameParams{
		URI: uri, Pos: protocol.ToDocumentPosition(params.Position), NewName: params.NewName,
	})
	if err != nil {
		return errorResponse(id, err)
	}
	if result.Refused {
		return protocol.NewError(id, protocol.ErrCodeRequestCancelled, result.Reason)
	}
	return protocol.NewResult(id, workspaceEditToWire(result.Edit))
}

func (s *Server) handleHover(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params textDocumentPositionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, nil)
	}
	result, err := provider.Hover(ctx, idx, s.store, sc, provider.HoverParams{URI: uri, Pos: protocol.ToDocumentPosition(params.Position)})
	if err != nil {
		return errorResponse(id, err)
	}
	if !result.Found {
		return protocol.NewResult(id, nil)
	}
	return protocol.NewResult(id, map[string]any{
		"contents": result.Contents,
		"range":    protocol.FromDocumentRange(result.Range),
	})
}

func (s *Server) handleCompletion(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params textDocumentPositionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, []any{})
	}
	result, err := provider.Completion(ctx, idx, s.store, sc, provider.CompletionParams{URI: uri, Pos: protocol.ToDocumentPosition(params.Position)})
	if err != nil {
		return errorResponse(id, err)
	}
	items := make([]map[string]any, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, map[string]any{
			"label":      item.Label,
			"kind":       item.Kind,
			"insertText": item.InsertText,
			"detail":     item.Detail,
		})
	}
	return protocol.NewResult(id, items)
}

func (s *Server) handleDocumentSymbol(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params documentSymbolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, []any{})
	}
	result, err := provider.DocumentSymbols(ctx, idx, s.store, sc, provider.DocumentSymbolsParams{URI: uri})
	if err != nil {
		return errorResponse(id, err)
	}
	return protocol.NewResult(id, symbolsToWire(result.Symbols))
}

func (s *Server) handleWorkspaceSymbol(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params workspaceSymbolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	// Workspace symbols aren't scoped to one URI; search every registered root.
	var all []provider.Symbol
	for _, root := range s.manager.Roots() {
		sc, ok := s.manager.Scope(root)
		if !ok {
			continue
		}
		idx, ok := s.manager.Index(root)
		if !ok {
			continue
		}
		result, err := provider.WorkspaceSymbols(ctx, idx, s.store, sc, provider.WorkspaceSymbolsParams{Query: params.Query})
		if err != nil {
			if errs.OfKind(err, errs.KindCancelled) {
				return errorResponse(id, err)
			}
			continue
		}
		all = append(all, result.Symbols...)
	}
	return protocol.NewResult(id, symbolsToWire(all))
}

func (s *Server) handleDocumentHighlight(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params textDocumentPositionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, []any{})
	}
	result, err := provider.DocumentHighlight(ctx, idx, s.store, sc, provider.DocumentHighlightParams{URI: uri, Pos: protocol.ToDocumentPosition(params.Position)})
	if err != nil {
		return errorResponse(id, err)
	}
	out := make([]map[string]any, 0, len(result.Highlights))
	for _, h := range result.Highlights {
		out = append(out, map[string]any{"range": protocol.FromDocumentRange(h.Range), "kind": int(h.Kind) + 1})
	}
	return protocol.NewResult(id, out)
}

func (s *Server) handleCodeAction(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params codeActionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, []any{})
	}
	result, err := provider.CodeActions(ctx, idx, s.store, sc, provider.CodeActionParams{URI: uri, Pos: protocol.ToDocumentPosition(params.Range.Start)})
	if err != nil {
		return errorResponse(id, err)
	}
	out := make([]map[string]any, 0, len(result.Actions))
	for _, a := range result.Actions {
		out = append(out, map[string]any{"title": a.Title, "edit": workspaceEditToWire(a.Edit)})
	}
	return protocol.NewResult(id, out)
}

// handleSemanticTokens serves both semanticTokens/full and /range; a range
// request simply carries the restriction through to the provider.
func (s *Server) handleSemanticTokens(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params semanticTokensParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, map[string]any{"data": []uint32{}})
	}
	var rng *document.Range
	if params.Range != nil {
		r := protocol.ToDocumentRange(*params.Range)
		rng = &r
	}
	result, err := provider.SemanticTokens(ctx, idx, s.store, sc, provider.SemanticTokensParams{URI: uri, Range: rng})
	if err != nil {
		return errorResponse(id, err)
	}
	return protocol.NewResult(id, map[string]any{"data": result.Data})
}

func (s *Server) handleImplementation(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params textDocumentPositionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, []protocol.Location{})
	}
	result, err := provider.Implementation(ctx, idx, s.store, sc, provider.ImplementationParams{URI: uri, Pos: protocol.ToDocumentPosition(params.Position)})
	if err != nil {
		return errorResponse(id, err)
	}
	return protocol.NewResult(id, locationsToWire(result.Locations))
}

func (s *Server) handleSignatureHelp(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params textDocumentPositionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, nil)
	}
	result, err := provider.SignatureHelp(ctx, idx, s.store, sc, provider.SignatureHelpParams{URI: uri, Pos: protocol.ToDocumentPosition(params.Position)})
	if err != nil {
		return errorResponse(id, err)
	}
	if len(result.Signatures) == 0 {
		return protocol.NewResult(id, nil)
	}
	sigs := make([]map[string]any, 0, len(result.Signatures))
	for _, sig := range result.Signatures {
		ps := make([]map[string]any, 0, len(sig.Parameters))
		for _, p := range sig.Parameters {
			ps = append(ps, map[string]any{"label": p})
		}
		sigs = append(sigs, map[string]any{"label": sig.Label, "parameters": ps, "documentation": sig.Doc})
	}
	return protocol.NewResult(id, map[string]any{
		"signatures":      sigs,
		"activeSignature": result.ActiveSignature,
		"activeParameter": result.ActiveParameter,
	})
}

func (s *Server) handleInlayHint(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params inlayHintParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, []any{})
	}
	var rng *document.Range
	if params.Range != nil {
		r := protocol.ToDocumentRange(*params.Range)
		rng = &r
	}
	result, err := provider.InlayHints(ctx, idx, s.store, sc, provider.InlayHintParams{URI: uri, Range: rng})
	if err != nil {
		return errorResponse(id, err)
	}
	out := make([]map[string]any, 0, len(result.Hints))
	for _, h := range result.Hints {
		out = append(out, map[string]any{"position": protocol.FromDocumentPosition(h.Pos), "label": h.Label})
	}
	return protocol.NewResult(id, out)
}

func (s *Server) handleExecuteCommand(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params executeCommandParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	switch params.Command {
	case protocol.CommandOrganizeImports:
		if len(params.Arguments) == 0 {
			return protocol.NewError(id, protocol.ErrCodeInvalidParams, "organizeImports needs a document uri argument")
		}
		uri := document.URI(params.Arguments[0])
		sc, idx, ok := s.lookupForQuery(uri)
		if !ok {
			return protocol.NewResult(id, nil)
		}
		result, err := provider.OrganizeImports(ctx, idx, s.store, sc, provider.OrganizeImportsParams{URI: uri})
		if err != nil {
			return errorResponse(id, err)
		}
		return protocol.NewResult(id, workspaceEditToWire(result.Edit))
	default:
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, "unknown command: "+params.Command)
	}
}

// decompiledContentSource is the slice of the source locator that serves
// groovy/getDecompiledContent. Asserted at runtime because
// provider.SourceLocator deliberately stays narrow — only the transport
// needs raw content by URI.
type decompiledContentSource interface {
	ContentByURI(uri document.URI) (string, bool)
}

func (s *Server) handleGetDecompiledContent(id protocol.ID, req *protocol.Request) protocol.Response {
	var params getDecompiledContentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.URI)
	switch uri.Scheme() {
	case "decompiled", "jar", "jrt":
	default:
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, "getDecompiledContent serves decompiled:|jar:|jrt: uris only")
	}
	src, ok := s.locator.(decompiledContentSource)
	if !ok {
		return protocol.NewResult(id, nil)
	}
	content, ok := src.ContentByURI(uri)
	if !ok {
		return protocol.NewResult(id, nil)
	}
	return protocol.NewResult(id, map[string]any{"uri": params.URI, "content": content})
}

func (s *Server) handleFormatting(ctx context.Context, id protocol.ID, req *protocol.Request) protocol.Response {
	var params formattingParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewError(id, protocol.ErrCodeInvalidParams, err.Error())
	}
	uri := document.URI(params.TextDocument.URI)
	sc, idx, ok := s.lookupForQuery(uri)
	if !ok {
		return protocol.NewResult(id, []any{})
	}
	result, err := provider.Formatting(ctx, idx, s.store, sc, provider.FormattingParams{URI: uri, IndentSize: params.Options.TabSize})
	if err != nil {
		return errorResponse(id, err)
	}
	out := make([]map[string]any, 0, len(result.Edits))
	for _, e := range result.Edits {
		out = append(out, map[string]any{"range": protocol.FromDocumentRange(e.Range), "newText": e.NewText})
	}
	return protocol.NewResult(id, out)
}

func locationsToWire(locs []provider.Location) []protocol.Location {
	out := make([]protocol.Location, 0, len(locs))
	for _, l := range locs {
		out = append(out, protocol.Location{URI: string(l.URI), Range: protocol.FromDocumentRange(l.Range)})
	}
	return out
}

func symbolsToWire(syms []provider.Symbol) []map[string]any {
	out := make([]map[string]any, 0, len(syms))
	for _, sym := range syms {
		out = append(out, map[string]any{
			"name":          sym.Name,
			"kind":          sym.Kind,
			"location":      map[string]any{"uri": string(sym.Location.URI), "range": protocol.FromDocumentRange(sym.Location.Range)},
			"containerName": sym.Container,
		})
	}
	return out
}

func workspaceEditToWire(edit provider.WorkspaceEdit) map[string]any {
	changes := make(map[string][]map[string]any, len(edit.Changes))
	for uri, edits := range edit.Changes {
		list := make([]map[string]any, 0, len(edits))
		for _, e := range edits {
			list = append(list, map[string]any{"range": protocol.FromDocumentRange(e.Range), "newText": e.NewText})
		}
		changes[string(uri)] = list
	}
	out := map[string]any{"changes": changes}
	if len(edit.Renames) > 0 {
		renames := make([]map[string]any, 0, len(edit.Renames))
		for _, r := range edit.Renames {
			renames = append(renames, map[string]any{"oldUri": string(r.OldURI), "newUri": string(r.NewURI)})
		}
		out["documentChanges"] = renames
	}
	return out
}
