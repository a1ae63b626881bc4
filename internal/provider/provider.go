// Package provider implements the Editor-Query Providers (§4.7): one pure
// function per editor operation, each taking the scope's AST Index, the
// File Contents Store, and the Scope itself, returning a neutral/empty
// Result rather than an error for anything short of cancellation or a
// request routed to no scope — "providers run under the scope's reader
// lock... must handle a missing or partial AST by returning an
// empty/neutral result" (§4.7).
//
// Grounded on the teacher's internal/shards/matching.go "table of rules,
// each a pure function over context" shape, generalized here from "match a
// shard to a task" to "match a cursor position to a response".
package provider

import (
	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

// Location names a position in some URI, which may be a real workspace file
// or an external decompiled/jar URI resolved through a SourceLocator.
type Location struct {
	URI   document.URI
	Range document.Range
}

// TextEdit is one replacement within a single URI.
type TextEdit struct {
	Range   document.Range
	NewText string
}

// WorkspaceEdit groups text edits by URI, plus optional file-rename
// operations (§4.7's rename algorithm: "if the declaring node is a
// top-level class whose name matches its file stem, additionally emit a
// file-rename operation").
type WorkspaceEdit struct {
	Changes map[document.URI][]TextEdit
	Renames []FileRename
}

type FileRename struct {
	OldURI document.URI
	NewURI document.URI
}

func (w *WorkspaceEdit) addEdit(uri document.URI, edit TextEdit) {
	if w.Changes == nil {
		w.Changes = make(map[document.URI][]TextEdit)
	}
	w.Changes[uri] = append(w.Changes[uri], edit)
}

// SymbolKind mirrors the editor protocol's symbol-kind enumeration, scoped
// to the kinds astindex actually produces.
type SymbolKind int

const (
	SymbolKindFile SymbolKind = iota + 1
	SymbolKindModule
	SymbolKindNamespace
	SymbolKindPackage
	SymbolKindClass
	SymbolKindMethod
	SymbolKindProperty
	SymbolKindField
	SymbolKindConstructor
	SymbolKindEnum
	SymbolKindInterface
	SymbolKindVariable
)

// symbolKindFor maps an astindex.Kind to its editor-protocol symbol kind
// (§4.7: "document / workspace symbols... mapping AST kinds to symbol-kind
// tags").
func symbolKindFor(k astindex.Kind) (SymbolKind, bool) {
	switch k {
	case astindex.KindClass:
		return SymbolKindClass, true
	case astindex.KindInterface:
		return SymbolKindInterface, true
	case astindex.KindEnum:
		return SymbolKindEnum, true
	case astindex.KindTrait:
		return SymbolKindInterface, true
	case astindex.KindMethod:
		return SymbolKindMethod, true
	case astindex.KindConstructor:
		return SymbolKindConstructor, true
	case astindex.KindField:
		return SymbolKindField, true
	case astindex.KindProperty:
		return SymbolKindProperty, true
	case astindex.KindVariable:
		return SymbolKindVariable, true
	default:
		return 0, false
	}
}

// SourceLocator is the §6 collaborator providers consult when a declaring
// node resolves to a symbol not present in any open scope's AST Index (an
// external classpath entry, e.g. a decompiled class). Kept as a narrow
// interface here (rather than importing internal/sourcelocator directly) so
// provider stays a leaf package with no dependency on the transport or
// storage layers.
type SourceLocator interface {
	// FindClassLocation resolves a fully-qualified class name to a
	// (possibly synthetic, e.g. decompiled://) URI and location, or
	// ok=false if nothing is known about it.
	FindClassLocation(fqcn string) (Location, bool)
}

// signature renders a one-line declaration signature for hover/completion,
// preferring the node's own recorded Signature, falling back to Kind+Name.
func signature(n astindex.Node) string {
	if n.Signature != "" {
		return n.Signature
	}
	return n.Kind.String() + " " + n.Name
}
