package provider

import (
	"context"
	"sort"
	"strings"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

// CompletionContextKind classifies what the cursor is sitting in, which
// determines the candidate pool a completion request draws from (§4.7).
type CompletionContextKind int

const (
	ContextUnknown CompletionContextKind = iota
	ContextMemberAccess
	ContextTypeName
	ContextAnnotation
	ContextClassBody
	ContextMethodBody
	// ContextBlockLabel is the cursor sitting on a bare line inside a
	// method of a test-specification class (one extending Specification),
	// where a given:/when:/then:/expect:/where:/setup:/cleanup:/and:
	// block label is the expected completion.
	ContextBlockLabel
)

type CompletionParams struct {
	URI document.URI
	Pos document.Position
}

// CompletionItem is one candidate, snippet-formatted for member/constructor
// insertion (e.g. "foo(${1:arg})").
type CompletionItem struct {
	Label      string
	Kind       SymbolKind
	InsertText string
	Detail     string
}

type CompletionResult struct {
	Items []CompletionItem
}

// Completion implements §4.7: classify the cursor context, enumerate the
// candidates that context permits, filter by the prefix already typed.
func Completion(ctx context.Context, idx *astindex.Index, store *document.Store, _ *scope.Scope, params CompletionParams) (CompletionResult, error) {
	if err := checkCancel(ctx); err != nil {
		return CompletionResult{}, err
	}
	text, _ := store.Contents(params.URI)
	lines := strings.Split(text, "\n")
	prefix, receiver, kind := classifyCompletionContext(idx, params, lines)

	var candidates []CompletionItem
	switch kind {
	case ContextMemberAccess:
		candidates = memberCandidates(idx, receiver)
	case ContextAnnotation:
		candidates = annotationCandidates()
	case ContextBlockLabel:
		candidates = blockLabelCandidates()
	default:
		candidates = workspaceDeclarationCandidates(idx)
	}

	items := make([]CompletionItem, 0, len(candidates))
	for _, c := range candidates {
		if prefix == "" || strings.HasPrefix(strings.ToLower(c.Label), strings.ToLower(prefix)) {
			items = append(items, c)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return CompletionResult{Items: items}, nil
}

// classifyCompletionContext inspects the text immediately before the cursor:
// a trailing "ident." means member access on ident; a trailing "@" means an
// annotation name; otherwise the in-progress identifier prefix is used for
// plain declaration-name completion (§4.7's listed context kinds, reduced to
// what a regex-scanned AST can actually distinguish).
func classifyCompletionContext(idx *astindex.Index, params CompletionParams, lines []string) (prefix, receiver string, kind CompletionContextKind) {
	if params.Pos.Line >= len(lines) {
		return "", "", ContextUnknown
	}
	line := lines[params.Pos.Line]
	runes := []rune(line)
	col := params.Pos.Column
	if col > len(runes) {
		col = len(runes)
	}
	before := string(runes[:col])

	if i := strings.LastIndexByte(before, '.'); i >= 0 {
		prefix = before[i+1:]
		recvStart := i
		for recvStart > 0 && isIdentByte(before[recvStart-1]) {
			recvStart--
		}
		return prefix, before[recvStart:i], ContextMemberAccess
	}
	if i := strings.LastIndexByte(before, '@'); i >= 0 && !strings.ContainsAny(before[i+1:], " \t(") {
		return before[i+1:], "", ContextAnnotation
	}

	start := col
	for start > 0 && isIdentByte(byte(runes[start-1])) {
		start--
	}
	prefix = string(runes[start:col])
	if isInTestSpecificationMethod(idx, params.URI, params.Pos) {
		return prefix, "", ContextBlockLabel
	}
	return prefix, "", ContextClassBody
}

// isInTestSpecificationMethod reports whether pos sits inside a method of a
// class extending Specification (the Spock convention a test-specification
// class follows), the condition under which a bare line is completing a
// given:/when:/then: block label rather than an ordinary statement.
func isInTestSpecificationMethod(idx *astindex.Index, uri document.URI, pos document.Position) bool {
	arena, nodeID, ok := idx.NodeAt(uri, pos)
	if !ok {
		return false
	}
	fnID, ok := arena.EnclosingOfKind(nodeID, astindex.KindMethod)
	if !ok {
		return false
	}
	clID, ok := arena.EnclosingOfKind(fnID, astindex.KindClass)
	if !ok {
		return false
	}
	cl, ok := arena.Node(clID)
	if !ok {
		return false
	}
	for _, s := range cl.Supertypes {
		if s == "Specification" {
			return true
		}
	}
	return false
}

// blockLabelCandidates lists the Spock block labels as snippet-format
// completion items, each a colon-terminated label on its own line so
// accepting one leaves the cursor ready for the block's body.
func blockLabelCandidates() []CompletionItem {
	labels := []string{"given", "when", "then", "expect", "where", "setup", "cleanup", "and"}
	out := make([]CompletionItem, len(labels))
	for i, l := range labels {
		out[i] = CompletionItem{Label: l + ":", Kind: SymbolKindVariable, InsertText: l + ":\n    $0"}
	}
	return out
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// memberCandidates resolves receiver to a declaration (by simple name match
// across the index, since no type-checker exists) and lists its members.
func memberCandidates(idx *astindex.Index, receiver string) []CompletionItem {
	var out []CompletionItem
	for _, uri := range idx.URIs() {
		arena, ok := idx.Arena(uri)
		if !ok {
			continue
		}
		for _, n := range arena.NodesFor() {
			if n.Kind != astindex.KindClass && n.Kind != astindex.KindInterface && n.Kind != astindex.KindTrait {
				continue
			}
			if n.Name != receiver {
				continue
			}
			for _, childID := range n.Children {
				child, ok := arena.Node(childID)
				if !ok {
					continue
				}
				item, ok := memberItem(child)
				if ok {
					out = append(out, item)
				}
			}
		}
	}
	return out
}

func memberItem(n astindex.Node) (CompletionItem, bool) {
	switch n.Kind {
	case astindex.KindMethod:
		return CompletionItem{Label: n.Name, Kind: SymbolKindMethod, InsertText: n.Name + "($1)", Detail: signature(n)}, true
	case astindex.KindField, astindex.KindProperty:
		kind := SymbolKindField
		if n.Kind == astindex.KindProperty {
			kind = SymbolKindProperty
		}
		return CompletionItem{Label: n.Name, Kind: kind, InsertText: n.Name, Detail: signature(n)}, true
	default:
		return CompletionItem{}, false
	}
}

// workspaceDeclarationCandidates lists every top-level declared name visible
// across the scope, used for type-name and bare identifier completion.
func workspaceDeclarationCandidates(idx *astindex.Index) []CompletionItem {
	var out []CompletionItem
	for _, uri := range idx.URIs() {
		arena, ok := idx.Arena(uri)
		if !ok {
			continue
		}
		for _, n := range arena.NodesFor() {
			kind, ok := symbolKindFor(n.Kind)
			if !ok {
				continue
			}
			out = append(out, CompletionItem{Label: n.Name, Kind: kind, InsertText: n.Name, Detail: signature(n)})
		}
	}
	return out
}

var wellKnownAnnotations = []string{
	"Override", "Deprecated", "SuppressWarnings", "CompileStatic", "TypeChecked",
	"Canonical", "ToString", "EqualsAndHashCode", "Immutable", "Singleton", "Grab",
}

func annotationCandidates() []CompletionItem {
	out := make([]CompletionItem, len(wellKnownAnnotations))
	for i, name := range wellKnownAnnotations {
		out[i] = CompletionItem{Label: name, Kind: SymbolKindClass, InsertText: name}
	}
	return out
}
