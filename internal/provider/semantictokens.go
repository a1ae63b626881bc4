package provider

import (
	"context"
	"sort"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

// TokenType is an index into the server's fixed legend, sent once at
// initialize and referenced by number in every subsequent response (§4.7).
type TokenType int

const (
	TokenClass TokenType = iota
	TokenInterface
	TokenEnum
	TokenMethod
	TokenProperty
	TokenVariable
	TokenParameter
	TokenAnnotation
	TokenNamespace
)

// TokenTypeLegend is the fixed ordering advertised in server capabilities;
// TokenType values above are indices into this slice.
var TokenTypeLegend = []string{
	"class", "interface", "enum", "method", "property", "variable", "parameter", "decorator", "namespace",
}

// Token modifier bits, combined into one bitmask per token.
const (
	ModifierStatic uint32 = 1 << iota
	ModifierReadonly
	ModifierDeprecated
	ModifierDeclaration
)

// TokenModifierLegend names the bits above, in order.
var TokenModifierLegend = []string{"static", "readonly", "deprecated", "declaration"}

type SemanticTokensParams struct {
	URI document.URI
	// Range, when non-nil, restricts output to tokens starting inside it
	// (the semanticTokens/range request); nil means the full document.
	Range *document.Range
}

// SemanticTokensResult carries the raw delta-encoded tuples already
// serialized into the protocol's flat integer array: each token contributes
// 5 ints (deltaLine, deltaStartChar, length, tokenType, tokenModifiers).
type SemanticTokensResult struct {
	Data []uint32
}

// SemanticTokens implements §4.7: walk every node with a range, emit one
// token per recognized declaration/reference, sorted by position and
// delta-encoded against the previous token per the editor protocol's
// encoding (grounded on the same flat-array shape the teacher's wire codec
// uses for other array-of-tuples payloads).
func SemanticTokens(ctx context.Context, idx *astindex.Index, _ *document.Store, _ *scope.Scope, params SemanticTokensParams) (SemanticTokensResult, error) {
	if err := checkCancel(ctx); err != nil {
		return SemanticTokensResult{}, err
	}
	arena, ok := idx.Arena(params.URI)
	if !ok {
		return SemanticTokensResult{}, nil
	}

	type tok struct {
		r    document.Range
		typ  TokenType
		mods uint32
	}
	var toks []tok
	for _, n := range arena.NodesFor() {
		typ, ok := tokenTypeFor(n.Kind)
		if !ok || n.Range == nil {
			continue
		}
		if params.Range != nil && (n.Range.Start.Line < params.Range.Start.Line || n.Range.Start.Line > params.Range.End.Line) {
			continue
		}
		toks = append(toks, tok{r: *n.Range, typ: typ, mods: modifiersFor(n)})
	}
	sort.Slice(toks, func(i, j int) bool {
		if toks[i].r.Start.Line != toks[j].r.Start.Line {
			return toks[i].r.Start.Line < toks[j].r.Start.Line
		}
		return toks[i].r.Start.Column < toks[j].r.Start.Column
	})

	var data []uint32
	prevLine, prevCol := 0, 0
	for _, t := range toks {
		deltaLine := t.r.Start.Line - prevLine
		deltaCol := t.r.Start.Column
		if deltaLine == 0 {
			deltaCol = t.r.Start.Column - prevCol
		}
		length := t.r.End.Column - t.r.Start.Column
		if t.r.End.Line != t.r.Start.Line {
			length = t.r.End.Column
		}
		data = append(data, uint32(deltaLine), uint32(deltaCol), uint32(length), uint32(t.typ), t.mods)
		prevLine, prevCol = t.r.Start.Line, t.r.Start.Column
	}
	return SemanticTokensResult{Data: data}, nil
}

func tokenTypeFor(k astindex.Kind) (TokenType, bool) {
	switch k {
	case astindex.KindClass:
		return TokenClass, true
	case astindex.KindInterface, astindex.KindTrait:
		return TokenInterface, true
	case astindex.KindEnum:
		return TokenEnum, true
	case astindex.KindMethod, astindex.KindConstructor:
		return TokenMethod, true
	case astindex.KindField, astindex.KindProperty, astindex.KindVariable:
		return TokenProperty, true
	case astindex.KindParameter:
		return TokenParameter, true
	case astindex.KindAnnotation:
		return TokenAnnotation, true
	case astindex.KindModule:
		return TokenNamespace, true
	default:
		return 0, false
	}
}

func modifiersFor(n astindex.Node) uint32 {
	var mods uint32
	if n.DeclaringNode == astindex.NoNode {
		mods |= ModifierDeclaration
	}
	for _, m := range n.Modifiers {
		switch m {
		case "static":
			mods |= ModifierStatic
		case "final":
			mods |= ModifierReadonly
		case "deprecated":
			mods |= ModifierDeprecated
		}
	}
	return mods
}
