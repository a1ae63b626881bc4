package provider

import (
	"context"
	"strings"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

type SignatureHelpParams struct {
	URI document.URI
	Pos document.Position
}

// SignatureInfo is one candidate signature: the rendered declaration line
// plus its parameter labels, in declaration order.
type SignatureInfo struct {
	Label      string
	Parameters []string
	Doc        string
}

// SignatureHelpResult is empty (no Signatures) when the cursor is not
// inside a call's argument list or the callee resolves to nothing known.
type SignatureHelpResult struct {
	Signatures      []SignatureInfo
	ActiveSignature int
	ActiveParameter int
}

// SignatureHelp locates the innermost unclosed call on the cursor's line,
// resolves the callee name against every method and constructor declared in
// the scope, and reports which parameter the cursor is on (the count of
// top-level commas already typed).
func SignatureHelp(ctx context.Context, idx *astindex.Index, store *document.Store, _ *scope.Scope, params SignatureHelpParams) (SignatureHelpResult, error) {
	if err := checkCancel(ctx); err != nil {
		return SignatureHelpResult{}, err
	}
	text, _ := store.Contents(params.URI)
	lines := strings.Split(text, "\n")
	if params.Pos.Line >= len(lines) {
		return SignatureHelpResult{}, nil
	}
	callee, argIndex, ok := enclosingCall(lines[params.Pos.Line], params.Pos.Column)
	if !ok {
		return SignatureHelpResult{}, nil
	}

	var sigs []SignatureInfo
	for _, uri := range idx.URIs() {
		if err := checkCancel(ctx); err != nil {
			return SignatureHelpResult{}, err
		}
		arena, ok := idx.Arena(uri)
		if !ok {
			continue
		}
		for _, n := range arena.NodesFor() {
			if n.Kind != astindex.KindMethod && n.Kind != astindex.KindConstructor {
				continue
			}
			if n.Name != callee {
				continue
			}
			sigs = append(sigs, SignatureInfo{Label: signature(n), Parameters: parameterLabels(n.Signature), Doc: n.Doc})
		}
	}
	if len(sigs) == 0 {
		return SignatureHelpResult{}, nil
	}

	// Prefer the first overload with enough parameters for the argument the
	// cursor is on; fall back to the first overload.
	active := 0
	for i, s := range sigs {
		if len(s.Parameters) > argIndex {
			active = i
			break
		}
	}
	return SignatureHelpResult{Signatures: sigs, ActiveSignature: active, ActiveParameter: argIndex}, nil
}

// enclosingCall walks backwards from col to the innermost unclosed "(" and
// returns the identifier immediately before it plus the number of top-level
// commas between that paren and the cursor.
func enclosingCall(line string, col int) (callee string, argIndex int, ok bool) {
	runes := []rune(line)
	if col > len(runes) {
		col = len(runes)
	}
	depth := 0
	open := -1
	commas := 0
	for i := col - 1; i >= 0; i-- {
		switch runes[i] {
		case ')':
			depth++
		case '(':
			if depth == 0 {
				open = i
			} else {
				depth--
			}
		case ',':
			if depth == 0 {
				commas++
			}
		}
		if open >= 0 {
			break
		}
	}
	if open <= 0 {
		return "", 0, false
	}
	end := open
	start := end
	for start > 0 && isIdentByte(byte(runes[start-1])) {
		start--
	}
	if start == end {
		return "", 0, false
	}
	name := string(runes[start:end])
	if groovyCallKeywords[name] {
		return "", 0, false
	}
	return name, commas, true
}

// groovyCallKeywords are identifier-shaped tokens that precede "(" without
// being a call the user wants help for.
var groovyCallKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "assert": true, "synchronized": true,
}

// parameterLabels splits sig's first parenthesized group into one label per
// parameter, honoring nested generics ("Map<String, Integer> opts" is one
// parameter, not two).
func parameterLabels(sig string) []string {
	open := strings.Index(sig, "(")
	close := strings.LastIndex(sig, ")")
	if open < 0 || close <= open {
		return nil
	}
	inner := sig[open+1 : close]
	if strings.TrimSpace(inner) == "" {
		return nil
	}
	var out []string
	depth := 0
	start := 0
	for i, r := range inner {
		switch r {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(inner[start:]))
	return out
}
