package provider

import (
	"context"
	"strings"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

type InlayHintParams struct {
	URI document.URI
	// Range restricts hints to the given line window; nil means the whole
	// document.
	Range *document.Range
}

// InlayHint is one rendered hint: a label the editor paints immediately
// before Pos.
type InlayHint struct {
	Pos   document.Position
	Label string
}

type InlayHintsResult struct {
	Hints []InlayHint
}

// InlayHints emits parameter-name hints at call sites: for every call on a
// line in range whose callee resolves to exactly one method declared in the
// scope, each positional argument gets a "name:" hint. Ambiguous callees
// (overloads with differing parameter names) and already-named arguments
// produce nothing — a wrong hint is worse than no hint.
func InlayHints(ctx context.Context, idx *astindex.Index, store *document.Store, _ *scope.Scope, params InlayHintParams) (InlayHintsResult, error) {
	if err := checkCancel(ctx); err != nil {
		return InlayHintsResult{}, err
	}
	text, _ := store.Contents(params.URI)
	if text == "" {
		return InlayHintsResult{}, nil
	}
	paramNames := uniqueMethodParams(idx)
	if len(paramNames) == 0 {
		return InlayHintsResult{}, nil
	}
	declLines := declarationLines(idx, params.URI)

	lines := strings.Split(text, "\n")
	first, last := 0, len(lines)-1
	if params.Range != nil {
		first, last = params.Range.Start.Line, params.Range.End.Line
	}

	var out []InlayHint
	for lineNo := first; lineNo <= last && lineNo < len(lines); lineNo++ {
		if err := checkCancel(ctx); err != nil {
			return InlayHintsResult{}, err
		}
		if lineNo < 0 || declLines[lineNo] {
			continue
		}
		out = append(out, lineHints(lines[lineNo], lineNo, paramNames)...)
	}
	return InlayHintsResult{Hints: out}, nil
}

// uniqueMethodParams maps each method name declared exactly once across the
// scope (or whose overloads agree on parameter names) to its parameter
// names, with type annotations stripped.
func uniqueMethodParams(idx *astindex.Index) map[string][]string {
	out := map[string][]string{}
	ambiguous := map[string]bool{}
	for _, uri := range idx.URIs() {
		arena, ok := idx.Arena(uri)
		if !ok {
			continue
		}
		for _, n := range arena.NodesFor() {
			if n.Kind != astindex.KindMethod && n.Kind != astindex.KindConstructor {
				continue
			}
			names := paramNamesOf(n.Signature)
			if len(names) == 0 {
				continue
			}
			if prior, seen := out[n.Name]; seen {
				if !equalStrings(prior, names) {
					ambiguous[n.Name] = true
				}
				continue
			}
			out[n.Name] = names
		}
	}
	for name := range ambiguous {
		delete(out, name)
	}
	return out
}

// paramNamesOf reduces each parameter label to its bare name (the last
// identifier token, e.g. "Map<String, Integer> opts" -> "opts").
func paramNamesOf(sig string) []string {
	labels := parameterLabels(sig)
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		fields := strings.Fields(l)
		if len(fields) == 0 {
			return nil
		}
		name := fields[len(fields)-1]
		if !isIdentifierWord(name) {
			return nil
		}
		out = append(out, name)
	}
	return out
}

func isIdentifierWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// declarationLines marks lines that hold method/constructor declarations in
// uri's arena, so a declaration's own parameter list never gets hinted as if
// it were a call.
func declarationLines(idx *astindex.Index, uri document.URI) map[int]bool {
	out := map[int]bool{}
	arena, ok := idx.Arena(uri)
	if !ok {
		return out
	}
	for _, n := range arena.NodesFor() {
		if (n.Kind == astindex.KindMethod || n.Kind == astindex.KindConstructor) && n.Range != nil {
			out[n.Range.Start.Line] = true
		}
	}
	return out
}

// lineHints finds every "name(" call on line and emits one hint per
// positional argument of a uniquely-resolved callee.
func lineHints(line string, lineNo int, paramNames map[string][]string) []InlayHint {
	var out []InlayHint
	for i := 0; i < len(line); i++ {
		if line[i] != '(' || i == 0 || !isIdentByte(line[i-1]) {
			continue
		}
		start := i
		for start > 0 && isIdentByte(line[start-1]) {
			start--
		}
		names, ok := paramNames[line[start:i]]
		if !ok {
			continue
		}
		for argIdx, argStart := range argumentStarts(line, i) {
			if argIdx >= len(names) {
				break
			}
			// An argument already written "name: value" needs no hint.
			if rest := strings.TrimSpace(line[argStart:]); strings.HasPrefix(rest, names[argIdx]+":") {
				continue
			}
			out = append(out, InlayHint{
				Pos:   document.Position{Line: lineNo, Column: argStart},
				Label: names[argIdx] + ":",
			})
		}
	}
	return out
}

// argumentStarts returns the column of each top-level argument's first
// non-space character inside the call whose "(" sits at openCol, or nil if
// the call has no arguments or never closes on this line.
func argumentStarts(line string, openCol int) []int {
	depth := 0
	var starts []int
	pending := true
	for i := openCol; i < len(line); i++ {
		c := line[i]
		if depth == 1 && pending && c != ' ' && c != '\t' && c != ',' && c != ')' {
			starts = append(starts, i)
			pending = false
		}
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return starts
			}
		case ',':
			if depth == 1 {
				pending = true
			}
		}
	}
	return nil
}
