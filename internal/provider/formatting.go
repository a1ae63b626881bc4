package provider

import (
	"context"
	"strings"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scope"
)

type FormattingParams struct {
	URI        document.URI
	IndentSize int
}

type FormattingResult struct {
	Edits []TextEdit
}

// Formatting implements §4.7's pretty-printer: reindent every line by brace
// depth, leaving token content and line count untouched so every position a
// client holds (cursor, diagnostics, breakpoints) still lands on the same
// line after the edit is applied. A full token-reflowing printer would need
// a real parse tree; this operates line-by-line over raw text the same way
// internal/frontend.LineScanner itself extracts facts line-by-line rather
// than building a token stream, since no Groovy grammar exists anywhere in
// the retrieval pack to back a real reflowing printer.
func Formatting(ctx context.Context, idx *astindex.Index, store *document.Store, _ *scope.Scope, params FormattingParams) (FormattingResult, error) {
	if err := checkCancel(ctx); err != nil {
		return FormattingResult{}, err
	}
	text, ok := store.Contents(params.URI)
	if !ok {
		return FormattingResult{}, nil
	}
	indentSize := params.IndentSize
	if indentSize <= 0 {
		indentSize = 2
	}
	lines := strings.Split(text, "\n")

	var edits []TextEdit
	depth := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lineDepth := depth
		if startsWithCloser(trimmed) {
			lineDepth--
		}
		if lineDepth < 0 {
			lineDepth = 0
		}
		want := strings.Repeat(" ", lineDepth*indentSize)
		current := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if current != want {
			edits = append(edits, TextEdit{
				Range:   document.Range{Start: document.Position{Line: i, Column: 0}, End: document.Position{Line: i, Column: len([]rune(current))}},
				NewText: want,
			})
		}
		depth += netBraceDelta(trimmed)
		if depth < 0 {
			depth = 0
		}
	}
	return FormattingResult{Edits: edits}, nil
}

func startsWithCloser(trimmed string) bool {
	return len(trimmed) > 0 && (trimmed[0] == '}' || trimmed[0] == ')')
}

// netBraceDelta counts unmatched opens minus closes on a single line,
// ignoring characters inside quoted string literals.
func netBraceDelta(line string) int {
	delta := 0
	inString := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inString != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inString = c
		case '{', '(':
			delta++
		case '}', ')':
			delta--
		}
	}
	return delta
}
