// Package frontend is the core's seam onto the Groovy/Java compiler
// front-end (§1: "treated as an opaque library that consumes sources +
// classpath and emits a syntax/semantic AST plus diagnostics"). Frontend is
// an interface precisely so the real compiler can be swapped in without
// touching internal/compiler; the implementation here is a reference
// line-scanning extractor in the same spirit as the teacher's
// indexDocumentLocked (internal/mangle/lsp.go) and the tree-sitter walkers
// in internal/world — regex-driven fact extraction rather than a real
// parse tree, since no Groovy grammar exists anywhere in the retrieval
// pack to bind a real one to (see DESIGN.md).
package frontend

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

// Diagnostic mirrors one compiler-reported issue (§4.6), independent of the
// protocol wire format. Compile itself emits the unused-import diagnostics;
// internal/compiler appends the override-missing ones before handing
// diagnostics to the transport.
type Diagnostic struct {
	Range    document.Range
	Severity string // "error" | "warning" | "hint"
	Code     string
	Message  string
}

// Result is everything one file's compile produces.
type Result struct {
	Arena *astindex.Arena
	// Defines / References are symbol names, consumed by internal/depgraph
	// to build the per-scope dependency graph (§4.6).
	Defines       []string
	References    []string
	Imports       []ImportRef
	Diagnostics   []Diagnostic
	Incomplete    bool // true -> ParseIncomplete (§7): AST is partial
}

// ImportRef is one import statement: the simple name it brings into scope
// and the line it occupies, used by the unused-import diagnostic (§4.6) and
// organize-imports code action.
type ImportRef struct {
	FQCN   string
	Simple string
	Range  document.Range
}

// Frontend turns one file's source text (plus the project's resolved
// classpath, for symbols the front end would otherwise need external type
// information for) into a Result. Implementations must tolerate malformed
// input: §4.3 "parse failures are not fatal — the AST may be partial".
type Frontend interface {
	Compile(uri document.URI, text string, cp classpath.Path) Result
	// DetectLanguageVersion scans cp for the canonical core-artifact jar
	// name pattern (§4.5 step 4) and returns the version tag, or "" if none
	// is found.
	DetectLanguageVersion(cp classpath.Path) string
}

// LineScanner is the reference Frontend implementation (§6 expansion: "a
// reference implementation is still provided so the module is runnable end
// to end"). It understands enough Groovy surface syntax — class/interface/
// enum/trait headers, method and field/property declarations, imports,
// annotations, and Spock-style block labels — to drive every provider in
// §4.7 without needing a real semantic compiler.
type LineScanner struct{}

func NewLineScanner() *LineScanner { return &LineScanner{} }

var (
	reImport     = regexp.MustCompile(`^\s*import\s+(static\s+)?([\w.]+)(?:\s+as\s+(\w+))?\s*;?\s*$`)
	rePackage    = regexp.MustCompile(`^\s*package\s+([\w.]+)\s*;?\s*$`)
	reTypeDecl   = regexp.MustCompile(`^(\s*)((?:@\w+\s+|public\s+|private\s+|protected\s+|abstract\s+|final\s+|static\s+|strictfp\s+)*)(class|interface|enum|trait)\s+(\w+)(?:\s+extends\s+([\w.<>, ]+?))?(?:\s+implements\s+([\w.<>, ]+?))?\s*\{?`)
	reMethodDecl = regexp.MustCompile(`^(\s*)((?:@\w+\s+|public\s+|private\s+|protected\s+|static\s+|final\s+|abstract\s+|synchronized\s+|def\s+)*)(?:([\w.<>\[\]]+)\s+)?(\w+)\s*\(([^)]*)\)\s*\{?`)
	reFieldDecl  = regexp.MustCompile(`^(\s*)((?:@\w+\s+|public\s+|private\s+|protected\s+|static\s+|final\s+)*)(def|[\w.<>\[\]]+)\s+(\w+)\s*(=[^;]*)?;?\s*$`)
	reAnnotation = regexp.MustCompile(`^\s*(@\w+)\b`)
	reBlockLabel = regexp.MustCompile(`^\s*(given|when|then|expect|where|setup|cleanup|and)\s*:\s*$`)
	reIdentifier = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

var groovyKeywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "return": true, "def": true,
	"class": true, "interface": true, "enum": true, "trait": true, "import": true,
	"package": true, "public": true, "private": true, "protected": true, "static": true,
	"final": true, "abstract": true, "new": true, "true": true, "false": true, "null": true,
	"this": true, "super": true, "try": true, "catch": true, "finally": true, "throw": true,
	"throws": true, "extends": true, "implements": true, "void": true, "in": true,
	"case": true, "switch": true, "break": true, "continue": true, "instanceof": true,
	"as": true, "assert": true, "default": true, "do": true,
}

// Compile scans text line by line, building an Arena top-down (the module
// node first, every declaration added before the nodes nested under it)
// plus the symbol facts and diagnostics §4.6 and §4.7 need.
func (LineScanner) Compile(uri document.URI, text string, cp classpath.Path) Result {
	lines := strings.Split(text, "\n")
	arena := astindex.NewArena(uri)

	moduleRange := &document.Range{
		Start: document.Position{Line: 0, Column: 0},
		End:   document.Position{Line: len(lines) - 1, Column: utf16Len(lastLine(lines))},
	}
	module := arena.Add(astindex.Node{Kind: astindex.KindModule, Name: string(uri), Range: moduleRange, Parent: astindex.NoNode, DeclaringNode: astindex.NoNode})
	arena.Root = module

	var defines, references []string
	var imports []ImportRef
	var importNodes []astindex.NodeID
	var diagnostics []Diagnostic

	// stack of currently-open block scopes, tracked by brace depth so
	// fields/methods nest under the innermost open type declaration.
	type openScope struct {
		id    astindex.NodeID
		kind  astindex.Kind
		depth int
	}
	depth := 0
	stack := []openScope{{id: module, kind: astindex.KindModule, depth: -1}}
	top := func() openScope { return stack[len(stack)-1] }

	referencedIdents := map[string]bool{}

	for i, raw := range lines {
		line := raw
		trimmed := strings.TrimSpace(line)

		openCount := strings.Count(line, "{")
		closeCount := strings.Count(line, "}")

		switch {
		case trimmed == "":
		case rePackage.MatchString(trimmed):
		case reImport.MatchString(trimmed):
			m := reImport.FindStringSubmatch(trimmed)
			fqcn := m[2]
			simple := m[3]
			if simple == "" {
				parts := strings.Split(fqcn, ".")
				simple = parts[len(parts)-1]
			}
			rng := lineRange(i, line)
			imports = append(imports, ImportRef{FQCN: fqcn, Simple: simple, Range: rng})
			id := arena.Add(astindex.Node{
				Kind: astindex.KindImport, Name: simple, Signature: fqcn,
				Range: &rng, Parent: top().id, DeclaringNode: astindex.NoNode,
			})
			arena.AddChild(top().id, id)
			importNodes = append(importNodes, id)

		case reAnnotation.MatchString(trimmed) && !reTypeDecl.MatchString(trimmed) && !reMethodDecl.MatchString(trimmed):
			m := reAnnotation.FindStringSubmatch(trimmed)
			rng := lineRange(i, line)
			id := arena.Add(astindex.Node{Kind: astindex.KindAnnotation, Name: m[1], Range: &rng, Parent: top().id, DeclaringNode: astindex.NoNode})
			arena.AddChild(top().id, id)

		case reTypeDecl.MatchString(trimmed):
			m := reTypeDecl.FindStringSubmatch(trimmed)
			kind := typeKeywordKind(m[3])
			name := m[4]
			sig := strings.TrimSpace(trimmed)
			rng := lineRange(i, line)
			supers := splitTypeList(m[5])
			ifaces := splitTypeList(m[6])
			id := arena.Add(astindex.Node{
				Kind: kind, Name: name, Signature: sig, Doc: "",
				Supertypes: append(append([]string{}, supers...), ifaces...),
				Range:      &rng, Parent: top().id, DeclaringNode: astindex.NoNode,
			})
			arena.AddChild(top().id, id)
			defines = append(defines, name)
			for _, super := range supers {
				referencedIdents[super] = true
			}
			for _, iface := range ifaces {
				referencedIdents[iface] = true
			}
			if strings.Contains(line, "{") {
				stack = append(stack, openScope{id: id, kind: kind, depth: depth})
			}

		case reBlockLabel.MatchString(trimmed) && top().kind == astindex.KindMethod:
			m := reBlockLabel.FindStringSubmatch(trimmed)
			rng := lineRange(i, line)
			id := arena.Add(astindex.Node{Kind: astindex.KindBlock, Name: m[1], Range: &rng, Parent: top().id, DeclaringNode: astindex.NoNode})
			arena.AddChild(top().id, id)

		case reMethodDecl.MatchString(trimmed) && (top().kind == astindex.KindClass || top().kind == astindex.KindInterface || top().kind == astindex.KindTrait || top().kind == astindex.KindEnum):
			m := reMethodDecl.FindStringSubmatch(trimmed)
			name := m[4]
			if groovyKeywords[name] {
				break
			}
			sig := strings.TrimSpace(trimmed)
			rng := lineRange(i, line)
			kind := astindex.KindMethod
			parentNode, _ := arena.Node(top().id)
			if name == parentNode.Name {
				kind = astindex.KindConstructor
			}
			id := arena.Add(astindex.Node{Kind: kind, Name: name, Signature: sig, Modifiers: parseModifiers(m[2]), Range: &rng, Parent: top().id, DeclaringNode: astindex.NoNode})
			arena.AddChild(top().id, id)
			defines = append(defines, name)
			for _, ident := range reIdentifier.FindAllString(m[5], -1) {
				if !groovyKeywords[ident] {
					referencedIdents[ident] = true
				}
			}
			if m[3] != "" && !groovyKeywords[m[3]] {
				referencedIdents[m[3]] = true
			}
			if strings.Contains(line, "{") {
				stack = append(stack, openScope{id: id, kind: astindex.KindMethod, depth: depth})
			}

		case reFieldDecl.MatchString(trimmed) && (top().kind == astindex.KindClass || top().kind == astindex.KindInterface || top().kind == astindex.KindTrait || top().kind == astindex.KindEnum):
			m := reFieldDecl.FindStringSubmatch(trimmed)
			name := m[4]
			if groovyKeywords[name] {
				break
			}
			kind := astindex.KindProperty
			mods := parseModifiers(m[2])
			for _, mod := range mods {
				if mod == "private" || mod == "public" || mod == "protected" {
					kind = astindex.KindField
				}
			}
			rng := lineRange(i, line)
			id := arena.Add(astindex.Node{Kind: kind, Name: name, Signature: strings.TrimSpace(trimmed), Modifiers: mods, Range: &rng, Parent: top().id, DeclaringNode: astindex.NoNode})
			arena.AddChild(top().id, id)
			defines = append(defines, name)
			if m[3] != "def" && !groovyKeywords[m[3]] {
				referencedIdents[baseTypeName(m[3])] = true
			}

		case top().kind == astindex.KindMethod:
			var declaredName string
			if v := strings.TrimPrefix(trimmed, "def "); v != trimmed {
				if name := firstIdentifier(v); name != "" {
					rng := lineRange(i, line)
					id := arena.Add(astindex.Node{Kind: astindex.KindVariable, Name: name, Range: &rng, Parent: top().id, DeclaringNode: astindex.NoNode})
					arena.AddChild(top().id, id)
					defines = append(defines, name)
					declaredName = name
				}
			}
			emitIdentifierNodes(arena, top().id, i, line, declaredName, referencedIdents)

		default:
			emitIdentifierNodes(arena, top().id, i, line, "", referencedIdents)
		}

		depth += openCount - closeCount
		for closeCount > 0 && len(stack) > 1 && depth <= top().depth {
			stack = stack[:len(stack)-1]
			closeCount--
		}
	}

	for name := range referencedIdents {
		references = append(references, name)
	}

	for k, imp := range imports {
		if !referencedIdents[imp.Simple] {
			diagnostics = append(diagnostics, Diagnostic{
				Range:    imp.Range,
				Severity: "hint",
				Code:     "unnecessary",
				Message:  fmt.Sprintf("unused import: %s", imp.FQCN),
			})
			// Tag the node itself so organize-imports can drop it without
			// re-deriving the referenced-type set.
			id := importNodes[k]
			arena.Nodes[id].Modifiers = append(arena.Nodes[id].Modifiers, "unused")
		}
	}

	return Result{
		Arena:       arena,
		Defines:     defines,
		References:  references,
		Imports:     imports,
		Diagnostics: diagnostics,
		Incomplete:  depth != 0, // unbalanced braces: best-effort recovery only
	}
}

var coreArtifactPattern = regexp.MustCompile(`groovy-(?:core-)?(\d[\w.-]*)\.(?:jar|zip)$`)

// DetectLanguageVersion scans cp for a file matching the canonical core
// artifact pattern (§4.5 step 4).
func (LineScanner) DetectLanguageVersion(cp classpath.Path) string {
	for _, e := range cp.Entries() {
		if m := coreArtifactPattern.FindStringSubmatch(e.Path); m != nil {
			return m[1]
		}
	}
	return ""
}

func typeKeywordKind(kw string) astindex.Kind {
	switch kw {
	case "interface":
		return astindex.KindInterface
	case "enum":
		return astindex.KindEnum
	case "trait":
		return astindex.KindTrait
	default:
		return astindex.KindClass
	}
}

func parseModifiers(raw string) []string {
	var out []string
	for _, f := range strings.Fields(raw) {
		f = strings.TrimSuffix(f, " ")
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func splitTypeList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		name := baseTypeName(strings.TrimSpace(part))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func baseTypeName(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.Index(t, "<"); i >= 0 {
		t = t[:i]
	}
	if i := strings.LastIndex(t, "."); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSpace(t)
}

func firstIdentifier(s string) string {
	m := reIdentifier.FindString(s)
	return m
}

// emitIdentifierNodes adds one Identifier node per non-keyword token on the
// line (skip declaredName, the variable this same line just declared, to
// avoid a node that would trivially resolve to itself), and records every
// name into referencedIdents for the unused-import / dependency-graph
// facts. These are the nodes a cursor inside a method body actually lands
// on for definition/references/hover (§4.7) — declaration headers
// (extends/implements, field/parameter types) are covered by defines/
// references facts only, not precise per-occurrence nodes, a deliberate
// simplification of this reference front end (see DESIGN.md).
func emitIdentifierNodes(arena *astindex.Arena, parent astindex.NodeID, lineNo int, line string, declaredName string, referencedIdents map[string]bool) {
	for _, loc := range reIdentifier.FindAllStringIndex(line, -1) {
		ident := line[loc[0]:loc[1]]
		if groovyKeywords[ident] || ident == declaredName {
			continue
		}
		referencedIdents[ident] = true
		rng := document.Range{
			Start: document.Position{Line: lineNo, Column: loc[0]},
			End:   document.Position{Line: lineNo, Column: loc[1]},
		}
		id := arena.Add(astindex.Node{Kind: astindex.KindIdentifier, Name: ident, Range: &rng, Parent: parent, DeclaringNode: astindex.NoNode})
		arena.AddChild(parent, id)
	}
}

func lineRange(lineNo int, line string) document.Range {
	return document.Range{
		Start: document.Position{Line: lineNo, Column: leadingWhitespaceLen(line)},
		End:   document.Position{Line: lineNo, Column: utf16Len(line)},
	}
}

func leadingWhitespaceLen(s string) int {
	n := 0
	for _, r := range s {
		if r != ' ' && r != '\t' {
			break
		}
		n++
	}
	return n
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func lastLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
