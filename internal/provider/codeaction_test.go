package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/astindex"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

func TestCodeActionsOffersAddOverrideForWellKnownMethodName(t *testing.T) {
	uri := document.URI("file:///ws/Widget.groovy")
	text := "class Widget {\n  String toString() {\n    return \"w\"\n  }\n}"
	store := document.NewStore()
	store.Open(uri, text, 1)

	arena := astindex.NewArena(uri)
	module := arena.Add(astindex.Node{Kind: astindex.KindModule, DeclaringNode: astindex.NoNode})
	cls := arena.Add(astindex.Node{Kind: astindex.KindClass, Name: "Widget", Range: rng(0, 0, 4, 1), Parent: module, DeclaringNode: astindex.NoNode})
	arena.AddChild(module, cls)
	method := arena.Add(astindex.Node{Kind: astindex.KindMethod, Name: "toString", Range: rng(1, 2, 3, 3), Parent: cls, DeclaringNode: astindex.NoNode})
	arena.AddChild(cls, method)
	field := arena.Add(astindex.Node{Kind: astindex.KindField, Name: "label", Range: rng(0, 18, 0, 23), Parent: cls, DeclaringNode: astindex.NoNode})
	arena.AddChild(cls, field)
	idx := astindex.NewIndex()
	idx.Set(uri, arena)

	result, err := CodeActions(context.Background(), idx, store, nil, CodeActionParams{URI: uri, Pos: document.Position{Line: 1, Column: 10}})
	assert.NoError(t, err)

	var titles []string
	for _, a := range result.Actions {
		titles = append(titles, a.Title)
	}
	assert.Contains(t, titles, "Add @Override")
	assert.Contains(t, titles, "Generate equals, hashCode, and toString")
}

func TestCodeActionsSkipsOverrideWhenAlreadyPresent(t *testing.T) {
	uri := document.URI("file:///ws/Widget.groovy")
	text := "class Widget {\n  @Override\n  String toString() {\n    return \"w\"\n  }\n}"
	store := document.NewStore()
	store.Open(uri, text, 1)

	arena := astindex.NewArena(uri)
	module := arena.Add(astindex.Node{Kind: astindex.KindModule, DeclaringNode: astindex.NoNode})
	cls := arena.Add(astindex.Node{Kind: astindex.KindClass, Name: "Widget", Range: rng(0, 0, 5, 1), Parent: module, DeclaringNode: astindex.NoNode})
	arena.AddChild(module, cls)
	method := arena.Add(astindex.Node{Kind: astindex.KindMethod, Name: "toString", Range: rng(2, 2, 4, 3), Parent: cls, DeclaringNode: astindex.NoNode})
	arena.AddChild(cls, method)
	anno := arena.Add(astindex.Node{Kind: astindex.KindAnnotation, Name: "Override", Range: rng(1, 2, 1, 11), Parent: method, DeclaringNode: astindex.NoNode})
	arena.AddChild(method, anno)
	idx := astindex.NewIndex()
	idx.Set(uri, arena)

	result, err := CodeActions(context.Background(), idx, store, nil, CodeActionParams{URI: uri, Pos: document.Position{Line: 2, Column: 10}})
	assert.NoError(t, err)
	for _, a := range result.Actions {
		assert.NotEqual(t, "Add @Override", a.Title)
	}
}

func TestCodeActionsOffersImplementInterfaceMethods(t *testing.T) {
	uri := document.URI("file:///ws/Widget.groovy")
	text := "interface Greeter {\n  String greet()\n}\nclass Widget implements Greeter {\n}"
	store := document.NewStore()
	store.Open(uri, text, 1)

	arena := astindex.NewArena(uri)
	module := arena.Add(astindex.Node{Kind: astindex.KindModule, DeclaringNode: astindex.NoNode})
	iface := arena.Add(astindex.Node{Kind: astindex.KindInterface, Name: "Greeter", Range: rng(0, 0, 2, 1), Parent: module, DeclaringNode: astindex.NoNode})
	arena.AddChild(module, iface)
	ifaceMethod := arena.Add(astindex.Node{Kind: astindex.KindMethod, Name: "greet", Signature: "String greet()", Range: rng(1, 2, 1, 17), Parent: iface, DeclaringNode: astindex.NoNode})
	arena.AddChild(iface, ifaceMethod)
	cls := arena.Add(astindex.Node{
		Kind: astindex.KindClass, Name: "Widget", Supertypes: []string{"Greeter"},
		Range: rng(3, 0, 4, 1), Parent: module, DeclaringNode: astindex.NoNode,
	})
	arena.AddChild(module, cls)
	idx := astindex.NewIndex()
	idx.Set(uri, arena)

	result, err := CodeActions(context.Background(), idx, store, nil, CodeActionParams{URI: uri, Pos: document.Position{Line: 3, Column: 10}})
	assert.NoError(t, err)

	var titles []string
	for _, a := range result.Actions {
		titles = append(titles, a.Title)
	}
	assert.Contains(t, titles, "Implement interface methods")
}

func TestOrganizeImportsDropsUnusedAndSortsByPath(t *testing.T) {
	uri := document.URI("file:///ws/Widget.groovy")
	text := "import z.y.Used\nimport a.b.Unused\nclass Widget {\n  Used u\n}"
	store := document.NewStore()
	store.Open(uri, text, 1)

	arena := astindex.NewArena(uri)
	module := arena.Add(astindex.Node{Kind: astindex.KindModule, DeclaringNode: astindex.NoNode})
	used := arena.Add(astindex.Node{Kind: astindex.KindImport, Name: "Used", Signature: "z.y.Used", Range: rng(0, 0, 0, 15), Parent: module, DeclaringNode: astindex.NoNode})
	unused := arena.Add(astindex.Node{Kind: astindex.KindImport, Name: "Unused", Signature: "a.b.Unused", Modifiers: []string{"unused"}, Range: rng(1, 0, 1, 17), Parent: module, DeclaringNode: astindex.NoNode})
	arena.AddChild(module, used)
	arena.AddChild(module, unused)
	idx := astindex.NewIndex()
	idx.Set(uri, arena)

	result, err := OrganizeImports(context.Background(), idx, store, nil, OrganizeImportsParams{URI: uri})
	assert.NoError(t, err)
	edits := result.Edit.Changes[uri]
	if assert.Len(t, edits, 1) {
		assert.Equal(t, "import z.y.Used", edits[0].NewText)
		assert.Equal(t, *rng(0, 0, 1, 17), edits[0].Range)
	}
}

func TestCodeActionsOffersTestSpecificationBlockSkeleton(t *testing.T) {
	uri := document.URI("file:///ws/WidgetSpec.groovy")
	text := "class WidgetSpec extends Specification {\n  def \"widgets work\"() {\n  }\n}"
	store := document.NewStore()
	store.Open(uri, text, 1)

	arena := astindex.NewArena(uri)
	module := arena.Add(astindex.Node{Kind: astindex.KindModule, DeclaringNode: astindex.NoNode})
	cls := arena.Add(astindex.Node{
		Kind: astindex.KindClass, Name: "WidgetSpec", Supertypes: []string{"Specification"},
		Range: rng(0, 0, 3, 1), Parent: module, DeclaringNode: astindex.NoNode,
	})
	arena.AddChild(module, cls)
	method := arena.Add(astindex.Node{Kind: astindex.KindMethod, Name: "widgets work", Range: rng(1, 2, 2, 3), Parent: cls, DeclaringNode: astindex.NoNode})
	arena.AddChild(cls, method)
	idx := astindex.NewIndex()
	idx.Set(uri, arena)

	result, err := CodeActions(context.Background(), idx, store, nil, CodeActionParams{URI: uri, Pos: document.Position{Line: 1, Column: 10}})
	assert.NoError(t, err)

	var titles []string
	for _, a := range result.Actions {
		titles = append(titles, a.Title)
	}
	assert.Contains(t, titles, "Insert test-specification block skeleton")
}
