package prefs_test

import (
	"errors"
	"testing"

	prefs "github.com/goliatone/go-prefs"
)

func TestNodeRejectsReservedCharacters(t *testing.T) {
	tests := []struct {
		name string
		set  func(*prefs.Node) error
	}{
		{name: "separator in string key", set: func(n *prefs.Node) error { return n.SetString("a#b", "x") }},
		{name: "type separator in string value", set: func(n *prefs.Node) error { return n.SetString("a", "b$c") }},
		{name: "separator in boolean key", set: func(n *prefs.Node) error { return n.SetBoolean("on#off", true) }},
		{name: "type separator in long key", set: func(n *prefs.Node) error { return n.SetLong("x$", 1) }},
		{name: "type separator in child key", set: func(n *prefs.Node) error { return n.SetChildObject("x$y", prefs.NewNode()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := prefs.NewNode()
			err := tt.set(node)
			if !errors.Is(err, prefs.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var validationErr *prefs.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if !node.IsEmpty() {
				t.Fatalf("rejected write must leave the node untouched")
			}
		})
	}
}

func TestNodeSetChildObjectGuards(t *testing.T) {
	node := prefs.NewNode()
	if err := node.SetChildObject("a", nil); !errors.Is(err, prefs.ErrNilChild) {
		t.Fatalf("expected ErrNilChild, got %v", err)
	}
	if err := node.SetChildObject("self", node); !errors.Is(err, prefs.ErrCyclicChild) {
		t.Fatalf("expected ErrCyclicChild, got %v", err)
	}
}

func TestNodeChildIsShared(t *testing.T) {
	parent := prefs.NewNode()
	child := prefs.NewNode()
	mustNoErr(t, parent.SetChildObject("c", child))
	mustNoErr(t, child.SetInteger("n", 3))

	got, ok := parent.GetChildObject("c")
	if !ok || got != child {
		t.Fatalf("expected parent to keep a reference to the child")
	}
	if value, _ := got.GetInteger("n"); value != 3 {
		t.Fatalf("later child mutation not visible through parent")
	}
}

func TestNodeAccessorsAndKeys(t *testing.T) {
	node := prefs.NewNode()
	mustNoErr(t, node.SetBoolean("b", true))
	mustNoErr(t, node.SetByte("y", 9))
	mustNoErr(t, node.SetShort("s", -2))
	mustNoErr(t, node.SetInteger("i", 42))
	mustNoErr(t, node.SetLong("z", 1))
	mustNoErr(t, node.SetLong("a", 2))
	mustNoErr(t, node.SetString("str", ""))

	if v, ok := node.GetBoolean("b"); !ok || !v {
		t.Fatalf("GetBoolean = %v, %v", v, ok)
	}
	if v, ok := node.GetByte("y"); !ok || v != 9 {
		t.Fatalf("GetByte = %v, %v", v, ok)
	}
	if v, ok := node.GetShort("s"); !ok || v != -2 {
		t.Fatalf("GetShort = %v, %v", v, ok)
	}
	if v, ok := node.GetInteger("i"); !ok || v != 42 {
		t.Fatalf("GetInteger = %v, %v", v, ok)
	}
	if v, ok := node.GetString("str"); !ok || v != "" {
		t.Fatalf("GetString = %q, %v", v, ok)
	}
	if _, ok := node.GetString("missing"); ok {
		t.Fatalf("GetString reported a missing key")
	}
	if keys := node.LongKeys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "z" {
		t.Fatalf("LongKeys not sorted: %v", keys)
	}

	node.DeleteLong("a")
	node.DeleteLong("z")
	if len(node.LongKeys()) != 0 {
		t.Fatalf("DeleteLong left keys behind")
	}
}

func TestNodeCloneIsDeep(t *testing.T) {
	original := prefs.NewNode()
	child := prefs.NewNode()
	mustNoErr(t, child.SetString("k", "v"))
	mustNoErr(t, original.SetChildObject("c", child))

	clone := original.Clone()
	if !clone.Equal(original) {
		t.Fatalf("clone differs from original")
	}
	mustNoErr(t, child.SetString("k", "changed"))
	if clone.Equal(original) {
		t.Fatalf("clone shares child state with original")
	}
}

func TestNodeToMap(t *testing.T) {
	node := prefs.NewNode()
	mustNoErr(t, node.SetString("Status", "OPEN"))
	child := prefs.NewNode()
	mustNoErr(t, child.SetBoolean("on", true))
	mustNoErr(t, node.SetChildObject("42", child))

	out := node.ToMap()
	strs, ok := out["String"].(map[string]any)
	if !ok || strs["Status"] != "OPEN" {
		t.Fatalf("unexpected String group: %#v", out["String"])
	}
	children, ok := out["Child"].(map[string]any)
	if !ok {
		t.Fatalf("missing Child group: %#v", out)
	}
	nested, ok := children["42"].(map[string]any)
	if !ok {
		t.Fatalf("missing child 42: %#v", children)
	}
	if bools, _ := nested["Boolean"].(map[string]any); bools["on"] != true {
		t.Fatalf("unexpected nested Boolean group: %#v", nested)
	}
	if _, ok := out["Long"]; ok {
		t.Fatalf("empty groups should be omitted")
	}
}

func TestParsePreferenceType(t *testing.T) {
	for _, typ := range append(prefs.PrimitiveTypes(), prefs.TypeChild) {
		parsed, ok := prefs.ParsePreferenceType(typ.String())
		if !ok || parsed != typ {
			t.Fatalf("ParsePreferenceType(%q) = %v, %v", typ.String(), parsed, ok)
		}
	}
	if parsed, ok := prefs.ParsePreferenceType("Float"); ok || parsed != prefs.TypeUnknown {
		t.Fatalf("expected Float to be unknown, got %v, %v", parsed, ok)
	}
	if prefs.TypeChild.IsPrimitive() {
		t.Fatalf("Child must not be primitive")
	}
}
