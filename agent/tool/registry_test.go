package tool

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/voyago/voyago/agent/contract"
)

func noopHandler(ctx context.Context, args map[string]any) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

func TestRegistryResolveUnknown(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	_, err := registry.Resolve("missing.tool")
	if !errors.Is(err, contractx.ErrToolNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrToolNotFound", err)
	}
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("demo.tool", "first", nil, "none", noopHandler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register("demo.tool", "second", nil, "none", noopHandler); err != nil {
		t.Fatalf("Register() overwrite error = %v", err)
	}

	desc, err := registry.Resolve("demo.tool")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if desc.Description != "second" {
		t.Fatalf("Description = %q, want overwritten descriptor", desc.Description)
	}
	if got := len(registry.List()); got != 1 {
		t.Fatalf("List() has %d entries, want 1", got)
	}
}

func TestRegistryRejectsInvalidDescriptors(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("  ", "no name", nil, "", noopHandler); err == nil {
		t.Fatal("Register() with empty name must fail")
	}
	if err := registry.Register("demo.tool", "no handler", nil, "", nil); err == nil {
		t.Fatal("Register() with nil handler must fail")
	}
	if err := registry.Register("demo.tool", "bad type", map[string]*ParamSpec{
		"x": {Type: ParamType("datetime")},
	}, "", noopHandler); err == nil {
		t.Fatal("Register() with unknown param type must fail")
	}
}

func TestInputSchemaRequiredFromDefaults(t *testing.T) {
	t.Parallel()

	desc, err := NewDescriptor("demo.tool", "demo", map[string]*ParamSpec{
		"city":   {Type: TypeString},
		"guests": {Type: TypeInteger, Default: 2},
	}, "demo output", noopHandler)
	if err != nil {
		t.Fatalf("NewDescriptor() error = %v", err)
	}

	schema := desc.InputSchema()
	required, ok := schema["required"].([]string)
	if !ok {
		t.Fatalf("schema has no required list: %#v", schema)
	}
	if len(required) != 1 || required[0] != "city" {
		t.Fatalf("required = %v, want [city]", required)
	}
}

// Every array-typed field must carry a non-nil items clause, including
// arrays with no statically known element shape.
func TestInputSchemaArrayItemsNeverNil(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	err := registry.Register("demo.tool", "demo", map[string]*ParamSpec{
		"tags":  {Type: TypeArray, Default: []any{}},
		"codes": {Type: TypeArray, Default: []any{}, Elem: &ParamSpec{Type: TypeString, Default: ""}},
		"nested": {Type: TypeObject, Default: map[string]any{},
			Fields: map[string]*ParamSpec{
				"rows": {Type: TypeArray, Default: []any{}},
			},
		},
	}, "demo output", noopHandler)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	for _, listing := range registry.Listings() {
		assertArrayItems(t, listing.InputSchema)
	}
}

func assertArrayItems(t *testing.T, node map[string]any) {
	t.Helper()

	if node["type"] == "array" {
		items, ok := node["items"].(map[string]any)
		if !ok || items == nil {
			t.Fatalf("array node missing items clause: %#v", node)
		}
		assertArrayItems(t, items)
	}
	if properties, ok := node["properties"].(map[string]any); ok {
		for _, raw := range properties {
			if child, ok := raw.(map[string]any); ok {
				assertArrayItems(t, child)
			}
		}
	}
}

func TestToolInfosMatchRegistry(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("b.tool", "second", nil, "", noopHandler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register("a.tool", "first", map[string]*ParamSpec{
		"ids": {Type: TypeArray},
	}, "", noopHandler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	infos := registry.ToolInfos()
	if len(infos) != 2 {
		t.Fatalf("ToolInfos() has %d entries, want 2", len(infos))
	}
	if infos[0].Name != "a.tool" || infos[1].Name != "b.tool" {
		t.Fatalf("ToolInfos() not sorted by name: %s, %s", infos[0].Name, infos[1].Name)
	}
}
