package registry

import (
	"context"
	"testing"

	"github.com/flowcraft/engine/internal/dsl"
)

func TestRegistry_RegisterGetHas(t *testing.T) {
	r := New()
	if r.Has("noop") {
		t.Fatal("expected empty registry")
	}
	r.Register(&NodeDefinition{
		ID:          "noop",
		DisplayName: "Noop",
		Run: func(ctx context.Context, inputs, params map[string]any, rc RunContext) (map[string]any, error) {
			return map[string]any{}, nil
		},
	})
	if !r.Has("noop") {
		t.Fatal("expected noop to be registered")
	}
	d, ok := r.Get("noop")
	if !ok || d.DisplayName != "Noop" {
		t.Fatalf("unexpected Get result: %+v, %v", d, ok)
	}
}

func TestRegistry_ReRegisterOverwrites(t *testing.T) {
	r := New()
	r.Register(&NodeDefinition{ID: "x", DisplayName: "first"})
	r.Register(&NodeDefinition{ID: "x", DisplayName: "second"})
	d, _ := r.Get("x")
	if d.DisplayName != "second" {
		t.Fatalf("expected overwrite, got %q", d.DisplayName)
	}
}

func TestRegistry_GetByCategoryAndTag(t *testing.T) {
	r := New()
	r.Register(&NodeDefinition{ID: "a", Display: Display{Category: "flow", Tags: []string{"branch"}}})
	r.Register(&NodeDefinition{ID: "b", Display: Display{Category: "flow", Tags: []string{"transform"}}})
	r.Register(&NodeDefinition{ID: "c", Display: Display{Category: "io", Tags: []string{"branch"}}})

	flow := r.GetByCategory("flow")
	if len(flow) != 2 {
		t.Fatalf("expected 2 flow nodes, got %d", len(flow))
	}
	branch := r.GetByTag("branch")
	if len(branch) != 2 {
		t.Fatalf("expected 2 branch-tagged nodes, got %d", len(branch))
	}
}

func TestRegistry_UnregisterAndClear(t *testing.T) {
	r := New()
	r.Register(&NodeDefinition{ID: "a"})
	r.Register(&NodeDefinition{ID: "b"})
	r.Unregister("a")
	if r.Has("a") {
		t.Fatal("expected a to be unregistered")
	}
	if !r.Has("b") {
		t.Fatal("expected b to remain")
	}
	r.Clear()
	if len(r.GetAll()) != 0 {
		t.Fatal("expected empty registry after Clear")
	}
}

func TestRegistry_Catalog(t *testing.T) {
	r := New()
	r.Register(&NodeDefinition{
		ID:          "template",
		DisplayName: "Template",
		Description: "renders a string template",
		Display:     Display{Icon: "type", Color: "#888", Category: "transform", Tags: []string{"text"}},
		Inputs:      map[string]dsl.IOSchema{"variables": {Kind: dsl.KindObject}},
		Outputs:     map[string]dsl.IOSchema{"result": {Kind: dsl.KindString}},
	})
	catalog := r.Catalog()
	if len(catalog) != 1 {
		t.Fatalf("expected 1 catalog entry, got %d", len(catalog))
	}
	entry := catalog[0]
	if entry.InputCount != 1 || entry.OutputCount != 1 {
		t.Fatalf("expected 1/1 port counts, got %d/%d", entry.InputCount, entry.OutputCount)
	}
}
