package dsl

import "testing"

func TestCheckConformance_AnyKindAlwaysPasses(t *testing.T) {
	if err := CheckConformance(IOSchema{Kind: KindAny}, 42); err != nil {
		t.Fatalf("expected no error for any-kind schema, got %v", err)
	}
}

func TestCheckConformance_ObjectAcceptsMatchingShape(t *testing.T) {
	schema := IOSchema{
		Kind: KindObject,
		Properties: map[string]IOSchema{
			"name": {Kind: KindString, Required: true},
			"age":  {Kind: KindNumber},
		},
	}
	if err := CheckConformance(schema, map[string]any{"name": "Alice", "age": 30.0}); err != nil {
		t.Fatalf("expected matching object to conform, got %v", err)
	}
}

func TestCheckConformance_RejectsMissingRequiredProperty(t *testing.T) {
	schema := IOSchema{
		Kind: KindObject,
		Properties: map[string]IOSchema{
			"name": {Kind: KindString, Required: true},
		},
	}
	if err := CheckConformance(schema, map[string]any{}); err == nil {
		t.Fatal("expected an error for a missing required property")
	}
}

func TestCheckConformance_RejectsWrongKind(t *testing.T) {
	schema := IOSchema{Kind: KindNumber}
	if err := CheckConformance(schema, "not a number"); err == nil {
		t.Fatal("expected an error for a string value against a number schema")
	}
}
