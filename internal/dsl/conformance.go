package dsl

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ToJSONSchema converts an IOSchema into a plain JSON Schema document.
// The runtime does not call this during ordinary execution — spec.md §9
// is explicit that node inputs/outputs are schema-unchecked — but it
// backs the optional conformance extension in CheckConformance.
func (s IOSchema) ToJSONSchema() map[string]any {
	if s.Kind == KindAny || s.Kind == "" {
		return map[string]any{}
	}

	out := map[string]any{"type": string(s.Kind)}
	if s.Description != "" {
		out["description"] = s.Description
	}

	switch s.Kind {
	case KindArray:
		if s.Items != nil {
			out["items"] = s.Items.ToJSONSchema()
		}
	case KindObject:
		if len(s.Properties) > 0 {
			props := make(map[string]any, len(s.Properties))
			var required []string
			for name, prop := range s.Properties {
				props[name] = prop.ToJSONSchema()
				if prop.Required {
					required = append(required, name)
				}
			}
			out["properties"] = props
			if len(required) > 0 {
				out["required"] = required
			}
		}
	}
	return out
}

// CheckConformance validates value against schema's JSON Schema
// projection, using gojsonschema. This is the optional runtime
// conformance extension spec.md §9 allows implementations to add; the
// scheduler itself never calls this — ports and params stay dynamically
// typed at run time, exactly matching the source's behavior.
func CheckConformance(schema IOSchema, value any) error {
	schemaDoc := schema.ToJSONSchema()
	if len(schemaDoc) == 0 {
		return nil // "any" kind, or an unset schema: nothing to check
	}

	schemaLoader := gojsonschema.NewGoLoader(schemaDoc)
	documentLoader := gojsonschema.NewGoLoader(wrapForSchema(value))

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("conformance check: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("value does not conform to schema: %v", msgs)
	}
	return nil
}

// wrapForSchema round-trips value through JSON so Go-native types
// (e.g. a struct) present to gojsonschema the same way a decoded
// map[string]any port value would.
func wrapForSchema(value any) any {
	b, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return value
	}
	return v
}
