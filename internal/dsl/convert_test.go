package dsl

import (
	"reflect"
	"testing"
)

func TestEditorGraphRoundTrip(t *testing.T) {
	w := WorkflowDSL{
		DSLVersion: CurrentDSLVersion,
		Meta:       WorkflowMeta{Name: "roundtrip"},
		Secrets:    []string{"OPENAI_KEY"},
		Nodes: []Node{
			{
				ID:   "a",
				Type: "template",
				Params: map[string]ParamValue{
					"template": {Type: ParamStatic, Value: "hello {{name}}"},
				},
				Outputs: map[string]IOSchema{"result": {Kind: KindString}},
			},
			{ID: "b", Type: "output", Inputs: map[string]IOSchema{"value": {Kind: KindAny}}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "a", Target: "b", SourceHandle: "result", TargetHandle: "value"},
		},
	}

	positions := map[string]Position{
		"a": {X: 10, Y: 20},
		"b": {X: 100, Y: 20},
	}

	graph := ToEditorGraph(w, positions)
	gotDSL, gotPositions := FromEditorGraph(graph)

	if !reflect.DeepEqual(w, gotDSL) {
		t.Fatalf("round trip not identity on DSL fields:\nwant %+v\ngot  %+v", w, gotDSL)
	}
	if !reflect.DeepEqual(positions, gotPositions) {
		t.Fatalf("positions not preserved:\nwant %+v\ngot  %+v", positions, gotPositions)
	}
}
