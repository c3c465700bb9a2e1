package resolve

import (
	"testing"

	"github.com/flowcraft/engine/internal/apperr"
	"github.com/flowcraft/engine/internal/dsl"
)

type fakeState struct {
	secrets map[string]any
	inputs  map[string]any
	outputs map[string]map[string]any
}

func (f *fakeState) Secret(ref string) (any, bool) {
	v, ok := f.secrets[ref]
	return v, ok
}

func (f *fakeState) Input(path string) any {
	return InputPath(f.inputs, path)
}

func (f *fakeState) Output(nodeID, port string) (any, bool) {
	n, ok := f.outputs[nodeID]
	if !ok {
		return nil, false
	}
	v, ok := n[port]
	return v, ok
}

func TestParam_Static(t *testing.T) {
	state := &fakeState{}
	v, err := Param(dsl.ParamValue{Type: dsl.ParamStatic, Value: "gpt-4"}, state)
	if err != nil || v != "gpt-4" {
		t.Fatalf("got %v, %v", v, err)
	}
}

func TestParam_Secret(t *testing.T) {
	state := &fakeState{secrets: map[string]any{"OPENAI_KEY": "sk-123"}}
	v, err := Param(dsl.ParamValue{Type: dsl.ParamSecret, Ref: "OPENAI_KEY"}, state)
	if err != nil || v != "sk-123" {
		t.Fatalf("got %v, %v", v, err)
	}
}

func TestParam_SecretMissing(t *testing.T) {
	state := &fakeState{secrets: map[string]any{}}
	_, err := Param(dsl.ParamValue{Type: dsl.ParamSecret, Ref: "OPENAI_KEY"}, state)
	if err == nil {
		t.Fatal("expected SecretMissing error")
	}
	if kind, ok := apperr.KindOf(err); !ok || kind != apperr.KindSecretMissing {
		t.Fatalf("expected SecretMissing kind, got %v", err)
	}
}

func TestParam_InputPath(t *testing.T) {
	state := &fakeState{inputs: map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 42.0}},
	}}
	v, err := Param(dsl.ParamValue{Type: dsl.ParamInput, Path: "a.b.c"}, state)
	if err != nil || v != 42.0 {
		t.Fatalf("got %v, %v", v, err)
	}
}

func TestParam_InputPathMissing(t *testing.T) {
	state := &fakeState{inputs: map[string]any{"a": map[string]any{}}}
	v, err := Param(dsl.ParamValue{Type: dsl.ParamInput, Path: "a.b.c"}, state)
	if err != nil || v != nil {
		t.Fatalf("expected nil for missing path, got %v, %v", v, err)
	}
}

func TestParams_AllResolved(t *testing.T) {
	state := &fakeState{secrets: map[string]any{"OPENAI_KEY": "sk-123"}}
	out, err := Params(map[string]dsl.ParamValue{
		"model":  {Type: dsl.ParamStatic, Value: "gpt-4"},
		"apiKey": {Type: dsl.ParamSecret, Ref: "OPENAI_KEY"},
	}, state)
	if err != nil {
		t.Fatal(err)
	}
	if out["model"] != "gpt-4" || out["apiKey"] != "sk-123" {
		t.Fatalf("unexpected params: %+v", out)
	}
}

func TestPortInputs_AssemblesFromEdges(t *testing.T) {
	state := &fakeState{outputs: map[string]map[string]any{
		"a": {"result": 99.0},
	}}
	edges := []dsl.Edge{
		{Source: "a", Target: "b", SourceHandle: "result", TargetHandle: "value"},
		{Source: "x", Target: "c", SourceHandle: "result", TargetHandle: "value"},
	}
	inputs := PortInputs("b", edges, state)
	if inputs["value"] != 99.0 {
		t.Fatalf("unexpected inputs: %+v", inputs)
	}
}

func TestPortInputs_UnexecutedSourceYieldsNil(t *testing.T) {
	state := &fakeState{outputs: map[string]map[string]any{}}
	edges := []dsl.Edge{
		{Source: "pruned", Target: "b", SourceHandle: "result", TargetHandle: "value"},
	}
	inputs := PortInputs("b", edges, state)
	if v, ok := inputs["value"]; !ok || v != nil {
		t.Fatalf("expected nil for unexecuted source, got %v, %v", v, ok)
	}
}
