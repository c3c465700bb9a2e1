package nodes_test

import (
	"context"
	"testing"

	"github.com/flowcraft/engine/internal/nodes"
	"github.com/flowcraft/engine/internal/nodes/httpclient"
	"github.com/flowcraft/engine/internal/nodes/mailer"
	"github.com/flowcraft/engine/internal/registry"
)

type mockHTTPClient struct {
	resp *httpclient.Response
	err  error
	gotMethod, gotURL string
	gotBody any
}

func (m *mockHTTPClient) Do(ctx context.Context, method, url string, body any) (*httpclient.Response, error) {
	m.gotMethod, m.gotURL, m.gotBody = method, url, body
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type mockMailClient struct {
	sent mailer.Message
	err  error
}

func (m *mockMailClient) Send(ctx context.Context, msg mailer.Message) (*mailer.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = msg
	return &mailer.Result{ID: "mock-1"}, nil
}

func run(t *testing.T, reg *registry.Registry, nodeType string, inputs, params map[string]any) map[string]any {
	t.Helper()
	def, ok := reg.Get(nodeType)
	if !ok {
		t.Fatalf("node type %q not registered", nodeType)
	}
	out, err := def.Run(context.Background(), inputs, params, registry.RunContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return out
}

func newRegistry(deps nodes.Deps) *registry.Registry {
	reg := registry.New()
	nodes.RegisterBuiltins(reg, deps)
	return reg
}

func TestIfCondition_TruthyFallback(t *testing.T) {
	reg := newRegistry(nodes.Deps{})
	out := run(t, reg, "if-condition", map[string]any{"value": 0.0}, nil)
	if out["result"] != false {
		t.Fatalf("expected false for zero value, got %+v", out)
	}
	out = run(t, reg, "if-condition", map[string]any{"value": "non-empty"}, nil)
	if out["result"] != true {
		t.Fatalf("expected true for non-empty string, got %+v", out)
	}
}

func TestIfCondition_CELExpression(t *testing.T) {
	reg := newRegistry(nodes.Deps{})
	params := map[string]any{"expression": "input.value > params.threshold"}
	out := run(t, reg, "if-condition", map[string]any{"value": 30.0}, mergeParams(params, map[string]any{"threshold": 25.0}))
	if out["result"] != true {
		t.Fatalf("expected true, got %+v", out)
	}
	out = run(t, reg, "if-condition", map[string]any{"value": 10.0}, mergeParams(params, map[string]any{"threshold": 25.0}))
	if out["result"] != false {
		t.Fatalf("expected false, got %+v", out)
	}
}

func mergeParams(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func TestSwitch_FirstMatchWins(t *testing.T) {
	reg := newRegistry(nodes.Deps{})
	params := map[string]any{
		"cases": []any{
			map[string]any{"handle": "low", "expression": "input.value < 10.0"},
			map[string]any{"handle": "high", "expression": "input.value >= 10.0"},
		},
	}
	out := run(t, reg, "switch", map[string]any{"value": 20.0}, params)
	if out["case"] != "high" {
		t.Fatalf("expected case 'high', got %+v", out)
	}
}

func TestSwitch_FallsBackToLastCaseWhenNoneMatch(t *testing.T) {
	reg := newRegistry(nodes.Deps{})
	params := map[string]any{
		"cases": []any{
			map[string]any{"handle": "low", "expression": "input.value < 0.0"},
			map[string]any{"handle": "fallback", "expression": "input.value < -100.0"},
		},
	}
	out := run(t, reg, "switch", map[string]any{"value": 5.0}, params)
	if out["case"] != "fallback" {
		t.Fatalf("expected fallback to the last case, got %+v", out)
	}
}

func TestTemplate_RendersPlaceholders(t *testing.T) {
	reg := newRegistry(nodes.Deps{})
	out := run(t, reg, "template",
		map[string]any{"values": map[string]any{"city": "Austin"}},
		map[string]any{"template": "Weather in {{city}} today"},
	)
	if out["text"] != "Weather in Austin today" {
		t.Fatalf("unexpected rendered text: %+v", out)
	}
}

func TestHTTPRequest_DelegatesToClient(t *testing.T) {
	mock := &mockHTTPClient{resp: &httpclient.Response{StatusCode: 200, Body: map[string]any{"ok": true}}}
	reg := newRegistry(nodes.Deps{HTTP: mock})
	out := run(t, reg, "http-request",
		map[string]any{"body": map[string]any{"a": 1}},
		map[string]any{"method": "POST", "url": "https://example.com/api"},
	)
	if mock.gotMethod != "POST" || mock.gotURL != "https://example.com/api" {
		t.Fatalf("client called with unexpected args: %s %s", mock.gotMethod, mock.gotURL)
	}
	if out["status"] != float64(200) {
		t.Fatalf("unexpected status: %+v", out)
	}
}

func TestHTTPRequest_MissingURL(t *testing.T) {
	mock := &mockHTTPClient{}
	reg := newRegistry(nodes.Deps{HTTP: mock})
	def, _ := reg.Get("http-request")
	_, err := def.Run(context.Background(), nil, map[string]any{}, registry.RunContext{})
	if err == nil {
		t.Fatal("expected an error for missing url")
	}
}

func TestEmail_RendersAndSends(t *testing.T) {
	mock := &mockMailClient{}
	reg := newRegistry(nodes.Deps{Email: mock})
	out := run(t, reg, "email",
		map[string]any{"to": "a@example.com", "values": map[string]any{"city": "Austin"}},
		map[string]any{"subject": "Weather in {{city}}", "body": "Hello from {{city}}"},
	)
	if out["sent"] != true {
		t.Fatalf("expected sent=true, got %+v", out)
	}
	if mock.sent.Subject != "Weather in Austin" || mock.sent.Body != "Hello from Austin" {
		t.Fatalf("template not rendered before send: %+v", mock.sent)
	}
}

func TestOutput_PassesInputsThrough(t *testing.T) {
	reg := newRegistry(nodes.Deps{})
	out := run(t, reg, "output", map[string]any{"value": 42.0}, nil)
	if out["value"] != 42.0 {
		t.Fatalf("expected passthrough, got %+v", out)
	}
}
