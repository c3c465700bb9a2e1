package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowcraft/engine/internal/dsl"
	"github.com/flowcraft/engine/internal/nodes/mailer"
	"github.com/flowcraft/engine/internal/registry"
)

// RegisterBuiltins registers every built-in node type with reg, wiring
// external clients from deps where the node needs one. Call it once at
// startup before workflows are executed.
func RegisterBuiltins(reg *registry.Registry, deps Deps) {
	reg.Register(ifConditionDefinition())
	reg.Register(switchDefinition())
	reg.Register(templateDefinition())
	reg.Register(httpRequestDefinition(deps))
	reg.Register(emailDefinition(deps))
	reg.Register(outputDefinition())
}

// ifConditionDefinition evaluates a single boolean branch. If params
// contains an "expression" entry it is evaluated as CEL against the
// node's inputs and params; otherwise the node falls back to a
// truthiness check on the "value" input, since the DSL has no fixed
// set of comparison operators to dispatch on.
func ifConditionDefinition() *registry.NodeDefinition {
	evaluator := newCELEvaluator()
	return &registry.NodeDefinition{
		ID:          "if-condition",
		DisplayName: "If Condition",
		Description: "Branches execution based on a boolean expression or input value",
		Inputs: map[string]dsl.IOSchema{
			"value": {Kind: dsl.KindAny},
		},
		Outputs: map[string]dsl.IOSchema{
			"result": {Kind: dsl.KindBoolean},
		},
		ParamsSchema: map[string]dsl.ParamSchema{
			"expression": {Type: dsl.ParamSchemaString, Label: "Expression", Description: "Optional CEL boolean expression; falls back to truthiness of the value input"},
		},
		Display: registry.Display{Icon: "git-branch", Category: "logic", Tags: []string{"branch", "condition"}},
		Run: func(ctx context.Context, inputs, params map[string]any, rc registry.RunContext) (map[string]any, error) {
			result, err := evaluateBranch(evaluator, params, inputs)
			if err != nil {
				return nil, err
			}
			return map[string]any{"result": result}, nil
		},
		Branch: func(output map[string]any) []string {
			if b, ok := output["result"].(bool); ok {
				if b {
					return []string{"true"}
				}
				return []string{"false"}
			}
			return nil
		},
	}
}

func evaluateBranch(evaluator *celEvaluator, params, inputs map[string]any) (bool, error) {
	expr, _ := params["expression"].(string)
	if expr == "" {
		return isTruthy(inputs["value"]), nil
	}
	return evaluator.EvalBool(expr, inputs, params)
}

// switchDefinition evaluates an ordered list of CEL case expressions
// and takes the sourceHandle of the first that is true. If none match,
// it falls back to the last case's handle rather than a sentinel
// "default" — underspecified behavior callers should not rely on.
func switchDefinition() *registry.NodeDefinition {
	evaluator := newCELEvaluator()
	return &registry.NodeDefinition{
		ID:          "switch",
		DisplayName: "Switch",
		Description: "Branches execution to the first matching case, or to the last case if none match",
		Inputs: map[string]dsl.IOSchema{
			"value": {Kind: dsl.KindAny},
		},
		Outputs: map[string]dsl.IOSchema{
			"case": {Kind: dsl.KindString},
		},
		ParamsSchema: map[string]dsl.ParamSchema{
			"cases": {Type: dsl.ParamSchemaJSON, Label: "Cases", Description: "Ordered list of {handle, expression} CEL cases"},
		},
		Display: registry.Display{Icon: "split", Category: "logic", Tags: []string{"branch", "switch"}},
		Run: func(ctx context.Context, inputs, params map[string]any, rc registry.RunContext) (map[string]any, error) {
			cases, err := parseSwitchCases(params["cases"])
			if err != nil {
				return nil, err
			}
			if len(cases) == 0 {
				return nil, fmt.Errorf("switch node requires at least one case")
			}
			for _, c := range cases {
				matched, err := evaluator.EvalBool(c.Expression, inputs, params)
				if err != nil {
					return nil, fmt.Errorf("switch case %q: %w", c.Handle, err)
				}
				if matched {
					return map[string]any{"case": c.Handle}, nil
				}
			}
			return map[string]any{"case": cases[len(cases)-1].Handle}, nil
		},
		Branch: func(output map[string]any) []string {
			if c, ok := output["case"].(string); ok && c != "" {
				return []string{c}
			}
			return nil
		},
	}
}

type switchCase struct {
	Handle     string `json:"handle"`
	Expression string `json:"expression"`
}

func parseSwitchCases(raw any) ([]switchCase, error) {
	items, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("switch \"cases\" param must be a list")
	}
	out := make([]switchCase, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("switch case entry must be an object")
		}
		handle, _ := m["handle"].(string)
		expr, _ := m["expression"].(string)
		if handle == "" || expr == "" {
			return nil, fmt.Errorf("switch case entry requires both handle and expression")
		}
		out = append(out, switchCase{Handle: handle, Expression: expr})
	}
	return out, nil
}

// templateDefinition substitutes {{key}} placeholders in a template
// string with values from its inputs.
func templateDefinition() *registry.NodeDefinition {
	return &registry.NodeDefinition{
		ID:          "template",
		DisplayName: "Template",
		Description: "Renders a {{placeholder}} template against its inputs",
		Inputs: map[string]dsl.IOSchema{
			"values": {Kind: dsl.KindObject},
		},
		Outputs: map[string]dsl.IOSchema{
			"text": {Kind: dsl.KindString},
		},
		ParamsSchema: map[string]dsl.ParamSchema{
			"template": {Type: dsl.ParamSchemaString, Label: "Template", Required: true},
		},
		Display: registry.Display{Icon: "file-text", Category: "transform", Tags: []string{"template", "string"}},
		Run: func(ctx context.Context, inputs, params map[string]any, rc registry.RunContext) (map[string]any, error) {
			tmpl, _ := params["template"].(string)
			values, _ := inputs["values"].(map[string]any)
			return map[string]any{"text": renderTemplate(tmpl, values)}, nil
		},
	}
}

func renderTemplate(tmpl string, values map[string]any) string {
	result := tmpl
	for key, val := range values {
		placeholder := "{{" + key + "}}"
		result = strings.ReplaceAll(result, placeholder, fmt.Sprintf("%v", val))
	}
	return result
}

// httpRequestDefinition calls an external endpoint: method and URL
// come from params, and the request body and decoded response flow
// through the node's ports.
func httpRequestDefinition(deps Deps) *registry.NodeDefinition {
	return &registry.NodeDefinition{
		ID:          "http-request",
		DisplayName: "HTTP Request",
		Description: "Calls an external HTTP endpoint and returns the decoded response",
		Inputs: map[string]dsl.IOSchema{
			"body": {Kind: dsl.KindAny},
		},
		Outputs: map[string]dsl.IOSchema{
			"status": {Kind: dsl.KindNumber},
			"body":   {Kind: dsl.KindAny},
		},
		ParamsSchema: map[string]dsl.ParamSchema{
			"method": {Type: dsl.ParamSchemaSelect, Label: "Method", Default: "GET", Options: []dsl.SelectOption{
				{Label: "GET", Value: "GET"}, {Label: "POST", Value: "POST"}, {Label: "PUT", Value: "PUT"}, {Label: "DELETE", Value: "DELETE"},
			}},
			"url": {Type: dsl.ParamSchemaString, Label: "URL", Required: true},
		},
		Display: registry.Display{Icon: "globe", Category: "integration", Tags: []string{"http", "api"}},
		Run: func(ctx context.Context, inputs, params map[string]any, rc registry.RunContext) (map[string]any, error) {
			if deps.HTTP == nil {
				return nil, fmt.Errorf("http-request node: no HTTP client configured")
			}
			method, _ := params["method"].(string)
			if method == "" {
				method = "GET"
			}
			url, _ := params["url"].(string)
			if url == "" {
				return nil, fmt.Errorf("http-request node: missing required param \"url\"")
			}
			resp, err := deps.HTTP.Do(ctx, method, url, inputs["body"])
			if err != nil {
				return nil, err
			}
			return map[string]any{"status": float64(resp.StatusCode), "body": resp.Body}, nil
		},
	}
}

// emailDefinition composes and sends an email: subject/body templates
// are rendered against inputs before being handed to the mail client.
func emailDefinition(deps Deps) *registry.NodeDefinition {
	return &registry.NodeDefinition{
		ID:          "email",
		DisplayName: "Send Email",
		Description: "Renders a subject/body template and sends an email",
		Inputs: map[string]dsl.IOSchema{
			"to":     {Kind: dsl.KindString},
			"values": {Kind: dsl.KindObject},
		},
		Outputs: map[string]dsl.IOSchema{
			"sent": {Kind: dsl.KindBoolean},
			"id":   {Kind: dsl.KindString},
		},
		ParamsSchema: map[string]dsl.ParamSchema{
			"subject": {Type: dsl.ParamSchemaString, Label: "Subject", Required: true},
			"body":    {Type: dsl.ParamSchemaString, Label: "Body", Required: true},
		},
		Display: registry.Display{Icon: "mail", Category: "integration", Tags: []string{"email", "notification"}},
		Run: func(ctx context.Context, inputs, params map[string]any, rc registry.RunContext) (map[string]any, error) {
			if deps.Email == nil {
				return nil, fmt.Errorf("email node: no mail client configured")
			}
			to, _ := inputs["to"].(string)
			if to == "" {
				return nil, fmt.Errorf("email node: missing required input \"to\"")
			}
			values, _ := inputs["values"].(map[string]any)
			subjectTmpl, _ := params["subject"].(string)
			bodyTmpl, _ := params["body"].(string)

			result, err := deps.Email.Send(ctx, mailer.Message{
				To:      to,
				Subject: renderTemplate(subjectTmpl, values),
				Body:    renderTemplate(bodyTmpl, values),
			})
			if err != nil {
				return nil, fmt.Errorf("send email: %w", err)
			}
			return map[string]any{"sent": true, "id": result.ID}, nil
		},
	}
}

// outputDefinition passes its inputs through unchanged. Marking a node
// with this type flags it as a workflow-level output regardless of
// whether it has outgoing edges.
func outputDefinition() *registry.NodeDefinition {
	return &registry.NodeDefinition{
		ID:          "output",
		DisplayName: "Output",
		Description: "Marks its inputs as a workflow-level output",
		Inputs: map[string]dsl.IOSchema{
			"value": {Kind: dsl.KindAny},
		},
		Outputs: map[string]dsl.IOSchema{
			"value": {Kind: dsl.KindAny},
		},
		Display: registry.Display{Icon: "log-out", Category: "io", Tags: []string{"output"}},
		Run: func(ctx context.Context, inputs, params map[string]any, rc registry.RunContext) (map[string]any, error) {
			return inputs, nil
		},
	}
}
