// Package dsl defines the typed schemas for the workflow definition
// language: node/edge shapes, the IOSchema value-type descriptor, and
// the ParamValue/ParamSchema pair used to declare and resolve node
// parameters. The DSL is the persisted, canonical form of a workflow;
// see convert.go for the lossy/lossless mapping to the editor graph.
package dsl

import "time"

// CurrentDSLVersion is the tag new workflows are stamped with.
// Validate rejects any WorkflowDSL whose DSLVersion does not match.
const CurrentDSLVersion = "1.0"

// IOKind enumerates the value kinds an IOSchema can describe.
type IOKind string

const (
	KindString  IOKind = "string"
	KindNumber  IOKind = "number"
	KindBoolean IOKind = "boolean"
	KindArray   IOKind = "array"
	KindObject  IOKind = "object"
	KindAny     IOKind = "any"
)

// IOSchema is a recursive value-type descriptor used for both node ports
// and workflow-level inputs/outputs. It exists for editor/validation
// purposes; the executor itself is schema-unchecked at run time.
type IOSchema struct {
	Kind        IOKind              `json:"kind"`
	Items       *IOSchema           `json:"items,omitempty"`
	Properties  map[string]IOSchema `json:"properties,omitempty"`
	Description string              `json:"description,omitempty"`
	Required    bool                `json:"required,omitempty"`
}

// ParamValueType discriminates the three ParamValue shapes.
type ParamValueType string

const (
	ParamStatic ParamValueType = "static"
	ParamSecret ParamValueType = "secret"
	ParamInput  ParamValueType = "input"
)

// ParamValue is a parameter reference: a literal, a secret lookup, or a
// dot-separated path into the workflow-level inputs object. Only the
// field matching Type is meaningful; this mirrors the external wire
// shape exactly so no custom marshalling is required.
type ParamValue struct {
	Type  ParamValueType `json:"type"`
	Value any            `json:"value,omitempty"`
	Ref   string         `json:"ref,omitempty"`
	Path  string         `json:"path,omitempty"`
}

// ParamSchemaType enumerates the editor-facing parameter declaration kinds.
type ParamSchemaType string

const (
	ParamSchemaString  ParamSchemaType = "string"
	ParamSchemaNumber  ParamSchemaType = "number"
	ParamSchemaBoolean ParamSchemaType = "boolean"
	ParamSchemaSelect  ParamSchemaType = "select"
	ParamSchemaSecret  ParamSchemaType = "secret"
	ParamSchemaJSON    ParamSchemaType = "json"
)

// SelectOption is one entry in a ParamSchemaSelect's option list.
type SelectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ParamSchema is the editor-facing declaration of a single parameter.
type ParamSchema struct {
	Type        ParamSchemaType `json:"type"`
	Label       string          `json:"label"`
	Description string          `json:"description,omitempty"`
	Default     any             `json:"default,omitempty"`
	Required    bool            `json:"required,omitempty"`
	Min         *float64        `json:"min,omitempty"`
	Max         *float64        `json:"max,omitempty"`
	Step        *float64        `json:"step,omitempty"`
	Options     []SelectOption  `json:"options,omitempty"`
}

// Node is the canonical, persisted node shape. ID is unique within a
// workflow. Label is optional and falls back to ID when deriving
// workflow outputs.
type Node struct {
	ID      string                `json:"id"`
	Type    string                `json:"type"`
	Label   string                `json:"label,omitempty"`
	Params  map[string]ParamValue `json:"params,omitempty"`
	Inputs  map[string]IOSchema   `json:"inputs,omitempty"`
	Outputs map[string]IOSchema   `json:"outputs,omitempty"`
}

// Edge is a directed connection between a source node's output port and
// a target node's input port. Multiple edges may target the same port;
// within a run this is last-write-wins in edge order — well-formed
// graphs should not rely on it.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// WorkflowMeta carries the display-level identity of a workflow.
type WorkflowMeta struct {
	Name      string    `json:"name"`
	Version   string    `json:"version,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// WorkflowDSL is the persisted JSON description of a workflow.
type WorkflowDSL struct {
	DSLVersion string              `json:"dslVersion"`
	Meta       WorkflowMeta        `json:"meta"`
	Inputs     map[string]IOSchema `json:"inputs,omitempty"`
	Outputs    map[string]IOSchema `json:"outputs,omitempty"`
	Secrets    []string            `json:"secrets,omitempty"`
	Nodes      []Node              `json:"nodes"`
	Edges      []Edge              `json:"edges"`
}
