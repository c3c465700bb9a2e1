// Package registry is the process-wide mapping from node-type id to
// NodeDefinition. It is populated once at startup by explicit
// registration (internal/nodes.RegisterBuiltins) rather than by
// package-init side effects, so wiring order is never hidden. Reads are
// safe for concurrent callers; the registry is not mutated during
// execution.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/flowcraft/engine/internal/dsl"
)

// RunContext is what a node definition's Run function receives in
// addition to resolved inputs/params.
type RunContext struct {
	NodeID         string
	ExecutionID    string
	WorkflowID     string
	WorkflowInputs map[string]any
	Log            func(message string)
	WriteLog       func(data any) error
	Done           <-chan struct{} // cooperative cancellation token
}

// RunFunc is a node's executable logic. It must return a value for
// every declared output port; a thrown (returned) error aborts the run.
type RunFunc func(ctx context.Context, inputs map[string]any, params map[string]any, rc RunContext) (map[string]any, error)

// BranchFunc lets a node definition declare that it performs conditional
// branch pruning. Given the node's own output map, it returns the set
// of outgoing sourceHandle values that are "taken". A nil BranchFunc, or one
// returning a nil slice, means no pruning — every outgoing edge is
// taken, which is the behavior of ordinary (non-branching) nodes.
type BranchFunc func(output map[string]any) []string

// Display holds the editor catalog's display metadata for a node type.
type Display struct {
	Icon     string   `json:"icon"`
	Color    string   `json:"color"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// NodeDefinition is one registered plug-in node contract.
type NodeDefinition struct {
	ID           string
	DisplayName  string
	Description  string
	Inputs       map[string]dsl.IOSchema
	Outputs      map[string]dsl.IOSchema
	ParamsSchema map[string]dsl.ParamSchema
	Display      Display
	Run          RunFunc
	Branch       BranchFunc // non-nil for branching node types (if-condition, switch, ...)
}

// CatalogEntry is the editor-facing projection of a NodeDefinition.
type CatalogEntry struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Icon        string   `json:"icon"`
	Color       string   `json:"color"`
	Tags        []string `json:"tags"`
	InputCount  int      `json:"inputCount"`
	OutputCount int      `json:"outputCount"`
}

// Registry is the process-wide node-type -> NodeDefinition mapping.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*NodeDefinition
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*NodeDefinition)}
}

// Register adds a NodeDefinition under its ID. Re-registering an
// existing id overwrites it and logs a warning.
func (r *Registry) Register(def *NodeDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.ID]; exists {
		slog.Warn("overwriting already-registered node type", "id", def.ID)
	}
	r.defs[def.ID] = def
}

// Get looks up a NodeDefinition by id.
func (r *Registry) Get(id string) (*NodeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[id]
	return d, ok
}

// Has reports whether a node type id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// GetAll returns every registered NodeDefinition, ordered by id for
// deterministic iteration.
func (r *Registry) GetAll() []*NodeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*NodeDefinition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetByCategory returns every registered NodeDefinition whose Display.Category matches.
func (r *Registry) GetByCategory(category string) []*NodeDefinition {
	var out []*NodeDefinition
	for _, d := range r.GetAll() {
		if d.Display.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// GetByTag returns every registered NodeDefinition carrying the given tag.
func (r *Registry) GetByTag(tag string) []*NodeDefinition {
	var out []*NodeDefinition
	for _, d := range r.GetAll() {
		for _, t := range d.Display.Tags {
			if t == tag {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// Unregister removes a node type by id. A no-op if the id is absent.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defs, id)
}

// Clear removes every registered node type.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = make(map[string]*NodeDefinition)
}

// Catalog produces the editor projection of every registered node type.
func (r *Registry) Catalog() []CatalogEntry {
	all := r.GetAll()
	out := make([]CatalogEntry, 0, len(all))
	for _, d := range all {
		out = append(out, CatalogEntry{
			ID:          d.ID,
			DisplayName: d.DisplayName,
			Description: d.Description,
			Category:    d.Display.Category,
			Icon:        d.Display.Icon,
			Color:       d.Display.Color,
			Tags:        d.Display.Tags,
			InputCount:  len(d.Inputs),
			OutputCount: len(d.Outputs),
		})
	}
	return out
}
