// Package dag validates a workflow's node/edge graph and computes a
// topological execution order using Kahn's algorithm.
package dag

import (
	"sort"
	"strconv"

	"github.com/flowcraft/engine/internal/dsl"
	"github.com/flowcraft/engine/internal/registry"
)

// Validate checks node-type existence against the registry, that every
// edge endpoint resolves to an existing node, and that the graph is
// acyclic. It returns the same []dsl.ValidationError shape as
// dsl.Validate so callers can concatenate both passes.
func Validate(nodes []dsl.Node, edges []dsl.Edge, reg *registry.Registry) []dsl.ValidationError {
	var errs []dsl.ValidationError

	ids := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		ids[n.ID] = true
		if !reg.Has(n.Type) {
			errs = append(errs, dsl.ValidationError{
				Path:    fieldPath(i),
				Message: "unknown node type " + n.Type,
			})
		}
	}

	for i, e := range edges {
		if !ids[e.Source] {
			errs = append(errs, dsl.ValidationError{Path: edgePath(i, "source"), Message: "references non-existent node " + e.Source})
		}
		if !ids[e.Target] {
			errs = append(errs, dsl.ValidationError{Path: edgePath(i, "target"), Message: "references non-existent node " + e.Target})
		}
	}

	if _, err := BuildExecutionOrder(nodes, edges); err != nil {
		errs = append(errs, dsl.ValidationError{Path: "edges", Message: "Workflow contains cycles"})
	}

	return errs
}

func fieldPath(i int) string { return "nodes[" + strconv.Itoa(i) + "].type" }
func edgePath(i int, field string) string {
	return "edges[" + strconv.Itoa(i) + "]." + field
}

// CyclicWorkflowError is returned by BuildExecutionOrder when the graph
// contains a cycle: fewer nodes were produced than exist in the set.
type CyclicWorkflowError struct{}

func (CyclicWorkflowError) Error() string { return "Workflow contains cycles" }

// BuildExecutionOrder computes a topological order over nodes using
// Kahn's algorithm: initialize in-degree per node, enqueue in-degree-0
// nodes, repeatedly dequeue and decrement successors. Ties among
// ready nodes are broken by node id so the result is deterministic for
// a given input, though not guaranteed stable across spec revisions.
//
// If the produced order has fewer entries than the node set, the graph
// contains a cycle and CyclicWorkflowError is returned.
func BuildExecutionOrder(nodes []dsl.Node, edges []dsl.Edge) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range edges {
		if _, ok := inDegree[e.Target]; !ok {
			continue // dangling edge; dag.Validate reports this separately
		}
		if _, ok := inDegree[e.Source]; !ok {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		successors := append([]string(nil), adjacency[id]...)
		sort.Strings(successors)

		var newlyReady []string
		for _, s := range successors {
			inDegree[s]--
			if inDegree[s] == 0 {
				newlyReady = append(newlyReady, s)
			}
		}
		if len(newlyReady) > 0 {
			ready = append(ready, newlyReady...)
			sort.Strings(ready)
		}
	}

	if len(order) < len(nodes) {
		return order, CyclicWorkflowError{}
	}
	return order, nil
}
