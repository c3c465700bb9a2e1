package dsl

import "fmt"

// ValidationError describes one structural problem found in a WorkflowDSL.
// Path points at the offending field using a simple dotted/bracketed
// notation (e.g. "nodes[2].id", "edges[0].target").
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks the structural well-formedness of a WorkflowDSL:
// dslVersion matches, meta.name is non-empty, node ids are unique, and
// every edge endpoint resolves to an existing node. It does not check
// node-type existence against a registry or detect
// cycles — that is dag.Validate's job, since it needs the registry and
// full graph traversal.
//
// An empty return value means the DSL is accepted. Re-validating an
// accepted DSL is idempotent: it always returns the same empty result.
func Validate(w WorkflowDSL) []ValidationError {
	var errs []ValidationError

	if w.DSLVersion != CurrentDSLVersion {
		errs = append(errs, ValidationError{
			Path:    "dslVersion",
			Message: fmt.Sprintf("unsupported dslVersion %q, expected %q", w.DSLVersion, CurrentDSLVersion),
		})
	}

	if w.Meta.Name == "" {
		errs = append(errs, ValidationError{Path: "meta.name", Message: "must not be empty"})
	}

	seen := make(map[string]bool, len(w.Nodes))
	for i, n := range w.Nodes {
		if n.ID == "" {
			errs = append(errs, ValidationError{Path: fmt.Sprintf("nodes[%d].id", i), Message: "must not be empty"})
			continue
		}
		if seen[n.ID] {
			errs = append(errs, ValidationError{Path: fmt.Sprintf("nodes[%d].id", i), Message: fmt.Sprintf("duplicate node id %q", n.ID)})
			continue
		}
		seen[n.ID] = true
	}

	for i, e := range w.Edges {
		if !seen[e.Source] {
			errs = append(errs, ValidationError{Path: fmt.Sprintf("edges[%d].source", i), Message: fmt.Sprintf("references non-existent node %q", e.Source)})
		}
		if !seen[e.Target] {
			errs = append(errs, ValidationError{Path: fmt.Sprintf("edges[%d].target", i), Message: fmt.Sprintf("references non-existent node %q", e.Target)})
		}
	}

	return errs
}
