// Package nodes holds the built-in node plug-ins and their registration
// with internal/registry.
package nodes

import (
	"github.com/flowcraft/engine/internal/nodes/httpclient"
	"github.com/flowcraft/engine/internal/nodes/mailer"
)

// Deps holds external clients that built-in nodes may need during
// execution. Passed into RegisterBuiltins so node logic stays decoupled
// from concrete implementations.
type Deps struct {
	HTTP  httpclient.Client
	Email mailer.Client
}
