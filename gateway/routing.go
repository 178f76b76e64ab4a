package gateway

import (
	"context"
	"strings"

	"github.com/paygrid-dev/paygate/types"
)

// Route maps a task-description keyword to a handler name. Routing is a
// fixed ordered list evaluated top to bottom with first match winning; this
// is intentionally the simplest possible dispatcher, not a rules engine.
type Route struct {
	Keyword string
	Handler string
}

// TaskRequest is the high-level convenience entry: a free-text description
// routed by keyword instead of an explicit handler name.
type TaskRequest struct {
	Description string         `json:"description"`
	Params      map[string]any `json:"params,omitempty"`
}

// TaskResult carries the routed handler alongside the invocation outcome.
type TaskResult struct {
	Handler    string                  `json:"handler"`
	Invocation *types.InvocationResult `json:"invocation"`
	PricePaid  string                  `json:"pricePaid"`
}

// RouteTask resolves a task description to a handler name: case-insensitive
// substring match against the routing table, falling back to the default.
func (g *Gateway) RouteTask(description string) string {
	lower := strings.ToLower(description)
	for _, route := range g.routes {
		if strings.Contains(lower, strings.ToLower(route.Keyword)) {
			return route.Handler
		}
	}
	return g.defaultRoute
}

// OrchestrateTask routes then gates. Unlike Invoke, which reports denial as
// data, this returns an error on denial: the convenience path has no
// meaningful partial result to hand back.
func (g *Gateway) OrchestrateTask(ctx context.Context, task TaskRequest, proofWire string) (*TaskResult, error) {
	handler := g.RouteTask(task.Description)

	res := g.Invoke(ctx, handler, task.Params, proofWire)
	if !res.Allowed {
		return nil, types.NewGateError(types.ErrPaymentRequired, "payment required: %s", res.Error)
	}

	return &TaskResult{
		Handler:    handler,
		Invocation: res.Invocation,
		PricePaid:  res.PricePaid.String(),
	}, nil
}
