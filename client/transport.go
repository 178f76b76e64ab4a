package client

import (
	"context"

	"github.com/paygrid-dev/paygate/gateway"
	"github.com/paygrid-dev/paygate/types"
)

// Transport is the seam between the invoker and however requests actually
// travel. HTTP, CLI or script front-ends implement this; the in-process
// LocalTransport below serves tests and demos.
type Transport interface {
	// Discover fetches the handler catalog.
	Discover(ctx context.Context) (*types.CatalogResponse, error)

	// Invoke performs one gated round trip. A denial is a normal response
	// with Success=false; errors are reserved for transport-level faults.
	Invoke(ctx context.Context, handler string, payload map[string]any, proofWire string) (*types.GatedResponse, error)
}

// LocalTransport adapts a Gateway in process.
type LocalTransport struct {
	gw *gateway.Gateway
}

func NewLocalTransport(gw *gateway.Gateway) *LocalTransport {
	return &LocalTransport{gw: gw}
}

func (t *LocalTransport) Discover(ctx context.Context) (*types.CatalogResponse, error) {
	return t.gw.Catalog(), nil
}

func (t *LocalTransport) Invoke(ctx context.Context, handler string, payload map[string]any, proofWire string) (*types.GatedResponse, error) {
	return t.gw.Serve(ctx, handler, payload, proofWire), nil
}
