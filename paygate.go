// Package paygate implements payment-gated compute dispatch: invocation
// requests carry an off-chain, time-boxed payment authorization, and a
// named handler runs only after the authorization verifies against its
// price and the configured recipient.
package paygate

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/paygrid-dev/paygate/gateway"
	"github.com/paygrid-dev/paygate/logger"
	"github.com/paygrid-dev/paygate/metrics"
	"github.com/paygrid-dev/paygate/registry"
	"github.com/paygrid-dev/paygate/types"
	"github.com/paygrid-dev/paygate/verification"
)

// Paygate is the server-side facade composing the verifier, the handler
// registry and the gate.
type Paygate struct {
	cfg      types.GatewayConfig
	registry *registry.Registry
	verifier *verification.Verifier
	gateway  *gateway.Gateway

	log logger.Logger
	rec metrics.Recorder

	routes       []gateway.Route
	defaultRoute string
}

// New creates a Paygate from the given configuration.
func New(cfg types.GatewayConfig, opts ...Option) *Paygate {
	cfg.Normalize()

	p := &Paygate{
		cfg: cfg,
		log: logger.NoopLogger{},
		rec: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if _, isNoop := p.log.(logger.NoopLogger); isNoop && cfg.LogLevel != "" {
		p.log = logger.NewZapLogger(cfg.LogLevel)
	}
	if _, isNoop := p.rec.(metrics.NoopRecorder); isNoop && cfg.EnableMetrics {
		p.rec = metrics.NewPrometheusRecorder()
	}

	p.registry = registry.NewRegistry(
		registry.WithLogger(p.log),
		registry.WithMetrics(p.rec),
	)
	p.verifier = verification.NewVerifier(&cfg,
		verification.WithLogger(p.log),
		verification.WithMetrics(p.rec),
	)

	gwOpts := []gateway.Option{
		gateway.WithLogger(p.log),
		gateway.WithMetrics(p.rec),
	}
	if len(p.routes) > 0 {
		gwOpts = append(gwOpts, gateway.WithRoutes(p.routes, p.defaultRoute))
	}
	p.gateway = gateway.NewGateway(cfg, p.verifier, p.registry, gwOpts...)

	return p
}

// Register adds a handler to the catalog.
func (p *Paygate) Register(def types.HandlerDefinition) error {
	return p.registry.Register(def)
}

// Registry exposes the handler catalog.
func (p *Paygate) Registry() *registry.Registry {
	return p.registry
}

// Gateway exposes the gate, for wiring transports.
func (p *Paygate) Gateway() *gateway.Gateway {
	return p.gateway
}

// Invoke gates one invocation: verify the proof, then execute.
func (p *Paygate) Invoke(ctx context.Context, handler string, payload map[string]any, proofWire string) *gateway.Result {
	return p.gateway.Invoke(ctx, handler, payload, proofWire)
}

// OrchestrateTask routes a free-text task by keyword and gates it.
func (p *Paygate) OrchestrateTask(ctx context.Context, task gateway.TaskRequest, proofWire string) (*gateway.TaskResult, error) {
	return p.gateway.OrchestrateTask(ctx, task, proofWire)
}

// Catalog returns the discovery document.
func (p *Paygate) Catalog() *types.CatalogResponse {
	return p.gateway.Catalog()
}

// PaymentRequired returns the denial descriptor for a handler.
func (p *Paygate) PaymentRequired(handler string) *types.PaymentRequiredResponse {
	return p.gateway.PaymentRequired(handler)
}

// Version information.
const (
	Version         = "1.0.0"
	ProtocolVersion = types.ProtocolVersion
)

// DecimalFromString helper function.
func DecimalFromString(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}
