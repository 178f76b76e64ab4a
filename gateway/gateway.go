// Package gateway composes the verifier and the handler registry into the
// gate: verify-then-execute for a single invocation. The security property
// the gate provides is that a handler never runs on a failed verification.
package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paygrid-dev/paygate/logger"
	"github.com/paygrid-dev/paygate/metrics"
	"github.com/paygrid-dev/paygate/registry"
	"github.com/paygrid-dev/paygate/types"
	"github.com/paygrid-dev/paygate/utils"
	"github.com/paygrid-dev/paygate/verification"
)

// PaymentHeaderName is the conventional header carrying the proof when the
// gate is fronted by HTTP. Advertised in the discovery catalog.
const PaymentHeaderName = "X-PAYMENT"

// Currency is the display currency of handler prices.
const Currency = "USDC"

// Result is the outcome of one gated invocation. Denial is data, not an
// error: Allowed is false and Verification carries the reason.
type Result struct {
	Allowed      bool                      `json:"allowed"`
	Verification *types.VerificationResult `json:"verification"`
	Invocation   *types.InvocationResult   `json:"invocation,omitempty"`
	PricePaid    decimal.Decimal           `json:"pricePaid"`
	Error        string                    `json:"error,omitempty"`
}

// Gateway gates handler execution behind payment verification.
type Gateway struct {
	cfg      types.GatewayConfig
	verifier *verification.Verifier
	registry *registry.Registry

	routes       []Route
	defaultRoute string

	log logger.Logger
	rec metrics.Recorder
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gateway) { g.rec = r }
}

// WithRoutes replaces the keyword routing table used by task orchestration.
func WithRoutes(routes []Route, defaultHandler string) Option {
	return func(g *Gateway) {
		g.routes = routes
		g.defaultRoute = defaultHandler
	}
}

// NewGateway builds a gateway over the given verifier and registry. The
// config is normalized in place.
func NewGateway(cfg types.GatewayConfig, v *verification.Verifier, r *registry.Registry, opts ...Option) *Gateway {
	cfg.Normalize()
	g := &Gateway{
		cfg:      cfg,
		verifier: v,
		registry: r,
		log:      logger.NoopLogger{},
		rec:      metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PriceFor resolves the required price for a handler name. Unknown handlers
// price at the configured default so verification, and its denial, happens
// uniformly before existence is checked.
func (g *Gateway) PriceFor(handler string) decimal.Decimal {
	if def, ok := g.registry.Get(handler); ok {
		return def.Price
	}
	return g.cfg.DefaultPrice
}

// Invoke verifies the proof against the handler's price and the configured
// recipient, and executes the handler only when the gate allows. Payment is
// for the attempt: a valid payment naming an unknown handler is allowed and
// comes back as a failed invocation result, never as a denial.
func (g *Gateway) Invoke(ctx context.Context, handler string, payload map[string]any, proofWire string) *Result {
	price := g.PriceFor(handler)

	verif := g.verifier.Verify(proofWire, g.cfg.PayTo, price)
	if !verif.Valid {
		g.rec.IncCounter(metrics.EventGateDenied, map[string]string{"handler": handler})
		g.log.Info("invocation denied", map[string]any{
			"handler": handler,
			"reason":  verif.Error,
		})
		return &Result{
			Allowed:      false,
			Verification: verif,
			Error:        verif.Error,
		}
	}

	g.rec.IncCounter(metrics.EventGateAllowed, map[string]string{"handler": handler})

	req := types.InvocationRequest{
		RequestID: utils.RandomHex(16),
		Handler:   handler,
		Payload:   payload,
		Proof:     proofWire,
		CreatedAt: time.Now(),
	}
	invocation := g.registry.Execute(ctx, req)

	g.log.Info("invocation executed", map[string]any{
		"handler":    handler,
		"requestId":  req.RequestID,
		"status":     string(invocation.Status),
		"durationMs": invocation.DurationMS,
	})

	return &Result{
		Allowed:      true,
		Verification: verif,
		Invocation:   invocation,
		PricePaid:    price,
	}
}

// Serve is the transport-facing entry point: it runs Invoke and shapes the
// outcome into the wire-level GatedResponse, attaching the machine-readable
// denial hint when the gate refuses.
func (g *Gateway) Serve(ctx context.Context, handler string, payload map[string]any, proofWire string) *types.GatedResponse {
	res := g.Invoke(ctx, handler, payload, proofWire)
	if !res.Allowed {
		return &types.GatedResponse{
			Success: false,
			Error:   res.Error,
			Denial:  g.PaymentRequired(handler),
		}
	}

	// Payment was accepted either way; Success reflects whether the
	// handler itself completed. A denial is signalled by Denial, not here.
	inv := res.Invocation
	resp := &types.GatedResponse{
		Success: inv.Status == types.StatusSuccess,
		Result:  inv.Result,
		Meta: &types.GatedMeta{
			RequestID:  inv.RequestID,
			Handler:    inv.Handler,
			DurationMS: inv.DurationMS,
			PricePaid:  res.PricePaid.String(),
		},
	}
	if inv.Status == types.StatusFailed {
		resp.Error = inv.Error
	}
	return resp
}

// PaymentRequired builds the denial descriptor for a handler: everything a
// compliant caller needs to construct a correct proof and retry.
func (g *Gateway) PaymentRequired(handler string) *types.PaymentRequiredResponse {
	price := g.PriceFor(handler)
	description := "gated compute handler"
	if def, ok := g.registry.Get(handler); ok && def.Description != "" {
		description = def.Description
	}

	return &types.PaymentRequiredResponse{
		X402Version: types.ProtocolVersion,
		Error:       "payment required",
		Accepts: []types.PaymentRequirement{
			{
				Scheme:            "exact",
				Network:           g.cfg.Network.String(),
				MaxAmountRequired: decimal.NewFromInt(types.ToMicro(price)).String(),
				Resource:          "/invoke/" + handler,
				Description:       description,
				PayTo:             g.cfg.PayTo,
				MaxTimeoutSeconds: int(g.cfg.ProofValiditySeconds),
				Asset:             g.cfg.Network.Asset(),
			},
		},
	}
}

// Catalog builds the discovery document over the registered handlers.
func (g *Gateway) Catalog() *types.CatalogResponse {
	defs := g.registry.List()
	entries := make([]types.CatalogEntry, 0, len(defs))
	for _, def := range defs {
		entries = append(entries, types.CatalogEntry{
			Name:        def.Name,
			Description: def.Description,
			Price:       def.Price.String(),
			Trigger:     def.Trigger,
			Payment: types.PaymentDetails{
				Recipient:  g.cfg.PayTo,
				Amount:     def.Price.String(),
				Currency:   Currency,
				Network:    g.cfg.Network.String(),
				HeaderName: PaymentHeaderName,
			},
		})
	}
	return &types.CatalogResponse{Catalog: entries, Count: len(entries)}
}
