// Package client is the caller-side counterpart of the gate: it discovers
// the catalog, constructs a proof for the required price, performs the
// gated round trip and fans out independent invocations in parallel.
package client

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/paygrid-dev/paygate/logger"
	"github.com/paygrid-dev/paygate/proof"
	"github.com/paygrid-dev/paygate/types"
	"github.com/paygrid-dev/paygate/utils"
)

// InvokeOutcome is the normalized result of one gated round trip. Denials
// and transport faults both surface as Success=false with the message.
type InvokeOutcome struct {
	Success   bool             `json:"success"`
	Handler   string           `json:"handlerName"`
	Result    any              `json:"result,omitempty"`
	Meta      *types.GatedMeta `json:"meta,omitempty"`
	Error     string           `json:"error,omitempty"`
	ProofUsed string           `json:"proofUsed,omitempty"`
}

// BatchItem is one member of a batch invocation.
type BatchItem struct {
	Handler string         `json:"handlerName"`
	Payload map[string]any `json:"payload,omitempty"`
}

// BatchOutcome aggregates a fully-parallel batch. Results preserve input
// order regardless of completion order.
type BatchOutcome struct {
	TotalRequested  int             `json:"totalRequested"`
	Succeeded       int             `json:"succeeded"`
	Failed          int             `json:"failed"`
	Results         []InvokeOutcome `json:"results"`
	TotalDurationMS int64           `json:"totalDurationMs"`
}

// Client invokes gated handlers through a Transport.
type Client struct {
	cfg       types.ClientConfig
	transport Transport
	key       *ecdsa.PrivateKey
	log       logger.Logger

	mu      sync.Mutex
	catalog *types.CatalogResponse
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient builds a Client over a transport. When the config carries a
// private key, delegated proofs are signed with it and the payer address is
// derived from it if unset.
func NewClient(cfg types.ClientConfig, transport Transport, opts ...Option) (*Client, error) {
	cfg.Normalize()

	c := &Client{
		cfg:       cfg,
		transport: transport,
		log:       logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.PrivateKeyHex != "" {
		key, err := utils.PrivateKeyFromHex(cfg.PrivateKeyHex)
		if err != nil {
			return nil, types.NewGateError(types.ErrConfigInvalid, "invalid private key: %v", err)
		}
		c.key = key
		if c.cfg.Payer == "" {
			c.cfg.Payer = utils.AddressFromPrivateKey(key).Hex()
		}
	}
	if c.cfg.Payer == "" {
		// Demo fallback; simulation gates only check the recipient side.
		c.cfg.Payer = utils.RandomHex(20)
	}
	return c, nil
}

// Discover fetches and caches the handler catalog. When no recipient is
// configured locally, the first catalog entry's recipient becomes the
// default.
func (c *Client) Discover(ctx context.Context) (*types.CatalogResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalog != nil {
		return c.catalog, nil
	}

	catalog, err := c.transport.Discover(ctx)
	if err != nil {
		return nil, types.NewGateError(types.ErrTransportFault, "discovery failed: %v", err)
	}
	c.catalog = catalog

	if c.cfg.Recipient == "" && len(catalog.Catalog) > 0 {
		c.cfg.Recipient = catalog.Catalog[0].Payment.Recipient
	}

	c.log.Debug("catalog discovered", map[string]any{"handlers": catalog.Count})
	return catalog, nil
}

// resolve returns the recipient and price for a handler, falling back to
// the configured defaults when the handler is missing from the catalog.
// The leniency mirrors the gateway side, so a round trip naming an unknown
// handler still produces a clean response instead of a client-side fault.
func (c *Client) resolve(handler string) (string, decimal.Decimal) {
	recipient := c.cfg.Recipient
	price := c.cfg.DefaultPrice

	if c.catalog != nil {
		for _, entry := range c.catalog.Catalog {
			if entry.Name == handler {
				if p, err := decimal.NewFromString(entry.Price); err == nil {
					price = p
				}
				if entry.Payment.Recipient != "" {
					recipient = entry.Payment.Recipient
				}
				break
			}
		}
	}
	return recipient, price
}

// ConstructProof builds a wire proof paying the given amount to the given
// recipient. Simulation yields the simple variant. Otherwise a delegated
// proof is built and signed when a key is configured; without key material
// the signature slot carries the unsigned marker, which only a
// simulation-mode gate accepts.
func (c *Client) ConstructProof(recipient string, amount decimal.Decimal) (string, error) {
	if c.cfg.Simulate {
		return proof.Encode(proof.NewSimple(c.cfg.Payer, recipient, amount, c.cfg.Network))
	}

	validity := time.Duration(c.cfg.ProofValiditySeconds) * time.Second
	p := proof.NewDelegated(c.cfg.Payer, recipient, amount, c.cfg.Network, validity)

	if c.key != nil {
		sig, err := signAuthorization(p.Delegated, c.cfg.Network, c.key)
		if err != nil {
			return "", err
		}
		p.Delegated.Payload.Signature = sig
	} else {
		p.Delegated.Payload.Signature = UnsignedSignature
	}
	return proof.Encode(p)
}

// Invoke performs one gated invocation: discover, price, prove, round trip.
// Non-success responses, including the 402-equivalent denial, normalize to
// Success=false with the server-supplied message.
func (c *Client) Invoke(ctx context.Context, handler string, payload map[string]any) *InvokeOutcome {
	if _, err := c.Discover(ctx); err != nil {
		return &InvokeOutcome{Handler: handler, Error: err.Error()}
	}

	recipient, price := c.resolve(handler)
	wire, err := c.ConstructProof(recipient, price)
	if err != nil {
		return &InvokeOutcome{Handler: handler, Error: fmt.Sprintf("proof construction failed: %v", err)}
	}

	resp, err := c.transport.Invoke(ctx, handler, payload, wire)
	if err != nil {
		return &InvokeOutcome{
			Handler:   handler,
			Error:     fmt.Sprintf("transport fault: %v", err),
			ProofUsed: wire,
		}
	}

	outcome := &InvokeOutcome{
		Success:   resp.Success,
		Handler:   handler,
		Result:    resp.Result,
		Meta:      resp.Meta,
		Error:     resp.Error,
		ProofUsed: wire,
	}
	if !resp.Success {
		c.log.Info("invocation refused", map[string]any{
			"handler": handler,
			"error":   resp.Error,
		})
	}
	return outcome
}

// BatchInvoke issues all invocations concurrently with no concurrency
// limit; callers needing bounded parallelism wrap this. Per-item faults
// become failed items rather than aborting the batch, and results[i]
// always corresponds to items[i].
func (c *Client) BatchInvoke(ctx context.Context, items []BatchItem) *BatchOutcome {
	start := time.Now()
	results := make([]InvokeOutcome, len(items))

	g, ctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			results[i] = *c.Invoke(ctx, item.Handler, item.Payload)
			return nil
		})
	}
	// Invoke never returns an error through the group.
	_ = g.Wait()

	outcome := &BatchOutcome{
		TotalRequested:  len(items),
		Results:         results,
		TotalDurationMS: time.Since(start).Milliseconds(),
	}
	for _, r := range results {
		if r.Success {
			outcome.Succeeded++
		} else {
			outcome.Failed++
		}
	}
	return outcome
}

// Recipient reports the effective recipient after discovery.
func (c *Client) Recipient() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Recipient
}
