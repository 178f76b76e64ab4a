package gateway

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/paygrid-dev/paygate/proof"
	"github.com/paygrid-dev/paygate/registry"
	"github.com/paygrid-dev/paygate/types"
	"github.com/paygrid-dev/paygate/verification"
)

const (
	payer     = "0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1"
	recipient = "0x384Aa214be0B279cbf211e9b2C992d8633F77848"
)

func testGateway(t *testing.T, counter *atomic.Int64) *Gateway {
	t.Helper()

	cfg := types.GatewayConfig{
		PayTo:        recipient,
		DefaultPrice: decimal.NewFromFloat(0.001),
		Mode:         types.ModeSimulation,
		Network:      types.NetworkBaseSepolia,
	}
	cfg.Normalize()

	reg := registry.NewRegistry()
	err := reg.Register(types.HandlerDefinition{
		Name:        "count",
		Description: "increments a counter when actually invoked",
		Price:       decimal.NewFromFloat(0.001),
		Trigger:     types.TriggerManual,
		Execute: func(ctx context.Context, payload map[string]any) (any, error) {
			if counter != nil {
				counter.Add(1)
			}
			return "counted", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	return NewGateway(cfg, verification.NewVerifier(&cfg), reg,
		WithRoutes([]Route{
			{Keyword: "count", Handler: "count"},
		}, "count"))
}

func wireFor(t *testing.T, to string, amount float64) string {
	t.Helper()
	w, err := proof.Encode(proof.NewSimple(payer, to, decimal.NewFromFloat(amount), types.NetworkBaseSepolia))
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestInvokeAllowedExecutes(t *testing.T) {
	var counter atomic.Int64
	g := testGateway(t, &counter)

	res := g.Invoke(context.Background(), "count", nil, wireFor(t, recipient, 0.001))
	if !res.Allowed {
		t.Fatalf("denied: %s", res.Error)
	}
	if res.Invocation.Status != types.StatusSuccess {
		t.Fatalf("invocation status = %s", res.Invocation.Status)
	}
	if counter.Load() != 1 {
		t.Errorf("handler invoked %d times, want 1", counter.Load())
	}
	if !res.PricePaid.Equal(decimal.NewFromFloat(0.001)) {
		t.Errorf("pricePaid = %s", res.PricePaid)
	}
}

func TestInvokeDeniedNeverExecutesHandler(t *testing.T) {
	var counter atomic.Int64
	g := testGateway(t, &counter)

	// Underpayment and missing proof both deny; the handler must not run.
	for _, wire := range []string{wireFor(t, recipient, 0.0001), ""} {
		res := g.Invoke(context.Background(), "count", nil, wire)
		if res.Allowed {
			t.Fatal("invalid proof was allowed")
		}
		if res.Invocation != nil {
			t.Error("denied invocation carries an invocation result")
		}
	}
	if counter.Load() != 0 {
		t.Errorf("handler invoked %d times on denial, want 0", counter.Load())
	}
}

func TestInvokeUnknownHandlerIsPaidAttempt(t *testing.T) {
	g := testGateway(t, nil)

	// Payment is for the attempt: verification is independent of handler
	// existence, so a valid default-price proof is allowed and the miss
	// surfaces as a failed invocation result.
	res := g.Invoke(context.Background(), "nope", nil, wireFor(t, recipient, 0.001))
	if !res.Allowed {
		t.Fatalf("unknown handler denied: %s", res.Error)
	}
	if res.Invocation.Status != types.StatusFailed {
		t.Fatalf("invocation status = %s, want failed", res.Invocation.Status)
	}
	if !strings.Contains(res.Invocation.Error, "handler not found: nope") {
		t.Errorf("error = %q", res.Invocation.Error)
	}
}

func TestServeShapesDenial(t *testing.T) {
	g := testGateway(t, nil)

	resp := g.Serve(context.Background(), "count", nil, "")
	if resp.Success {
		t.Fatal("missing proof served successfully")
	}
	if resp.Denial == nil {
		t.Fatal("denial response missing payment hint")
	}
	if len(resp.Denial.Accepts) != 1 {
		t.Fatalf("accepts length = %d", len(resp.Denial.Accepts))
	}

	accept := resp.Denial.Accepts[0]
	if accept.Scheme != "exact" {
		t.Errorf("scheme = %s", accept.Scheme)
	}
	if accept.MaxAmountRequired != "1000" {
		t.Errorf("maxAmountRequired = %s, want 1000 micro-units", accept.MaxAmountRequired)
	}
	if accept.PayTo != recipient {
		t.Errorf("payTo = %s", accept.PayTo)
	}
	if accept.Asset == "" {
		t.Error("asset missing from denial")
	}
}

func TestServeSuccessMeta(t *testing.T) {
	g := testGateway(t, nil)

	resp := g.Serve(context.Background(), "count", nil, wireFor(t, recipient, 0.001))
	if !resp.Success {
		t.Fatalf("serve failed: %s", resp.Error)
	}
	if resp.Meta == nil || resp.Meta.Handler != "count" || resp.Meta.RequestID == "" {
		t.Errorf("meta = %+v", resp.Meta)
	}
	if resp.Meta.PricePaid != "0.001" {
		t.Errorf("pricePaid = %s", resp.Meta.PricePaid)
	}
}

func TestRouteTask(t *testing.T) {
	cfg := types.GatewayConfig{PayTo: recipient, Mode: types.ModeSimulation}
	cfg.Normalize()
	g := NewGateway(cfg, verification.NewVerifier(&cfg), registry.NewRegistry(),
		WithRoutes([]Route{
			{Keyword: "summarize", Handler: "summarize-text"},
			{Keyword: "text", Handler: "generic-text"},
		}, "fallback"))

	cases := map[string]string{
		"Summarize this text for me": "summarize-text", // first match wins
		"analyze this TEXT":          "generic-text",
		"do something else":          "fallback",
	}
	for desc, want := range cases {
		if got := g.RouteTask(desc); got != want {
			t.Errorf("RouteTask(%q) = %s, want %s", desc, got, want)
		}
	}
}

func TestOrchestrateTaskRaisesOnDenial(t *testing.T) {
	g := testGateway(t, nil)

	_, err := g.OrchestrateTask(context.Background(), TaskRequest{Description: "count things"}, "")
	if err == nil {
		t.Fatal("denied task returned no error")
	}
	var gerr *types.GateError
	if !errors.As(err, &gerr) || gerr.Code != types.ErrPaymentRequired {
		t.Errorf("error = %v, want PAYMENT_REQUIRED gate error", err)
	}
	if !strings.Contains(err.Error(), "payment required") {
		t.Errorf("error = %v", err)
	}
}

func TestOrchestrateTaskRoutesAndExecutes(t *testing.T) {
	var counter atomic.Int64
	g := testGateway(t, &counter)

	res, err := g.OrchestrateTask(context.Background(),
		TaskRequest{Description: "please count this"}, wireFor(t, recipient, 0.001))
	if err != nil {
		t.Fatal(err)
	}
	if res.Handler != "count" {
		t.Errorf("routed to %s", res.Handler)
	}
	if counter.Load() != 1 {
		t.Errorf("handler invoked %d times", counter.Load())
	}
}

func TestCatalog(t *testing.T) {
	g := testGateway(t, nil)

	cat := g.Catalog()
	if cat.Count != 1 || len(cat.Catalog) != 1 {
		t.Fatalf("catalog count = %d", cat.Count)
	}
	entry := cat.Catalog[0]
	if entry.Name != "count" || entry.Payment.Recipient != recipient {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Payment.HeaderName != PaymentHeaderName {
		t.Errorf("headerName = %s", entry.Payment.HeaderName)
	}
}
