package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/paygrid-dev/paygate/client"
	"github.com/paygrid-dev/paygate/gateway"
	"github.com/paygrid-dev/paygate/registry"
	"github.com/paygrid-dev/paygate/types"
	"github.com/paygrid-dev/paygate/verification"
)

func testOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	cfg := types.GatewayConfig{
		PayTo:        "0x384Aa214be0B279cbf211e9b2C992d8633F77848",
		DefaultPrice: decimal.NewFromFloat(0.001),
		Mode:         types.ModeSimulation,
		Network:      types.NetworkBaseSepolia,
	}
	cfg.Normalize()

	reg := registry.NewRegistry()
	handlers := map[string]types.HandlerFunc{
		"fetch": func(ctx context.Context, payload map[string]any) (any, error) {
			return map[string]any{"text": "raw document"}, nil
		},
		"summarize": func(ctx context.Context, payload map[string]any) (any, error) {
			return map[string]any{"summary": "short", "sawText": payload["text"] != nil}, nil
		},
		"publish": func(ctx context.Context, payload map[string]any) (any, error) {
			return "published", nil
		},
		"boom": func(ctx context.Context, payload map[string]any) (any, error) {
			return nil, errors.New("upstream unavailable")
		},
	}
	for name, fn := range handlers {
		err := reg.Register(types.HandlerDefinition{
			Name:    name,
			Price:   decimal.NewFromFloat(0.001),
			Trigger: types.TriggerManual,
			Execute: fn,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	gw := gateway.NewGateway(cfg, verification.NewVerifier(&cfg), reg)
	c, err := client.NewClient(types.ClientConfig{
		Simulate: true,
		Network:  types.NetworkBaseSepolia,
	}, client.NewLocalTransport(gw))
	if err != nil {
		t.Fatal(err)
	}
	return NewOrchestrator(c)
}

func TestOrchestrateAllSucceed(t *testing.T) {
	o := testOrchestrator(t)

	res := o.Orchestrate(context.Background(), []Step{
		{Handler: "fetch"},
		{Handler: "summarize"},
		{Handler: "publish"},
	}, Options{})

	if res.Status != types.OrchestrationCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if res.StepsCompleted != 3 {
		t.Errorf("stepsCompleted = %d", res.StepsCompleted)
	}
	if res.FinalResult != "published" {
		t.Errorf("finalResult = %v", res.FinalResult)
	}
	if want := "0.003"; res.TotalSpent.String() != want {
		t.Errorf("totalSpent = %s, want %s", res.TotalSpent, want)
	}
}

func TestOrchestrateThreadsResultForward(t *testing.T) {
	o := testOrchestrator(t)

	res := o.Orchestrate(context.Background(), []Step{
		{Handler: "fetch"},
		{Handler: "summarize"},
	}, Options{})

	record, ok := res.Steps[1].Result.(map[string]any)
	if !ok {
		t.Fatalf("step result type %T", res.Steps[1].Result)
	}
	// The default transform merges fetch's fields, so summarize sees "text".
	if record["sawText"] != true {
		t.Error("previous result was not threaded into the next payload")
	}
}

func TestOrchestrateStopOnFailure(t *testing.T) {
	o := testOrchestrator(t)

	res := o.Orchestrate(context.Background(), []Step{
		{Handler: "fetch"},
		{Handler: "boom"},
		{Handler: "publish"},
	}, Options{})

	want := []types.StepStatus{types.StepSuccess, types.StepFailed, types.StepSkipped}
	for i, status := range want {
		if res.Steps[i].Status != status {
			t.Errorf("steps[%d].Status = %s, want %s", i, res.Steps[i].Status, status)
		}
	}
	if res.Status != types.OrchestrationFailed {
		t.Errorf("status = %s", res.Status)
	}
	// Only fetch was paid for; the skipped step spent nothing.
	if want := "0.001"; res.TotalSpent.String() != want {
		t.Errorf("totalSpent = %s, want %s", res.TotalSpent, want)
	}
	if !strings.Contains(res.Steps[1].Error, "upstream unavailable") {
		t.Errorf("steps[1].Error = %q", res.Steps[1].Error)
	}
}

func TestOrchestrateContinueOnFailure(t *testing.T) {
	o := testOrchestrator(t)

	res := o.Orchestrate(context.Background(), []Step{
		{Handler: "fetch"},
		{Handler: "boom"},
		{Handler: "publish"},
	}, Options{ContinueOnFailure: true})

	if res.Status != types.OrchestrationPartial {
		t.Fatalf("status = %s", res.Status)
	}
	if res.StepsCompleted != 3 {
		t.Errorf("stepsCompleted = %d, want 3", res.StepsCompleted)
	}
	if res.Steps[2].Status != types.StepSuccess {
		t.Errorf("steps[2].Status = %s", res.Steps[2].Status)
	}
	if res.FinalResult != "published" {
		t.Errorf("finalResult = %v", res.FinalResult)
	}
}

func TestTransformFaultRetroactivelyFailsStep(t *testing.T) {
	o := testOrchestrator(t)

	res := o.Orchestrate(context.Background(), []Step{
		{Handler: "fetch"},
		{Handler: "summarize"},
	}, Options{
		Transform: func(prev any) (map[string]any, error) {
			return nil, errors.New("unparseable output")
		},
	})

	if res.Status != types.OrchestrationFailed {
		t.Fatalf("status = %s", res.Status)
	}
	// fetch executed fine but its output could not be consumed, so it is
	// flipped to failed and its spend is backed out.
	if res.Steps[0].Status != types.StepFailed {
		t.Errorf("steps[0].Status = %s", res.Steps[0].Status)
	}
	if !strings.Contains(res.Steps[0].Error, "transform fault") {
		t.Errorf("steps[0].Error = %q", res.Steps[0].Error)
	}
	if res.Steps[1].Status != types.StepSkipped {
		t.Errorf("steps[1].Status = %s", res.Steps[1].Status)
	}
	if !res.TotalSpent.IsZero() {
		t.Errorf("totalSpent = %s, want 0", res.TotalSpent)
	}
}

func TestExplicitStepPayloadBypassesTransform(t *testing.T) {
	o := testOrchestrator(t)

	res := o.Orchestrate(context.Background(), []Step{
		{Handler: "fetch"},
		{Handler: "summarize", Payload: map[string]any{"text": "fixed"}},
	}, Options{
		Transform: func(prev any) (map[string]any, error) {
			return nil, errors.New("must not be called")
		},
	})

	if res.Status != types.OrchestrationCompleted {
		t.Fatalf("status = %s: %s", res.Status, o.Summarize(res))
	}
}

func TestBatchOrchestratePreservesOrder(t *testing.T) {
	o := testOrchestrator(t)

	results := o.BatchOrchestrate(context.Background(), []Chain{
		{Steps: []Step{{Handler: "fetch"}}},
		{Steps: []Step{{Handler: "boom"}}},
		{Steps: []Step{{Handler: "publish"}}},
	})

	if len(results) != 3 {
		t.Fatalf("len(results) = %d", len(results))
	}
	if results[0].Status != types.OrchestrationCompleted {
		t.Errorf("results[0].Status = %s", results[0].Status)
	}
	if results[1].Status != types.OrchestrationFailed {
		t.Errorf("results[1].Status = %s", results[1].Status)
	}
	if results[2].Chain[0] != "publish" {
		t.Errorf("results[2].Chain = %v", results[2].Chain)
	}
}

func TestSummarize(t *testing.T) {
	o := testOrchestrator(t)

	res := o.Orchestrate(context.Background(), []Step{
		{Handler: "fetch"},
		{Handler: "boom"},
	}, Options{})
	text := o.Summarize(res)

	for _, want := range []string{
		"orchestration " + res.OrchestrationID + ": failed",
		"chain: fetch -> boom",
		"[0] fetch: success",
		"[1] boom: failed (upstream unavailable)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}
