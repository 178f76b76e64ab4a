// Package orchestrator chains gated invocations end to end, threading each
// step's output into the next step's input with configurable failure
// propagation, plus a parallel batch-of-chains variant.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/paygrid-dev/paygate/client"
	"github.com/paygrid-dev/paygate/logger"
	"github.com/paygrid-dev/paygate/metrics"
	"github.com/paygrid-dev/paygate/types"
	"github.com/paygrid-dev/paygate/utils"
)

// Transform derives the next step's payload from the previous step's
// successful result. A transform that faults retroactively fails the step
// whose output it could not consume.
type Transform func(prev any) (map[string]any, error)

// DefaultTransform wraps the previous result under a previousResult key,
// merging the result's own fields in when it was itself a record.
func DefaultTransform(prev any) (map[string]any, error) {
	out := map[string]any{"previousResult": prev}
	if record, ok := prev.(map[string]any); ok {
		for k, v := range record {
			out[k] = v
		}
	}
	return out, nil
}

// Step names one handler in a chain, optionally with an explicit payload
// override that bypasses the transform for this step.
type Step struct {
	Handler string
	Payload map[string]any
}

// Options control one orchestration run.
type Options struct {
	// InitialPayload seeds the first step. Defaults to empty.
	InitialPayload map[string]any

	// ContinueOnFailure keeps executing later steps after a failure
	// instead of skipping them.
	ContinueOnFailure bool

	// Transform overrides DefaultTransform.
	Transform Transform
}

// Orchestrator sequences gated invocations through an invoker client.
type Orchestrator struct {
	client *client.Client
	log    logger.Logger
	rec    metrics.Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.rec = r }
}

// NewOrchestrator builds an Orchestrator over an invoker client.
func NewOrchestrator(c *client.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client: c,
		log:    logger.NoopLogger{},
		rec:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Orchestrate runs the chain strictly sequentially: step N+1's payload
// depends on step N's result, so there is no parallelism within one chain.
// Verification denials and handler faults are both recorded as failed
// steps; nothing propagates out as an error.
func (o *Orchestrator) Orchestrate(ctx context.Context, steps []Step, opts Options) *types.OrchestrationResult {
	start := time.Now()
	transform := opts.Transform
	if transform == nil {
		transform = DefaultTransform
	}

	result := &types.OrchestrationResult{
		OrchestrationID: utils.RandomHex(16),
		Chain:           chainNames(steps),
		Steps:           make([]types.StepResult, 0, len(steps)),
		TotalSpent:      decimal.Zero,
		StartedAt:       start,
	}

	failed := false
	var prevResult any
	prevSuccess := false

	for i, step := range steps {
		if failed && !opts.ContinueOnFailure {
			result.Steps = append(result.Steps, types.StepResult{
				Handler: step.Handler,
				Index:   i,
				Status:  types.StepSkipped,
				Spent:   decimal.Zero,
			})
			continue
		}

		payload, ok := o.stepPayload(result, i, step, opts, transform, prevResult, prevSuccess)
		if !ok {
			// The transform fault retroactively failed the previous step.
			failed = true
			if !opts.ContinueOnFailure {
				result.Steps = append(result.Steps, types.StepResult{
					Handler: step.Handler,
					Index:   i,
					Status:  types.StepSkipped,
					Spent:   decimal.Zero,
				})
				prevSuccess = false
				continue
			}
			payload = opts.InitialPayload
		}

		outcome := o.client.Invoke(ctx, step.Handler, payload)
		sr := types.StepResult{
			Handler:   step.Handler,
			Index:     i,
			ProofUsed: outcome.ProofUsed,
			Spent:     decimal.Zero,
		}
		if outcome.Meta != nil {
			sr.DurationMS = outcome.Meta.DurationMS
		}

		if outcome.Success {
			sr.Status = types.StepSuccess
			sr.Result = outcome.Result
			if outcome.Meta != nil {
				if spent, err := decimal.NewFromString(outcome.Meta.PricePaid); err == nil {
					sr.Spent = spent
				}
			}
			result.TotalSpent = result.TotalSpent.Add(sr.Spent)
			prevResult = outcome.Result
			prevSuccess = true
		} else {
			sr.Status = types.StepFailed
			sr.Error = outcome.Error
			failed = true
			prevSuccess = false
		}
		result.Steps = append(result.Steps, sr)

		o.log.Debug("chain step finished", map[string]any{
			"orchestrationId": result.OrchestrationID,
			"handler":         step.Handler,
			"stepIndex":       i,
			"status":          string(sr.Status),
		})
	}

	o.finalize(result, opts, failed)
	o.rec.ObserveLatency(metrics.OperationOrchestrate, time.Since(start), nil)
	return result
}

// stepPayload resolves the payload for step i. The bool return is false
// when the transform faulted; in that case the previous step has already
// been retroactively flipped to failed, because a step is only truly
// successful when its output can be consumed.
func (o *Orchestrator) stepPayload(result *types.OrchestrationResult, i int, step Step, opts Options, transform Transform, prevResult any, prevSuccess bool) (map[string]any, bool) {
	if step.Payload != nil {
		return step.Payload, true
	}
	if i == 0 {
		return opts.InitialPayload, true
	}
	if !prevSuccess {
		// Continue-on-failure with a failed predecessor: nothing to
		// transform, reuse the initial payload.
		return opts.InitialPayload, true
	}

	payload, err := transform(prevResult)
	if err != nil {
		prev := &result.Steps[len(result.Steps)-1]
		prev.Status = types.StepFailed
		prev.Error = fmt.Sprintf("transform fault: %v", err)
		result.TotalSpent = result.TotalSpent.Sub(prev.Spent)
		prev.Spent = decimal.Zero
		return nil, false
	}
	return payload, true
}

// finalize derives steps-completed counts and the overall status:
// completed with zero failures, partial when continue-on-failure salvaged
// at least one success, failed otherwise.
func (o *Orchestrator) finalize(result *types.OrchestrationResult, opts Options, failed bool) {
	succeeded := 0
	completedSteps := 0
	for _, sr := range result.Steps {
		if sr.Status != types.StepSkipped {
			completedSteps++
		}
		if sr.Status == types.StepSuccess {
			succeeded++
			result.FinalResult = sr.Result
		}
	}
	result.StepsCompleted = completedSteps

	switch {
	case !failed:
		result.Status = types.OrchestrationCompleted
		o.rec.IncCounter(metrics.EventChainCompleted, nil)
	case opts.ContinueOnFailure && succeeded > 0:
		result.Status = types.OrchestrationPartial
		o.rec.IncCounter(metrics.EventChainFailed, nil)
	default:
		result.Status = types.OrchestrationFailed
		o.rec.IncCounter(metrics.EventChainFailed, nil)
	}
	result.CompletedAt = time.Now()
}

// Chain is one member of a batch orchestration.
type Chain struct {
	Steps   []Step
	Options Options
}

// BatchOrchestrate runs the chains fully in parallel, one result per chain
// in input order. Steps within each chain remain sequential.
func (o *Orchestrator) BatchOrchestrate(ctx context.Context, chains []Chain) []*types.OrchestrationResult {
	results := make([]*types.OrchestrationResult, len(chains))

	g, ctx := errgroup.WithContext(ctx)
	for i, ch := range chains {
		g.Go(func() error {
			results[i] = o.Orchestrate(ctx, ch.Steps, ch.Options)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Summarize renders a deterministic human-readable account of a run, for
// logs and tests rather than parsing.
func (o *Orchestrator) Summarize(result *types.OrchestrationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "orchestration %s: %s\n", result.OrchestrationID, result.Status)
	fmt.Fprintf(&b, "chain: %s\n", strings.Join(result.Chain, " -> "))
	fmt.Fprintf(&b, "spent: %s (%d/%d steps completed)\n",
		result.TotalSpent.String(), result.StepsCompleted, len(result.Steps))
	for _, sr := range result.Steps {
		line := fmt.Sprintf("  [%d] %s: %s", sr.Index, sr.Handler, sr.Status)
		if sr.Error != "" {
			line += " (" + sr.Error + ")"
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func chainNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Handler
	}
	return names
}
