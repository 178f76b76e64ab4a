// Package registry holds the named catalog of compute handlers and executes
// them, normalizing every outcome into an InvocationResult. The catalog is
// built at startup and is read-mostly afterwards; a RWMutex guards the rare
// late registration.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/paygrid-dev/paygate/logger"
	"github.com/paygrid-dev/paygate/metrics"
	"github.com/paygrid-dev/paygate/types"
	"github.com/paygrid-dev/paygate/utils"
)

// Registry is the handler catalog. Registration overwrites by name so tests
// can replace handlers; there is no removal.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]types.HandlerDefinition
	order    []string

	execTimeout time.Duration
	log         logger.Logger
	rec         metrics.Recorder
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(l logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(r *Registry) { r.rec = rec }
}

// WithExecTimeout bounds every handler execution. Zero means unbounded.
func WithExecTimeout(d time.Duration) Option {
	return func(r *Registry) { r.execTimeout = d }
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[string]types.HandlerDefinition),
		log:      logger.NoopLogger{},
		rec:      metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts or replaces a handler by name. The last registration for
// a name wins.
func (r *Registry) Register(def types.HandlerDefinition) error {
	if err := utils.ValidateStruct(&def); err != nil {
		return types.NewGateError(types.ErrConfigInvalid, "invalid handler definition: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.handlers[def.Name] = def

	r.log.Debug("handler registered", map[string]any{
		"handler": def.Name,
		"price":   def.Price.String(),
	})
	return nil
}

// Get returns the definition for a name.
func (r *Registry) Get(name string) (types.HandlerDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.handlers[name]
	return def, ok
}

// List returns all definitions in registration order. Callers may rely on
// the ordering for display only.
func (r *Registry) List() []types.HandlerDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.HandlerDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name])
	}
	return out
}

// Names returns the sorted handler names, used for not-found messages.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named handler and assembles the result. It never returns
// an error: an unknown name, a handler error and a handler panic all come
// back as a failed InvocationResult, so a faulting handler cannot crash the
// gate. Duration covers the full invocation boundary.
func (r *Registry) Execute(ctx context.Context, req types.InvocationRequest) *types.InvocationResult {
	def, ok := r.Get(req.Handler)
	if !ok {
		return &types.InvocationResult{
			RequestID: req.RequestID,
			Handler:   req.Handler,
			Status:    types.StatusFailed,
			Error: fmt.Sprintf("handler not found: %s. available: %s",
				req.Handler, strings.Join(r.Names(), ", ")),
		}
	}

	if r.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.execTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := r.invoke(ctx, def, req.Payload)
	duration := time.Since(start)

	r.rec.ObserveLatency(metrics.OperationExecute, duration, map[string]string{"handler": req.Handler})

	if err != nil {
		r.rec.IncCounter(metrics.EventHandlerFailed, map[string]string{"handler": req.Handler})
		r.log.Warn("handler failed", map[string]any{
			"handler":   req.Handler,
			"requestId": req.RequestID,
			"error":     err.Error(),
		})
		return &types.InvocationResult{
			RequestID:  req.RequestID,
			Handler:    req.Handler,
			Status:     types.StatusFailed,
			Error:      err.Error(),
			DurationMS: duration.Milliseconds(),
		}
	}

	r.rec.IncCounter(metrics.EventHandlerSuccess, map[string]string{"handler": req.Handler})
	return &types.InvocationResult{
		RequestID:  req.RequestID,
		Handler:    req.Handler,
		Status:     types.StatusSuccess,
		Result:     result,
		DurationMS: duration.Milliseconds(),
	}
}

// invoke calls the handler function, converting panics into errors.
func (r *Registry) invoke(ctx context.Context, def types.HandlerDefinition, payload map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = types.NewGateError(types.ErrHandlerFault, "handler panic: %v", rec)
		}
	}()
	return def.Execute(ctx, payload)
}
