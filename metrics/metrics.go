// Package metrics defines the recorder surface for gate instrumentation.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Event names recorded by the gate.
const (
	EventVerifyValid     = "verify_valid"
	EventVerifyInvalid   = "verify_invalid"
	EventGateAllowed     = "gate_allowed"
	EventGateDenied      = "gate_denied"
	EventHandlerSuccess  = "handler_success"
	EventHandlerFailed   = "handler_failed"
	EventChainCompleted  = "chain_completed"
	EventChainFailed     = "chain_failed"
	OperationVerify      = "verify"
	OperationExecute     = "execute"
	OperationOrchestrate = "orchestrate"
)
