package paygate

import (
	"github.com/paygrid-dev/paygate/gateway"
	"github.com/paygrid-dev/paygate/logger"
	"github.com/paygrid-dev/paygate/metrics"
)

type Option func(*Paygate)

func WithLogger(l logger.Logger) Option {
	return func(p *Paygate) {
		p.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(p *Paygate) {
		p.rec = r
	}
}

// WithRoutes sets the keyword routing table for task orchestration.
func WithRoutes(routes []gateway.Route, defaultHandler string) Option {
	return func(p *Paygate) {
		p.routes = routes
		p.defaultRoute = defaultHandler
	}
}
