package directory

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/model"
	"github.com/sells-group/barberfinder/internal/resilience"
)

// Guarded fails fast with resilience.ErrCircuitOpen while a remote backend
// keeps failing, so searches degrade quickly instead of stacking timeouts.
type Guarded struct {
	next    Directory
	breaker *resilience.Breaker
}

// WithBreaker wraps next. A threshold of zero or less returns next as is.
func WithBreaker(next Directory, name string, cfg resilience.BreakerConfig) Directory {
	if cfg.Threshold <= 0 {
		return next
	}
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("directory: circuit state changed",
			zap.String("backend", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return &Guarded{next: next, breaker: resilience.NewBreaker(cfg)}
}

func (g *Guarded) List(ctx context.Context) ([]model.Provider, error) {
	var ps []model.Provider
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		ps, err = g.next.List(ctx)
		return err
	})
	return ps, err
}

// State exposes the breaker state for health reporting.
func (g *Guarded) State() resilience.CircuitState {
	return g.breaker.State()
}
