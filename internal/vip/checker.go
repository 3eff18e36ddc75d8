package vip

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/model"
)

// Source supplies the providers to evaluate.
type Source interface {
	List(ctx context.Context) ([]model.Provider, error)
}

// Sink receives emitted notifications.
type Sink interface {
	Add(ns ...model.Notification) int
}

// Checker runs lifecycle evaluation on a fixed interval. It is the
// scheduler the tracker itself does not own.
type Checker struct {
	source   Source
	tracker  *Tracker
	sink     Sink
	interval time.Duration
	nowFunc  func() time.Time
}

// NewChecker creates a Checker. A non-positive interval defaults to one hour.
func NewChecker(source Source, tracker *Tracker, sink Sink, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Checker{
		source:   source,
		tracker:  tracker,
		sink:     sink,
		interval: interval,
		nowFunc:  time.Now,
	}
}

// Run checks once immediately, then on every tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "vip.checker"))
	log.Info("starting vip lifecycle checker", zap.Duration("interval", c.interval))

	c.runOnce(ctx, log)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("vip lifecycle checker stopped")
			return
		case <-ticker.C:
			c.runOnce(ctx, log)
		}
	}
}

func (c *Checker) runOnce(ctx context.Context, log *zap.Logger) {
	added, err := c.Check(ctx)
	if err != nil {
		log.Error("vip: lifecycle check failed", zap.Error(err))
		return
	}
	if added > 0 {
		log.Info("vip: lifecycle check complete", zap.Int("notifications", added))
	} else {
		log.Debug("vip: no lifecycle transitions")
	}
}

// Check evaluates the current provider list once and returns how many new
// notifications reached the sink.
func (c *Checker) Check(ctx context.Context) (int, error) {
	providers, err := c.source.List(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "vip: list providers")
	}
	ns := c.tracker.Observe(providers, c.nowFunc())
	if len(ns) == 0 {
		return 0, nil
	}
	return c.sink.Add(ns...), nil
}
