// Package geolocate acquires the user's coordinates through a pluggable
// Locator, bounded by a timeout and reduced to a closed set of error kinds.
package geolocate

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/barberfinder/internal/geo"
)

// DefaultTimeout bounds a single acquisition.
const DefaultTimeout = 10 * time.Second

// Options are passed through to the Locator.
type Options struct {
	Timeout      time.Duration
	HighAccuracy bool
}

// Locator resolves the current position.
type Locator interface {
	CurrentPosition(ctx context.Context, opts Options) (geo.Coordinates, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, opts Options) (geo.Coordinates, error)

// CurrentPosition calls f.
func (f LocatorFunc) CurrentPosition(ctx context.Context, opts Options) (geo.Coordinates, error) {
	return f(ctx, opts)
}

// Acquire asks l for a position and never waits longer than opts.Timeout
// (DefaultTimeout when zero). Every failure is returned as *Error: deadline
// expiry maps to KindTimeout and unclassified errors to KindPositionUnavailable.
func Acquire(ctx context.Context, l Locator, opts Options) (geo.Coordinates, error) {
	if l == nil {
		return geo.Coordinates{}, NewError(KindPositionUnavailable, errors.New("no locator configured"))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	type result struct {
		pos geo.Coordinates
		err error
	}
	done := make(chan result, 1)
	go func() {
		pos, err := l.CurrentPosition(ctx, opts)
		done <- result{pos, err}
	}()

	select {
	case <-ctx.Done():
		// A caller cancellation is not a timeout.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return geo.Coordinates{}, NewError(KindTimeout, ctx.Err())
		}
		return geo.Coordinates{}, NewError(KindPositionUnavailable, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return geo.Coordinates{}, classify(r.err)
		}
		return r.pos, nil
	}
}

func classify(err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, err)
	}
	return NewError(KindPositionUnavailable, err)
}
