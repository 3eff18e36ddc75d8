package geolocate

import (
	"context"

	"github.com/sells-group/barberfinder/internal/geo"
)

// Static returns fixed coordinates, typically the ones a client sent with
// its request.
type Static struct {
	Coordinates geo.Coordinates
}

// CurrentPosition returns s.Coordinates.
func (s Static) CurrentPosition(_ context.Context, _ Options) (geo.Coordinates, error) {
	return s.Coordinates, nil
}

// Denied always fails with KindPermissionDenied. It stands in for a client
// that refused to share its location.
type Denied struct{}

// CurrentPosition returns a permission error.
func (Denied) CurrentPosition(_ context.Context, _ Options) (geo.Coordinates, error) {
	return geo.Coordinates{}, NewError(KindPermissionDenied, nil)
}

// Chain tries each locator in order and returns the first success. When all
// fail, the last error is returned.
type Chain []Locator

// CurrentPosition walks the chain.
func (c Chain) CurrentPosition(ctx context.Context, opts Options) (geo.Coordinates, error) {
	var lastErr error = NewError(KindPositionUnavailable, nil)
	for _, l := range c {
		if l == nil {
			continue
		}
		pos, err := l.CurrentPosition(ctx, opts)
		if err == nil {
			return pos, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return geo.Coordinates{}, lastErr
}
