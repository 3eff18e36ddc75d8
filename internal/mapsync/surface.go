// Package mapsync keeps a mapping surface's markers consistent with the
// latest ranked provider list and the current selection.
package mapsync

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/model"
)

var (
	// ErrLoadFailed is wrapped by Loader implementations when the map cannot
	// be initialized.
	ErrLoadFailed = eris.New("mapsync: map load failed")
	// ErrDegraded is returned by every operation on a controller whose map
	// failed to initialize.
	ErrDegraded = eris.New("mapsync: map unavailable")
	// ErrStalePass is returned when a pass older than the last applied one
	// arrives.
	ErrStalePass = eris.New("mapsync: stale pass discarded")
	// ErrClosed is returned after Close.
	ErrClosed = eris.New("mapsync: controller closed")
	// ErrUnknownMarker is returned when an operation names a provider with
	// no rendered marker.
	ErrUnknownMarker = eris.New("mapsync: no marker for provider")
	// ErrInvalidHandle is returned by surfaces for handles they do not own.
	ErrInvalidHandle = eris.New("mapsync: invalid marker handle")
)

// MarkerHandle is an opaque reference owned by the Surface. The controller
// only stores handles and passes them back.
type MarkerHandle any

// Credentials authenticate against the map provider.
type Credentials struct {
	APIKey string
}

// Options configure the initial map view.
type Options struct {
	Center geo.Coordinates
	Zoom   int
}

// Surface is an initialized map.
type Surface interface {
	CreateMarker(pos geo.Coordinates, style model.MarkerStyle) (MarkerHandle, error)
	DestroyMarker(h MarkerHandle) error
	SetMarkerStyle(h MarkerHandle, style model.MarkerStyle) error
	FitBounds(positions []geo.Coordinates) error
	ShowInfo(h MarkerHandle, content InfoContent) error
}

// Loader initializes a Surface. It is called at most once per controller.
type Loader interface {
	Initialize(ctx context.Context, creds Credentials, opts Options) (Surface, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, creds Credentials, opts Options) (Surface, error)

// Initialize calls f.
func (f LoaderFunc) Initialize(ctx context.Context, creds Credentials, opts Options) (Surface, error) {
	return f(ctx, creds, opts)
}
