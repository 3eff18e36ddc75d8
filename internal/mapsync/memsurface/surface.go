// Package memsurface is an in-process map surface. It keeps rendered markers
// in memory so a server can hand them to a browser renderer as JSON.
package memsurface

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/mapsync"
	"github.com/sells-group/barberfinder/internal/model"
)

// Handle identifies a marker on a Surface.
type Handle int

// Marker is a rendered marker.
type Marker struct {
	Handle   Handle            `json:"handle"`
	Position geo.Coordinates   `json:"position"`
	Style    model.MarkerStyle `json:"style"`
}

// Info is an opened info popup.
type Info struct {
	Handle  Handle              `json:"handle"`
	Content mapsync.InfoContent `json:"content"`
}

// Surface implements mapsync.Surface in memory.
type Surface struct {
	mu      sync.Mutex
	opts    mapsync.Options
	next    Handle
	markers map[Handle]*Marker
	fit     []geo.Coordinates
	fits    int
	info    *Info
}

// New returns an empty Surface centered per opts.
func New(opts mapsync.Options) *Surface {
	if opts.Center == (geo.Coordinates{}) {
		opts.Center = geo.DefaultCenter
	}
	if opts.Zoom == 0 {
		opts.Zoom = 14
	}
	return &Surface{opts: opts, markers: make(map[Handle]*Marker)}
}

// CreateMarker adds a marker.
func (s *Surface) CreateMarker(pos geo.Coordinates, style model.MarkerStyle) (mapsync.MarkerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.markers[s.next] = &Marker{Handle: s.next, Position: pos, Style: style}
	return s.next, nil
}

// DestroyMarker removes a marker. Unknown handles yield ErrInvalidHandle.
func (s *Surface) DestroyMarker(h mapsync.MarkerHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.lookup(h)
	if err != nil {
		return err
	}
	delete(s.markers, m.Handle)
	if s.info != nil && s.info.Handle == m.Handle {
		s.info = nil
	}
	return nil
}

// SetMarkerStyle changes a marker's style.
func (s *Surface) SetMarkerStyle(h mapsync.MarkerHandle, style model.MarkerStyle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.lookup(h)
	if err != nil {
		return err
	}
	m.Style = style
	return nil
}

// FitBounds records the requested viewport.
func (s *Surface) FitBounds(positions []geo.Coordinates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fit = append([]geo.Coordinates(nil), positions...)
	s.fits++
	return nil
}

// ShowInfo opens the popup for a marker, replacing any open one.
func (s *Surface) ShowInfo(h mapsync.MarkerHandle, content mapsync.InfoContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.lookup(h)
	if err != nil {
		return err
	}
	s.info = &Info{Handle: m.Handle, Content: content}
	return nil
}

func (s *Surface) lookup(h mapsync.MarkerHandle) (*Marker, error) {
	id, ok := h.(Handle)
	if !ok {
		return nil, eris.Wrapf(mapsync.ErrInvalidHandle, "handle type %T", h)
	}
	m, ok := s.markers[id]
	if !ok {
		return nil, eris.Wrapf(mapsync.ErrInvalidHandle, "handle %d", id)
	}
	return m, nil
}

// Markers returns every marker ordered by handle.
func (s *Surface) Markers() []Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Marker, 0, len(s.markers))
	for _, m := range s.markers {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// LastFit returns the positions of the most recent FitBounds call and how
// many calls there have been.
func (s *Surface) LastFit() ([]geo.Coordinates, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]geo.Coordinates(nil), s.fit...), s.fits
}

// OpenInfo returns the open popup, if any.
func (s *Surface) OpenInfo() (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return Info{}, false
	}
	return *s.info, true
}

// Options returns the options the surface was created with.
func (s *Surface) Options() mapsync.Options {
	return s.opts
}

// Loader initializes Surfaces. When RequireKey is set an empty API key fails
// the load, mirroring hosted map providers.
type Loader struct {
	RequireKey bool

	mu   sync.Mutex
	last *Surface
}

// Initialize creates a new Surface.
func (l *Loader) Initialize(ctx context.Context, creds mapsync.Credentials, opts mapsync.Options) (mapsync.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(mapsync.ErrLoadFailed, err.Error())
	}
	if l.RequireKey && creds.APIKey == "" {
		return nil, eris.Wrap(mapsync.ErrLoadFailed, "maps api key not configured")
	}
	s := New(opts)
	l.mu.Lock()
	l.last = s
	l.mu.Unlock()
	return s, nil
}

// Last returns the most recently initialized surface.
func (l *Loader) Last() *Surface {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}
