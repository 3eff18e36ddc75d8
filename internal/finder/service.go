package finder

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/barberfinder/internal/directory"
	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/geolocate"
	"github.com/sells-group/barberfinder/internal/mapsync"
	"github.com/sells-group/barberfinder/internal/model"
	"github.com/sells-group/barberfinder/internal/notify"
	"github.com/sells-group/barberfinder/internal/ranking"
	"github.com/sells-group/barberfinder/internal/vip"
)

// MapStatus describes what happened to the map for one search.
type MapStatus string

const (
	MapNone     MapStatus = "none"
	MapApplied  MapStatus = "applied"
	MapStale    MapStatus = "stale"
	MapDegraded MapStatus = "degraded"
	MapFailed   MapStatus = "failed"
)

// Request is one search.
type Request struct {
	Query string
	// Locator resolves the user's position. Nil searches without one.
	Locator  geolocate.Locator
	Selected string
}

// Result is the outcome of Search.
type Result struct {
	Seq           uint64              `json:"seq"`
	Entries       []model.RankedEntry `json:"entries"`
	UserLocation  *geo.Coordinates    `json:"user_location,omitempty"`
	LocationError *geolocate.Error    `json:"-"`
	MapStatus     MapStatus           `json:"map_status"`
	Plan          mapsync.Plan        `json:"-"`
	Notifications int                 `json:"notifications"`
}

// LocationMessage is the user-facing location failure text, or "".
func (r Result) LocationMessage() string {
	if r.LocationError == nil {
		return ""
	}
	return r.LocationError.Message()
}

// Service runs searches. It is safe for concurrent use.
type Service struct {
	dir     directory.Directory
	engine  *ranking.Engine
	maps    *mapsync.Controller
	tracker *vip.Tracker
	center  *notify.Center
	geoOpts geolocate.Options
	nowFunc func() time.Time

	seq atomic.Uint64
}

// Option configures a Service.
type Option func(*Service)

// WithMap renders every search onto c.
func WithMap(c *mapsync.Controller) Option {
	return func(s *Service) { s.maps = c }
}

// WithLifecycle feeds lifecycle transitions of searched providers into
// center.
func WithLifecycle(t *vip.Tracker, center *notify.Center) Option {
	return func(s *Service) {
		s.tracker = t
		s.center = center
	}
}

// WithLocateOptions sets the geolocation timeout and accuracy.
func WithLocateOptions(o geolocate.Options) Option {
	return func(s *Service) { s.geoOpts = o }
}

// WithClock overrides the lifecycle evaluation clock.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) { s.nowFunc = fn }
}

// NewService creates a Service over dir and engine.
func NewService(dir directory.Directory, engine *ranking.Engine, opts ...Option) *Service {
	s := &Service{
		dir:     dir,
		engine:  engine,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Map returns the controller searches render onto, or nil.
func (s *Service) Map() *mapsync.Controller {
	return s.maps
}

// Search fetches providers and the user position concurrently, ranks, and
// pushes the result to the map. Only a directory failure is returned as an
// error; location and map problems are reported on the Result.
func (s *Service) Search(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Seq: s.seq.Add(1), MapStatus: MapNone}
	log := zap.L().With(zap.String("component", "finder"), zap.Uint64("seq", res.Seq))

	var providers []model.Provider
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ps, err := s.dir.List(gctx)
		if err != nil {
			return eris.Wrap(err, "finder: list providers")
		}
		providers = ps
		return nil
	})
	if req.Locator != nil {
		g.Go(func() error {
			pos, err := geolocate.Acquire(gctx, req.Locator, s.geoOpts)
			if err != nil {
				var gerr *geolocate.Error
				if !errors.As(err, &gerr) {
					gerr = geolocate.NewError(geolocate.KindPositionUnavailable, err)
				}
				res.LocationError = gerr
				return nil
			}
			res.UserLocation = &pos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if res.LocationError != nil {
		log.Info("finder: searching without location", zap.String("kind", string(res.LocationError.Kind)))
	}

	res.Entries = s.engine.Rank(providers, res.UserLocation, req.Query)
	s.render(res, req.Selected, log)

	if s.tracker != nil && s.center != nil {
		res.Notifications = s.center.Add(s.tracker.Observe(providers, s.nowFunc())...)
	}
	return res, nil
}

func (s *Service) render(res *Result, selected string, log *zap.Logger) {
	if s.maps == nil {
		return
	}
	if selected != "" {
		if err := s.maps.Select(selected); err != nil && !errors.Is(err, mapsync.ErrDegraded) {
			log.Warn("finder: map select failed", zap.Error(err))
		}
	}
	plan, err := s.maps.Apply(mapsync.Pass{Seq: res.Seq, Entries: res.Entries, UserLocation: res.UserLocation})
	switch {
	case err == nil:
		res.MapStatus = MapApplied
		res.Plan = plan
	case errors.Is(err, mapsync.ErrStalePass):
		res.MapStatus = MapStale
	case errors.Is(err, mapsync.ErrDegraded):
		res.MapStatus = MapDegraded
	default:
		res.MapStatus = MapFailed
		log.Warn("finder: map apply failed", zap.Error(err))
	}
}
