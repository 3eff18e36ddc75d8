package mapsync

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/model"
)

// Pass is one ranked sequence to render. Seq must increase monotonically;
// passes at or below the last applied Seq are discarded.
type Pass struct {
	Seq          uint64
	Entries      []model.RankedEntry
	UserLocation *geo.Coordinates
}

// MarkerState is a read-only view of a rendered provider marker.
type MarkerState struct {
	ProviderID string            `json:"provider_id"`
	Position   geo.Coordinates   `json:"position"`
	Style      model.MarkerStyle `json:"style"`
}

// Viewport is the region last requested from the surface.
type Viewport struct {
	SouthWest geo.Coordinates `json:"south_west"`
	NorthEast geo.Coordinates `json:"north_east"`
	Center    geo.Coordinates `json:"center"`
}

type userMarker struct {
	position geo.Coordinates
	handle   MarkerHandle
}

// Controller owns the marker set of one Surface. All methods are safe for
// concurrent use; passes are serialized by an internal mutex.
type Controller struct {
	mu sync.Mutex

	surface Surface
	initErr error
	closed  bool

	markers  map[string]Tracked
	order    []string
	entries  map[string]model.RankedEntry
	selected string
	user     *userMarker
	viewport *Viewport

	lastSeq uint64
	applied bool
}

// New initializes the map through loader exactly once. The returned
// controller is always non-nil. When err is non-nil the controller is
// permanently degraded: it never retries and every operation returns
// ErrDegraded.
func New(ctx context.Context, loader Loader, creds Credentials, opts Options) (*Controller, error) {
	c := &Controller{
		markers: make(map[string]Tracked),
		entries: make(map[string]model.RankedEntry),
	}

	if loader == nil {
		c.initErr = eris.Wrap(ErrLoadFailed, "no map loader configured")
	} else {
		s, err := loader.Initialize(ctx, creds, opts)
		switch {
		case err != nil:
			c.initErr = eris.Wrap(err, "mapsync: initialize map")
		case s == nil:
			c.initErr = eris.Wrap(ErrLoadFailed, "loader returned no surface")
		default:
			c.surface = s
		}
	}

	if c.initErr != nil {
		zap.L().Warn("mapsync: map unavailable, running degraded", zap.Error(c.initErr))
		return c, c.initErr
	}
	return c, nil
}

// Degraded reports whether the map failed to initialize.
func (c *Controller) Degraded() bool {
	return c.initErr != nil
}

// InitErr returns the initialization failure, if any.
func (c *Controller) InitErr() error {
	return c.initErr
}

func (c *Controller) usable() error {
	if c.initErr != nil {
		return ErrDegraded
	}
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Apply reconciles the markers with pass and returns the plan it executed.
// Surface failures on individual markers are logged and absorbed so the
// rest of the pass still runs.
func (c *Controller) Apply(pass Pass) (Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return Plan{}, err
	}
	if c.applied && pass.Seq <= c.lastSeq {
		zap.L().Debug("mapsync: discarding stale pass",
			zap.Uint64("seq", pass.Seq),
			zap.Uint64("last_seq", c.lastSeq),
		)
		return Plan{}, ErrStalePass
	}
	c.applied = true
	c.lastSeq = pass.Seq

	plan := Diff(c.markers, pass.Entries, c.selected)

	for _, id := range plan.Destroy {
		c.destroyLocked(id)
	}
	for _, m := range plan.Move {
		c.destroyLocked(m.ProviderID)
		c.createLocked(m)
	}
	for _, m := range plan.Create {
		c.createLocked(m)
	}
	for _, r := range plan.Restyle {
		c.restyleLocked(r.ProviderID, r.To, r.VIP)
	}

	c.entries = make(map[string]model.RankedEntry, len(pass.Entries))
	c.order = c.order[:0]
	for _, e := range pass.Entries {
		if _, dup := c.entries[e.Provider.ID]; dup {
			continue
		}
		c.entries[e.Provider.ID] = e
		c.order = append(c.order, e.Provider.ID)
	}

	userChanged := c.syncUserLocked(pass.UserLocation)
	if plan.SetChanged() || userChanged {
		c.fitLocked()
	}

	zap.L().Debug("mapsync: pass applied",
		zap.Uint64("seq", pass.Seq),
		zap.Int("created", len(plan.Create)),
		zap.Int("destroyed", len(plan.Destroy)),
		zap.Int("moved", len(plan.Move)),
		zap.Int("restyled", len(plan.Restyle)),
		zap.Int("retained", plan.Retained),
	)
	return plan, nil
}

// Select makes providerID the single selected marker. An empty id clears the
// selection. The selection is remembered even when the provider has no
// marker yet and is applied once it appears.
func (c *Controller) Select(providerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return err
	}
	c.selectLocked(providerID)
	return nil
}

// Click selects providerID and opens its info popup.
func (c *Controller) Click(providerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return err
	}
	t, ok := c.markers[providerID]
	if !ok {
		return eris.Wrapf(ErrUnknownMarker, "click %s", providerID)
	}
	c.selectLocked(providerID)

	if err := c.surface.ShowInfo(t.Handle, InfoFor(c.entries[providerID])); err != nil {
		return eris.Wrapf(err, "mapsync: show info %s", providerID)
	}
	return nil
}

// Selected returns the selected provider id, or "".
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Markers returns the rendered provider markers in the order of the last
// applied pass.
func (c *Controller) Markers() []MarkerState {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]MarkerState, 0, len(c.markers))
	for _, id := range c.order {
		t, ok := c.markers[id]
		if !ok {
			continue
		}
		out = append(out, MarkerState{ProviderID: id, Position: t.Position, Style: t.Style})
	}
	return out
}

// Viewport returns the last region passed to FitBounds.
func (c *Controller) Viewport() (Viewport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.viewport == nil {
		return Viewport{}, false
	}
	return *c.viewport, true
}

// LastSeq returns the sequence number of the last applied pass.
func (c *Controller) LastSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeq
}

// Close destroys every marker. Further calls return ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initErr != nil || c.closed {
		return nil
	}
	for id := range c.markers {
		c.destroyLocked(id)
	}
	c.syncUserLocked(nil)
	c.order = nil
	c.closed = true
	return nil
}

func (c *Controller) selectLocked(providerID string) {
	if providerID == c.selected {
		return
	}
	prev := c.selected
	c.selected = providerID

	if t, ok := c.markers[prev]; ok {
		c.restyleLocked(prev, model.BaselineStyle(t.VIP), t.VIP)
	}
	if t, ok := c.markers[providerID]; ok {
		c.restyleLocked(providerID, model.MarkerSelected, t.VIP)
	}
}

func (c *Controller) createLocked(m Placement) {
	h, err := c.surface.CreateMarker(m.Position, m.Style)
	if err != nil {
		zap.L().Warn("mapsync: create marker failed",
			zap.String("provider_id", m.ProviderID),
			zap.Error(err),
		)
		return
	}
	c.markers[m.ProviderID] = Tracked{
		ProviderID: m.ProviderID,
		Position:   m.Position,
		VIP:        m.VIP,
		Style:      m.Style,
		Handle:     h,
	}
}

// destroyLocked always drops the marker from the table, even when the
// surface reports the handle invalid.
func (c *Controller) destroyLocked(providerID string) {
	t, ok := c.markers[providerID]
	if !ok {
		return
	}
	delete(c.markers, providerID)
	if err := c.surface.DestroyMarker(t.Handle); err != nil {
		zap.L().Error("mapsync: destroy marker failed, dropping",
			zap.String("provider_id", providerID),
			zap.Error(err),
		)
	}
}

func (c *Controller) restyleLocked(providerID string, style model.MarkerStyle, vip bool) {
	t, ok := c.markers[providerID]
	if !ok {
		return
	}
	if t.Style == style && t.VIP == vip {
		return
	}
	if t.Style != style {
		if err := c.surface.SetMarkerStyle(t.Handle, style); err != nil {
			zap.L().Warn("mapsync: restyle marker failed",
				zap.String("provider_id", providerID),
				zap.String("style", string(style)),
				zap.Error(err),
			)
			return
		}
	}
	t.Style = style
	t.VIP = vip
	c.markers[providerID] = t
}

// syncUserLocked reconciles the user's location marker and reports whether
// it changed.
func (c *Controller) syncUserLocked(loc *geo.Coordinates) bool {
	if c.user != nil && (loc == nil || *loc != c.user.position) {
		if err := c.surface.DestroyMarker(c.user.handle); err != nil {
			zap.L().Error("mapsync: destroy user marker failed, dropping", zap.Error(err))
		}
		c.user = nil
		if loc == nil {
			return true
		}
	}
	if loc == nil || c.user != nil {
		return false
	}

	h, err := c.surface.CreateMarker(*loc, model.MarkerUser)
	if err != nil {
		zap.L().Warn("mapsync: create user marker failed", zap.Error(err))
		return true
	}
	c.user = &userMarker{position: *loc, handle: h}
	return true
}

func (c *Controller) fitLocked() {
	positions := make([]geo.Coordinates, 0, len(c.markers)+1)
	for _, id := range c.order {
		if t, ok := c.markers[id]; ok {
			positions = append(positions, t.Position)
		}
	}
	if c.user != nil {
		positions = append(positions, c.user.position)
	}
	if len(positions) == 0 {
		c.viewport = nil
		return
	}

	if err := c.surface.FitBounds(positions); err != nil {
		zap.L().Warn("mapsync: fit bounds failed", zap.Error(err))
		return
	}
	b := geo.BoundsOf(positions...)
	c.viewport = &Viewport{SouthWest: b.SouthWest(), NorthEast: b.NorthEast(), Center: b.Center()}
}
