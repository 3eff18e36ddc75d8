package mapsync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/model"
)

func newTestController(t *testing.T) (*Controller, *fakeSurface) {
	t.Helper()
	s := newFakeSurface()
	c, err := New(context.Background(), loaderFor(s), Credentials{APIKey: "k"}, Options{})
	require.NoError(t, err)
	return c, s
}

func TestController_RemovalScenario(t *testing.T) {
	c, s := newTestController(t)
	a, b, cc := entry("A", true, -23.1), entry("B", false, -23.2), entry("C", true, -23.3)

	plan, err := c.Apply(Pass{Seq: 1, Entries: []model.RankedEntry{a, b, cc}})
	require.NoError(t, err)
	assert.Len(t, plan.Create, 3)
	assert.Equal(t, 3, s.created)

	plan, err = c.Apply(Pass{Seq: 2, Entries: []model.RankedEntry{a, cc}})
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, plan.Destroy)
	assert.Empty(t, plan.Create)
	assert.Equal(t, 2, plan.Retained)
	assert.Equal(t, 1, s.destroy)
	assert.Equal(t, 3, s.created)

	var got []string
	for _, m := range c.Markers() {
		got = append(got, m.ProviderID)
	}
	assert.Equal(t, []string{"A", "C"}, got)
}

func TestController_StalePassDiscarded(t *testing.T) {
	c, s := newTestController(t)

	_, err := c.Apply(Pass{Seq: 5, Entries: []model.RankedEntry{entry("A", false, -23.1)}})
	require.NoError(t, err)

	_, err = c.Apply(Pass{Seq: 4, Entries: nil})
	assert.ErrorIs(t, err, ErrStalePass)
	_, err = c.Apply(Pass{Seq: 5, Entries: nil})
	assert.ErrorIs(t, err, ErrStalePass)

	assert.Len(t, c.Markers(), 1)
	assert.Equal(t, 0, s.destroy)
	assert.Equal(t, uint64(5), c.LastSeq())
}

func TestController_FitBoundsOnlyOnSetChange(t *testing.T) {
	c, s := newTestController(t)
	user := geo.Coordinates{Latitude: -23.0, Longitude: -46.0}
	a, b := entry("A", true, -23.1), entry("B", false, -23.2)

	_, err := c.Apply(Pass{Seq: 1, Entries: []model.RankedEntry{a, b}, UserLocation: &user})
	require.NoError(t, err)
	require.Len(t, s.fits, 1)
	assert.ElementsMatch(t, []geo.Coordinates{a.Provider.Coordinates, b.Provider.Coordinates, user}, s.fits[0])

	vp, ok := c.Viewport()
	require.True(t, ok)
	assert.InDelta(t, -23.2, vp.SouthWest.Latitude, 1e-9)
	assert.InDelta(t, -23.0, vp.NorthEast.Latitude, 1e-9)

	// Same set: no refit.
	_, err = c.Apply(Pass{Seq: 2, Entries: []model.RankedEntry{a, b}, UserLocation: &user})
	require.NoError(t, err)
	assert.Len(t, s.fits, 1)

	// Restyle only: no refit.
	b2 := entry("B", true, -23.2)
	plan, err := c.Apply(Pass{Seq: 3, Entries: []model.RankedEntry{a, b2}, UserLocation: &user})
	require.NoError(t, err)
	assert.Len(t, plan.Restyle, 1)
	assert.Len(t, s.fits, 1)
	assert.Equal(t, model.MarkerVIP, s.styleAt(b.Provider.Coordinates))

	// User moved: refit.
	moved := geo.Coordinates{Latitude: -22.0, Longitude: -46.0}
	_, err = c.Apply(Pass{Seq: 4, Entries: []model.RankedEntry{a, b2}, UserLocation: &moved})
	require.NoError(t, err)
	assert.Len(t, s.fits, 2)
}

func TestController_EmptyPassSkipsFit(t *testing.T) {
	c, s := newTestController(t)
	_, err := c.Apply(Pass{Seq: 1})
	require.NoError(t, err)
	assert.Empty(t, s.fits)
	_, ok := c.Viewport()
	assert.False(t, ok)
}

func TestController_Selection(t *testing.T) {
	c, s := newTestController(t)
	a, b := entry("A", true, -23.1), entry("B", false, -23.2)

	_, err := c.Apply(Pass{Seq: 1, Entries: []model.RankedEntry{a, b}})
	require.NoError(t, err)

	require.NoError(t, c.Select("B"))
	assert.Equal(t, model.MarkerSelected, s.styleAt(b.Provider.Coordinates))
	assert.Equal(t, model.MarkerVIP, s.styleAt(a.Provider.Coordinates))

	require.NoError(t, c.Select("A"))
	assert.Equal(t, model.MarkerNormal, s.styleAt(b.Provider.Coordinates))
	assert.Equal(t, model.MarkerSelected, s.styleAt(a.Provider.Coordinates))
	assert.Equal(t, "A", c.Selected())

	// Reselecting is a no-op.
	styled := len(s.styled)
	require.NoError(t, c.Select("A"))
	assert.Len(t, s.styled, styled)

	require.NoError(t, c.Select(""))
	assert.Equal(t, model.MarkerVIP, s.styleAt(a.Provider.Coordinates))
}

func TestController_SelectionSurvivesPasses(t *testing.T) {
	c, s := newTestController(t)
	a, b := entry("A", true, -23.1), entry("B", false, -23.2)

	// Selected before the marker exists.
	require.NoError(t, c.Select("B"))
	_, err := c.Apply(Pass{Seq: 1, Entries: []model.RankedEntry{a, b}})
	require.NoError(t, err)
	assert.Equal(t, model.MarkerSelected, s.styleAt(b.Provider.Coordinates))

	// Retained across a pass without churn.
	styled := len(s.styled)
	_, err = c.Apply(Pass{Seq: 2, Entries: []model.RankedEntry{b, a}})
	require.NoError(t, err)
	assert.Len(t, s.styled, styled)
	assert.Equal(t, model.MarkerSelected, s.styleAt(b.Provider.Coordinates))
}

func TestController_DestroyFailureAbsorbed(t *testing.T) {
	c, s := newTestController(t)
	a, b, cc := entry("A", false, -23.1), entry("B", false, -23.2), entry("C", false, -23.3)

	_, err := c.Apply(Pass{Seq: 1, Entries: []model.RankedEntry{a, b, cc}})
	require.NoError(t, err)

	// Invalidate every handle so both destroys fail.
	for h := range s.live {
		s.failDestroy[h] = true
	}
	d := entry("D", false, -23.4)
	plan, err := c.Apply(Pass{Seq: 2, Entries: []model.RankedEntry{a, d}})
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C"}, plan.Destroy)
	assert.Len(t, plan.Create, 1)
	var got []string
	for _, m := range c.Markers() {
		got = append(got, m.ProviderID)
	}
	assert.Equal(t, []string{"A", "D"}, got)
}

func TestController_CreateFailureRetriedNextPass(t *testing.T) {
	c, s := newTestController(t)
	a := entry("A", false, -23.1)

	s.failCreate = true
	_, err := c.Apply(Pass{Seq: 1, Entries: []model.RankedEntry{a}})
	require.NoError(t, err)
	assert.Empty(t, c.Markers())

	s.failCreate = false
	plan, err := c.Apply(Pass{Seq: 2, Entries: []model.RankedEntry{a}})
	require.NoError(t, err)
	assert.Len(t, plan.Create, 1)
	assert.Len(t, c.Markers(), 1)
}

func TestController_Click(t *testing.T) {
	c, s := newTestController(t)
	a := entry("A", true, -23.1)
	a.Distance = model.KM(1.2)

	_, err := c.Apply(Pass{Seq: 1, Entries: []model.RankedEntry{a}})
	require.NoError(t, err)

	require.NoError(t, c.Click("A"))
	assert.Equal(t, "A", c.Selected())
	require.Len(t, s.infos, 1)
	assert.Equal(t, "Shop A", s.infos[0].Name)
	assert.Equal(t, model.KM(1.2), s.infos[0].Distance)

	assert.ErrorIs(t, c.Click("missing"), ErrUnknownMarker)
}

func TestController_Degraded(t *testing.T) {
	failing := LoaderFunc(func(context.Context, Credentials, Options) (Surface, error) {
		return nil, ErrLoadFailed
	})
	calls := 0
	counting := LoaderFunc(func(ctx context.Context, cr Credentials, o Options) (Surface, error) {
		calls++
		return failing(ctx, cr, o)
	})

	c, err := New(context.Background(), counting, Credentials{}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoadFailed)
	require.NotNil(t, c)
	assert.True(t, c.Degraded())
	assert.ErrorIs(t, c.InitErr(), ErrLoadFailed)

	_, err = c.Apply(Pass{Seq: 1, Entries: []model.RankedEntry{entry("A", false, 0)}})
	assert.ErrorIs(t, err, ErrDegraded)
	assert.ErrorIs(t, c.Select("A"), ErrDegraded)
	assert.ErrorIs(t, c.Click("A"), ErrDegraded)
	assert.NoError(t, c.Close())
	assert.Equal(t, 1, calls)
}

func TestController_NilLoaderOrSurface(t *testing.T) {
	c, err := New(context.Background(), nil, Credentials{}, Options{})
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.True(t, c.Degraded())

	c, err = New(context.Background(), loaderFor(nil), Credentials{}, Options{})
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.True(t, c.Degraded())
}

func TestController_Close(t *testing.T) {
	c, s := newTestController(t)
	user := geo.Coordinates{Latitude: -23.0, Longitude: -46.0}

	_, err := c.Apply(Pass{Seq: 1, Entries: []model.RankedEntry{entry("A", false, -23.1), entry("B", true, -23.2)}, UserLocation: &user})
	require.NoError(t, err)
	require.Len(t, s.live, 3)

	require.NoError(t, c.Close())
	assert.Empty(t, s.live)
	assert.Empty(t, c.Markers())

	_, err = c.Apply(Pass{Seq: 2})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestController_ConcurrentPasses(t *testing.T) {
	c, s := newTestController(t)
	entries := []model.RankedEntry{entry("A", false, -23.1), entry("B", true, -23.2)}

	var wg sync.WaitGroup
	var applied, stale int
	var mu sync.Mutex
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			_, err := c.Apply(Pass{Seq: seq, Entries: entries})
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrStalePass) {
				stale++
			} else {
				applied++
			}
		}(uint64(i))
	}
	wg.Wait()

	assert.Equal(t, 50, applied+stale)
	assert.Equal(t, uint64(50), c.LastSeq())
	assert.Len(t, c.Markers(), 2)
	assert.Equal(t, 2, s.created)
}
