package mapsync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/model"
)

func entry(id string, vip bool, lat float64) model.RankedEntry {
	return model.RankedEntry{Provider: model.Provider{
		ID:          id,
		Name:        "Shop " + id,
		VIP:         vip,
		Coordinates: geo.Coordinates{Latitude: lat, Longitude: -46.6},
	}}
}

func tracked(e model.RankedEntry, style model.MarkerStyle) Tracked {
	return Tracked{ProviderID: e.Provider.ID, Position: e.Provider.Coordinates, VIP: e.Provider.VIP, Style: style}
}

func TestDiff_FromEmpty(t *testing.T) {
	next := []model.RankedEntry{entry("A", true, -23.1), entry("B", false, -23.2)}

	plan := Diff(nil, next, "B")

	assert.Len(t, plan.Create, 2)
	assert.Equal(t, model.MarkerVIP, plan.Create[0].Style)
	assert.Equal(t, model.MarkerSelected, plan.Create[1].Style)
	assert.Empty(t, plan.Destroy)
	assert.True(t, plan.SetChanged())
}

func TestDiff_RemovesMissing(t *testing.T) {
	a, b, c := entry("A", true, -23.1), entry("B", false, -23.2), entry("C", true, -23.3)
	prev := map[string]Tracked{
		"A": tracked(a, model.MarkerVIP),
		"B": tracked(b, model.MarkerNormal),
		"C": tracked(c, model.MarkerVIP),
	}

	plan := Diff(prev, []model.RankedEntry{a, c}, "")

	assert.Equal(t, []string{"B"}, plan.Destroy)
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Restyle)
	assert.Equal(t, 2, plan.Retained)
}

func TestDiff_RestyleOnlyWhenChanged(t *testing.T) {
	a, b := entry("A", true, -23.1), entry("B", false, -23.2)
	prev := map[string]Tracked{
		"A": tracked(a, model.MarkerVIP),
		"B": tracked(b, model.MarkerNormal),
	}

	assert.True(t, Diff(prev, []model.RankedEntry{a, b}, "").Empty())

	// B upgraded to VIP.
	b2 := entry("B", true, -23.2)
	plan := Diff(prev, []model.RankedEntry{a, b2}, "")
	assert.Equal(t, []Restyle{{ProviderID: "B", From: model.MarkerNormal, To: model.MarkerVIP, VIP: true}}, plan.Restyle)
	assert.False(t, plan.SetChanged())

	// A selected.
	plan = Diff(prev, []model.RankedEntry{a, b}, "A")
	assert.Equal(t, []Restyle{{ProviderID: "A", From: model.MarkerVIP, To: model.MarkerSelected, VIP: true}}, plan.Restyle)
}

func TestDiff_MovedProvider(t *testing.T) {
	a := entry("A", false, -23.1)
	prev := map[string]Tracked{"A": tracked(a, model.MarkerNormal)}

	moved := entry("A", false, -23.9)
	plan := Diff(prev, []model.RankedEntry{moved}, "")

	assert.Len(t, plan.Move, 1)
	assert.Equal(t, moved.Provider.Coordinates, plan.Move[0].Position)
	assert.Equal(t, 0, plan.Retained)
	assert.True(t, plan.SetChanged())
}

func TestDiff_DuplicateIDsIgnored(t *testing.T) {
	a := entry("A", false, -23.1)
	plan := Diff(nil, []model.RankedEntry{a, a}, "")
	assert.Len(t, plan.Create, 1)
}

func TestDiff_DoesNotMutatePrev(t *testing.T) {
	a := entry("A", false, -23.1)
	prev := map[string]Tracked{"A": tracked(a, model.MarkerNormal)}
	_ = Diff(prev, nil, "A")
	assert.Equal(t, model.MarkerNormal, prev["A"].Style)
	assert.Len(t, prev, 1)
}

func TestInfoFor_Text(t *testing.T) {
	e := entry("A", true, -23.1)
	e.Provider.Address = "Rua Augusta, 100"
	e.Provider.Rating = 4.75
	e.Provider.ReviewCount = 12
	e.Provider.IsOpen = true
	e.Distance = model.KM(2.14)

	text := InfoFor(e).Text()
	assert.Contains(t, text, "[VIP] Shop A")
	assert.Contains(t, text, "Rua Augusta, 100")
	assert.Contains(t, text, "4.8 (12 reviews)")
	assert.Contains(t, text, "2.1 km away")
	assert.Contains(t, text, "Open now")

	e.Distance = model.Distance{}
	e.Provider.IsOpen = false
	text = InfoFor(e).Text()
	assert.NotContains(t, text, "km away")
	assert.Contains(t, text, "Closed")
}
