package mapsync

import (
	"sort"

	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/model"
)

// Tracked is the controller's record of one rendered provider marker.
type Tracked struct {
	ProviderID string
	Position   geo.Coordinates
	VIP        bool
	Style      model.MarkerStyle
	Handle     MarkerHandle
}

// Placement describes a marker to create.
type Placement struct {
	ProviderID string
	Position   geo.Coordinates
	VIP        bool
	Style      model.MarkerStyle
}

// Restyle describes a style change on a retained marker.
type Restyle struct {
	ProviderID string
	From       model.MarkerStyle
	To         model.MarkerStyle
	VIP        bool
}

// Plan is the set of marker operations that reconcile the tracked markers
// with a ranked sequence.
type Plan struct {
	Create  []Placement
	Destroy []string
	Restyle []Restyle
	// Move lists retained providers whose coordinates changed. Surfaces have
	// no move operation, so these are destroyed and recreated.
	Move     []Placement
	Retained int
}

// SetChanged reports whether the set of rendered markers changes. Restyles
// alone do not change the set.
func (p Plan) SetChanged() bool {
	return len(p.Create) > 0 || len(p.Destroy) > 0 || len(p.Move) > 0
}

// Empty reports whether the plan has no operations at all.
func (p Plan) Empty() bool {
	return !p.SetChanged() && len(p.Restyle) == 0
}

// StyleFor returns the style a provider marker should have.
func StyleFor(providerID string, vip bool, selected string) model.MarkerStyle {
	if selected != "" && providerID == selected {
		return model.MarkerSelected
	}
	return model.BaselineStyle(vip)
}

// Diff computes the operations that turn prev into the marker set for next.
// It is pure: prev is not modified. Destroys are sorted by provider id and
// creates follow rank order. Repeated ids in next are ignored after the
// first occurrence.
func Diff(prev map[string]Tracked, next []model.RankedEntry, selected string) Plan {
	var plan Plan
	seen := make(map[string]bool, len(next))

	for _, e := range next {
		p := e.Provider
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		want := StyleFor(p.ID, p.VIP, selected)
		cur, ok := prev[p.ID]
		if !ok {
			plan.Create = append(plan.Create, Placement{ProviderID: p.ID, Position: p.Coordinates, VIP: p.VIP, Style: want})
			continue
		}
		if cur.Position != p.Coordinates {
			plan.Move = append(plan.Move, Placement{ProviderID: p.ID, Position: p.Coordinates, VIP: p.VIP, Style: want})
			continue
		}
		plan.Retained++
		if cur.VIP != p.VIP || cur.Style != want {
			plan.Restyle = append(plan.Restyle, Restyle{ProviderID: p.ID, From: cur.Style, To: want, VIP: p.VIP})
		}
	}

	for id := range prev {
		if !seen[id] {
			plan.Destroy = append(plan.Destroy, id)
		}
	}
	sort.Strings(plan.Destroy)

	return plan
}
