// Package finder composes the directory, geolocation, ranking, map
// synchronization and VIP lifecycle into one search pipeline.
package finder

import (
	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/mapsync"
	"github.com/sells-group/barberfinder/internal/model"
	"github.com/sells-group/barberfinder/internal/ranking"
)

// Snapshot is everything one render depends on.
type Snapshot struct {
	Providers    []model.Provider
	UserLocation *geo.Coordinates
	Query        string
	Selection    string
}

// View is the derived output of a Snapshot: the ranked list and the marker
// changes needed to bring prev in line with it.
type View struct {
	Ranked []model.RankedEntry
	Plan   mapsync.Plan
}

// Compute ranks snap and diffs the result against prev. It has no side
// effects.
func Compute(engine *ranking.Engine, snap Snapshot, prev map[string]mapsync.Tracked) View {
	ranked := engine.Rank(snap.Providers, snap.UserLocation, snap.Query)
	return View{
		Ranked: ranked,
		Plan:   mapsync.Diff(prev, ranked, snap.Selection),
	}
}
