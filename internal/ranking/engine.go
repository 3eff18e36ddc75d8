// Package ranking orders providers by VIP status and proximity.
package ranking

import (
	"cmp"
	"slices"

	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/model"
)

// Options configures an Engine.
type Options struct {
	// ExcludeBlocked drops blocked providers before any other step.
	ExcludeBlocked bool
	// FoldDiacritics makes the query filter accent-insensitive.
	FoldDiacritics bool
}

// Engine ranks provider lists. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine with the given options.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Rank filters providers by query, computes distances from loc when it is
// non-nil, and stable-sorts VIP first then nearest first. The input slice is
// not modified. Providers that tie on both keys keep their input order.
func (e *Engine) Rank(providers []model.Provider, loc *geo.Coordinates, query string) []model.RankedEntry {
	match := newMatcher(query, e.opts.FoldDiacritics)

	entries := make([]model.RankedEntry, 0, len(providers))
	for _, p := range providers {
		if e.opts.ExcludeBlocked && p.IsBlocked {
			continue
		}
		if !match.matches(p) {
			continue
		}
		entry := model.RankedEntry{Provider: p}
		if loc != nil {
			entry.Distance = model.KM(geo.Distance(*loc, p.Coordinates))
		}
		entries = append(entries, entry)
	}

	slices.SortStableFunc(entries, compareEntries)

	for i := range entries {
		entries[i].RankIndex = i
	}
	return entries
}

// compareEntries orders VIP before non-VIP, then ascending distance with a
// missing distance treated as +Inf.
func compareEntries(a, b model.RankedEntry) int {
	if a.Provider.VIP != b.Provider.VIP {
		if a.Provider.VIP {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Distance.SortKey(), b.Distance.SortKey())
}
