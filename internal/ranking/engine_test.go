package ranking

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/model"
)

var userLoc = geo.Coordinates{Latitude: -23.5505, Longitude: -46.6333}

// offsetKM returns a point roughly km kilometers north of userLoc.
func offsetKM(km float64) geo.Coordinates {
	return geo.Coordinates{Latitude: userLoc.Latitude + km/111.19, Longitude: userLoc.Longitude}
}

func ids(entries []model.RankedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Provider.ID
	}
	return out
}

func TestRank_EndToEndScenario(t *testing.T) {
	providers := []model.Provider{
		{ID: "A", Name: "Alpha", VIP: true, Coordinates: offsetKM(2.1)},
		{ID: "B", Name: "Bravo", VIP: false, Coordinates: offsetKM(0.5)},
		{ID: "C", Name: "Charlie", VIP: true, Coordinates: offsetKM(5.0)},
	}

	got := NewEngine(Options{}).Rank(providers, &userLoc, "")

	require.Len(t, got, 3)
	assert.Equal(t, []string{"A", "C", "B"}, ids(got))
	assert.InDelta(t, 2.1, got[0].Distance.KM, 0.01)
	assert.InDelta(t, 5.0, got[1].Distance.KM, 0.01)
	assert.InDelta(t, 0.5, got[2].Distance.KM, 0.01)
	for i, e := range got {
		assert.Equal(t, i, e.RankIndex)
		assert.True(t, e.Distance.Valid)
	}
}

func TestRank_NoLocationLeavesDistanceUnset(t *testing.T) {
	providers := []model.Provider{
		{ID: "n1", Coordinates: offsetKM(1)},
		{ID: "v1", VIP: true, Coordinates: offsetKM(9)},
		{ID: "n2", Coordinates: offsetKM(0.1)},
	}

	got := NewEngine(Options{}).Rank(providers, nil, "")

	// VIP first, ties keep input order.
	assert.Equal(t, []string{"v1", "n1", "n2"}, ids(got))
	for _, e := range got {
		assert.False(t, e.Distance.Valid)
	}
}

func TestRank_Empty(t *testing.T) {
	got := NewEngine(Options{}).Rank(nil, &userLoc, "x")
	assert.Empty(t, got)
}

func TestRank_QueryFilter(t *testing.T) {
	providers := []model.Provider{
		{ID: "1", Name: "Barbearia Central", Address: "Rua Augusta, 100"},
		{ID: "2", Name: "Corte Clássico VIP", Address: "Av. Paulista, 1000"},
		{ID: "3", Name: "Studio Fade", Address: "Rua da Consolação, 55"},
	}
	e := NewEngine(Options{})

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"1", "2", "3"}},
		{"   ", []string{"1", "2", "3"}},
		{"barbearia", []string{"1"}},
		{"PAULISTA", []string{"2"}},
		{"rua", []string{"1", "3"}},
		{"CLÁSSICO", []string{"2"}},
		{"classico", nil},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("q=%q", tt.query), func(t *testing.T) {
			got := e.Rank(providers, nil, tt.query)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestRank_FoldDiacritics(t *testing.T) {
	providers := []model.Provider{
		{ID: "1", Name: "Corte Clássico", Address: "São Paulo"},
		{ID: "2", Name: "Fade House", Address: "Curitiba"},
	}
	e := NewEngine(Options{FoldDiacritics: true})

	assert.Equal(t, []string{"1"}, ids(e.Rank(providers, nil, "classico")))
	assert.Equal(t, []string{"1"}, ids(e.Rank(providers, nil, "sao paulo")))
	assert.Equal(t, []string{"1"}, ids(e.Rank(providers, nil, "SÃO")))
}

func TestRank_BlockedPolicy(t *testing.T) {
	providers := []model.Provider{
		{ID: "ok"},
		{ID: "blocked", IsBlocked: true, VIP: true},
	}

	kept := NewEngine(Options{}).Rank(providers, nil, "")
	assert.Equal(t, []string{"blocked", "ok"}, ids(kept))

	dropped := NewEngine(Options{ExcludeBlocked: true}).Rank(providers, nil, "")
	assert.Equal(t, []string{"ok"}, ids(dropped))
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	providers := []model.Provider{
		{ID: "n", Coordinates: offsetKM(1)},
		{ID: "v", VIP: true, Coordinates: offsetKM(2)},
	}
	orig := append([]model.Provider(nil), providers...)

	_ = NewEngine(Options{}).Rank(providers, &userLoc, "")
	assert.Equal(t, orig, providers)
}

func TestRank_Idempotent(t *testing.T) {
	providers := randomProviders(rand.New(rand.NewSource(7)), 40)
	e := NewEngine(Options{})

	first := e.Rank(providers, &userLoc, "")
	second := e.Rank(providers, &userLoc, "")
	assert.Equal(t, first, second)
}

func randomProviders(r *rand.Rand, n int) []model.Provider {
	out := make([]model.Provider, n)
	for i := range out {
		out[i] = model.Provider{
			ID:  fmt.Sprintf("p%02d", i),
			VIP: r.Intn(3) == 0,
			// Few distinct distances so ties are common.
			Coordinates: offsetKM(float64(r.Intn(4))),
		}
	}
	return out
}

func TestRank_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	e := NewEngine(Options{})

	for round := 0; round < 50; round++ {
		providers := randomProviders(r, 1+r.Intn(30))
		r.Shuffle(len(providers), func(i, j int) { providers[i], providers[j] = providers[j], providers[i] })

		var loc *geo.Coordinates
		if round%2 == 0 {
			loc = &userLoc
		}
		got := e.Rank(providers, loc, "")

		// Completeness: every provider exactly once.
		require.Len(t, got, len(providers))
		seen := make(map[string]int)
		for _, entry := range got {
			seen[entry.Provider.ID]++
		}
		for _, p := range providers {
			assert.Equal(t, 1, seen[p.ID], "provider %s", p.ID)
		}

		inputPos := make(map[string]int, len(providers))
		for i, p := range providers {
			inputPos[p.ID] = i
		}

		for i := 0; i+1 < len(got); i++ {
			a, b := got[i], got[i+1]
			// VIP never follows non-VIP.
			if !a.Provider.VIP {
				assert.False(t, b.Provider.VIP, "round %d: VIP after non-VIP", round)
			}
			if a.Provider.VIP != b.Provider.VIP {
				continue
			}
			assert.LessOrEqual(t, a.Distance.SortKey(), b.Distance.SortKey())
			// Stability for exact ties.
			if a.Distance.SortKey() == b.Distance.SortKey() {
				assert.Less(t, inputPos[a.Provider.ID], inputPos[b.Provider.ID],
					"round %d: tie order not preserved for %s/%s", round, a.Provider.ID, b.Provider.ID)
			}
		}

		// Distance present iff location supplied.
		for _, entry := range got {
			assert.Equal(t, loc != nil, entry.Distance.Valid)
		}
	}
}

func TestRank_StabilityUnderPermutation(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	base := []model.Provider{
		{ID: "a", VIP: true},
		{ID: "b", VIP: true},
		{ID: "c"},
		{ID: "d"},
		{ID: "e"},
	}
	e := NewEngine(Options{})

	for i := 0; i < 20; i++ {
		perm := append([]model.Provider(nil), base...)
		r.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

		var wantVIP, wantNormal []string
		for _, p := range perm {
			if p.VIP {
				wantVIP = append(wantVIP, p.ID)
			} else {
				wantNormal = append(wantNormal, p.ID)
			}
		}
		assert.Equal(t, append(wantVIP, wantNormal...), ids(e.Rank(perm, nil, "")))
	}
}
