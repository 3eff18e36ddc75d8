// Package directory supplies provider records to the finder from a YAML
// fixture, a SQL store, or Elasticsearch, optionally behind a Redis cache.
package directory

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/barberfinder/internal/model"
	"github.com/sells-group/barberfinder/internal/store"
)

// Directory lists every provider the finder may rank.
type Directory interface {
	List(ctx context.Context) ([]model.Provider, error)
}

// Func adapts a plain function to Directory.
type Func func(ctx context.Context) ([]model.Provider, error)

func (f Func) List(ctx context.Context) ([]model.Provider, error) {
	return f(ctx)
}

// Static serves a fixed provider slice.
type Static []model.Provider

func (s Static) List(context.Context) ([]model.Provider, error) {
	out := make([]model.Provider, len(s))
	copy(out, s)
	return out, nil
}

// StoreDirectory reads providers from a SQL store.
type StoreDirectory struct {
	Store store.ProviderStore
}

func (d StoreDirectory) List(ctx context.Context) ([]model.Provider, error) {
	ps, err := d.Store.ListProviders(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "directory: list from store")
	}
	return ps, nil
}

// validate rejects records the ranking and map layers cannot key on.
func validate(ps []model.Provider) error {
	seen := make(map[string]bool, len(ps))
	for i, p := range ps {
		if p.ID == "" {
			return eris.Errorf("directory: provider %d has no id", i)
		}
		if seen[p.ID] {
			return eris.Errorf("directory: duplicate provider id %s", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
