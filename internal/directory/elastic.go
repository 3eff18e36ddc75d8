package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/olivere/elastic/v7"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/model"
)

// DefaultIndex is the Elasticsearch index holding provider documents.
const DefaultIndex = "barbershops"

// maxListSize stays under the default index.max_result_window.
const maxListSize = 10000

const indexMapping = `{
	"mappings": {
		"properties": {
			"id":             {"type": "keyword"},
			"name":           {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"address":        {"type": "text"},
			"description":    {"type": "text"},
			"phone":          {"type": "keyword"},
			"location":       {"type": "geo_point"},
			"vip":            {"type": "boolean"},
			"vip_expires_at": {"type": "date"},
			"vip_plan":       {"type": "keyword"},
			"rating":         {"type": "float"},
			"review_count":   {"type": "integer"},
			"is_open":        {"type": "boolean"},
			"is_blocked":     {"type": "boolean"}
		}
	}
}`

// ElasticDirectory serves providers from an Elasticsearch index.
type ElasticDirectory struct {
	client *elastic.Client
	index  string
}

// NewElastic connects to url. Sniffing is disabled so single-node and
// proxied clusters work.
func NewElastic(url, index string, opts ...elastic.ClientOptionFunc) (*ElasticDirectory, error) {
	if index == "" {
		index = DefaultIndex
	}
	all := append([]elastic.ClientOptionFunc{elastic.SetURL(url), elastic.SetSniff(false)}, opts...)
	client, err := elastic.NewClient(all...)
	if err != nil {
		return nil, eris.Wrap(err, "directory: elastic client")
	}
	return &ElasticDirectory{client: client, index: index}, nil
}

// providerDoc is the indexed document shape.
type providerDoc struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Address      string           `json:"address,omitempty"`
	Description  string           `json:"description,omitempty"`
	Phone        string           `json:"phone,omitempty"`
	Location     elastic.GeoPoint `json:"location"`
	VIP          bool             `json:"vip"`
	VIPExpiresAt *time.Time       `json:"vip_expires_at,omitempty"`
	VIPPlan      string           `json:"vip_plan,omitempty"`
	Rating       float64          `json:"rating"`
	ReviewCount  int              `json:"review_count"`
	IsOpen       bool             `json:"is_open"`
	IsBlocked    bool             `json:"is_blocked"`
}

func toDoc(p model.Provider) providerDoc {
	return providerDoc{
		ID:           p.ID,
		Name:         p.Name,
		Address:      p.Address,
		Description:  p.Description,
		Phone:        p.Phone,
		Location:     elastic.GeoPoint{Lat: p.Coordinates.Latitude, Lon: p.Coordinates.Longitude},
		VIP:          p.VIP,
		VIPExpiresAt: p.VIPExpiresAt,
		VIPPlan:      string(p.VIPPlan),
		Rating:       p.Rating,
		ReviewCount:  p.ReviewCount,
		IsOpen:       p.IsOpen,
		IsBlocked:    p.IsBlocked,
	}
}

func (d providerDoc) provider() model.Provider {
	return model.Provider{
		ID:           d.ID,
		Name:         d.Name,
		Address:      d.Address,
		Description:  d.Description,
		Phone:        d.Phone,
		Coordinates:  geo.Coordinates{Latitude: d.Location.Lat, Longitude: d.Location.Lon},
		VIP:          d.VIP,
		VIPExpiresAt: d.VIPExpiresAt,
		VIPPlan:      model.VIPPlan(d.VIPPlan),
		Rating:       d.Rating,
		ReviewCount:  d.ReviewCount,
		IsOpen:       d.IsOpen,
		IsBlocked:    d.IsBlocked,
	}
}

// List returns every indexed provider.
func (e *ElasticDirectory) List(ctx context.Context) ([]model.Provider, error) {
	res, err := e.client.Search().
		Index(e.index).
		Query(elastic.NewMatchAllQuery()).
		Size(maxListSize).
		Do(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "directory: elastic search")
	}
	return decodeHits(res), nil
}

// Nearby returns up to limit providers ordered by arc distance from loc.
// It is a prefilter for large indexes; ranking still applies VIP tiering.
func (e *ElasticDirectory) Nearby(ctx context.Context, loc geo.Coordinates, limit int) ([]model.Provider, error) {
	if limit <= 0 {
		limit = 50
	}
	res, err := e.client.Search().
		Index(e.index).
		Query(elastic.NewMatchAllQuery()).
		SortBy(elastic.NewGeoDistanceSort("location").
			Point(loc.Latitude, loc.Longitude).
			Asc().
			Unit("km").
			DistanceType("arc").
			IgnoreUnmapped(true)).
		Size(limit).
		Do(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "directory: elastic nearby search")
	}
	return decodeHits(res), nil
}

func decodeHits(res *elastic.SearchResult) []model.Provider {
	if res == nil || res.Hits == nil {
		return nil
	}
	out := make([]model.Provider, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var doc providerDoc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			zap.L().Warn("directory: skipping undecodable elastic hit",
				zap.String("id", hit.Id), zap.Error(err))
			continue
		}
		if doc.ID == "" {
			doc.ID = hit.Id
		}
		out = append(out, doc.provider())
	}
	return out
}

// EnsureIndex creates the index with its geo_point mapping if missing.
func (e *ElasticDirectory) EnsureIndex(ctx context.Context) error {
	exists, err := e.client.IndexExists(e.index).Do(ctx)
	if err != nil {
		return eris.Wrap(err, "directory: elastic index exists")
	}
	if exists {
		return nil
	}
	created, err := e.client.CreateIndex(e.index).BodyString(indexMapping).Do(ctx)
	if err != nil {
		return eris.Wrap(err, "directory: elastic create index")
	}
	if !created.Acknowledged {
		zap.L().Warn("directory: elastic create index not acknowledged", zap.String("index", e.index))
	}
	return nil
}

// Index bulk-writes providers keyed by ID and returns how many succeeded.
func (e *ElasticDirectory) Index(ctx context.Context, providers []model.Provider) (int, error) {
	if len(providers) == 0 {
		return 0, nil
	}
	bulk := e.client.Bulk().Index(e.index)
	for _, p := range providers {
		bulk.Add(elastic.NewBulkIndexRequest().Id(p.ID).Doc(toDoc(p)))
	}
	res, err := bulk.Do(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "directory: elastic bulk index")
	}
	failed := res.Failed()
	for _, item := range failed {
		reason := ""
		if item.Error != nil {
			reason = item.Error.Reason
		}
		zap.L().Warn("directory: elastic bulk item failed",
			zap.String("id", item.Id), zap.String("reason", reason))
	}
	return len(providers) - len(failed), nil
}
