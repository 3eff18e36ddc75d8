package geolocate

import (
	"context"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/rotisserie/eris"

	"github.com/sells-group/barberfinder/internal/geo"
)

// cityLookup is the subset of *geoip2.Reader used by GeoIP.
type cityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
}

// GeoIP resolves an IP address to approximate coordinates using a MaxMind
// City database. The position is coarse (city level), so HighAccuracy has
// no effect.
type GeoIP struct {
	db     cityLookup
	closer func() error
}

// OpenGeoIP opens the MaxMind database at path.
func OpenGeoIP(path string) (*GeoIP, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geolocate: open geoip db %s", path)
	}
	return &GeoIP{db: r, closer: r.Close}, nil
}

// Close releases the database.
func (g *GeoIP) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

// ForIP returns a Locator bound to a single client address.
func (g *GeoIP) ForIP(ip string) Locator {
	return LocatorFunc(func(ctx context.Context, _ Options) (geo.Coordinates, error) {
		return g.Lookup(ctx, ip)
	})
}

// Lookup resolves ip. Unparseable, private, or unknown addresses yield
// KindPositionUnavailable.
func (g *GeoIP) Lookup(ctx context.Context, ip string) (geo.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return geo.Coordinates{}, NewError(KindTimeout, err)
	}
	addr := net.ParseIP(ip)
	if addr == nil {
		return geo.Coordinates{}, NewError(KindPositionUnavailable, eris.Errorf("invalid ip %q", ip))
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() {
		return geo.Coordinates{}, NewError(KindPositionUnavailable, eris.Errorf("non-routable ip %s", ip))
	}

	city, err := g.db.City(addr)
	if err != nil {
		return geo.Coordinates{}, NewError(KindPositionUnavailable, eris.Wrap(err, "geoip lookup"))
	}
	if city.Location.Latitude == 0 && city.Location.Longitude == 0 {
		return geo.Coordinates{}, NewError(KindPositionUnavailable, eris.Errorf("no location for %s", ip))
	}
	return geo.Coordinates{Latitude: city.Location.Latitude, Longitude: city.Location.Longitude}, nil
}
