package geolocate

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/barberfinder/internal/geo"
)

var saoPaulo = geo.Coordinates{Latitude: -23.5505, Longitude: -46.6333}

func TestAcquire_Success(t *testing.T) {
	pos, err := Acquire(context.Background(), Static{Coordinates: saoPaulo}, Options{})
	require.NoError(t, err)
	assert.Equal(t, saoPaulo, pos)
}

func TestAcquire_Timeout(t *testing.T) {
	slow := LocatorFunc(func(ctx context.Context, _ Options) (geo.Coordinates, error) {
		select {
		case <-time.After(5 * time.Second):
			return saoPaulo, nil
		case <-ctx.Done():
			return geo.Coordinates{}, ctx.Err()
		}
	})

	start := time.Now()
	_, err := Acquire(context.Background(), slow, Options{Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAcquire_TimeoutWhenLocatorIgnoresContext(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	stuck := LocatorFunc(func(_ context.Context, _ Options) (geo.Coordinates, error) {
		<-block
		return saoPaulo, nil
	})

	_, err := Acquire(context.Background(), stuck, Options{Timeout: 10 * time.Millisecond})
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestAcquire_CallerCancellationIsNotTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	stuck := LocatorFunc(func(_ context.Context, _ Options) (geo.Coordinates, error) {
		<-block
		return saoPaulo, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	_, err := Acquire(ctx, stuck, Options{Timeout: 5 * time.Second})
	require.Error(t, err)
	assert.Equal(t, KindPositionUnavailable, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquire_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"permission", NewError(KindPermissionDenied, nil), KindPermissionDenied},
		{"unavailable", NewError(KindPositionUnavailable, nil), KindPositionUnavailable},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"other", errors.New("gps exploded"), KindPositionUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := LocatorFunc(func(context.Context, Options) (geo.Coordinates, error) {
				return geo.Coordinates{}, tt.err
			})
			_, err := Acquire(context.Background(), l, Options{Timeout: time.Second})
			assert.Equal(t, tt.want, KindOf(err))
			var ge *Error
			require.ErrorAs(t, err, &ge)
			assert.NotEmpty(t, ge.Message())
		})
	}
}

func TestAcquire_NilLocator(t *testing.T) {
	_, err := Acquire(context.Background(), nil, Options{})
	assert.Equal(t, KindPositionUnavailable, KindOf(err))
}

func TestError_MessagesDiffer(t *testing.T) {
	msgs := map[string]bool{}
	for _, k := range []Kind{KindPermissionDenied, KindPositionUnavailable, KindTimeout} {
		msgs[NewError(k, nil).Message()] = true
	}
	assert.Len(t, msgs, 3)
	assert.Contains(t, NewError(KindTimeout, errors.New("x")).Error(), "timeout")
}

func TestChain(t *testing.T) {
	pos, err := Chain{Denied{}, nil, Static{Coordinates: saoPaulo}}.CurrentPosition(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, saoPaulo, pos)

	_, err = Chain{Denied{}}.CurrentPosition(context.Background(), Options{})
	assert.Equal(t, KindPermissionDenied, KindOf(err))

	_, err = Chain{}.CurrentPosition(context.Background(), Options{})
	assert.Equal(t, KindPositionUnavailable, KindOf(err))
}

type fakeCityDB struct {
	city *geoip2.City
	err  error
}

func (f *fakeCityDB) City(_ net.IP) (*geoip2.City, error) {
	return f.city, f.err
}

func TestGeoIP_Lookup(t *testing.T) {
	city := &geoip2.City{}
	city.Location.Latitude = saoPaulo.Latitude
	city.Location.Longitude = saoPaulo.Longitude
	g := &GeoIP{db: &fakeCityDB{city: city}}

	pos, err := g.Lookup(context.Background(), "200.147.67.142")
	require.NoError(t, err)
	assert.Equal(t, saoPaulo, pos)

	pos, err = Acquire(context.Background(), g.ForIP("200.147.67.142"), Options{})
	require.NoError(t, err)
	assert.Equal(t, saoPaulo, pos)
}

func TestGeoIP_Unavailable(t *testing.T) {
	g := &GeoIP{db: &fakeCityDB{city: &geoip2.City{}}}

	for _, ip := range []string{"not-an-ip", "127.0.0.1", "10.0.0.8", "8.8.8.8"} {
		_, err := g.Lookup(context.Background(), ip)
		assert.Equal(t, KindPositionUnavailable, KindOf(err), ip)
	}

	g = &GeoIP{db: &fakeCityDB{err: errors.New("corrupt db")}}
	_, err := g.Lookup(context.Background(), "8.8.8.8")
	assert.Equal(t, KindPositionUnavailable, KindOf(err))
}

func TestOpenGeoIP_MissingFile(t *testing.T) {
	_, err := OpenGeoIP("/nonexistent/GeoLite2-City.mmdb")
	assert.Error(t, err)
}
