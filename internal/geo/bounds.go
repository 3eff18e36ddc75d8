package geo

import (
	"github.com/twpayne/go-geom"
)

// Bounds is the minimal lat/lon rectangle covering a set of coordinates.
// X is longitude and Y is latitude, matching the EPSG:4326 axis order the
// rest of the geometry tooling uses.
type Bounds struct {
	b     *geom.Bounds
	count int
}

// NewBounds returns an empty Bounds.
func NewBounds() *Bounds {
	return &Bounds{b: geom.NewBounds(geom.XY)}
}

// BoundsOf returns the bounds covering every coordinate in cs.
func BoundsOf(cs ...Coordinates) *Bounds {
	b := NewBounds()
	for _, c := range cs {
		b.Extend(c)
	}
	return b
}

// Extend grows the rectangle to include c.
func (b *Bounds) Extend(c Coordinates) *Bounds {
	b.b.Extend(geom.NewPointFlat(geom.XY, []float64{c.Longitude, c.Latitude}))
	b.count++
	return b
}

// Empty reports whether no coordinate has been added.
func (b *Bounds) Empty() bool {
	return b.count == 0
}

// Len returns how many coordinates were added.
func (b *Bounds) Len() int {
	return b.count
}

// SouthWest returns the minimum corner. Only meaningful when not Empty.
func (b *Bounds) SouthWest() Coordinates {
	return Coordinates{Latitude: b.b.Min(1), Longitude: b.b.Min(0)}
}

// NorthEast returns the maximum corner. Only meaningful when not Empty.
func (b *Bounds) NorthEast() Coordinates {
	return Coordinates{Latitude: b.b.Max(1), Longitude: b.b.Max(0)}
}

// Center returns the midpoint of the rectangle, or DefaultCenter when empty.
func (b *Bounds) Center() Coordinates {
	if b.Empty() {
		return DefaultCenter
	}
	sw, ne := b.SouthWest(), b.NorthEast()
	return Coordinates{
		Latitude:  (sw.Latitude + ne.Latitude) / 2,
		Longitude: (sw.Longitude + ne.Longitude) / 2,
	}
}

// Contains reports whether c lies inside the rectangle, edges included.
func (b *Bounds) Contains(c Coordinates) bool {
	if b.Empty() {
		return false
	}
	sw, ne := b.SouthWest(), b.NorthEast()
	return c.Latitude >= sw.Latitude && c.Latitude <= ne.Latitude &&
		c.Longitude >= sw.Longitude && c.Longitude <= ne.Longitude
}
