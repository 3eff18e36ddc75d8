// Package geo holds coordinate types, great-circle distance, and bounding
// regions used by ranking and map synchronization.
package geo

import "fmt"

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// DefaultCenter is the viewport center used when there is nothing to frame
// (São Paulo, the launch market).
var DefaultCenter = Coordinates{Latitude: -23.5505, Longitude: -46.6333}

// String formats the pair with six decimals (~0.1 m).
func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}
