package model

import (
	"encoding/json"
	"math"
)

// Distance is an optional distance in kilometers. The zero value means no
// distance was computed.
type Distance struct {
	KM    float64
	Valid bool
}

// KM returns a valid Distance.
func KM(v float64) Distance {
	return Distance{KM: v, Valid: true}
}

// SortKey orders missing distances after every known one.
func (d Distance) SortKey() float64 {
	if !d.Valid {
		return math.Inf(1)
	}
	return d.KM
}

// MarshalJSON encodes a missing distance as null.
func (d Distance) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.KM)
}

// UnmarshalJSON accepts a number or null.
func (d *Distance) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Distance{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*d = KM(v)
	return nil
}

// RankedEntry is a provider annotated with its distance and position in one
// ranking pass.
type RankedEntry struct {
	Provider  Provider `json:"provider"`
	Distance  Distance `json:"distance_km"`
	RankIndex int      `json:"rank_index"`
}

// MarkerStyle is the visual style of a provider marker.
type MarkerStyle string

const (
	MarkerVIP      MarkerStyle = "vip"
	MarkerNormal   MarkerStyle = "normal"
	MarkerSelected MarkerStyle = "selected"
	// MarkerUser styles the user's own location marker.
	MarkerUser MarkerStyle = "user"
)

// BaselineStyle is the style a provider marker has when not selected.
func BaselineStyle(vip bool) MarkerStyle {
	if vip {
		return MarkerVIP
	}
	return MarkerNormal
}
