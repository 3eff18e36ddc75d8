package mapsync

import (
	"fmt"
	"strings"

	"github.com/sells-group/barberfinder/internal/model"
)

// InfoContent is the popup shown for a clicked marker.
type InfoContent struct {
	ProviderID  string         `json:"provider_id"`
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	VIP         bool           `json:"vip"`
	Rating      float64        `json:"rating"`
	ReviewCount int            `json:"review_count"`
	Distance    model.Distance `json:"distance_km"`
	IsOpen      bool           `json:"is_open"`
}

// InfoFor builds the popup for a ranked entry.
func InfoFor(e model.RankedEntry) InfoContent {
	return InfoContent{
		ProviderID:  e.Provider.ID,
		Name:        e.Provider.Name,
		Address:     e.Provider.Address,
		VIP:         e.Provider.VIP,
		Rating:      e.Provider.Rating,
		ReviewCount: e.Provider.ReviewCount,
		Distance:    e.Distance,
		IsOpen:      e.Provider.IsOpen,
	}
}

// Text renders the popup as plain lines.
func (c InfoContent) Text() string {
	var b strings.Builder
	if c.VIP {
		b.WriteString("[VIP] ")
	}
	b.WriteString(c.Name)
	b.WriteString("\n")
	b.WriteString(c.Address)
	b.WriteString("\n")
	fmt.Fprintf(&b, "%.1f (%d reviews)\n", c.Rating, c.ReviewCount)
	if c.Distance.Valid {
		fmt.Fprintf(&b, "%.1f km away\n", c.Distance.KM)
	}
	if c.IsOpen {
		b.WriteString("Open now")
	} else {
		b.WriteString("Closed")
	}
	return b.String()
}
