package model

import (
	"time"

	"github.com/sells-group/barberfinder/internal/geo"
)

// VIPPlan identifies a paid VIP subscription tier.
type VIPPlan string

const (
	VIPPlanBasic   VIPPlan = "basic"
	VIPPlanPremium VIPPlan = "premium"
)

// Provider is a barbershop as supplied by the directory. The core treats it
// as an immutable snapshot for the duration of one ranking or sync pass.
type Provider struct {
	ID           string          `json:"id" yaml:"id"`
	Name         string          `json:"name" yaml:"name"`
	Address      string          `json:"address" yaml:"address"`
	Description  string          `json:"description,omitempty" yaml:"description"`
	Phone        string          `json:"phone,omitempty" yaml:"phone"`
	Coordinates  geo.Coordinates `json:"coordinates" yaml:"coordinates"`
	VIP          bool            `json:"vip" yaml:"vip"`
	VIPExpiresAt *time.Time      `json:"vip_expires_at,omitempty" yaml:"vip_expires_at"`
	VIPPlan      VIPPlan         `json:"vip_plan,omitempty" yaml:"vip_plan"`
	Rating       float64         `json:"rating" yaml:"rating"`
	ReviewCount  int             `json:"review_count" yaml:"review_count"`
	IsOpen       bool            `json:"is_open" yaml:"is_open"`
	IsBlocked    bool            `json:"is_blocked" yaml:"is_blocked"`
}
