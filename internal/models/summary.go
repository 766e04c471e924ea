package models

import "time"

// PartnerSummary is the cached per-partner earnings projection. It is a
// pure derivation of the clicks, conversions and attribution_links
// tables and can be rebuilt from them at any time; the cache exists for
// dashboard reads and is never the source of truth.
type PartnerSummary struct {
	PartnerID   string `gorm:"primaryKey;size:64" json:"partner_id"`
	PartnerName string `gorm:"size:255" json:"partner_name"`

	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `gorm:"type:decimal(20,2)" json:"revenue"`
	Commission  float64 `gorm:"type:decimal(20,2)" json:"commission"`

	// ConversionRate is conversions/clicks as a fraction, 0 when the
	// partner has no clicks.
	ConversionRate float64 `json:"conversion_rate"`

	UpdatedAt time.Time `json:"updated_at"`
}

// VisitorStats is the per-user projection behind /affiliate/stats.
type VisitorStats struct {
	TotalClicks      int64          `json:"total_clicks"`
	TotalConversions int64          `json:"total_conversions"`
	TotalRevenue     float64        `json:"total_revenue"`
	TotalCommission  float64        `json:"total_commission"`
	ConversionRate   float64        `json:"conversion_rate"`
	TopPerformers    []TopPerformer `json:"top_performers"`
}

// TopPerformer ranks a partner by commission earned from one visitor's
// activity.
type TopPerformer struct {
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	TotalCommission float64 `json:"total_commission"`
	TotalClicks     int64   `json:"total_clicks"`
}
