package models

import "time"

// Click is a recorded outbound navigation to a partner site. Rows are
// append-only: a click is never updated, only referenced later by an
// AttributionLink once a conversion claims it.
type Click struct {
	// ID is a uuid generated at write time, never supplied by the caller.
	ID string `gorm:"primaryKey;size:36"`

	// PartnerID references a rule in the partner registry. Clicks on
	// partners the registry does not know are still recorded; they roll
	// up in an unattributable bucket during aggregation.
	PartnerID string `gorm:"size:64;not null;index:idx_clicks_partner_visitor"`

	// PartnerName is the display name reported at click time,
	// denormalized so activity feeds survive registry changes.
	PartnerName string `gorm:"size:255"`

	// SourcePage identifies the page or feature that issued the click
	// (e.g. "news", "ai-hub", "seed-finder").
	SourcePage string `gorm:"size:64"`

	// ContentRef optionally carries the article, strain or product id
	// the click originated from.
	ContentRef string `gorm:"size:64"`

	// VisitorID ties the click to a session or authenticated user. A
	// click without one can never be attributed and is rejected at the
	// boundary.
	VisitorID string `gorm:"size:64;not null;index:idx_clicks_partner_visitor"`

	// ClickedAt is stamped from the server clock to prevent backdating.
	ClickedAt time.Time `gorm:"index"`
}

// ClickInput is what callers hand to the recorder; id and timestamp are
// filled in server-side.
type ClickInput struct {
	PartnerID   string
	PartnerName string
	SourcePage  string
	ContentRef  string
	VisitorID   string
}
