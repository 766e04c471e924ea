package models

import "time"

// Conversion statuses. A conversion is persisted as pending before any
// matching is attempted, so a crash between the write and the match
// leaves a row the rematch pass can pick up.
const (
	ConversionPending      = "pending"
	ConversionAttributed   = "attributed"
	ConversionUnattributed = "unattributed"
)

// Terminal reasons for an unattributed conversion. These are outcomes
// kept for partner-dispute resolution, not errors.
const (
	ReasonUnknownPartner     = "unknown_partner"
	ReasonNoClickInWindow    = "no_click_in_window"
	ReasonClickAlreadyLinked = "click_already_linked"
)

// Conversion is a sale or signup reported by a partner. It is written
// unconditionally before matching: the signal comes from a third party
// and cannot be reconstructed, so it must never be lost.
type Conversion struct {
	ID        string `gorm:"primaryKey;size:36"`
	PartnerID string `gorm:"size:64;not null;index"`
	VisitorID string `gorm:"size:64;not null;index"`

	// Amount is the sale value reported by the partner.
	Amount float64 `gorm:"type:decimal(20,2);not null;default:0"`

	ConvertedAt time.Time `gorm:"index"`

	// Status is pending until the match step completes, then attributed
	// or unattributed. Reason is set only for unattributed conversions.
	Status string `gorm:"size:20;not null;default:'pending';index"`
	Reason string `gorm:"size:32"`
}

// ConversionInput is the inbound conversion signal. ConvertedAt is
// optional; the server clock is used when zero.
type ConversionInput struct {
	PartnerID   string
	VisitorID   string
	Amount      float64
	ConvertedAt time.Time
}

// AttributionLink ties a conversion to the click that earned it. The
// unique indexes enforce the attribution invariants at the store level:
// a conversion attributes to at most one click, and a click is claimed
// by at most one conversion (first committed link wins).
type AttributionLink struct {
	ID           uint    `gorm:"primaryKey"`
	ClickID      string  `gorm:"size:36;not null;uniqueIndex"`
	ConversionID string  `gorm:"size:36;not null;uniqueIndex"`
	Commission   float64 `gorm:"type:decimal(20,2);not null;default:0"`
	CreatedAt    time.Time
}
