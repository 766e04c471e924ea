package models

import "time"

// Referral statuses. A referral starts pending when a code is applied
// and becomes completed once the referred user finishes signup, at
// which point the flat reward is credited to the referrer.
const (
	ReferralPending   = "pending"
	ReferralCompleted = "completed"
)

// ReferralCode is a user's shareable code. One code per user; uses is
// bumped every time the code is applied.
type ReferralCode struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:64;not null;uniqueIndex"`
	Code      string `gorm:"size:16;not null;uniqueIndex"`
	Uses      int    `gorm:"not null;default:0"`
	CreatedAt time.Time
}

// Referral records one application of a code by a new user. The reward
// amount is captured at apply time so later config changes do not
// retroactively reprice pending referrals.
type Referral struct {
	ID           string  `gorm:"primaryKey;size:36"`
	ReferrerID   string  `gorm:"size:64;not null;index"`
	ReferredID   string  `gorm:"size:64;not null;index"`
	ReferralCode string  `gorm:"size:16;not null"`
	Status       string  `gorm:"size:20;not null;default:'pending';index"`
	RewardAmount float64 `gorm:"type:decimal(20,2);not null"`
	CreatedAt    time.Time
	CompletedAt  *time.Time
}
