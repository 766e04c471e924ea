package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/nugl/affiliate-engine/internal/errors"
	"github.com/nugl/affiliate-engine/internal/models"
)

// codeCharset is the character set for referral codes. Uppercase and
// digits only so codes survive being read aloud or typed from a
// screenshot.
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 8

// ReferralStats is the per-user referral projection.
type ReferralStats struct {
	ReferralCode       string  `json:"referral_code"`
	TotalReferrals     int64   `json:"total_referrals"`
	CompletedReferrals int64   `json:"completed_referrals"`
	PendingReferrals   int64   `json:"pending_referrals"`
	TotalEarned        float64 `json:"total_earned"`
	PendingRewards     float64 `json:"pending_rewards"`
}

// ReferralService runs the flat-reward referral program: every
// completed referral pays the referrer a fixed amount, with no
// attribution window. It shares the aggregation idiom with the
// affiliate side but keeps its own tables.
type ReferralService struct {
	db           *gorm.DB
	logger       *slog.Logger
	rewardAmount float64
}

// NewReferralService creates a new ReferralService.
func NewReferralService(db *gorm.DB, logger *slog.Logger, rewardAmount float64) *ReferralService {
	return &ReferralService{db: db, logger: logger, rewardAmount: rewardAmount}
}

// generateCode builds a cryptographically random referral code.
func (s *ReferralService) generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

// GetOrCreateCode returns the user's referral code, generating one on
// first use. Generation retries on the unlikely code collision.
func (s *ReferralService) GetOrCreateCode(userID string) (*models.ReferralCode, error) {
	var existing models.ReferralCode
	err := s.db.First(&existing, "user_id = ?", userID).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}

	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		code, err := s.generateCode()
		if err != nil {
			return nil, err
		}

		var taken models.ReferralCode
		err = s.db.First(&taken, "code = ?", code).Error
		if err == nil {
			s.logger.Warn("referral code collision, retrying", "attempt", i+1)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check code uniqueness: %w", err)
		}

		rc := &models.ReferralCode{
			ID:        uuid.NewString(),
			UserID:    userID,
			Code:      code,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.db.Create(rc).Error; err != nil {
			return nil, fmt.Errorf("failed to create referral code: %w", err)
		}
		s.logger.Info("generated referral code", "user_id", userID, "code", code)
		return rc, nil
	}

	return nil, apperrors.ErrCodeGenerationFailed
}

// Apply records a new user signing up with someone's referral code.
// The reward amount is frozen on the referral row at apply time.
func (s *ReferralService) Apply(referredUserID, code string) (*models.Referral, error) {
	var rc models.ReferralCode
	if err := s.db.First(&rc, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidReferralCode
		}
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}
	if rc.UserID == referredUserID {
		return nil, apperrors.ErrInvalidReferralCode
	}

	referral := &models.Referral{
		ID:           uuid.NewString(),
		ReferrerID:   rc.UserID,
		ReferredID:   referredUserID,
		ReferralCode: code,
		Status:       models.ReferralPending,
		RewardAmount: s.rewardAmount,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.Create(referral).Error; err != nil {
		return nil, fmt.Errorf("failed to create referral: %w", err)
	}

	if err := s.db.Model(&models.ReferralCode{}).Where("id = ?", rc.ID).
		Update("uses", gorm.Expr("uses + 1")).Error; err != nil {
		return nil, fmt.Errorf("failed to bump code uses: %w", err)
	}

	s.logger.Info("applied referral code", "code", code, "referred_id", referredUserID)
	return referral, nil
}

// Complete marks a referral completed, which makes its frozen reward
// count toward the referrer's earnings. Completing twice is a no-op.
func (s *ReferralService) Complete(referralID string) (*models.Referral, error) {
	var referral models.Referral
	if err := s.db.First(&referral, "id = ?", referralID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrReferralNotFound
		}
		return nil, fmt.Errorf("failed to look up referral: %w", err)
	}

	if referral.Status == models.ReferralCompleted {
		return &referral, nil
	}

	now := time.Now().UTC()
	err := s.db.Model(&models.Referral{}).Where("id = ?", referralID).
		Updates(map[string]interface{}{"status": models.ReferralCompleted, "completed_at": now}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to complete referral: %w", err)
	}
	referral.Status = models.ReferralCompleted
	referral.CompletedAt = &now

	s.logger.Info("completed referral", "referral_id", referralID,
		"referrer_id", referral.ReferrerID, "reward", referral.RewardAmount)
	return &referral, nil
}

// Stats folds a user's referrals into totals. Completed rewards count
// as earned, pending ones as pending.
func (s *ReferralService) Stats(userID string) (*ReferralStats, error) {
	stats := &ReferralStats{}

	var rc models.ReferralCode
	err := s.db.First(&rc, "user_id = ?", userID).Error
	if err == nil {
		stats.ReferralCode = rc.Code
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}

	var rows []struct {
		Status string
		Count  int64
		Total  float64
	}
	err = s.db.Model(&models.Referral{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(reward_amount), 0) AS total").
		Where("referrer_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate referrals: %w", err)
	}

	for _, row := range rows {
		stats.TotalReferrals += row.Count
		switch row.Status {
		case models.ReferralCompleted:
			stats.CompletedReferrals = row.Count
			stats.TotalEarned = roundCents(row.Total)
		case models.ReferralPending:
			stats.PendingReferrals = row.Count
			stats.PendingRewards = roundCents(row.Total)
		}
	}
	return stats, nil
}
