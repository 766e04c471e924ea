package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/nugl/affiliate-engine/internal/errors"
	"github.com/nugl/affiliate-engine/internal/models"
)

// ConversionRepository defines data access for conversions and the
// attribution links derived from them.
type ConversionRepository interface {
	CreateConversion(conversion *models.Conversion) error
	GetConversion(id string) (*models.Conversion, error)
	SetOutcome(id, status, reason string) error
	CreateLink(link *models.AttributionLink) error
	FindByStatus(statuses ...string) ([]models.Conversion, error)
}

// GormConversionRepository implements ConversionRepository using GORM.
type GormConversionRepository struct {
	db *gorm.DB
}

// NewConversionRepository creates a new GormConversionRepository.
func NewConversionRepository(db *gorm.DB) *GormConversionRepository {
	return &GormConversionRepository{db: db}
}

// CreateConversion persists a reported conversion. This happens before
// any matching so the signal survives match failures.
func (r *GormConversionRepository) CreateConversion(conversion *models.Conversion) error {
	if err := r.db.Create(conversion).Error; err != nil {
		return fmt.Errorf("failed to create conversion: %w", err)
	}
	return nil
}

// GetConversion fetches a single conversion.
func (r *GormConversionRepository) GetConversion(id string) (*models.Conversion, error) {
	var c models.Conversion
	if err := r.db.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrConversionNotFound
		}
		return nil, fmt.Errorf("failed to get conversion %s: %w", id, err)
	}
	return &c, nil
}

// SetOutcome records the result of the match step on the conversion row.
func (r *GormConversionRepository) SetOutcome(id, status, reason string) error {
	err := r.db.Model(&models.Conversion{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "reason": reason}).Error
	if err != nil {
		return fmt.Errorf("failed to set outcome for conversion %s: %w", id, err)
	}
	return nil
}

// CreateLink inserts an attribution link. The unique index on click_id
// is the compare-and-set: if another conversion already claimed the
// click, the insert fails and ErrClickAlreadyLinked is returned so the
// caller can fall back to the unattributed path.
func (r *GormConversionRepository) CreateLink(link *models.AttributionLink) error {
	if err := r.db.Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperrors.ErrClickAlreadyLinked
		}
		return fmt.Errorf("failed to create attribution link for click %s: %w", link.ClickID, err)
	}
	return nil
}

// FindByStatus returns conversions in any of the given statuses, oldest
// first. Used by the rematch pass to replay pending or unattributed
// conversions from persisted state.
func (r *GormConversionRepository) FindByStatus(statuses ...string) ([]models.Conversion, error) {
	var out []models.Conversion
	err := r.db.
		Where("status IN ?", statuses).
		Order("converted_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversions by status: %w", err)
	}
	return out, nil
}
