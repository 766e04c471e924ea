package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nugl/affiliate-engine/internal/models"
)

// ClickRepository defines data access for click events.
type ClickRepository interface {
	CreateClick(click *models.Click) error
	FindLatestUnlinked(partnerID, visitorID string, from, to time.Time) (*models.Click, error)
	GetByID(id string) (*models.Click, error)
}

// GormClickRepository implements ClickRepository using GORM.
type GormClickRepository struct {
	db *gorm.DB
}

// NewClickRepository creates a new GormClickRepository.
func NewClickRepository(db *gorm.DB) *GormClickRepository {
	return &GormClickRepository{db: db}
}

// CreateClick appends a new click event. Clicks are never updated.
func (r *GormClickRepository) CreateClick(click *models.Click) error {
	if err := r.db.Create(click).Error; err != nil {
		return fmt.Errorf("failed to create click: %w", err)
	}
	return nil
}

// FindLatestUnlinked returns the most recent click for a partner and
// visitor inside [from, to] that no attribution link has claimed yet.
// Both bounds are inclusive, so a click at exactly from is eligible.
// Returns nil without error when no such click exists.
func (r *GormClickRepository) FindLatestUnlinked(partnerID, visitorID string, from, to time.Time) (*models.Click, error) {
	var click models.Click
	err := r.db.
		Where("partner_id = ? AND visitor_id = ?", partnerID, visitorID).
		Where("clicked_at >= ? AND clicked_at <= ?", from, to).
		Where("NOT EXISTS (SELECT 1 FROM attribution_links WHERE attribution_links.click_id = clicks.id)").
		Order("clicked_at DESC").
		First(&click).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query eligible clicks for partner %s: %w", partnerID, err)
	}
	return &click, nil
}

// GetByID fetches a single click.
func (r *GormClickRepository) GetByID(id string) (*models.Click, error) {
	var click models.Click
	if err := r.db.First(&click, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get click %s: %w", id, err)
	}
	return &click, nil
}
