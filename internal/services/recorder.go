// Package services contains the business logic layer of the affiliate
// engine: click recording, conversion matching, earnings aggregation,
// dashboard projections and the referral program.
package services

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/nugl/affiliate-engine/internal/errors"
	"github.com/nugl/affiliate-engine/internal/models"
	"github.com/nugl/affiliate-engine/internal/registry"
	"github.com/nugl/affiliate-engine/internal/repository"
)

// knownSourcePages is the set of pages the frontend is expected to send.
// Clicks from other pages are still recorded (over-recording beats
// under-recording); the unknown value is only logged.
var knownSourcePages = map[string]bool{
	"news":        true,
	"ai-hub":      true,
	"seed-finder": true,
	"seed-banks":  true,
	"dispensary":  true,
	"crypto":      true,
	"casino":      true,
	"nft":         true,
	"shopping":    true,
}

// ClickRecorder ingests outbound-click events. It is the sole writer of
// the clicks table.
type ClickRecorder struct {
	clickRepo repository.ClickRepository
	registry  *registry.PartnerRegistry
	logger    *slog.Logger

	// now is swapped out in tests to control the server clock.
	now func() time.Time
}

// NewClickRecorder creates a new ClickRecorder.
func NewClickRecorder(clickRepo repository.ClickRepository, reg *registry.PartnerRegistry, logger *slog.Logger) *ClickRecorder {
	return &ClickRecorder{
		clickRepo: clickRepo,
		registry:  reg,
		logger:    logger,
		now:       time.Now,
	}
}

// Record validates and durably appends a click, returning the stored
// event with its generated id and server-side timestamp. The only
// rejection is a missing visitor id; unknown partners and source pages
// are recorded anyway and logged, since a dropped click can never earn
// commission but an extra one is harmless.
func (s *ClickRecorder) Record(input models.ClickInput) (*models.Click, error) {
	if strings.TrimSpace(input.VisitorID) == "" {
		return nil, apperrors.ErrMissingVisitor
	}

	if !s.registry.Has(input.PartnerID) {
		s.logger.Warn("click references partner not in registry",
			"partner_id", input.PartnerID, "source_page", input.SourcePage)
	}
	if !knownSourcePages[input.SourcePage] {
		s.logger.Info("click from unknown source page",
			"source_page", input.SourcePage, "partner_id", input.PartnerID)
	}

	name := input.PartnerName
	if name == "" {
		name = s.registry.DisplayName(input.PartnerID)
	}

	click := &models.Click{
		ID:          uuid.NewString(),
		PartnerID:   input.PartnerID,
		PartnerName: name,
		SourcePage:  input.SourcePage,
		ContentRef:  input.ContentRef,
		VisitorID:   input.VisitorID,
		ClickedAt:   s.now().UTC(),
	}

	if err := s.clickRepo.CreateClick(click); err != nil {
		return nil, err
	}

	s.logger.Debug("recorded click", "click_id", click.ID, "partner_id", click.PartnerID)
	return click, nil
}
