package services

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/nugl/affiliate-engine/internal/errors"
	"github.com/nugl/affiliate-engine/internal/models"
	"github.com/nugl/affiliate-engine/internal/registry"
	"github.com/nugl/affiliate-engine/internal/repository"
)

// MatchResult is the outcome of matching one conversion. Link is set
// only when the conversion was attributed; otherwise Reason carries the
// terminal unattributed reason.
type MatchResult struct {
	Conversion *models.Conversion
	Link       *models.AttributionLink
	Reason     string
}

// Attributed reports whether the conversion earned a commission.
func (r *MatchResult) Attributed() bool {
	return r.Link != nil
}

// ConversionMatcher links inbound conversions to the most recent
// qualifying click inside the partner's attribution window (last-click
// attribution). It is the only writer of attribution links.
type ConversionMatcher struct {
	conversionRepo repository.ConversionRepository
	clickRepo      repository.ClickRepository
	registry       *registry.PartnerRegistry
	logger         *slog.Logger

	// refreshCh, when set, receives the partner id of every new
	// attribution link so the summary workers can recompute. The send
	// never blocks; the periodic refresher covers dropped triggers.
	refreshCh chan<- string

	now func() time.Time
}

// NewConversionMatcher creates a new ConversionMatcher. refreshCh may
// be nil when no background refresh is wired (CLI usage, tests).
func NewConversionMatcher(
	conversionRepo repository.ConversionRepository,
	clickRepo repository.ClickRepository,
	reg *registry.PartnerRegistry,
	logger *slog.Logger,
	refreshCh chan<- string,
) *ConversionMatcher {
	return &ConversionMatcher{
		conversionRepo: conversionRepo,
		clickRepo:      clickRepo,
		registry:       reg,
		logger:         logger,
		refreshCh:      refreshCh,
		now:            time.Now,
	}
}

// Match persists the conversion unconditionally, then attempts
// attribution. The conversion row is written before anything else: it
// is reported by a third party and cannot be reconstructed, so match
// failures must never lose it. A store error after the initial write
// leaves the conversion pending, from which Rematch can replay it.
func (m *ConversionMatcher) Match(input models.ConversionInput) (*MatchResult, error) {
	convertedAt := input.ConvertedAt
	if convertedAt.IsZero() {
		convertedAt = m.now().UTC()
	}

	conversion := &models.Conversion{
		ID:          uuid.NewString(),
		PartnerID:   input.PartnerID,
		VisitorID:   input.VisitorID,
		Amount:      input.Amount,
		ConvertedAt: convertedAt,
		Status:      models.ConversionPending,
	}
	if err := m.conversionRepo.CreateConversion(conversion); err != nil {
		return nil, err
	}

	return m.matchPersisted(conversion)
}

// Rematch replays the match step for conversions still pending (a
// crash or store error interrupted their first attempt) and for
// conversions unattributed because their partner was unknown, which
// may since have been added to the registry. NoClickInWindow and
// ClickAlreadyLinked are terminal and are not retried.
func (m *ConversionMatcher) Rematch() (attributed int, err error) {
	conversions, err := m.conversionRepo.FindByStatus(models.ConversionPending, models.ConversionUnattributed)
	if err != nil {
		return 0, err
	}

	for i := range conversions {
		c := &conversions[i]
		if c.Status == models.ConversionUnattributed && c.Reason != models.ReasonUnknownPartner {
			continue
		}
		result, err := m.matchPersisted(c)
		if err != nil {
			m.logger.Error("rematch failed", "conversion_id", c.ID, "error", err)
			continue
		}
		if result.Attributed() {
			attributed++
		}
	}
	return attributed, nil
}

// matchPersisted runs the attribution algorithm for a conversion that
// is already durable.
func (m *ConversionMatcher) matchPersisted(conversion *models.Conversion) (*MatchResult, error) {
	rule, err := m.registry.GetRule(conversion.PartnerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPartnerNotFound) {
			return m.unattributed(conversion, models.ReasonUnknownPartner)
		}
		return nil, err
	}

	from := conversion.ConvertedAt.Add(-rule.Window())
	click, err := m.clickRepo.FindLatestUnlinked(conversion.PartnerID, conversion.VisitorID, from, conversion.ConvertedAt)
	if err != nil {
		// Transient store error: the conversion stays pending and is
		// picked up again by Rematch.
		return nil, err
	}
	if click == nil {
		return m.unattributed(conversion, models.ReasonNoClickInWindow)
	}

	link := &models.AttributionLink{
		ClickID:      click.ID,
		ConversionID: conversion.ID,
		Commission:   rule.Commission(conversion.Amount),
	}
	if err := m.conversionRepo.CreateLink(link); err != nil {
		if errors.Is(err, apperrors.ErrClickAlreadyLinked) {
			// Lost the race: another conversion committed a link for
			// this click first.
			return m.unattributed(conversion, models.ReasonClickAlreadyLinked)
		}
		return nil, err
	}

	if err := m.conversionRepo.SetOutcome(conversion.ID, models.ConversionAttributed, ""); err != nil {
		return nil, err
	}
	conversion.Status = models.ConversionAttributed
	conversion.Reason = ""

	m.logger.Info("attributed conversion",
		"conversion_id", conversion.ID, "click_id", click.ID,
		"partner_id", conversion.PartnerID, "commission", link.Commission)
	m.notifyRefresh(conversion.PartnerID)

	return &MatchResult{Conversion: conversion, Link: link}, nil
}

func (m *ConversionMatcher) unattributed(conversion *models.Conversion, reason string) (*MatchResult, error) {
	if err := m.conversionRepo.SetOutcome(conversion.ID, models.ConversionUnattributed, reason); err != nil {
		return nil, err
	}
	conversion.Status = models.ConversionUnattributed
	conversion.Reason = reason

	m.logger.Info("conversion left unattributed",
		"conversion_id", conversion.ID, "partner_id", conversion.PartnerID, "reason", reason)

	return &MatchResult{Conversion: conversion, Reason: reason}, nil
}

func (m *ConversionMatcher) notifyRefresh(partnerID string) {
	if m.refreshCh == nil {
		return
	}
	select {
	case m.refreshCh <- partnerID:
	default:
		m.logger.Warn("refresh channel full, dropping trigger", "partner_id", partnerID)
	}
}
