package services

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nugl/affiliate-engine/internal/models"
	"github.com/nugl/affiliate-engine/internal/registry"
)

// EarningsAggregator folds the three source tables (clicks, conversions,
// attribution_links) into per-partner and per-visitor summaries. The
// fold is idempotent and the persisted summary cache it maintains is a
// plain projection: it can be rebuilt from the source tables at any
// time and is never authoritative.
type EarningsAggregator struct {
	db       *gorm.DB
	registry *registry.PartnerRegistry
	logger   *slog.Logger
}

// NewEarningsAggregator creates a new EarningsAggregator.
func NewEarningsAggregator(db *gorm.DB, reg *registry.PartnerRegistry, logger *slog.Logger) *EarningsAggregator {
	return &EarningsAggregator{db: db, registry: reg, logger: logger}
}

type countRow struct {
	PartnerID   string
	PartnerName string
	Count       int64
}

type earningsRow struct {
	PartnerID  string
	Revenue    float64
	Commission float64
}

// Recompute rebuilds partner summaries from the source tables and
// upserts them into the cache. An empty partnerID recomputes every
// partner: all registered ones (so zero-activity partners still get a
// row) plus any unregistered partner ids found in the click stream,
// which form the unattributable bucket.
func (a *EarningsAggregator) Recompute(partnerID string) ([]models.PartnerSummary, error) {
	byPartner := make(map[string]*models.PartnerSummary)
	get := func(id string) *models.PartnerSummary {
		s, ok := byPartner[id]
		if !ok {
			s = &models.PartnerSummary{PartnerID: id, PartnerName: a.registry.DisplayName(id)}
			byPartner[id] = s
		}
		return s
	}

	if partnerID == "" {
		for _, r := range a.registry.Rules() {
			get(r.PartnerID)
		}
	} else {
		get(partnerID)
	}

	scoped := func(q *gorm.DB, col string) *gorm.DB {
		if partnerID != "" {
			return q.Where(col+" = ?", partnerID)
		}
		return q
	}

	var clicks []countRow
	err := scoped(a.db.Model(&models.Click{}), "partner_id").
		Select("partner_id, MAX(partner_name) AS partner_name, COUNT(*) AS count").
		Group("partner_id").
		Scan(&clicks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}
	for _, row := range clicks {
		s := get(row.PartnerID)
		s.Clicks = row.Count
		if !a.registry.Has(row.PartnerID) && row.PartnerName != "" {
			s.PartnerName = row.PartnerName
		}
	}

	var conversions []countRow
	err = scoped(a.db.Model(&models.Conversion{}), "partner_id").
		Select("partner_id, COUNT(*) AS count").
		Group("partner_id").
		Scan(&conversions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count conversions: %w", err)
	}
	for _, row := range conversions {
		get(row.PartnerID).Conversions = row.Count
	}

	var earnings []earningsRow
	q := a.db.Table("attribution_links").
		Select("conversions.partner_id AS partner_id, SUM(conversions.amount) AS revenue, SUM(attribution_links.commission) AS commission").
		Joins("JOIN conversions ON conversions.id = attribution_links.conversion_id").
		Group("conversions.partner_id")
	if err := scoped(q, "conversions.partner_id").Scan(&earnings).Error; err != nil {
		return nil, fmt.Errorf("failed to sum earnings: %w", err)
	}
	for _, row := range earnings {
		s := get(row.PartnerID)
		s.Revenue = roundCents(row.Revenue)
		s.Commission = roundCents(row.Commission)
	}

	now := time.Now().UTC()
	summaries := make([]models.PartnerSummary, 0, len(byPartner))
	for _, s := range byPartner {
		s.ConversionRate = safeRate(s.Conversions, s.Clicks)
		s.UpdatedAt = now
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Revenue != summaries[j].Revenue {
			return summaries[i].Revenue > summaries[j].Revenue
		}
		return summaries[i].PartnerID < summaries[j].PartnerID
	})

	if len(summaries) > 0 {
		err = a.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "partner_id"}},
			UpdateAll: true,
		}).Create(&summaries).Error
		if err != nil {
			return nil, fmt.Errorf("failed to upsert summary cache: %w", err)
		}
	}

	a.logger.Debug("recomputed earnings summaries", "partners", len(summaries))
	return summaries, nil
}

// CachedSummaries reads the summary cache, recomputing from scratch
// when it is empty (fresh database, cache dropped).
func (a *EarningsAggregator) CachedSummaries() ([]models.PartnerSummary, error) {
	var cached []models.PartnerSummary
	if err := a.db.Order("revenue DESC, partner_id ASC").Find(&cached).Error; err != nil {
		return nil, fmt.Errorf("failed to read summary cache: %w", err)
	}
	if len(cached) == 0 {
		return a.Recompute("")
	}
	return cached, nil
}

// VisitorStats folds one visitor's activity since the given cutoff into
// the per-user projection, including their top partners by commission.
func (a *EarningsAggregator) VisitorStats(visitorID string, since time.Time) (*models.VisitorStats, error) {
	stats := &models.VisitorStats{TopPerformers: []models.TopPerformer{}}

	err := a.db.Model(&models.Click{}).
		Where("visitor_id = ? AND clicked_at >= ?", visitorID, since).
		Count(&stats.TotalClicks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count visitor clicks: %w", err)
	}

	err = a.db.Model(&models.Conversion{}).
		Where("visitor_id = ? AND converted_at >= ?", visitorID, since).
		Count(&stats.TotalConversions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count visitor conversions: %w", err)
	}

	var totals earningsRow
	err = a.db.Table("attribution_links").
		Select("COALESCE(SUM(conversions.amount), 0) AS revenue, COALESCE(SUM(attribution_links.commission), 0) AS commission").
		Joins("JOIN conversions ON conversions.id = attribution_links.conversion_id").
		Where("conversions.visitor_id = ? AND conversions.converted_at >= ?", visitorID, since).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum visitor earnings: %w", err)
	}
	stats.TotalRevenue = roundCents(totals.Revenue)
	stats.TotalCommission = roundCents(totals.Commission)
	stats.ConversionRate = safeRate(stats.TotalConversions, stats.TotalClicks)

	var perPartner []struct {
		PartnerID   string
		PartnerName string
		Clicks      int64
		Commission  float64
	}
	err = a.db.Model(&models.Click{}).
		Select(`clicks.partner_id, MAX(clicks.partner_name) AS partner_name,
			COUNT(DISTINCT clicks.id) AS clicks,
			COALESCE(SUM(attribution_links.commission), 0) AS commission`).
		Joins("LEFT JOIN attribution_links ON attribution_links.click_id = clicks.id").
		Where("clicks.visitor_id = ? AND clicks.clicked_at >= ?", visitorID, since).
		Group("clicks.partner_id").
		Order("commission DESC").
		Limit(5).
		Scan(&perPartner).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank visitor partners: %w", err)
	}
	for _, row := range perPartner {
		name := row.PartnerName
		partnerType := ""
		if rule, err := a.registry.GetRule(row.PartnerID); err == nil {
			name = rule.Name
			partnerType = rule.Type
		}
		stats.TopPerformers = append(stats.TopPerformers, models.TopPerformer{
			Name:            name,
			Type:            partnerType,
			TotalCommission: roundCents(row.Commission),
			TotalClicks:     row.Clicks,
		})
	}

	return stats, nil
}

// safeRate returns conversions/clicks, and 0 rather than NaN when there
// are no clicks.
func safeRate(conversions, clicks int64) float64 {
	if clicks == 0 {
		return 0
	}
	return float64(conversions) / float64(clicks)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
