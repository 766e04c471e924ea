package services

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/nugl/affiliate-engine/internal/models"
	"github.com/nugl/affiliate-engine/internal/registry"
)

// DashboardSummary is the card block at the top of the affiliate
// dashboard. Conversion rate here is a percentage rounded to one
// decimal; the frontend renders it as-is.
type DashboardSummary struct {
	TotalClicks      int64   `json:"total_clicks"`
	TotalConversions int64   `json:"total_conversions"`
	TotalRevenue     float64 `json:"total_revenue"`
	ConversionRate   float64 `json:"conversion_rate"`
	AvgCommission    float64 `json:"avg_commission"`
}

// ActivityEntry is one row of the recent-activity feed: a click,
// joined with its conversion when one was attributed to it.
type ActivityEntry struct {
	PartnerName string    `json:"partner_name"`
	SourcePage  string    `json:"source_page"`
	ClickedAt   time.Time `json:"clicked_at"`
	Converted   bool      `json:"converted"`
	Revenue     float64   `json:"revenue"`
}

// Dashboard is the full payload behind GET /affiliate/dashboard.
type Dashboard struct {
	Summary        DashboardSummary        `json:"summary"`
	Partners       []models.PartnerSummary `json:"partners"`
	RecentActivity []ActivityEntry         `json:"recent_activity"`
}

// DashboardQueryService serves read-only projections for the frontend.
// It has no mutation capability; it composes aggregator output with
// registry display names and the raw click feed.
type DashboardQueryService struct {
	db         *gorm.DB
	aggregator *EarningsAggregator
	registry   *registry.PartnerRegistry
	logger     *slog.Logger
}

// NewDashboardQueryService creates a new DashboardQueryService.
func NewDashboardQueryService(db *gorm.DB, aggregator *EarningsAggregator, reg *registry.PartnerRegistry, logger *slog.Logger) *DashboardQueryService {
	return &DashboardQueryService{db: db, aggregator: aggregator, registry: reg, logger: logger}
}

// GetDashboard assembles the summary cards, the partner performance
// table and the recent activity feed in one call.
func (s *DashboardQueryService) GetDashboard(activityLimit int) (*Dashboard, error) {
	partners, err := s.GetPartnerTable()
	if err != nil {
		return nil, err
	}

	var summary DashboardSummary
	var commission float64
	for _, p := range partners {
		summary.TotalClicks += p.Clicks
		summary.TotalConversions += p.Conversions
		summary.TotalRevenue += p.Revenue
		commission += p.Commission
	}
	summary.TotalRevenue = roundCents(summary.TotalRevenue)
	// Percentage with one decimal, same guard as everywhere: zero
	// clicks means zero rate, never a division error.
	summary.ConversionRate = math.Round(safeRate(summary.TotalConversions, summary.TotalClicks)*1000) / 10
	if summary.TotalConversions > 0 {
		summary.AvgCommission = roundCents(commission / float64(summary.TotalConversions))
	}

	activity, err := s.GetRecentActivity(activityLimit)
	if err != nil {
		return nil, err
	}

	return &Dashboard{Summary: summary, Partners: partners, RecentActivity: activity}, nil
}

// GetPartnerTable returns per-partner summaries sorted by revenue
// descending. Reads go through the cache maintained by the refresh
// workers; an empty cache triggers a full recompute.
func (s *DashboardQueryService) GetPartnerTable() ([]models.PartnerSummary, error) {
	return s.aggregator.CachedSummaries()
}

// GetSummary returns the per-user stats projection over the last
// `days` days.
func (s *DashboardQueryService) GetSummary(userID string, days int) (*models.VisitorStats, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return s.aggregator.VisitorStats(userID, since)
}

// GetRecentActivity returns the latest clicks, newest first, each
// joined with its attribution link if the click converted.
func (s *DashboardQueryService) GetRecentActivity(limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []struct {
		PartnerName string
		SourcePage  string
		ClickedAt   time.Time
		Converted   bool
		Revenue     float64
	}
	err := s.db.Model(&models.Click{}).
		Select(`clicks.partner_name, clicks.source_page, clicks.clicked_at,
			attribution_links.id IS NOT NULL AS converted,
			COALESCE(conversions.amount, 0) AS revenue`).
		Joins("LEFT JOIN attribution_links ON attribution_links.click_id = clicks.id").
		Joins("LEFT JOIN conversions ON conversions.id = attribution_links.conversion_id").
		Order("clicks.clicked_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent activity: %w", err)
	}

	entries := make([]ActivityEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, ActivityEntry{
			PartnerName: r.PartnerName,
			SourcePage:  r.SourcePage,
			ClickedAt:   r.ClickedAt,
			Converted:   r.Converted,
			Revenue:     roundCents(r.Revenue),
		})
	}
	return entries, nil
}
