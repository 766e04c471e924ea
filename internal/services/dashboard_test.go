package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDashboard(t *testing.T) {
	db := setupTestDB(t)
	reg := testRegistry(t)
	agg := NewEarningsAggregator(db, reg, testLogger())
	svc := NewDashboardQueryService(db, agg, reg, testLogger())
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty database renders zeros", func(t *testing.T) {
		d, err := svc.GetDashboard(10)
		require.NoError(t, err)
		assert.EqualValues(t, 0, d.Summary.TotalClicks)
		assert.Equal(t, 0.0, d.Summary.ConversionRate)
		assert.Equal(t, 0.0, d.Summary.AvgCommission)
		assert.Empty(t, d.RecentActivity)
	})

	seedAttributedConversion(t, db, "d1", "seedsman", "v1", 100, 10, at)
	insertClick(t, db, "d2", "seedsman", "v2", at.Add(time.Minute))
	insertClick(t, db, "d3", "stake-casino", "v3", at.Add(2*time.Minute))
	_, err := agg.Recompute("")
	require.NoError(t, err)

	d, err := svc.GetDashboard(10)
	require.NoError(t, err)

	assert.EqualValues(t, 3, d.Summary.TotalClicks)
	assert.EqualValues(t, 1, d.Summary.TotalConversions)
	assert.Equal(t, 100.0, d.Summary.TotalRevenue)
	// 1/3 as a percentage, one decimal.
	assert.Equal(t, 33.3, d.Summary.ConversionRate)
	assert.Equal(t, 10.0, d.Summary.AvgCommission)

	t.Run("partners sorted by revenue", func(t *testing.T) {
		require.NotEmpty(t, d.Partners)
		assert.Equal(t, "seedsman", d.Partners[0].PartnerID)
	})

	t.Run("recent activity is newest first with conversion join", func(t *testing.T) {
		require.Len(t, d.RecentActivity, 3)
		assert.Equal(t, "stake-casino", d.RecentActivity[0].PartnerName)
		assert.False(t, d.RecentActivity[0].Converted)

		last := d.RecentActivity[2]
		assert.True(t, last.Converted)
		assert.Equal(t, 100.0, last.Revenue)
	})

	t.Run("limit truncates the feed", func(t *testing.T) {
		activity, err := svc.GetRecentActivity(2)
		require.NoError(t, err)
		assert.Len(t, activity, 2)
	})
}

func TestGetSummaryDefaultsWindow(t *testing.T) {
	db := setupTestDB(t)
	reg := testRegistry(t)
	agg := NewEarningsAggregator(db, reg, testLogger())
	svc := NewDashboardQueryService(db, agg, reg, testLogger())

	recent := time.Now().UTC().Add(-time.Hour)
	old := time.Now().UTC().AddDate(0, 0, -60)
	insertClick(t, db, "recent", "seedsman", "me", recent)
	insertClick(t, db, "old", "seedsman", "me", old)

	stats, err := svc.GetSummary("me", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalClicks)
}
