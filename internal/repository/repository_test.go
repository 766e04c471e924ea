package repository

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "github.com/nugl/affiliate-engine/internal/errors"
	"github.com/nugl/affiliate-engine/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Click{}, &models.Conversion{}, &models.AttributionLink{},
	))
	return db
}

func TestCreateLinkClaimIsExclusive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversionRepository(db)

	first := &models.AttributionLink{ClickID: "click-1", ConversionID: "conv-1", Commission: 5}
	require.NoError(t, repo.CreateLink(first))

	// A second conversion racing for the same click loses at the store
	// level, regardless of what the matcher saw before inserting.
	second := &models.AttributionLink{ClickID: "click-1", ConversionID: "conv-2", Commission: 5}
	err := repo.CreateLink(second)
	assert.ErrorIs(t, err, apperrors.ErrClickAlreadyLinked)

	var count int64
	db.Model(&models.AttributionLink{}).Where("click_id = ?", "click-1").Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestFindLatestUnlinked(t *testing.T) {
	db := setupTestDB(t)
	clicks := NewClickRepository(db)
	conversions := NewConversionRepository(db)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mk := func(id string, at time.Time) {
		require.NoError(t, clicks.CreateClick(&models.Click{
			ID: id, PartnerID: "p", VisitorID: "v", ClickedAt: at,
		}))
	}
	mk("a", base.Add(1*time.Hour))
	mk("b", base.Add(2*time.Hour))

	t.Run("most recent wins", func(t *testing.T) {
		click, err := clicks.FindLatestUnlinked("p", "v", base, base.Add(3*time.Hour))
		require.NoError(t, err)
		require.NotNil(t, click)
		assert.Equal(t, "b", click.ID)
	})

	t.Run("linked clicks are skipped", func(t *testing.T) {
		require.NoError(t, conversions.CreateLink(&models.AttributionLink{
			ClickID: "b", ConversionID: "conv-b",
		}))
		click, err := clicks.FindLatestUnlinked("p", "v", base, base.Add(3*time.Hour))
		require.NoError(t, err)
		require.NotNil(t, click)
		assert.Equal(t, "a", click.ID)
	})

	t.Run("other visitors do not match", func(t *testing.T) {
		click, err := clicks.FindLatestUnlinked("p", "someone-else", base, base.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Nil(t, click)
	})

	t.Run("nothing in range returns nil without error", func(t *testing.T) {
		click, err := clicks.FindLatestUnlinked("p", "v", base.Add(10*time.Hour), base.Add(11*time.Hour))
		require.NoError(t, err)
		assert.Nil(t, click)
	})
}

func TestFindByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversionRepository(db)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mk := func(id, status string, at time.Time) {
		require.NoError(t, repo.CreateConversion(&models.Conversion{
			ID: id, PartnerID: "p", VisitorID: "v", ConvertedAt: at, Status: status,
		}))
	}
	mk("newer-pending", models.ConversionPending, base.Add(2*time.Hour))
	mk("older-pending", models.ConversionPending, base.Add(1*time.Hour))
	mk("done", models.ConversionAttributed, base)

	out, err := repo.FindByStatus(models.ConversionPending)
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Oldest first so replays happen in report order.
	assert.Equal(t, "older-pending", out[0].ID)
}
