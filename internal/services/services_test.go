package services

import (
	"io"
	"log/slog"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nugl/affiliate-engine/internal/models"
	"github.com/nugl/affiliate-engine/internal/registry"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Click{}, &models.Conversion{}, &models.AttributionLink{},
		&models.PartnerSummary{}, &models.ReferralCode{}, &models.Referral{},
	))
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *registry.PartnerRegistry {
	t.Helper()
	reg, err := registry.New([]registry.PartnerRule{
		{
			PartnerID:              "seedsman",
			Name:                   "Seedsman",
			Type:                   "seed_wholesaler",
			CommissionType:         registry.CommissionPercentage,
			CommissionValue:        0.10,
			AttributionWindowHours: 24,
		},
		{
			PartnerID:              "stake-casino",
			Name:                   "Stake Casino",
			Type:                   "casino",
			CommissionType:         registry.CommissionFlat,
			CommissionValue:        25.0,
			AttributionWindowHours: 168,
		},
		{
			PartnerID:              "idle-partner",
			Name:                   "Idle Partner",
			Type:                   "news",
			CommissionType:         registry.CommissionPercentage,
			CommissionValue:        0.05,
			AttributionWindowHours: 24,
		},
	})
	require.NoError(t, err)
	return reg
}
