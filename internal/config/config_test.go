package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// No configs/ directory relative to the test binary, so every value
	// comes from defaults.
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "affiliate_engine.db", cfg.Database.Name)
	assert.Equal(t, "./configs/partners.yaml", cfg.Registry.PartnersFile)
	assert.Equal(t, 1000, cfg.Analytics.BufferSize)
	assert.Equal(t, 10.0, cfg.Referral.RewardAmount)
	assert.Equal(t, 10, cfg.Dashboard.RecentActivityLimit)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("REFERRAL_REWARD_AMOUNT", "25")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 25.0, cfg.Referral.RewardAmount)
}
