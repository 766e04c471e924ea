package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nugl/affiliate-engine/internal/errors"
)

func TestReferralCodes(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReferralService(db, testLogger(), 10.0)

	code, err := svc.GetOrCreateCode("user-1")
	require.NoError(t, err)
	assert.Len(t, code.Code, 8)

	t.Run("same user gets the same code back", func(t *testing.T) {
		again, err := svc.GetOrCreateCode("user-1")
		require.NoError(t, err)
		assert.Equal(t, code.Code, again.Code)
	})

	t.Run("different users get different codes", func(t *testing.T) {
		other, err := svc.GetOrCreateCode("user-2")
		require.NoError(t, err)
		assert.NotEqual(t, code.Code, other.Code)
	})
}

func TestReferralLifecycle(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReferralService(db, testLogger(), 10.0)

	code, err := svc.GetOrCreateCode("referrer")
	require.NoError(t, err)

	referral, err := svc.Apply("new-user", code.Code)
	require.NoError(t, err)
	assert.Equal(t, "referrer", referral.ReferrerID)
	assert.Equal(t, 10.0, referral.RewardAmount)

	t.Run("pending referral counts as pending reward", func(t *testing.T) {
		stats, err := svc.Stats("referrer")
		require.NoError(t, err)
		assert.EqualValues(t, 1, stats.TotalReferrals)
		assert.EqualValues(t, 1, stats.PendingReferrals)
		assert.Equal(t, 10.0, stats.PendingRewards)
		assert.Equal(t, 0.0, stats.TotalEarned)
	})

	t.Run("completion moves the reward to earned", func(t *testing.T) {
		completed, err := svc.Complete(referral.ID)
		require.NoError(t, err)
		require.NotNil(t, completed.CompletedAt)

		stats, err := svc.Stats("referrer")
		require.NoError(t, err)
		assert.EqualValues(t, 1, stats.CompletedReferrals)
		assert.Equal(t, 10.0, stats.TotalEarned)
		assert.Equal(t, 0.0, stats.PendingRewards)
	})

	t.Run("completing twice is a no-op", func(t *testing.T) {
		_, err := svc.Complete(referral.ID)
		require.NoError(t, err)

		stats, err := svc.Stats("referrer")
		require.NoError(t, err)
		assert.Equal(t, 10.0, stats.TotalEarned)
	})

	t.Run("invalid code is rejected", func(t *testing.T) {
		_, err := svc.Apply("someone", "NOPE1234")
		assert.ErrorIs(t, err, apperrors.ErrInvalidReferralCode)
	})

	t.Run("self-referral is rejected", func(t *testing.T) {
		_, err := svc.Apply("referrer", code.Code)
		assert.ErrorIs(t, err, apperrors.ErrInvalidReferralCode)
	})

	t.Run("unknown referral id on complete", func(t *testing.T) {
		_, err := svc.Complete("missing-id")
		assert.ErrorIs(t, err, apperrors.ErrReferralNotFound)
	})
}
