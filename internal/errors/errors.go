package errors

import (
	"errors"
	"fmt"
)

// Custom error types for the affiliate engine.

// ErrPartnerNotFound is returned when a partner id has no rule in the registry.
var ErrPartnerNotFound = errors.New("partner not found in registry")

// ErrMissingVisitor is returned when a click carries no visitor id.
// Such a click can never be attributed, so it is rejected at the boundary.
var ErrMissingVisitor = errors.New("click has no visitor id")

// ErrClickAlreadyLinked is returned when an attribution insert loses the
// race for a click that another conversion has already claimed.
var ErrClickAlreadyLinked = errors.New("click already linked to a conversion")

// ErrConversionNotFound is returned when a conversion id doesn't exist.
var ErrConversionNotFound = errors.New("conversion not found")

// ErrReferralNotFound is returned when a referral id doesn't exist.
var ErrReferralNotFound = errors.New("referral not found")

// ErrInvalidReferralCode is returned when a referral code is unknown.
var ErrInvalidReferralCode = errors.New("invalid referral code")

// ErrCodeGenerationFailed is returned when we can't generate a unique referral code.
var ErrCodeGenerationFailed = errors.New("failed to generate unique referral code")

// ErrRegistryLoad is returned when the partner rule file cannot be loaded.
type ErrRegistryLoad struct {
	Path   string
	Reason string
}

func (e ErrRegistryLoad) Error() string {
	return fmt.Sprintf("failed to load partner rules from %s: %s", e.Path, e.Reason)
}

// ErrInvalidRule is returned when a partner rule fails validation at load time.
type ErrInvalidRule struct {
	PartnerID string
	Reason    string
}

func (e ErrInvalidRule) Error() string {
	return fmt.Sprintf("invalid rule for partner %s: %s", e.PartnerID, e.Reason)
}
