// Package registry holds the static partner configuration: which
// partners exist, how their commission is computed and how long their
// attribution window stays open. Rules are loaded once at startup;
// changing them means restarting the process.
package registry

import (
	"math"
	"sort"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/nugl/affiliate-engine/internal/errors"
)

// Commission types supported by partner rules.
const (
	CommissionFlat       = "flat"
	CommissionPercentage = "percentage"
)

// PartnerRule describes one partner's terms.
type PartnerRule struct {
	PartnerID string `mapstructure:"partner_id"`
	Name      string `mapstructure:"name"`

	// Type categorizes the partner (seed_wholesaler, dispensary,
	// news, casino...); surfaced in top-performer listings.
	Type string `mapstructure:"type"`

	// CommissionType is flat or percentage. CommissionValue is a dollar
	// amount for flat rules and a fraction (0.15 = 15%) for percentage
	// rules.
	CommissionType  string  `mapstructure:"commission_type"`
	CommissionValue float64 `mapstructure:"commission_value"`

	// AttributionWindowHours bounds how long after a click a conversion
	// still earns credit.
	AttributionWindowHours int `mapstructure:"attribution_window_hours"`
}

// Window returns the attribution window as a duration.
func (r PartnerRule) Window() time.Duration {
	return time.Duration(r.AttributionWindowHours) * time.Hour
}

// Commission computes the commission owed for a conversion amount,
// rounded to cents.
func (r PartnerRule) Commission(amount float64) float64 {
	var c float64
	switch r.CommissionType {
	case CommissionFlat:
		c = r.CommissionValue
	case CommissionPercentage:
		c = amount * r.CommissionValue
	}
	return math.Round(c*100) / 100
}

// PartnerRegistry is a pure lookup over the loaded rules.
type PartnerRegistry struct {
	rules map[string]PartnerRule
}

// Load reads the partner rule file (yaml, a top-level "partners" list)
// and validates every rule.
func Load(path string) (*PartnerRegistry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, apperrors.ErrRegistryLoad{Path: path, Reason: err.Error()}
	}

	var file struct {
		Partners []PartnerRule `mapstructure:"partners"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, apperrors.ErrRegistryLoad{Path: path, Reason: err.Error()}
	}

	return New(file.Partners)
}

// New builds a registry from rules already in memory. Used by Load and
// directly by tests.
func New(rules []PartnerRule) (*PartnerRegistry, error) {
	m := make(map[string]PartnerRule, len(rules))
	for _, r := range rules {
		if r.PartnerID == "" {
			return nil, apperrors.ErrInvalidRule{PartnerID: r.Name, Reason: "missing partner_id"}
		}
		if r.CommissionType != CommissionFlat && r.CommissionType != CommissionPercentage {
			return nil, apperrors.ErrInvalidRule{PartnerID: r.PartnerID, Reason: "commission_type must be flat or percentage"}
		}
		if r.CommissionValue < 0 {
			return nil, apperrors.ErrInvalidRule{PartnerID: r.PartnerID, Reason: "commission_value must not be negative"}
		}
		if r.AttributionWindowHours <= 0 {
			return nil, apperrors.ErrInvalidRule{PartnerID: r.PartnerID, Reason: "attribution_window_hours must be positive"}
		}
		if _, dup := m[r.PartnerID]; dup {
			return nil, apperrors.ErrInvalidRule{PartnerID: r.PartnerID, Reason: "duplicate partner_id"}
		}
		m[r.PartnerID] = r
	}
	return &PartnerRegistry{rules: m}, nil
}

// GetRule returns the rule for a partner id, or ErrPartnerNotFound.
func (reg *PartnerRegistry) GetRule(partnerID string) (PartnerRule, error) {
	r, ok := reg.rules[partnerID]
	if !ok {
		return PartnerRule{}, apperrors.ErrPartnerNotFound
	}
	return r, nil
}

// Has reports whether a partner id is registered.
func (reg *PartnerRegistry) Has(partnerID string) bool {
	_, ok := reg.rules[partnerID]
	return ok
}

// DisplayName returns the registered name for a partner, falling back
// to the raw id for partners the registry does not know.
func (reg *PartnerRegistry) DisplayName(partnerID string) string {
	if r, ok := reg.rules[partnerID]; ok {
		return r.Name
	}
	return partnerID
}

// Rules returns all rules sorted by partner id, for listings.
func (reg *PartnerRegistry) Rules() []PartnerRule {
	out := make([]PartnerRule, 0, len(reg.rules))
	for _, r := range reg.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartnerID < out[j].PartnerID })
	return out
}
