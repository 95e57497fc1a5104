package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE DEFAULTS - Explicit substitution, no hidden globals
// =============================================================================

// Defaults configures how missing provision/advance rates are filled in.
// The labour per-day rate has no default and must always be configured.
type Defaults struct {
	UseDefaultsWhenMissing bool
	DefaultProvisionRate   decimal.Decimal
	DefaultAdvanceRate     decimal.Decimal
}

// DefaultRateOptions returns the mess's standing defaults: 25.00 provision
// and 18.75 advance per day, substituted when unset.
func DefaultRateOptions() Defaults {
	return Defaults{
		UseDefaultsWhenMissing: true,
		DefaultProvisionRate:   decimal.RequireFromString("25.00"),
		DefaultAdvanceRate:     decimal.RequireFromString("18.75"),
	}
}

// RateSettings is a possibly partial rate configuration as stored for a month.
type RateSettings struct {
	PerDayRate          decimal.NullDecimal
	ProvisionPerDayRate decimal.NullDecimal
	AdvancePerDayRate   decimal.NullDecimal
}

// ResolveRates turns stored settings into a complete RateConfig.
func ResolveRates(s RateSettings, d Defaults) (RateConfig, error) {
	if !s.PerDayRate.Valid {
		return RateConfig{}, &InvalidRateError{Field: "per_day_rate", Reason: "not configured"}
	}

	provision, err := resolveOne("provision_per_day_rate", s.ProvisionPerDayRate, d.DefaultProvisionRate, d.UseDefaultsWhenMissing)
	if err != nil {
		return RateConfig{}, err
	}
	advance, err := resolveOne("advance_per_day_rate", s.AdvancePerDayRate, d.DefaultAdvanceRate, d.UseDefaultsWhenMissing)
	if err != nil {
		return RateConfig{}, err
	}

	rc := RateConfig{
		PerDayRate:          s.PerDayRate.Decimal,
		ProvisionPerDayRate: provision,
		AdvancePerDayRate:   advance,
	}
	if err := rc.Validate(); err != nil {
		return RateConfig{}, err
	}
	return rc, nil
}

func resolveOne(field string, v decimal.NullDecimal, fallback decimal.Decimal, useDefault bool) (decimal.Decimal, error) {
	if v.Valid {
		return v.Decimal, nil
	}
	if !useDefault {
		return decimal.Zero, &InvalidRateError{Field: field, Reason: "not configured"}
	}
	return fallback, nil
}

// ParseRate parses a rate typed by a user or read from the environment.
func ParseRate(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &InvalidRateError{Field: field, Value: raw, Reason: "not a number"}
	}
	if d.IsNegative() {
		return decimal.Zero, &InvalidRateError{Field: field, Value: raw, Reason: "must not be negative"}
	}
	return d, nil
}

// ParseOptionalRate is ParseRate where an empty string means "not configured".
func ParseOptionalRate(field, raw string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := ParseRate(field, raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
