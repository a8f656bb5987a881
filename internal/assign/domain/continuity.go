package domain

import "time"

// ContinuityConfig carries the configurable continuity constants from
// LPConfiguration's `continuity` group.
type ContinuityConfig struct {
	BaseContinuity float64
	TenureWeight   float64
	TenureMaxDays  float64
	StabilityWeight    float64
	StabilityMaxOwners float64
	ValueWeight    float64
	ValueThreshold float64
}

// DefaultContinuityConfig mirrors spec §4.1 defaults.
func DefaultContinuityConfig() ContinuityConfig {
	return ContinuityConfig{
		BaseContinuity:     0.10,
		TenureWeight:       0.35,
		TenureMaxDays:      730,
		StabilityWeight:    0.30,
		StabilityMaxOwners: 5,
		ValueWeight:        0.25,
		ValueThreshold:     2_000_000,
	}
}

// ContinuityScore scores the pair (account, rep). Returns 0 when the rep is
// not the account's current owner, the rep is a backfill source, or the
// account has no owner at all.
func ContinuityScore(a Account, r Rep, asOf time.Time, cfg ContinuityConfig) float64 {
	if a.OwnerID == "" || a.OwnerID != r.RepID || r.IsBackfillSource {
		return 0
	}

	tenureDays := 0.0
	if a.OwnerChangeDate != nil {
		tenureDays = asOf.Sub(*a.OwnerChangeDate).Hours() / 24
		if tenureDays < 0 {
			tenureDays = 0
		}
	}
	tenureMax := cfg.TenureMaxDays
	if tenureMax <= 0 {
		tenureMax = 730
	}
	tenure := tenureDays / tenureMax
	if tenure > 1 {
		tenure = 1
	}

	maxOwners := cfg.StabilityMaxOwners
	if maxOwners <= 1 {
		maxOwners = 5
	}
	owners := float64(a.OwnersLifetimeCount)
	if owners < 1 {
		owners = 1
	}
	stability := 1 - (owners-1)/(maxOwners-1)
	if stability < 0 {
		stability = 0
	}

	valueThreshold := cfg.ValueThreshold
	if valueThreshold <= 0 {
		valueThreshold = 2_000_000
	}
	value := AccountARR(a) / valueThreshold
	if value > 1 {
		value = 1
	}

	return cfg.BaseContinuity + cfg.TenureWeight*tenure + cfg.StabilityWeight*stability + cfg.ValueWeight*value
}
