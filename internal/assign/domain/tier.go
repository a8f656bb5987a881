package domain

import "math"

// ClassifyTier buckets an account by employee count. Nil or zero employees
// yield TierUnknown, which must be treated as N/A (not a sentinel SMB) by
// every caller.
func ClassifyTier(employees *int) TeamTier {
	if employees == nil || *employees <= 0 {
		return TierUnknown
	}
	switch {
	case *employees < 100:
		return TierSMB
	case *employees < 500:
		return TierGrowth
	case *employees < 1500:
		return TierMM
	default:
		return TierENT
	}
}

// TeamAlignmentScore scores a (account tier, rep tier) pair. Returns
// (score, ok); ok=false means N/A because at least one side is unknown, and
// callers must redistribute the team weight rather than substitute 0.5.
func TeamAlignmentScore(accountTier, repTier TeamTier, cfg TeamScoreConfig) (float64, bool) {
	aIdx, aOK := accountTier.Ordinal()
	rIdx, rOK := repTier.Ordinal()
	if !aOK || !rOK {
		return 0, false
	}

	distance := aIdx - rIdx
	if distance < 0 {
		distance = -distance
	}

	var score float64
	switch distance {
	case 0:
		score = cfg.ExactMatchScore
	case 1:
		score = cfg.OneLevelScore
	case 2:
		score = cfg.TwoLevelScore
	default:
		score = cfg.ThreeLevelScore
	}

	// Reaching down: rep tier is higher (more senior) than the account's.
	if rIdx > aIdx {
		score -= cfg.ReachingDownPenalty * float64(distance)
		// Round away binary float residue (0.60-0.15 would be 0.44999...).
		score = math.Round(score*1e9) / 1e9
		if score < 0 {
			score = 0
		}
	}

	return score, true
}

// TeamScoreConfig carries the configurable team-alignment constants from
// LPConfiguration's `team` group.
type TeamScoreConfig struct {
	ExactMatchScore      float64
	OneLevelScore        float64
	TwoLevelScore        float64
	ThreeLevelScore      float64
	ReachingDownPenalty  float64
	UnknownTierScore     float64 // reserved for callers that must not redistribute
}

// DefaultTeamScoreConfig mirrors the spec defaults (1.00 / 0.60 / 0.25 / 0.05,
// penalty 0.15 per level reached down).
func DefaultTeamScoreConfig() TeamScoreConfig {
	return TeamScoreConfig{
		ExactMatchScore:     1.00,
		OneLevelScore:       0.60,
		TwoLevelScore:       0.25,
		ThreeLevelScore:     0.05,
		ReachingDownPenalty: 0.15,
		UnknownTierScore:    0.50,
	}
}
