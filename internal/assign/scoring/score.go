package scoring

import (
	"time"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
)

// PairScores computes the three raw scoring contributions for one
// (account, rep) pair. geoScale selects which of the two discrepant
// geography scales (analytics vs LP) is used for the LP coefficient; the
// same Region resolution underlies both.
type PairScores struct {
	Continuity float64
	Geography  float64
	Team       *float64 // nil when N/A
}

// Score computes PairScores for one pair, given the already-resolved
// account/rep regions.
func Score(a domain.Account, r domain.Rep, accountRegion, repRegion domain.Region, asOf time.Time, geoScale domain.Scale, cfg Config) PairScores {
	continuity := domain.ContinuityScore(a, r, asOf, cfg.Continuity)
	match := domain.ClassifyGeoMatch(accountRegion, repRegion)
	geo := domain.GeoScore(match, geoScale, cfg.Geography)

	var team *float64
	if score, ok := domain.TeamAlignmentScore(a.Computed.Tier, r.TeamTier, cfg.Team); ok {
		team = &score
	}

	return PairScores{Continuity: continuity, Geography: geo, Team: team}
}

// Config bundles the scoring sub-configs consumed by Score, lifted out of
// domain.LPConfiguration by the loader/problem builder.
type Config struct {
	Continuity domain.ContinuityConfig
	Geography  domain.GeoScoreConfig
	Team       domain.TeamScoreConfig
}
