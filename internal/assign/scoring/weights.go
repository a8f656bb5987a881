// Package scoring derives per-pair continuity/geography/team-alignment
// scores and the objective coefficients built from them, per spec §4.3.
package scoring

import "github.com/fieldcompass/territory-engine/internal/assign/domain"

// RankBonusEpsilon is the tie-break weight applied to rank_bonus when
// assembling a coefficient.
const RankBonusEpsilon = 1e-3

// Weights is the derived (continuity, geography, team) weight triple for one
// pass, always summing to 1.
type Weights struct {
	Continuity float64
	Geography  float64
	Team       float64
}

// DeriveWeights computes (wC, wG, wT) from an ordered priority list per
// spec §4.3: raw weight of position i is 1/(i+1), normalized to sum 1;
// geo_and_continuity splits its weight 50/50 into wG and wC. An empty
// priority list falls back to domain.DefaultWeights(customerPass).
func DeriveWeights(priorities []domain.PriorityItem, customerPass bool) Weights {
	if len(priorities) == 0 {
		wC, wG, wT := domain.DefaultWeights(customerPass)
		return Weights{Continuity: wC, Geography: wG, Team: wT}
	}

	raw := make([]float64, len(priorities))
	var sum float64
	for i := range priorities {
		raw[i] = 1.0 / float64(i+1)
		sum += raw[i]
	}

	var w Weights
	for i, item := range priorities {
		normalized := raw[i] / sum
		switch item {
		case domain.PriorityContinuity:
			w.Continuity += normalized
		case domain.PriorityGeography:
			w.Geography += normalized
		case domain.PriorityTeamAlignment:
			w.Team += normalized
		case domain.PriorityGeoAndContinuity:
			w.Geography += normalized / 2
			w.Continuity += normalized / 2
		// manual_holdover, sales_tools_bucket, stability_accounts, and
		// residual are waterfall-level selectors, not objective weights;
		// they contribute nothing to the relaxed-mode coefficient.
		default:
		}
	}

	// Non-scoring priorities (manual_holdover, sales_tools_bucket,
	// stability_accounts, residual) took a share of the raw mass above but
	// contribute nothing back, so the triple no longer sums to 1. Renormalize
	// over whatever scoring mass remains.
	total := w.Continuity + w.Geography + w.Team
	if total <= 0 {
		wC, wG, wT := domain.DefaultWeights(customerPass)
		return Weights{Continuity: wC, Geography: wG, Team: wT}
	}
	w.Continuity /= total
	w.Geography /= total
	w.Team /= total
	return w
}

// Coefficient assembles the objective coefficient for variable x_{a,r} from
// its three scoring contributions and the account's deterministic rank
// bonus, per spec §4.3 "coefficient assembly". team is nil when N/A; its
// weight is redistributed proportionally between continuity and geography
// before combining.
func Coefficient(w Weights, continuity, geography float64, team *float64, rankBonus float64) float64 {
	if team == nil {
		wC, wG := redistribute(w)
		return wC*continuity + wG*geography + RankBonusEpsilon*rankBonus
	}
	return w.Continuity*continuity + w.Geography*geography + w.Team*(*team) + RankBonusEpsilon*rankBonus
}

// redistribute spreads wT proportionally across wC and wG so their sum is
// unchanged: wC' + wG' = wC + wG + wT (spec testable property 9).
func redistribute(w Weights) (wC, wG float64) {
	base := w.Continuity + w.Geography
	if base <= 0 {
		// No continuity/geography signal to redistribute onto; put it all on
		// continuity rather than divide by zero.
		return w.Continuity + w.Team, w.Geography
	}
	extra := w.Team
	wC = w.Continuity + extra*(w.Continuity/base)
	wG = w.Geography + extra*(w.Geography/base)
	return wC, wG
}
