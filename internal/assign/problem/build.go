package problem

import (
	"fmt"
	"sort"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
)

// MetricSpec describes one balance metric enabled for a pass: how to value
// an account for it, its penalty weight share, and its variance band.
type MetricSpec struct {
	Name     string
	Value    func(domain.Account) float64
	Weight   float64
	Variance float64
}

// Input is everything Build needs to construct one pass's LP. Accounts must
// already exclude locked and strategically pre-assigned accounts; Reps must
// already be filtered to this pass's eligible pool.
type Input struct {
	Accounts []domain.Account
	Reps     []domain.Rep

	// Coefficient returns the objective coefficient for pairing account a
	// with rep r; the caller (internal/assign/engine) assembles it from
	// scoring.Coefficient.
	Coefficient func(a domain.Account, r domain.Rep) float64

	Metrics []MetricSpec

	CapacityHardCapEnabled bool
	HardCapARR             float64

	Penalties domain.PenaltyConstants
	Intensity domain.BalanceIntensity
}

// Build constructs the LP for one pass. Returns an error only for
// structurally invalid input (no reps, or an account with no eligible rep),
// matching spec §4.5.5's "|R| = 0 -> NoEligibleReps" rule, surfaced here as a
// plain error and classified by the caller.
func Build(in Input) (*Problem, error) {
	if len(in.Reps) == 0 {
		return nil, fmt.Errorf("no eligible reps")
	}

	p := newProblem()
	multiplier := in.Intensity.Multiplier()

	hasStrategicReps := false
	for _, r := range in.Reps {
		if r.IsStrategicRep {
			hasStrategicReps = true
			break
		}
	}
	eligible := func(a domain.Account, r domain.Rep) bool {
		if !hasStrategicReps {
			return true
		}
		return a.IsStrategic == r.IsStrategicRep
	}

	// Stable ordering for determinism (spec §9 "Determinism").
	accounts := append([]domain.Account(nil), in.Accounts...)
	sort.SliceStable(accounts, func(i, j int) bool { return accounts[i].AccountID < accounts[j].AccountID })
	reps := append([]domain.Rep(nil), in.Reps...)
	sort.SliceStable(reps, func(i, j int) bool { return reps[i].RepID < reps[j].RepID })

	// 1. Assignment variables x_{a,r}, upper bound 1 (relaxed binary).
	for _, a := range accounts {
		for _, r := range reps {
			if !eligible(a, r) {
				continue
			}
			p.addVar(Var{Kind: VarAssignment, AccountID: a.AccountID, RepID: r.RepID}, in.Coefficient(a, r), 1)
		}
	}

	// 2. Assignment constraint: sum_r x_{a,r} = 1, for every account.
	for _, a := range accounts {
		cols, ok := p.AssignmentIndex[a.AccountID]
		if !ok || len(cols) == 0 {
			return nil, fmt.Errorf("account %s has no eligible rep", a.AccountID)
		}
		coeffs := make(map[int]float64, len(cols))
		for _, col := range cols {
			coeffs[col] = 1
		}
		p.Constraints = append(p.Constraints, Constraint{
			Label: fmt.Sprintf("assign:%s", a.AccountID), Op: OpEqual, Coeffs: coeffs, RHS: 1,
		})
	}

	// 3. Capacity soft hard-cap: sum_a ARR(a)*x_{a,r} - s_r <= hard_cap_arr.
	if in.CapacityHardCapEnabled {
		for _, r := range reps {
			sCol := p.addVar(Var{Kind: VarFeasibilitySlack, RepID: r.RepID}, -in.Penalties.Feasibility*multiplier, 0)
			coeffs := map[int]float64{sCol: -1}
			for _, a := range accounts {
				if !eligible(a, r) {
					continue
				}
				col := p.AssignmentIndex[a.AccountID][r.RepID]
				coeffs[col] += domain.AccountARR(a)
			}
			p.Constraints = append(p.Constraints, Constraint{
				Label: fmt.Sprintf("capacity:%s", r.RepID), Op: OpLessOrEqual, Coeffs: coeffs, RHS: in.HardCapARR,
			})
		}
	}

	// 4. Balance decomposition, per enabled metric and per rep with target>0.
	for _, m := range in.Metrics {
		var total float64
		for _, a := range accounts {
			total += m.Value(a)
		}
		target := total / float64(len(reps))
		if target <= 0 {
			continue
		}
		for _, r := range reps {
			coeffs := make(map[int]float64)
			for _, a := range accounts {
				if !eligible(a, r) {
					continue
				}
				col := p.AssignmentIndex[a.AccountID][r.RepID]
				coeffs[col] += m.Value(a) / target
			}
			if len(coeffs) == 0 {
				continue
			}

			alphaOver := p.addVar(Var{Kind: VarBalanceSlack, RepID: r.RepID, Metric: m.Name, Zone: ZoneAlphaOver}, -in.Penalties.Alpha*m.Weight*multiplier, m.Variance)
			alphaUnder := p.addVar(Var{Kind: VarBalanceSlack, RepID: r.RepID, Metric: m.Name, Zone: ZoneAlphaUnder}, -in.Penalties.Alpha*m.Weight*multiplier, m.Variance)
			betaOver := p.addVar(Var{Kind: VarBalanceSlack, RepID: r.RepID, Metric: m.Name, Zone: ZoneBetaOver}, -in.Penalties.Beta*m.Weight*multiplier, 0.5)
			betaUnder := p.addVar(Var{Kind: VarBalanceSlack, RepID: r.RepID, Metric: m.Name, Zone: ZoneBetaUnder}, -in.Penalties.Beta*m.Weight*multiplier, 0.5)
			mOver := p.addVar(Var{Kind: VarBalanceSlack, RepID: r.RepID, Metric: m.Name, Zone: ZoneMOver}, -in.Penalties.M*m.Weight*multiplier, 0)
			mUnder := p.addVar(Var{Kind: VarBalanceSlack, RepID: r.RepID, Metric: m.Name, Zone: ZoneMUnder}, -in.Penalties.M*m.Weight*multiplier, 0)

			coeffs[alphaOver] = -1
			coeffs[alphaUnder] = 1
			coeffs[betaOver] = -1
			coeffs[betaUnder] = 1
			coeffs[mOver] = -1
			coeffs[mUnder] = 1

			p.Constraints = append(p.Constraints, Constraint{
				Label: fmt.Sprintf("balance:%s:%s", m.Name, r.RepID), Op: OpEqual, Coeffs: coeffs, RHS: 1,
			})
		}
	}

	return p, nil
}

// WaterfallMetrics builds the MetricSpec list for a single waterfall level,
// per spec §4.5.4: "Only ARR balance is active in waterfall; ATR/pipeline/
// tier balance apply only in relaxed mode." Prospect-pass levels have no ARR
// metric to fall back on and so run with no balance metrics at all.
func WaterfallMetrics(customerPass bool, cfg domain.LPConfiguration) []MetricSpec {
	if !customerPass || !cfg.ARRBalanceEnabled {
		return nil
	}
	weights := domain.DefaultMetricWeights(customerPass)
	variance := cfg.CapacityVariancePercent
	if variance <= 0 {
		variance = 0.10
	}
	return []MetricSpec{{Name: "arr", Value: domain.AccountARR, Weight: weights.ARR, Variance: variance}}
}

// DefaultMetrics builds the MetricSpec list for a pass from an
// LPConfiguration-derived set of toggles, per spec §4.5.2/§4.5.3. Tier
// metrics are always active (they have no enable flag in the spec); ARR,
// ATR, and pipeline are gated by their balance-enabled flags. Used by
// relaxed-mode passes; waterfall levels use WaterfallMetrics instead.
func DefaultMetrics(customerPass bool, cfg domain.LPConfiguration) []MetricSpec {
	weights := domain.DefaultMetricWeights(customerPass)
	var metrics []MetricSpec

	if customerPass {
		if cfg.ARRBalanceEnabled {
			variance := cfg.CapacityVariancePercent
			if variance <= 0 {
				variance = 0.10
			}
			metrics = append(metrics, MetricSpec{Name: "arr", Value: domain.AccountARR, Weight: weights.ARR, Variance: variance})
		}
		if cfg.ATRBalanceEnabled {
			variance := cfg.ATRVariance
			if variance <= 0 {
				variance = 0.15
			}
			metrics = append(metrics, MetricSpec{Name: "atr", Value: domain.AccountATR, Weight: weights.ATR, Variance: variance})
		}
	} else {
		if cfg.PipelineBalanceEnabled {
			variance := cfg.ProspectVariancePercent
			if variance <= 0 {
				variance = 0.15
			}
			metrics = append(metrics, MetricSpec{Name: "pipeline", Value: func(a domain.Account) float64 { return a.PipelineValue }, Weight: weights.Pipeline, Variance: variance})
		}
	}

	tierWeight := weights.Tier / 4
	for _, tier := range []domain.TeamTier{domain.TierSMB, domain.TierGrowth, domain.TierMM, domain.TierENT} {
		t := tier
		metrics = append(metrics, MetricSpec{
			Name:     "tier:" + string(t),
			Value:    func(a domain.Account) float64 { if a.Computed.Tier == t { return 1 }; return 0 },
			Weight:   tierWeight,
			Variance: 0.50,
		})
	}
	return metrics
}
