package engine

import (
	"context"
	"time"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
	assignerrors "github.com/fieldcompass/territory-engine/internal/assign/errors"
	"github.com/fieldcompass/territory-engine/internal/assign/loader"
	"github.com/fieldcompass/territory-engine/internal/assign/predicate"
	"github.com/fieldcompass/territory-engine/internal/assign/problem"
	"github.com/fieldcompass/territory-engine/internal/assign/scoring"
)

// waterfallConfidenceThreshold is the minimum winning pair-score a
// scoring-criterion level accepts as final; accounts below it carry into the
// next level instead of settling for a weak match at this level.
const waterfallConfidenceThreshold = 0.75

// runWaterfall implements the alternate optimization_model of spec §4.5.4:
// priority_config is walked level by level, each level narrowing the
// remaining pool before the next runs. Two kinds of level exist in
// priority_config. manual_holdover, sales_tools_bucket, stability_accounts,
// and residual are selection predicates: they partition the remaining pool
// into "matches this level" and "does not", and every match in a level
// solves immediately as its own sub-problem, scored with the pass's full
// blended coefficient.
// continuity, geography, team_alignment, and geo_and_continuity are scoring
// criteria, not partitions: a level built from one of them solves the whole
// remaining pool against a coefficient weighted entirely toward that
// criterion, and only the accounts whose winning pair-score clears
// waterfallConfidenceThreshold are finalized at this level — the rest carry
// forward, since a weak geography match, say, should still get a chance to
// win on continuity at a later level. Whatever is left after the configured
// levels run is solved once more with the pass's full blended objective, the
// same one runRelaxed uses, so every account is guaranteed exactly one
// assignment regardless of how the configured levels partitioned the pool.
func (e *Engine) runWaterfall(ctx context.Context, buildID string, customerPass bool, pool []domain.Account, data *loader.LoadedBuildData, weights scoring.Weights, scoringCfg scoring.Config, resolver *domain.TerritoryResolver, warnings *domain.WarningCollector, opts RunOptions, asOf time.Time) ([]domain.Assignment, error) {
	if len(pool) == 0 {
		return nil, nil
	}

	remaining := pool
	var out []domain.Assignment

	for _, item := range data.Config.PriorityConfig {
		if len(remaining) == 0 {
			break
		}
		switch item {
		case domain.PriorityManualHoldover, domain.PrioritySalesToolsBucket, domain.PriorityStabilityAccounts, domain.PriorityResidual:
			matched, rest, err := e.partitionByPredicate(item, remaining, data)
			if err != nil {
				return nil, err
			}
			if len(matched) == 0 {
				remaining = rest
				continue
			}
			levelAssignments, err := e.solveLevel(ctx, buildID, customerPass, matched, data, string(item), fullCoefficient(weights, scoringCfg, resolver, asOf), fullScorer(scoringCfg, resolver, asOf), warnings, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, levelAssignments...)
			remaining = rest

		case domain.PriorityContinuity, domain.PriorityGeography, domain.PriorityTeamAlignment, domain.PriorityGeoAndContinuity:
			criterionWeights := singleCriterionWeights(item)
			coefficient := fullCoefficient(criterionWeights, scoringCfg, resolver, asOf)
			scorer := fullScorer(scoringCfg, resolver, asOf)
			levelAssignments, err := e.solveLevel(ctx, buildID, customerPass, remaining, data, string(item), coefficient, scorer, warnings, opts)
			if err != nil {
				return nil, err
			}
			var carried []domain.Account
			remainingSet := make(map[string]bool, len(remaining))
			for _, a := range remaining {
				remainingSet[a.AccountID] = true
			}
			for _, asg := range levelAssignments {
				if criterionConfidence(item, asg.Scores) >= waterfallConfidenceThreshold {
					out = append(out, asg)
					delete(remainingSet, asg.AccountID)
				}
			}
			for _, a := range remaining {
				if remainingSet[a.AccountID] {
					carried = append(carried, a)
				}
			}
			remaining = carried
		}
	}

	if len(remaining) > 0 {
		finalAssignments, err := e.solveLevel(ctx, buildID, customerPass, remaining, data, "waterfall_residual", fullCoefficient(weights, scoringCfg, resolver, asOf), fullScorer(scoringCfg, resolver, asOf), warnings, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, finalAssignments...)
	}

	return out, nil
}

// criterionConfidence reads back the score of the single criterion a
// scoring-type waterfall level ranked on, so acceptance depends only on how
// well the winning pair satisfies that criterion, not on the other two
// scores a non-owner or cross-region winner will legitimately have at zero.
func criterionConfidence(item domain.PriorityItem, s domain.Scores) float64 {
	switch item {
	case domain.PriorityContinuity:
		return s.Continuity
	case domain.PriorityGeography:
		return s.Geography
	case domain.PriorityTeamAlignment:
		if s.Team == nil {
			return 0
		}
		return *s.Team
	case domain.PriorityGeoAndContinuity:
		return (s.Continuity + s.Geography) / 2
	default:
		return 0
	}
}

func fullCoefficient(weights scoring.Weights, scoringCfg scoring.Config, resolver *domain.TerritoryResolver, asOf time.Time) func(domain.Account, domain.Rep) float64 {
	return func(a domain.Account, r domain.Rep) float64 {
		ps := scorePair(a, r, scoringCfg, resolver, asOf)
		return scoring.Coefficient(weights, ps.Continuity, ps.Geography, ps.Team, a.Computed.RankBonus)
	}
}

func fullScorer(scoringCfg scoring.Config, resolver *domain.TerritoryResolver, asOf time.Time) func(domain.Account, domain.Rep) domain.Scores {
	return func(a domain.Account, r domain.Rep) domain.Scores {
		ps := scorePair(a, r, scoringCfg, resolver, asOf)
		return domain.Scores{Continuity: ps.Continuity, Geography: ps.Geography, Team: ps.Team}
	}
}

func scorePair(a domain.Account, r domain.Rep, scoringCfg scoring.Config, resolver *domain.TerritoryResolver, asOf time.Time) scoring.PairScores {
	accRegion := resolver.Resolve(firstNonEmpty(a.SalesTerritory, a.Geo))
	repRegion := resolver.Resolve(r.Region)
	return scoring.Score(a, r, accRegion, repRegion, asOf, domain.ScaleLP, scoringCfg)
}

// singleCriterionWeights zeroes every weight but the one named by item, so a
// waterfall scoring level ranks purely on that criterion.
func singleCriterionWeights(item domain.PriorityItem) scoring.Weights {
	switch item {
	case domain.PriorityContinuity:
		return scoring.Weights{Continuity: 1}
	case domain.PriorityGeography:
		return scoring.Weights{Geography: 1}
	case domain.PriorityTeamAlignment:
		return scoring.Weights{Team: 1}
	case domain.PriorityGeoAndContinuity:
		return scoring.Weights{Continuity: 0.5, Geography: 0.5}
	default:
		return scoring.Weights{}
	}
}

// partitionByPredicate splits accounts into those matching item's selection
// rule and the rest. manual_holdover and stability_accounts have no
// standalone predicate of their own in this model (holdover/stability are
// already resolved by the preceding lock pass, spec §4.4); they match
// nothing here and simply pass every account through to the next level.
// residual matches everything, terminating the configured levels early
// (matching spec §4.5.4's stated meaning of listing it last).
func (e *Engine) partitionByPredicate(item domain.PriorityItem, accounts []domain.Account, data *loader.LoadedBuildData) (matched, rest []domain.Account, err error) {
	switch item {
	case domain.PriorityResidual:
		return accounts, nil, nil
	case domain.PriorityManualHoldover, domain.PriorityStabilityAccounts:
		return nil, accounts, nil
	case domain.PrioritySalesToolsBucket:
		js := data.Config.SalesToolsPredicate
		if js == "" {
			js = predicate.DefaultSalesToolsPredicate
		}
		for _, a := range accounts {
			fields := predicate.AccountFields{
				ARR: domain.AccountARR(a), Tier: string(a.Computed.Tier),
				Geo: a.Geo, IsCustomer: a.Computed.IsCustomer, IsStrategic: a.IsStrategic,
			}
			if a.Employees != nil {
				fields.Employees = *a.Employees
			}
			ok, evalErr := e.Predicate.Eval(js, fields, data.Config.SalesToolsThreshold)
			if evalErr != nil {
				data.Warnings.Add("sales_tools_bucket predicate failed for account %s: %v", a.AccountID, evalErr)
			}
			if ok {
				matched = append(matched, a)
			} else {
				rest = append(rest, a)
			}
		}
		return matched, rest, nil
	default:
		return nil, accounts, nil
	}
}

// solveLevel builds and solves a single-level sub-problem over a (usually
// small) pool, using problem.WaterfallMetrics for its balance constraints
// (ARR balance only, on the customer pass when ARR balance is enabled).
func (e *Engine) solveLevel(ctx context.Context, buildID string, customerPass bool, pool []domain.Account, data *loader.LoadedBuildData, label string, coefficient func(domain.Account, domain.Rep) float64, scorer func(domain.Account, domain.Rep) domain.Scores, warnings *domain.WarningCollector, opts RunOptions) ([]domain.Assignment, error) {
	if len(pool) == 0 {
		return nil, nil
	}
	metrics := problem.WaterfallMetrics(customerPass, data.Config)
	p, err := problem.Build(problem.Input{
		Accounts:               pool,
		Reps:                   data.Reps,
		Coefficient:            coefficient,
		Metrics:                metrics,
		CapacityHardCapEnabled: data.Config.CapacityHardCapEnabled,
		HardCapARR:             data.Config.HardCapARR,
		Penalties:              domain.DefaultPenaltyConstants(),
		Intensity:              data.Config.BalanceIntensity,
	})
	if err != nil {
		return nil, assignerrors.Wrap(assignerrors.NoEligibleReps, "build waterfall level "+label, err)
	}
	sol, solverName, err := e.solve(ctx, p, data, opts)
	if err != nil {
		return nil, assignerrors.Wrap(assignerrors.SolverTimeout, "solve waterfall level "+label, err)
	}
	e.recordTelemetry(ctx, buildID, customerPass, "waterfall:"+label, solverName, p, sol, warnings)
	return decode(p, sol, pool, data.Reps, label, scorer)
}
