package engine

import (
	"context"
	"time"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
	assignerrors "github.com/fieldcompass/territory-engine/internal/assign/errors"
	"github.com/fieldcompass/territory-engine/internal/assign/loader"
	"github.com/fieldcompass/territory-engine/internal/assign/problem"
	"github.com/fieldcompass/territory-engine/internal/assign/solve"
)

// defaultSolverTimeout is used when LPConfiguration carries no override.
const defaultSolverTimeout = 60 * time.Second

// runRelaxed solves one pool in a single LP, per spec §4.5's default model:
// every metric and criterion enters one blended objective.
func (e *Engine) runRelaxed(ctx context.Context, buildID string, customerPass bool, pool []domain.Account, data *loader.LoadedBuildData, coefficient func(domain.Account, domain.Rep) float64, scorer func(domain.Account, domain.Rep) domain.Scores, warnings *domain.WarningCollector, opts RunOptions) ([]domain.Assignment, error) {
	if len(pool) == 0 {
		return nil, nil
	}
	if len(pool) > domain.MaxAccountsForGlobalLP {
		return nil, assignerrors.Newf(assignerrors.ScaleExceeded,
			"relaxed pool has %d accounts, exceeds MaxAccountsForGlobalLP=%d; rerun in waterfall mode",
			len(pool), domain.MaxAccountsForGlobalLP)
	}

	reps := data.Reps
	metrics := problem.DefaultMetrics(customerPass, data.Config)

	p, err := problem.Build(problem.Input{
		Accounts:               pool,
		Reps:                   reps,
		Coefficient:            coefficient,
		Metrics:                metrics,
		CapacityHardCapEnabled: data.Config.CapacityHardCapEnabled,
		HardCapARR:             data.Config.HardCapARR,
		Penalties:              domain.DefaultPenaltyConstants(),
		Intensity:              data.Config.BalanceIntensity,
	})
	if err != nil {
		return nil, assignerrors.Wrap(assignerrors.NoEligibleReps, "build relaxed problem", err)
	}

	sol, solverName, err := e.solve(ctx, p, data, opts)
	if err != nil {
		return nil, assignerrors.Wrap(assignerrors.SolverTimeout, "solve relaxed problem", err)
	}

	e.recordTelemetry(ctx, buildID, customerPass, "relaxed_optimization", solverName, p, sol, warnings)

	return decode(p, sol, pool, reps, "optimized", scorer)
}

func (e *Engine) solve(ctx context.Context, p *problem.Problem, data *loader.LoadedBuildData, opts RunOptions) (solve.Solution, string, error) {
	// Spec default is cloud for relaxed mode, browser for waterfall. We
	// default to browser here regardless of pass kind: no remote solver is
	// wired in this deployment (lpsolver.Remote is the pluggable-oracle
	// boundary, not a concrete service), so defaulting to cloud would mean
	// every unconfigured relaxed run fails instead of solving locally.
	// Callers that have a remote oracle configured get it via
	// opts.SolverModeOverride.
	mode := solve.ModeBrowser
	if opts.SolverModeOverride != "" {
		mode = opts.SolverModeOverride
	}
	timeout := time.Duration(data.Config.SolverTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultSolverTimeout
	}
	return e.Dispatcher.Solve(ctx, p, mode, timeout)
}

// decode rounds the LP relaxation back into one rep per account: the rep
// with the largest x_{a,r} value wins, ties broken by rep id for
// determinism (spec §9 "Determinism").
func decode(p *problem.Problem, sol solve.Solution, accounts []domain.Account, reps []domain.Rep, reason string, scorer func(domain.Account, domain.Rep) domain.Scores) ([]domain.Assignment, error) {
	repByID := make(map[string]domain.Rep, len(reps))
	for _, r := range reps {
		repByID[r.RepID] = r
	}

	assignments := make([]domain.Assignment, 0, len(accounts))
	for _, a := range accounts {
		cols, ok := p.AssignmentIndex[a.AccountID]
		if !ok || len(cols) == 0 {
			return nil, assignerrors.Newf(assignerrors.InternalError, "no assignment variable for account %s", a.AccountID)
		}
		bestRep, bestValue := "", -1.0
		for repID, col := range cols {
			v := sol.Values[col]
			if v > bestValue || (v == bestValue && repID < bestRep) {
				bestRep, bestValue = repID, v
			}
		}
		scores := scorer(a, repByID[bestRep])
		scores.TieBreak = bestValue
		assignments = append(assignments, domain.Assignment{
			AccountID:      a.AccountID,
			RepID:          bestRep,
			PriorityReason: reason,
			Scores:         scores,
		})
	}
	return assignments, nil
}
