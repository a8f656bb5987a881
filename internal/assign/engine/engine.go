package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldcompass/territory-engine/infrastructure/logging"
	"github.com/fieldcompass/territory-engine/infrastructure/redaction"
	coreservice "github.com/fieldcompass/territory-engine/internal/app/core/service"
	"github.com/fieldcompass/territory-engine/internal/assign/domain"
	assignerrors "github.com/fieldcompass/territory-engine/internal/assign/errors"
	"github.com/fieldcompass/territory-engine/internal/assign/loader"
	"github.com/fieldcompass/territory-engine/internal/assign/predicate"
	"github.com/fieldcompass/territory-engine/internal/assign/repo"
	"github.com/fieldcompass/territory-engine/internal/assign/scoring"
	"github.com/fieldcompass/territory-engine/internal/assign/solve"
	"github.com/fieldcompass/territory-engine/internal/assign/solve/lpsolver"
	"github.com/fieldcompass/territory-engine/internal/assign/stability"
	"github.com/fieldcompass/territory-engine/internal/assign/telemetry"
)

// ModelVersion is the semver string recorded in telemetry for the current
// objective/penalty formulation (spec §4.8).
const ModelVersion = "1.0.0"

// Engine is the public entry point of spec §6.1.
type Engine struct {
	Loader     *loader.Loader
	Dispatcher *solve.Dispatcher
	Predicate  *predicate.Engine
	Telemetry  *telemetry.Recorder
	Logger     *logging.Logger
}

// New wires a fully configured Engine over a repository, with the in-process
// gonum solver as the only local solver and no remote fallback configured.
// Callers that need the remote fallback (spec §4.6) should set e.Dispatcher
// themselves after New returns.
func New(r repo.Repository, logger *logging.Logger) *Engine {
	dispatcher := solve.NewDispatcher(nil, lpsolver.Gonum{})
	dispatcher.Hooks = coreservice.DispatchHooks{
		OnComplete: func(ctx context.Context, meta map[string]string, err error, duration time.Duration) {
			if logger == nil || err == nil {
				return
			}
			// Remote oracle errors can echo back request details (auth headers,
			// connection strings); scrub before they hit the log sink.
			safeErr := fmt.Errorf("%s", redaction.RedactAll(err.Error()))
			logger.WithFields(map[string]interface{}{
				"solver":      meta["solver"],
				"mode":        meta["mode"],
				"duration_ms": duration.Milliseconds(),
			}).WithError(safeErr).Warn("solver attempt failed, cascading to next oracle")
		},
	}
	return &Engine{
		Loader:     loader.New(r, loader.DefaultConfig()),
		Dispatcher: dispatcher,
		Predicate:  predicate.Default(),
		Telemetry:  telemetry.New(r, logger),
		Logger:     logger,
	}
}

// Run executes the idle -> loading -> preprocessing -> customer_pass ->
// prospect_pass -> post -> done state machine of spec §4.7.
func (e *Engine) Run(ctx context.Context, buildID string, opts RunOptions) (*EngineResult, error) {
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	if err := checkCancelled(opts.Cancel); err != nil {
		return nil, err
	}

	data, err := e.Loader.Load(ctx, buildID)
	if err != nil {
		return nil, err
	}

	resolver := domain.NewTerritoryResolver(data.Config.TerritoryMappings)

	if err := checkCancelled(opts.Cancel); err != nil {
		return nil, err
	}

	customerResult, err := e.runPass(ctx, buildID, passCustomer, data, resolver, asOf, opts)
	if err != nil {
		return nil, err
	}

	// Customer-pass loads carry into prospect-pass rep capacity (spec §4.7).
	applyLoad(data, customerResult.assignments)

	if err := checkCancelled(opts.Cancel); err != nil {
		return nil, err
	}

	prospectResult, err := e.runPass(ctx, buildID, passProspect, data, resolver, asOf, opts)
	if err != nil {
		return nil, err
	}

	all := append(append([]domain.Assignment(nil), customerResult.assignments...), prospectResult.assignments...)
	warnings := append(append([]string(nil), customerResult.warnings...), prospectResult.warnings...)
	warnings = append(warnings, data.Warnings.Warnings()...)

	return &EngineResult{
		CustomerAssignments: customerResult.assignments,
		ProspectAssignments: prospectResult.assignments,
		Warnings:            warnings,
		Metrics:             computeQualityMetrics(all, data),
		TelemetryID:         buildID,
	}, nil
}

func checkCancelled(cancel <-chan struct{}) error {
	if cancel == nil {
		return nil
	}
	select {
	case <-cancel:
		return assignerrors.New(assignerrors.Cancelled, "run cancelled")
	default:
		return nil
	}
}

// applyLoad adds a completed pass's ARR/ATR/pipeline onto each rep's
// running Computed state so the next pass's balance targets reflect it.
func applyLoad(data *loader.LoadedBuildData, assignments []domain.Assignment) {
	loadByRep := make(map[string]*domain.RepComputed)
	for i := range data.Reps {
		loadByRep[data.Reps[i].RepID] = &data.Reps[i].Computed
	}
	for _, a := range assignments {
		acc, ok := data.Accounts[a.AccountID]
		if !ok {
			continue
		}
		rc, ok := loadByRep[a.RepID]
		if !ok {
			continue
		}
		rc.CurrentARR += domain.AccountARR(*acc)
		rc.CurrentATR += domain.AccountATR(*acc)
		rc.CurrentPipeline += acc.PipelineValue
	}
}

type passResult struct {
	assignments []domain.Assignment
	warnings    []string
}

func (e *Engine) runPass(ctx context.Context, buildID string, kind passKind, data *loader.LoadedBuildData, resolver *domain.TerritoryResolver, asOf time.Time, opts RunOptions) (*passResult, error) {
	customerPass := kind == passCustomer
	warnings := &domain.WarningCollector{}

	var poolIDs []string
	for _, id := range data.ParentIDs {
		a := data.Accounts[id]
		if a.Computed.IsCustomer == customerPass {
			poolIDs = append(poolIDs, id)
		}
	}

	if len(data.Reps) == 0 {
		return nil, assignerrors.New(assignerrors.NoEligibleReps, fmt.Sprintf("no eligible reps for %s pass", kind))
	}

	repsByID := make(stability.RepsByID, len(data.Reps))
	for _, r := range data.Reps {
		repsByID[r.RepID] = r
	}

	stabilityCfg := stability.Config{
		BackfillMigrationEnabled: data.Config.BackfillMigrationEnabled,
		CRERiskLocked:            data.Config.CRERiskLocked,
		RenewalSoonLocked:        data.Config.RenewalSoonLocked,
		RenewalSoonDays:          data.Config.RenewalSoonDays,
		PEFirmLocked:             data.Config.PEFirmLocked,
		RecentChangeLocked:       data.Config.RecentChangeLocked,
		RecentChangeDays:         data.Config.RecentChangeDays,
	}

	var locked []domain.Assignment
	var unlockedIDs []string
	for _, id := range poolIDs {
		a := data.Accounts[id]
		lock, ok, dropped := stability.Check(*a, repsByID, stabilityCfg, asOf)
		if !ok {
			if dropped != "" {
				warnings.Add("%s: lock rule %q matched account %s but its target rep is missing or ineligible",
					assignerrors.LockDropped, dropped, id)
			}
			unlockedIDs = append(unlockedIDs, id)
			continue
		}
		cont := domain.ContinuityScore(*a, repsByID[lock.TargetRepID], asOf, data.Config.Continuity)
		locked = append(locked, domain.Assignment{
			AccountID: id, RepID: lock.TargetRepID, PriorityReason: lock.Reason,
			Scores: domain.Scores{Continuity: cont, Geography: 1.0},
			IsLocked: true,
		})
	}

	var unlocked []domain.Account
	for _, id := range unlockedIDs {
		unlocked = append(unlocked, *data.Accounts[id])
	}

	var strategicReps []domain.Rep
	for _, r := range data.Reps {
		if r.IsStrategicRep {
			strategicReps = append(strategicReps, r)
		}
	}
	preAssigned, poolEmpty := stability.PreAssignStrategic(unlocked, strategicReps)
	if poolEmpty {
		warnings.Add("strategic accounts present but no strategic reps for %s pass; entering regular optimization", kind)
	}

	preAssignedSet := make(map[string]bool, len(preAssigned))
	var strategicAssignments []domain.Assignment
	for _, p := range preAssigned {
		preAssignedSet[p.AccountID] = true
		strategicAssignments = append(strategicAssignments, domain.Assignment{
			AccountID: p.AccountID, RepID: p.RepID, PriorityReason: "strategic",
			Scores: p.Scores(), IsStrategicPreAssignment: true,
		})
	}

	var optimizePool []domain.Account
	for _, a := range unlocked {
		if !preAssignedSet[a.AccountID] {
			optimizePool = append(optimizePool, a)
		}
	}

	weights := scoring.DeriveWeights(data.Config.PriorityConfig, customerPass)
	scoringCfg := scoring.Config{Continuity: data.Config.Continuity, Geography: data.Config.Geography, Team: data.Config.Team}

	pairScores := func(a domain.Account, r domain.Rep) scoring.PairScores {
		accRegion := resolver.Resolve(firstNonEmpty(a.SalesTerritory, a.Geo))
		repRegion := resolver.Resolve(r.Region)
		return scoring.Score(a, r, accRegion, repRegion, asOf, domain.ScaleLP, scoringCfg)
	}
	coefficient := func(a domain.Account, r domain.Rep) float64 {
		ps := pairScores(a, r)
		return scoring.Coefficient(weights, ps.Continuity, ps.Geography, ps.Team, a.Computed.RankBonus)
	}
	scorer := func(a domain.Account, r domain.Rep) domain.Scores {
		ps := pairScores(a, r)
		return domain.Scores{Continuity: ps.Continuity, Geography: ps.Geography, Team: ps.Team}
	}

	model := data.Config.OptimizationModel
	if opts.ModelOverride != "" {
		model = opts.ModelOverride
	}

	var optimized []domain.Assignment
	var err error
	if model == domain.ModelWaterfall {
		optimized, err = e.runWaterfall(ctx, buildID, customerPass, optimizePool, data, weights, scoringCfg, resolver, warnings, opts, asOf)
	} else {
		optimized, err = e.runRelaxed(ctx, buildID, customerPass, optimizePool, data, coefficient, scorer, warnings, opts)
	}
	if err != nil {
		return nil, err
	}

	assignments := append(append(append([]domain.Assignment(nil), locked...), strategicAssignments...), optimized...)
	assignments = cascadeToChildren(assignments, data)

	return &passResult{assignments: assignments, warnings: warnings.Warnings()}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// cascadeToChildren propagates each parent's rep to its children, per spec
// §4.6 post-processing step 2.
func cascadeToChildren(assignments []domain.Assignment, data *loader.LoadedBuildData) []domain.Assignment {
	repByParent := make(map[string]string, len(assignments))
	scoresByParent := make(map[string]domain.Scores, len(assignments))
	for _, a := range assignments {
		repByParent[a.AccountID] = a.RepID
		scoresByParent[a.AccountID] = a.Scores
	}
	out := append([]domain.Assignment(nil), assignments...)
	for parentID, repID := range repByParent {
		parent, ok := data.Accounts[parentID]
		if !ok {
			continue
		}
		for _, childID := range parent.ChildIDs {
			out = append(out, domain.Assignment{
				AccountID: childID, RepID: repID, PriorityReason: "Child follows parent",
				Scores: scoresByParent[parentID], CascadedFromParent: parentID,
			})
		}
	}
	return out
}
