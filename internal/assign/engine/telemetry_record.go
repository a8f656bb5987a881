package engine

import (
	"context"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
	"github.com/fieldcompass/territory-engine/internal/assign/problem"
	"github.com/fieldcompass/territory-engine/internal/assign/repo"
	"github.com/fieldcompass/territory-engine/internal/assign/solve"
)

// recordTelemetry persists the run row of one successful solve (a relaxed
// pass or one waterfall level) per spec §4.8; ErrorCategory is left empty.
// Telemetry failures never surface to the caller; Recorder already logs and
// swallows them.
func (e *Engine) recordTelemetry(ctx context.Context, buildID string, customerPass bool, model, solverName string, p *problem.Problem, sol solve.Solution, warnings *domain.WarningCollector) {
	if e.Telemetry == nil {
		return
	}
	passType := "prospect"
	if customerPass {
		passType = "customer"
	}
	row := repo.TelemetryRow{
		BuildID:      buildID,
		PassType:     passType,
		EngineType:   model,
		ModelVersion: ModelVersion,
		SolverType:   solverName,
		SolverStatus: string(sol.Status),
		ProblemSize: repo.ProblemSize{
			Variables:   len(p.Vars),
			Constraints: len(p.Constraints),
			Accounts:    len(p.AssignmentIndex),
		},
		ObjectiveValue: sol.ObjectiveValue,
		Warnings:       warnings.Warnings(),
	}
	e.Telemetry.Record(ctx, row)
}
