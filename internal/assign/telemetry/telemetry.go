// Package telemetry persists run rows per spec §4.8: configuration
// snapshot, problem size, solver status, timing, quality metrics, warnings,
// and error category. The engine records one row per successful solve (one
// per relaxed pass, one per waterfall level); a pass that fails or is
// cancelled writes no row, and the engine does not set the error category.
// Recording is fire-and-forget — a telemetry write failure never aborts the
// run that produced it.
package telemetry

import (
	"context"

	"github.com/fieldcompass/territory-engine/infrastructure/logging"
	"github.com/fieldcompass/territory-engine/internal/assign/repo"
)

// Recorder wraps repo.PersistTelemetry with fire-and-forget semantics and
// structured logging of failures.
type Recorder struct {
	repo   repo.Repository
	logger *logging.Logger
}

// New builds a Recorder. logger may be nil, in which case failures are
// silently dropped (still never propagated to the caller).
func New(r repo.Repository, logger *logging.Logger) *Recorder {
	return &Recorder{repo: r, logger: logger}
}

// Record persists row, logging (but never returning) any failure. The engine
// calls it only after a solve has returned a solution; no row is written when
// a pass ends in an error or a cancellation.
func (rec *Recorder) Record(ctx context.Context, row repo.TelemetryRow) {
	err := rec.repo.PersistTelemetry(ctx, row)
	if err == nil {
		return
	}
	if rec.logger != nil {
		rec.logger.LogSolverRun(ctx, row.BuildID, row.SolverType, err)
	}
}
