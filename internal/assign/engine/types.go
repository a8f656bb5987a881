// Package engine implements the orchestrator of spec §4.7: given a build
// id, it runs the customer pass then the prospect pass, combines results,
// and emits telemetry. It is the only component that sequences every other
// internal/assign subpackage.
package engine

import (
	"time"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
	"github.com/fieldcompass/territory-engine/internal/assign/solve"
)

// RunOptions carries the per-run overrides of spec §6.1.
type RunOptions struct {
	ModelOverride       domain.OptimizationModel
	SolverModeOverride  solve.Mode
	Cancel              <-chan struct{}
	AsOf                time.Time // injected for deterministic tests; zero means time.Now()
}

// QualityMetrics are the property-based bounds of spec §8, computed once
// per completed build over the combined assignment set.
type QualityMetrics struct {
	ARRVariancePercent      float64
	ATRVariancePercent      float64
	PipelineVariancePercent float64
	ContinuityRate          float64
	GeoExactMatchRate       float64
	GeoSiblingMatchRate     float64
	CrossRegionRate         float64
	TierExactMatchRate      float64
	TierOneLevelRate        float64
	RepsOverCapacity        int
	FeasibilitySlackTotal   float64
}

// EngineResult is the public return value of spec §6.1.
type EngineResult struct {
	CustomerAssignments []domain.Assignment
	ProspectAssignments []domain.Assignment
	Warnings            []string
	Metrics             QualityMetrics
	TelemetryID         string
}

// passKind distinguishes customer vs prospect within the orchestrator.
type passKind string

const (
	passCustomer passKind = "customer"
	passProspect passKind = "prospect"
)
