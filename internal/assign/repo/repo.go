// Package repo defines the storage-agnostic contract the loader and
// orchestrator consume (spec §6.2), plus the row/telemetry shapes that cross
// the repository boundary.
package repo

import (
	"context"
	"time"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
)

// AccountRow is the wire shape of one account record as read from storage,
// including hierarchy fields.
type AccountRow struct {
	BuildID                 string
	AccountID               string
	ParentID                string
	IsParent                bool
	IsCustomer              bool
	IsStrategic             bool
	ExcludeFromReassignment bool
	ARR                     float64
	HierarchyBookingsARR    *float64
	CalculatedARR           *float64
	ATR                     float64
	Employees               *int
	SalesTerritory          string
	Geo                     string
	ExpansionTier           string
	InitialSaleTier         string
	PEFirm                  string
	CRERisk                 bool
	RenewalDate             *time.Time
	OwnerID                 string
	OwnerChangeDate         *time.Time
	OwnersLifetimeCount     int
}

// RepRow is the wire shape of one rep record.
type RepRow struct {
	BuildID              string
	RepID                string
	Name                 string
	Region               string
	TeamTier             string
	IsActive             bool
	IncludeInAssignments bool
	IsManager            bool
	IsStrategicRep       bool
	IsBackfillSource     bool
	IsBackfillTarget     bool
	BackfillTargetRepID  string
}

// OppRow is the wire shape of one opportunity record; only the fields the
// loader needs are carried.
type OppRow struct {
	BuildID          string
	OppID            string
	AccountID        string
	Type             string
	NetARR           *float64
	Amount           *float64
	RenewalEventDate *time.Time
}

// TelemetryRow is one recorded run row (spec §4.8).
type TelemetryRow struct {
	BuildID          string
	ConfigID         string
	PassType         string
	EngineType       string
	ModelVersion     string
	WeightVector     map[string]float64
	BalanceIntensity string
	ProblemSize      ProblemSize
	SolverType       string
	SolverStatus     string
	SolverTimeMS     int64
	ObjectiveValue   float64
	QualityMetrics   map[string]float64
	Warnings         []string
	ErrorCategory    string
	CreatedAt        time.Time
}

// ProblemSize summarizes a solved MILP's dimensions for telemetry.
type ProblemSize struct {
	Variables   int
	Constraints int
	Accounts    int
	Reps        int
	KB          float64
}

// Page is a cursor-paginated slice of rows plus the cursor to resume from.
type Page[T any] struct {
	Rows       []T
	NextCursor string
	HasMore    bool
}

// Repository is the storage contract consumed by the loader and
// orchestrator; concrete implementations live in ./postgres and ./memory.
type Repository interface {
	FetchAccounts(ctx context.Context, buildID string, cursor string, limit int) (Page[AccountRow], error)
	FetchReps(ctx context.Context, buildID string, cursor string, limit int) (Page[RepRow], error)
	FetchOpportunities(ctx context.Context, buildID string, cursor string, limit int) (Page[OppRow], error)
	FetchConfig(ctx context.Context, buildID string) (domain.LPConfiguration, error)
	PersistAssignments(ctx context.Context, buildID string, assignments []domain.Assignment) error
	PersistTelemetry(ctx context.Context, row TelemetryRow) error
}
