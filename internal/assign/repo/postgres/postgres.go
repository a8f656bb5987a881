// Package postgres implements repo.Repository against PostgreSQL via
// sqlx/lib/pq, with cursor-paginated reads (WHERE id > cursor ORDER BY id
// LIMIT n) over the tables created by internal/platform/migrations.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
	"github.com/fieldcompass/territory-engine/internal/assign/repo"
)

// Repository is a sqlx-backed repo.Repository.
type Repository struct {
	db *sqlx.DB
}

// New wraps an existing *sql.DB (already opened and pinged by
// internal/platform/database.Open) in a sqlx handle.
func New(db *sql.DB) *Repository {
	return &Repository{db: sqlx.NewDb(db, "postgres")}
}

type accountRow struct {
	AccountID               string          `db:"account_id"`
	ParentID                sql.NullString  `db:"parent_id"`
	IsParent                bool            `db:"is_parent"`
	IsCustomer              bool            `db:"is_customer"`
	IsStrategic             bool            `db:"is_strategic"`
	ExcludeFromReassignment bool            `db:"exclude_from_reassignment"`
	ARR                     float64         `db:"arr"`
	HierarchyBookingsARR    sql.NullFloat64 `db:"hierarchy_bookings_arr"`
	CalculatedARR           sql.NullFloat64 `db:"calculated_arr"`
	ATR                     float64         `db:"atr"`
	Employees               sql.NullInt64   `db:"employees"`
	SalesTerritory          sql.NullString  `db:"sales_territory"`
	Geo                     sql.NullString  `db:"geo"`
	ExpansionTier           sql.NullString  `db:"expansion_tier"`
	InitialSaleTier         sql.NullString  `db:"initial_sale_tier"`
	PEFirm                  sql.NullString  `db:"pe_firm"`
	CRERisk                 bool            `db:"cre_risk"`
	RenewalDate             sql.NullTime    `db:"renewal_date"`
	OwnerID                 sql.NullString  `db:"owner_id"`
	OwnerChangeDate         sql.NullTime    `db:"owner_change_date"`
	OwnersLifetimeCount     int             `db:"owners_lifetime_count"`
}

func (row accountRow) toDomain() repo.AccountRow {
	out := repo.AccountRow{
		AccountID:               row.AccountID,
		ParentID:                row.ParentID.String,
		IsParent:                row.IsParent,
		IsCustomer:              row.IsCustomer,
		IsStrategic:             row.IsStrategic,
		ExcludeFromReassignment: row.ExcludeFromReassignment,
		ARR:                     row.ARR,
		ATR:                     row.ATR,
		SalesTerritory:          row.SalesTerritory.String,
		Geo:                     row.Geo.String,
		ExpansionTier:           row.ExpansionTier.String,
		InitialSaleTier:         row.InitialSaleTier.String,
		PEFirm:                  row.PEFirm.String,
		CRERisk:                 row.CRERisk,
		OwnerID:                 row.OwnerID.String,
		OwnersLifetimeCount:     row.OwnersLifetimeCount,
	}
	if row.HierarchyBookingsARR.Valid {
		v := row.HierarchyBookingsARR.Float64
		out.HierarchyBookingsARR = &v
	}
	if row.CalculatedARR.Valid {
		v := row.CalculatedARR.Float64
		out.CalculatedARR = &v
	}
	if row.Employees.Valid {
		v := int(row.Employees.Int64)
		out.Employees = &v
	}
	if row.RenewalDate.Valid {
		v := row.RenewalDate.Time
		out.RenewalDate = &v
	}
	if row.OwnerChangeDate.Valid {
		v := row.OwnerChangeDate.Time
		out.OwnerChangeDate = &v
	}
	return out
}

func (r *Repository) FetchAccounts(ctx context.Context, buildID, cursor string, limit int) (repo.Page[repo.AccountRow], error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []accountRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT account_id, parent_id, is_parent, is_customer, is_strategic,
		       exclude_from_reassignment, arr, hierarchy_bookings_arr, calculated_arr,
		       atr, employees, sales_territory, geo, expansion_tier, initial_sale_tier,
		       pe_firm, cre_risk, renewal_date, owner_id, owner_change_date,
		       owners_lifetime_count
		FROM accounts
		WHERE build_id = $1 AND account_id > $2
		ORDER BY account_id
		LIMIT $3
	`, buildID, cursor, limit+1)
	if err != nil {
		return repo.Page[repo.AccountRow]{}, fmt.Errorf("fetch accounts: %w", err)
	}

	page := repo.Page[repo.AccountRow]{}
	for i, row := range rows {
		if i == limit {
			page.HasMore = true
			break
		}
		page.Rows = append(page.Rows, row.toDomain())
	}
	if page.HasMore {
		page.NextCursor = page.Rows[len(page.Rows)-1].AccountID
	}
	return page, nil
}

type repRow struct {
	RepID                string         `db:"rep_id"`
	Name                 string         `db:"name"`
	Region               sql.NullString `db:"region"`
	TeamTier             sql.NullString `db:"team_tier"`
	IsActive             bool           `db:"is_active"`
	IncludeInAssignments bool           `db:"include_in_assignments"`
	IsManager            bool           `db:"is_manager"`
	IsStrategicRep       bool           `db:"is_strategic_rep"`
	IsBackfillSource     bool           `db:"is_backfill_source"`
	IsBackfillTarget     bool           `db:"is_backfill_target"`
	BackfillTargetRepID  sql.NullString `db:"backfill_target_rep_id"`
}

func (row repRow) toDomain() repo.RepRow {
	return repo.RepRow{
		RepID:                row.RepID,
		Name:                 row.Name,
		Region:               row.Region.String,
		TeamTier:             row.TeamTier.String,
		IsActive:             row.IsActive,
		IncludeInAssignments: row.IncludeInAssignments,
		IsManager:            row.IsManager,
		IsStrategicRep:       row.IsStrategicRep,
		IsBackfillSource:     row.IsBackfillSource,
		IsBackfillTarget:     row.IsBackfillTarget,
		BackfillTargetRepID:  row.BackfillTargetRepID.String,
	}
}

func (r *Repository) FetchReps(ctx context.Context, buildID, cursor string, limit int) (repo.Page[repo.RepRow], error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []repRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT rep_id, name, region, team_tier, is_active, include_in_assignments,
		       is_manager, is_strategic_rep, is_backfill_source, is_backfill_target,
		       backfill_target_rep_id
		FROM reps
		WHERE build_id = $1 AND rep_id > $2
		ORDER BY rep_id
		LIMIT $3
	`, buildID, cursor, limit+1)
	if err != nil {
		return repo.Page[repo.RepRow]{}, fmt.Errorf("fetch reps: %w", err)
	}

	page := repo.Page[repo.RepRow]{}
	for i, row := range rows {
		if i == limit {
			page.HasMore = true
			break
		}
		page.Rows = append(page.Rows, row.toDomain())
	}
	if page.HasMore {
		page.NextCursor = page.Rows[len(page.Rows)-1].RepID
	}
	return page, nil
}

type oppRow struct {
	OppID            string          `db:"opp_id"`
	AccountID        string          `db:"account_id"`
	Type             string          `db:"type"`
	NetARR           sql.NullFloat64 `db:"net_arr"`
	Amount           sql.NullFloat64 `db:"amount"`
	RenewalEventDate sql.NullTime    `db:"renewal_event_date"`
}

func (row oppRow) toDomain() repo.OppRow {
	out := repo.OppRow{OppID: row.OppID, AccountID: row.AccountID, Type: row.Type}
	if row.NetARR.Valid {
		v := row.NetARR.Float64
		out.NetARR = &v
	}
	if row.Amount.Valid {
		v := row.Amount.Float64
		out.Amount = &v
	}
	if row.RenewalEventDate.Valid {
		v := row.RenewalEventDate.Time
		out.RenewalEventDate = &v
	}
	return out
}

func (r *Repository) FetchOpportunities(ctx context.Context, buildID, cursor string, limit int) (repo.Page[repo.OppRow], error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []oppRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT opp_id, account_id, type, net_arr, amount, renewal_event_date
		FROM opportunities
		WHERE build_id = $1 AND opp_id > $2
		ORDER BY opp_id
		LIMIT $3
	`, buildID, cursor, limit+1)
	if err != nil {
		return repo.Page[repo.OppRow]{}, fmt.Errorf("fetch opportunities: %w", err)
	}

	page := repo.Page[repo.OppRow]{}
	for i, row := range rows {
		if i == limit {
			page.HasMore = true
			break
		}
		page.Rows = append(page.Rows, row.toDomain())
	}
	if page.HasMore {
		page.NextCursor = page.Rows[len(page.Rows)-1].OppID
	}
	return page, nil
}

// FetchConfig is deliberately a thin stub: LPConfiguration in production is
// typically supplied per-run by the caller of cmd/territoryd rather than
// persisted; when a build_configs table row exists it is honored.
func (r *Repository) FetchConfig(ctx context.Context, buildID string) (domain.LPConfiguration, error) {
	var raw sql.NullString
	err := r.db.GetContext(ctx, &raw, `
		SELECT config_json FROM build_configs WHERE build_id = $1
	`, buildID)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.LPConfiguration{}, nil
		}
		// build_configs is optional infrastructure; its absence is not fatal.
		return domain.LPConfiguration{}, nil
	}
	if !raw.Valid {
		return domain.LPConfiguration{}, nil
	}
	var cfg configDocument
	dec := json.NewDecoder(strings.NewReader(raw.String))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return domain.LPConfiguration{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.toDomain(), nil
}

func (r *Repository) PersistAssignments(ctx context.Context, buildID string, assignments []domain.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range assignments {
		scoresJSON, err := json.Marshal(a.Scores)
		if err != nil {
			return fmt.Errorf("marshal scores: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO assignments
				(build_id, account_id, rep_id, priority_reason, scores, is_locked,
				 is_strategic_pre_assignment, cascaded_from_parent)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, buildID, a.AccountID, a.RepID, a.PriorityReason, scoresJSON, a.IsLocked,
			a.IsStrategicPreAssignment, nullIfEmpty(a.CascadedFromParent))
		if err != nil {
			return fmt.Errorf("insert assignment %s: %w", a.AccountID, err)
		}
	}

	return tx.Commit()
}

func (r *Repository) PersistTelemetry(ctx context.Context, row repo.TelemetryRow) error {
	weightJSON, err := json.Marshal(row.WeightVector)
	if err != nil {
		return fmt.Errorf("marshal weight vector: %w", err)
	}
	problemJSON, err := json.Marshal(row.ProblemSize)
	if err != nil {
		return fmt.Errorf("marshal problem size: %w", err)
	}
	qualityJSON, err := json.Marshal(row.QualityMetrics)
	if err != nil {
		return fmt.Errorf("marshal quality metrics: %w", err)
	}
	warningsJSON, err := json.Marshal(row.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO telemetry_runs
			(build_id, config_id, pass_type, engine_type, model_version, weight_vector,
			 balance_intensity, problem_size, solver_type, solver_status, solver_time_ms,
			 objective_value, quality_metrics, warnings, error_category)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, row.BuildID, nullIfEmpty(row.ConfigID), row.PassType, row.EngineType, row.ModelVersion,
		weightJSON, row.BalanceIntensity, problemJSON, row.SolverType, row.SolverStatus,
		row.SolverTimeMS, row.ObjectiveValue, qualityJSON, warningsJSON, nullIfEmpty(row.ErrorCategory))
	// Telemetry is fire-and-forget: callers log but never abort the run on
	// this error (see internal/assign/telemetry).
	if err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
