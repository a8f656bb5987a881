package postgres

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
	"github.com/fieldcompass/territory-engine/internal/assign/repo"
)

func telemetryFixture() repo.TelemetryRow {
	return repo.TelemetryRow{
		BuildID:      "build-1",
		PassType:     "customer",
		EngineType:   "waterfall",
		ModelVersion: "v1",
		WeightVector: map[string]float64{"continuity": 0.35},
		SolverType:   "gonum",
		SolverStatus: "optimal",
		ProblemSize:  repo.ProblemSize{Variables: 10, Constraints: 5, Accounts: 2, Reps: 1},
	}
}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestFetchAccountsPagesByCursor(t *testing.T) {
	repo, mock := newMockRepo(t)

	cols := []string{
		"account_id", "parent_id", "is_parent", "is_customer", "is_strategic",
		"exclude_from_reassignment", "arr", "hierarchy_bookings_arr", "calculated_arr",
		"atr", "employees", "sales_territory", "geo", "expansion_tier", "initial_sale_tier",
		"pe_firm", "cre_risk", "renewal_date", "owner_id", "owner_change_date",
		"owners_lifetime_count",
	}
	rows := sqlmock.NewRows(cols).
		AddRow("acc-1", nil, false, true, false, false, 100000.0, nil, nil, 50000.0, nil, "US-West", "US-West", "T2", "T1", nil, false, nil, "rep-1", nil, 1).
		AddRow("acc-2", nil, false, true, false, false, 200000.0, nil, nil, 90000.0, nil, "US-West", "US-West", "T2", "T1", nil, false, nil, "rep-1", nil, 2)

	mock.ExpectQuery("SELECT account_id").WithArgs("build-1", "", 2).WillReturnRows(rows)

	page, err := repo.FetchAccounts(context.Background(), "build-1", "", 1)
	if err != nil {
		t.Fatalf("fetch accounts: %v", err)
	}
	if len(page.Rows) != 1 || page.Rows[0].AccountID != "acc-1" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if !page.HasMore || page.NextCursor != "acc-1" {
		t.Fatalf("expected HasMore with cursor acc-1, got %+v", page)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFetchConfigDecodesJSON(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT config_json").
		WithArgs("build-1").
		WillReturnRows(sqlmock.NewRows([]string{"config_json"}).AddRow(`{"optimization_model":"waterfall","balance_intensity":"NORMAL"}`))

	cfg, err := repo.FetchConfig(context.Background(), "build-1")
	if err != nil {
		t.Fatalf("fetch config: %v", err)
	}
	if cfg.OptimizationModel != domain.ModelWaterfall {
		t.Fatalf("expected waterfall model, got %q", cfg.OptimizationModel)
	}
}

func TestPersistAssignmentsInsertsEachRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO assignments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.PersistAssignments(context.Background(), "build-1", []domain.Assignment{
		{AccountID: "acc-1", RepID: "rep-1", PriorityReason: "continuity"},
	})
	if err != nil {
		t.Fatalf("persist assignments: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPersistTelemetryInsertsRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO telemetry_runs").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.PersistTelemetry(context.Background(), telemetryFixture())
	if err != nil {
		t.Fatalf("persist telemetry: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
