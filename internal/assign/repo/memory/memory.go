// Package memory implements repo.Repository over in-memory slices, for unit
// tests, scenario tests, and local/dev runs (empty --dsn).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
	"github.com/fieldcompass/territory-engine/internal/assign/repo"
)

// Repository is a mutex-protected, per-build in-memory store.
type Repository struct {
	mu sync.RWMutex

	accounts  map[string][]repo.AccountRow
	reps      map[string][]repo.RepRow
	opps      map[string][]repo.OppRow
	configs   map[string]domain.LPConfiguration
	assigns   map[string][]domain.Assignment
	telemetry []repo.TelemetryRow
}

// New returns an empty in-memory repository.
func New() *Repository {
	return &Repository{
		accounts: make(map[string][]repo.AccountRow),
		reps:     make(map[string][]repo.RepRow),
		opps:     make(map[string][]repo.OppRow),
		configs:  make(map[string]domain.LPConfiguration),
		assigns:  make(map[string][]domain.Assignment),
	}
}

// SeedAccounts installs the fixture accounts for a build, replacing any
// prior seed. Intended for test setup only.
func (r *Repository) SeedAccounts(buildID string, rows []repo.AccountRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[buildID] = rows
}

func (r *Repository) SeedReps(buildID string, rows []repo.RepRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reps[buildID] = rows
}

func (r *Repository) SeedOpportunities(buildID string, rows []repo.OppRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opps[buildID] = rows
}

func (r *Repository) SeedConfig(buildID string, cfg domain.LPConfiguration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[buildID] = cfg
}

// Assignments returns the assignments persisted for a build, for assertions
// in tests.
func (r *Repository) Assignments(buildID string) []domain.Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Assignment(nil), r.assigns[buildID]...)
}

// TelemetryRows returns every telemetry row recorded, for assertions in
// tests.
func (r *Repository) TelemetryRows() []repo.TelemetryRow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]repo.TelemetryRow(nil), r.telemetry...)
}

func (r *Repository) FetchAccounts(_ context.Context, buildID, cursor string, limit int) (repo.Page[repo.AccountRow], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := r.accounts[buildID]
	sort.Slice(rows, func(i, j int) bool { return rows[i].AccountID < rows[j].AccountID })
	return paginate(rows, cursor, limit, func(row repo.AccountRow) string { return row.AccountID }), nil
}

func (r *Repository) FetchReps(_ context.Context, buildID, cursor string, limit int) (repo.Page[repo.RepRow], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := r.reps[buildID]
	sort.Slice(rows, func(i, j int) bool { return rows[i].RepID < rows[j].RepID })
	return paginate(rows, cursor, limit, func(row repo.RepRow) string { return row.RepID }), nil
}

func (r *Repository) FetchOpportunities(_ context.Context, buildID, cursor string, limit int) (repo.Page[repo.OppRow], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := r.opps[buildID]
	sort.Slice(rows, func(i, j int) bool { return rows[i].OppID < rows[j].OppID })
	return paginate(rows, cursor, limit, func(row repo.OppRow) string { return row.OppID }), nil
}

func (r *Repository) FetchConfig(_ context.Context, buildID string) (domain.LPConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configs[buildID], nil
}

func (r *Repository) PersistAssignments(_ context.Context, buildID string, assignments []domain.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigns[buildID] = append(r.assigns[buildID], assignments...)
	return nil
}

func (r *Repository) PersistTelemetry(_ context.Context, row repo.TelemetryRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.telemetry = append(r.telemetry, row)
	return nil
}

// paginate applies simple cursor-after-id pagination semantics matching the
// postgres adapter's `WHERE id > cursor ORDER BY id LIMIT n` reads.
func paginate[T any](rows []T, cursor string, limit int, id func(T) string) repo.Page[T] {
	if limit <= 0 {
		limit = len(rows)
	}
	start := 0
	if cursor != "" {
		for i, row := range rows {
			if id(row) > cursor {
				start = i
				break
			}
			start = i + 1
		}
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	if start > len(rows) {
		start = len(rows)
	}
	page := rows[start:end]
	out := repo.Page[T]{Rows: append([]T(nil), page...)}
	if end < len(rows) {
		out.HasMore = true
		out.NextCursor = id(rows[end-1])
	}
	return out
}
