// Package loader fetches accounts, reps, opportunities, and configuration
// for one build, aggregates children into parents, and produces the
// LoadedBuildData the engine orchestrator consumes, per spec §4.2.
package loader

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	coreservice "github.com/fieldcompass/territory-engine/internal/app/core/service"
	assignerrors "github.com/fieldcompass/territory-engine/internal/assign/errors"
	"github.com/fieldcompass/territory-engine/internal/assign/domain"
	"github.com/fieldcompass/territory-engine/internal/assign/repo"
)

// Config governs retry and concurrency behavior at the repository boundary
// (spec §5 "loader fetches, parallel up to MAX_CONCURRENT_REQUESTS, default
// 4, with 3-attempt retry and exponential backoff").
type Config struct {
	MaxConcurrentRequests int
	RetryAttempts         int
	PageSize              int
}

// DefaultConfig mirrors the spec's stated defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrentRequests: 4, RetryAttempts: 3, PageSize: 500}
}

// defaultRetryPolicy is the starting point for each Loader's own policy;
// New copies it rather than sharing a package-global so that concurrent
// builds (spec §5 permits parallel builds) with different RetryAttempts
// never race on or bleed into one another's retry behavior.
func defaultRetryPolicy() coreservice.RetryPolicy {
	return coreservice.RetryPolicy{
		Attempts:       3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2,
	}
}

// LoadedBuildData is everything downstream stages need: accounts keyed by
// id (with hierarchy and pipeline already folded in), reps partitioned into
// regular/strategic pools, and the resolved configuration.
type LoadedBuildData struct {
	Accounts      map[string]*domain.Account
	ParentIDs     []string // accounts in scope for assignment (is_parent)
	Reps          []domain.Rep
	StrategicReps []domain.Rep
	RegularReps   []domain.Rep
	Config        domain.LPConfiguration
	Warnings      *domain.WarningCollector
}

// Loader fetches and assembles one build's data.
type Loader struct {
	repo        repo.Repository
	cfg         Config
	limiter     *rate.Limiter
	retryPolicy coreservice.RetryPolicy
}

// New builds a Loader whose repository fetches are rate-limited by a
// token-bucket limiter of cfg.MaxConcurrentRequests tokens per second (same
// burst); it limits the request rate, not the number of fetches in flight.
func New(r repo.Repository, cfg Config) *Loader {
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = 4
	}
	policy := defaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		policy.Attempts = cfg.RetryAttempts
	}
	cfg.PageSize = coreservice.ClampLimit(cfg.PageSize, 500, 2000)
	return &Loader{
		repo:        r,
		cfg:         cfg,
		limiter:     rate.NewLimiter(rate.Limit(cfg.MaxConcurrentRequests), cfg.MaxConcurrentRequests),
		retryPolicy: policy,
	}
}

// Load runs the full §4.2 operation list for one build.
func (l *Loader) Load(ctx context.Context, buildID string) (*LoadedBuildData, error) {
	warnings := &domain.WarningCollector{}

	var (
		accountRows []repo.AccountRow
		repRows     []repo.RepRow
		oppRows     []repo.OppRow
		cfg         domain.LPConfiguration
		mu          sync.Mutex
		wg          sync.WaitGroup
		fatalErr    error
	)

	fetch := func(name string, fn func() error) {
		defer wg.Done()
		if err := l.limiter.Wait(ctx); err != nil {
			mu.Lock()
			fatalErr = assignerrors.Wrap(assignerrors.DataLoadError, "rate limiter wait: "+name, err)
			mu.Unlock()
			return
		}
		err := coreservice.Retry(ctx, l.retryPolicy, fn)
		if err != nil {
			mu.Lock()
			if fatalErr == nil {
				fatalErr = assignerrors.Wrap(assignerrors.DataLoadError, "fetch "+name, err)
			}
			mu.Unlock()
		}
	}

	wg.Add(4)
	go fetch("accounts", func() error {
		rows, err := l.fetchAllAccounts(ctx, buildID)
		if err != nil {
			return err
		}
		mu.Lock()
		accountRows = rows
		mu.Unlock()
		return nil
	})
	go fetch("reps", func() error {
		rows, err := l.fetchAllReps(ctx, buildID)
		if err != nil {
			return err
		}
		mu.Lock()
		repRows = rows
		mu.Unlock()
		return nil
	})
	go fetch("opportunities", func() error {
		rows, err := l.fetchAllOpportunities(ctx, buildID)
		if err != nil {
			return err
		}
		mu.Lock()
		oppRows = rows
		mu.Unlock()
		return nil
	})
	go fetch("config", func() error {
		c, err := l.repo.FetchConfig(ctx, buildID)
		if err != nil {
			return err
		}
		mu.Lock()
		cfg = c
		mu.Unlock()
		return nil
	})
	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}

	return assemble(accountRows, repRows, oppRows, cfg, warnings)
}

func (l *Loader) fetchAllAccounts(ctx context.Context, buildID string) ([]repo.AccountRow, error) {
	var out []repo.AccountRow
	cursor := ""
	for {
		page, err := l.repo.FetchAccounts(ctx, buildID, cursor, l.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Rows...)
		if !page.HasMore {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

func (l *Loader) fetchAllReps(ctx context.Context, buildID string) ([]repo.RepRow, error) {
	var out []repo.RepRow
	cursor := ""
	for {
		page, err := l.repo.FetchReps(ctx, buildID, cursor, l.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Rows...)
		if !page.HasMore {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

func (l *Loader) fetchAllOpportunities(ctx context.Context, buildID string) ([]repo.OppRow, error) {
	var out []repo.OppRow
	cursor := ""
	for {
		page, err := l.repo.FetchOpportunities(ctx, buildID, cursor, l.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Rows...)
		if !page.HasMore {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

// assemble implements §4.2 steps 2-8: fold children into parents, build the
// pipeline map, classify tiers, partition reps.
func assemble(accountRows []repo.AccountRow, repRows []repo.RepRow, oppRows []repo.OppRow, cfg domain.LPConfiguration, warnings *domain.WarningCollector) (*LoadedBuildData, error) {
	accounts := make(map[string]*domain.Account, len(accountRows))
	for _, row := range accountRows {
		if row.AccountID == "" {
			warnings.Add("skipping account row with missing account_id")
			continue
		}
		a := rowToAccount(row)
		accounts[a.AccountID] = &a
	}

	var parentIDs []string
	for id, a := range accounts {
		if a.IsParent || a.ParentID == "" {
			parentIDs = append(parentIDs, id)
		}
	}
	for id, a := range accounts {
		if a.IsParent || a.ParentID == "" {
			continue
		}
		parent, ok := accounts[a.ParentID]
		if !ok {
			// Orphan child: treat as its own parent rather than dropping it.
			parentIDs = append(parentIDs, id)
			continue
		}
		parent.ChildIDs = append(parent.ChildIDs, id)
		parent.Computed.AggregatedATR += domain.AccountATR(*a)
	}
	for _, id := range parentIDs {
		p := accounts[id]
		p.Computed.AggregatedATR += domain.ClampNonNegative(p.ATR)
	}

	oppsByAccount := make(map[string][]domain.Opportunity, len(oppRows))
	for _, row := range oppRows {
		oppsByAccount[row.AccountID] = append(oppsByAccount[row.AccountID], rowToOpportunity(row))
	}

	hasCustomerDescendant := make(map[string]bool)
	for _, id := range parentIDs {
		p := accounts[id]
		for _, cid := range p.ChildIDs {
			if c, ok := accounts[cid]; ok && (c.IsCustomerFlag || domain.AccountARR(*c) > 0) {
				hasCustomerDescendant[id] = true
			}
		}
	}

	for id, a := range accounts {
		a.Computed.IsCustomer = domain.IsCustomer(*a, hasCustomerDescendant[id])
		allOpps := append([]domain.Opportunity(nil), oppsByAccount[id]...)
		for _, cid := range a.ChildIDs {
			allOpps = append(allOpps, oppsByAccount[cid]...)
		}
		a.PipelineValue = domain.PipelineOf(a.Computed.IsCustomer, allOpps)
		a.Computed.Tier = domain.ClassifyTier(a.Employees)
		a.Computed.Region = domain.NormalizeRegion(a.Geo)
	}

	sort.Strings(parentIDs)

	var accountPtrs []*domain.Account
	for _, id := range parentIDs {
		accountPtrs = append(accountPtrs, accounts[id])
	}
	domain.AssignRankBonus(accountPtrs)

	var reps []domain.Rep
	var strategicReps, regularReps []domain.Rep
	for _, row := range repRows {
		r := rowToRep(row)
		if !r.Eligible() {
			continue
		}
		reps = append(reps, r)
		if r.IsStrategicRep {
			strategicReps = append(strategicReps, r)
		} else {
			regularReps = append(regularReps, r)
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	cfg = applyConfigDefaults(cfg)

	return &LoadedBuildData{
		Accounts:      accounts,
		ParentIDs:     parentIDs,
		Reps:          reps,
		StrategicReps: strategicReps,
		RegularReps:   regularReps,
		Config:        cfg,
		Warnings:      warnings,
	}, nil
}

// applyConfigDefaults fills in the scoring sub-configs a caller left at
// their zero value, so an unconfigured build still scores pairs against the
// spec's stated defaults instead of silently producing an all-zero
// objective. Config.go's DefaultXConfig functions, not a literal here, are
// the source of truth for the actual numbers.
func applyConfigDefaults(cfg domain.LPConfiguration) domain.LPConfiguration {
	if cfg.Continuity == (domain.ContinuityConfig{}) {
		cfg.Continuity = domain.DefaultContinuityConfig()
	}
	if cfg.Geography == (domain.GeoScoreConfig{}) {
		cfg.Geography = domain.DefaultGeoScoreConfig()
	}
	if cfg.Team == (domain.TeamScoreConfig{}) {
		cfg.Team = domain.DefaultTeamScoreConfig()
	}
	return cfg
}

// validateConfig rejects unknown priority items per spec §9
// "the engine rejects unknown keys to avoid silent misconfiguration".
func validateConfig(cfg domain.LPConfiguration) error {
	for _, item := range cfg.PriorityConfig {
		if !domain.ValidPriorityItems[item] {
			return assignerrors.Newf(assignerrors.ConfigError, "unknown priority item %q", item)
		}
	}
	if cfg.CapacityVariancePercent < 0 || cfg.ATRVariance < 0 || cfg.ProspectVariancePercent < 0 {
		return assignerrors.New(assignerrors.ConfigError, "variance percentages must be non-negative")
	}
	return nil
}

func rowToAccount(row repo.AccountRow) domain.Account {
	return domain.Account{
		AccountID:               row.AccountID,
		ParentID:                row.ParentID,
		IsParent:                row.IsParent || row.ParentID == "",
		IsCustomerFlag:          row.IsCustomer,
		IsStrategic:             row.IsStrategic,
		ExcludeFromReassignment: row.ExcludeFromReassignment,
		ARR:                     row.ARR,
		HierarchyBookingsARR:    row.HierarchyBookingsARR,
		CalculatedARR:           row.CalculatedARR,
		ATR:                     row.ATR,
		Employees:               row.Employees,
		SalesTerritory:          row.SalesTerritory,
		Geo:                     row.Geo,
		ExpansionTier:           row.ExpansionTier,
		InitialSaleTier:         row.InitialSaleTier,
		PEFirm:                  domain.NormalizePEFirm(row.PEFirm),
		CRERisk:                 row.CRERisk,
		RenewalDate:             row.RenewalDate,
		OwnerID:                 row.OwnerID,
		OwnerChangeDate:         row.OwnerChangeDate,
		OwnersLifetimeCount:     row.OwnersLifetimeCount,
	}
}

func rowToRep(row repo.RepRow) domain.Rep {
	return domain.Rep{
		RepID:                row.RepID,
		Name:                 row.Name,
		Region:               domain.NormalizeRegion(row.Region),
		TeamTier:             domain.NormalizeTeamTier(row.TeamTier),
		IsActive:             row.IsActive,
		IncludeInAssignments: row.IncludeInAssignments,
		IsManager:            row.IsManager,
		IsStrategicRep:       row.IsStrategicRep,
		IsBackfillSource:     row.IsBackfillSource,
		IsBackfillTarget:     row.IsBackfillTarget,
		BackfillTargetRepID:  row.BackfillTargetRepID,
	}
}

func rowToOpportunity(row repo.OppRow) domain.Opportunity {
	return domain.Opportunity{
		OppID:            row.OppID,
		AccountID:        row.AccountID,
		Type:             domain.OpportunityType(row.Type),
		NetARR:           row.NetARR,
		Amount:           row.Amount,
		RenewalEventDate: row.RenewalEventDate,
	}
}
