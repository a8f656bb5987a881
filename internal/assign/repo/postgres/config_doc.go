package postgres

import "github.com/fieldcompass/territory-engine/internal/assign/domain"

// configDocument is the JSON shape stored in build_configs.config_json. It
// carries the top-level fields of domain.LPConfiguration; the continuity,
// geography and team scoring groups are not stored, so the loader fills
// them with defaults.
type configDocument struct {
	OptimizationModel string   `json:"optimization_model"`
	PriorityConfig    []string `json:"priority_config"`
	BalanceIntensity  string   `json:"balance_intensity"`

	CustomerTargetARR float64 `json:"customer_target_arr"`
	CustomerMaxARR     float64 `json:"customer_max_arr"`
	CustomerMinARR     float64 `json:"customer_min_arr"`
	ProspectTargetARR float64 `json:"prospect_target_arr"`
	ProspectMaxARR    float64 `json:"prospect_max_arr"`
	ProspectMinARR    float64 `json:"prospect_min_arr"`

	ATRMin                  float64 `json:"atr_min"`
	ATRMax                  float64 `json:"atr_max"`
	ATRVariance             float64 `json:"atr_variance"`
	CapacityVariancePercent float64 `json:"capacity_variance_percent"`
	ProspectVariancePercent float64 `json:"prospect_variance_percent"`

	CustomerContinuityWeight    float64 `json:"customer_continuity_weight"`
	CustomerGeographyWeight     float64 `json:"customer_geography_weight"`
	CustomerTeamAlignmentWeight float64 `json:"customer_team_alignment_weight"`
	ProspectContinuityWeight    float64 `json:"prospect_continuity_weight"`
	ProspectGeographyWeight     float64 `json:"prospect_geography_weight"`
	ProspectTeamAlignmentWeight float64 `json:"prospect_team_alignment_weight"`

	ARRBalanceEnabled      bool `json:"arr_balance_enabled"`
	ATRBalanceEnabled      bool `json:"atr_balance_enabled"`
	PipelineBalanceEnabled bool `json:"pipeline_balance_enabled"`

	CapacityHardCapEnabled bool    `json:"capacity_hard_cap_enabled"`
	HardCapARR             float64 `json:"hard_cap_arr"`

	CRERiskLocked            bool `json:"cre_risk_locked"`
	RenewalSoonLocked        bool `json:"renewal_soon_locked"`
	RenewalSoonDays          int  `json:"renewal_soon_days"`
	PEFirmLocked             bool `json:"pe_firm_locked"`
	RecentChangeLocked       bool `json:"recent_change_locked"`
	RecentChangeDays         int  `json:"recent_change_days"`
	BackfillMigrationEnabled bool `json:"backfill_migration_enabled"`

	SolverTimeoutSeconds int     `json:"solver_timeout_seconds"`
	FeasibilityPenalty   float64 `json:"feasibility_penalty"`
	LogLevel             string  `json:"log_level"`

	TerritoryMappings map[string]string `json:"territory_mappings"`

	SalesToolsPredicate       string             `json:"sales_tools_predicate"`
	SalesToolsThreshold       float64            `json:"sales_tools_threshold"`
	StabilityCustomPredicates []customPredicateDoc `json:"stability_custom_predicates"`
}

type customPredicateDoc struct {
	Name string `json:"name"`
	JS   string `json:"js"`
}

func (d configDocument) toDomain() domain.LPConfiguration {
	cfg := domain.LPConfiguration{
		OptimizationModel: domain.OptimizationModel(d.OptimizationModel),
		BalanceIntensity:  domain.BalanceIntensity(d.BalanceIntensity),

		CustomerTargetARR: d.CustomerTargetARR,
		CustomerMaxARR:    d.CustomerMaxARR,
		CustomerMinARR:    d.CustomerMinARR,
		ProspectTargetARR: d.ProspectTargetARR,
		ProspectMaxARR:    d.ProspectMaxARR,
		ProspectMinARR:    d.ProspectMinARR,

		ATRMin:                  d.ATRMin,
		ATRMax:                  d.ATRMax,
		ATRVariance:             d.ATRVariance,
		CapacityVariancePercent: d.CapacityVariancePercent,
		ProspectVariancePercent: d.ProspectVariancePercent,

		CustomerContinuityWeight:    d.CustomerContinuityWeight,
		CustomerGeographyWeight:     d.CustomerGeographyWeight,
		CustomerTeamAlignmentWeight: d.CustomerTeamAlignmentWeight,
		ProspectContinuityWeight:    d.ProspectContinuityWeight,
		ProspectGeographyWeight:     d.ProspectGeographyWeight,
		ProspectTeamAlignmentWeight: d.ProspectTeamAlignmentWeight,

		ARRBalanceEnabled:      d.ARRBalanceEnabled,
		ATRBalanceEnabled:      d.ATRBalanceEnabled,
		PipelineBalanceEnabled: d.PipelineBalanceEnabled,

		CapacityHardCapEnabled: d.CapacityHardCapEnabled,
		HardCapARR:             d.HardCapARR,

		CRERiskLocked:            d.CRERiskLocked,
		RenewalSoonLocked:        d.RenewalSoonLocked,
		RenewalSoonDays:          d.RenewalSoonDays,
		PEFirmLocked:             d.PEFirmLocked,
		RecentChangeLocked:       d.RecentChangeLocked,
		RecentChangeDays:         d.RecentChangeDays,
		BackfillMigrationEnabled: d.BackfillMigrationEnabled,

		SolverTimeoutSeconds: d.SolverTimeoutSeconds,
		FeasibilityPenalty:   d.FeasibilityPenalty,
		LogLevel:             d.LogLevel,

		TerritoryMappings: d.TerritoryMappings,

		SalesToolsPredicate: d.SalesToolsPredicate,
		SalesToolsThreshold: d.SalesToolsThreshold,
	}
	for _, p := range d.PriorityConfig {
		cfg.PriorityConfig = append(cfg.PriorityConfig, domain.PriorityItem(p))
	}
	for _, p := range d.StabilityCustomPredicates {
		cfg.StabilityCustomPredicates = append(cfg.StabilityCustomPredicates, domain.CustomPredicate{Name: p.Name, JS: p.JS})
	}
	return cfg
}
