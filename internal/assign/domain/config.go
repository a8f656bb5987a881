package domain

// OptimizationModel selects waterfall vs. relaxed MILP construction.
type OptimizationModel string

const (
	ModelWaterfall OptimizationModel = "waterfall"
	ModelRelaxed   OptimizationModel = "relaxed_optimization"
)

// PriorityItem is one entry of the user-configured priority ordering (§6.4).
type PriorityItem string

const (
	PriorityManualHoldover    PriorityItem = "manual_holdover"
	PrioritySalesToolsBucket  PriorityItem = "sales_tools_bucket"
	PriorityStabilityAccounts PriorityItem = "stability_accounts"
	PriorityTeamAlignment     PriorityItem = "team_alignment"
	PriorityGeoAndContinuity  PriorityItem = "geo_and_continuity"
	PriorityContinuity        PriorityItem = "continuity"
	PriorityGeography         PriorityItem = "geography"
	PriorityResidual          PriorityItem = "residual"
)

// ValidPriorityItems enumerates every accepted priority item; §9 requires
// exhaustive matching and rejection of unknown keys.
var ValidPriorityItems = map[PriorityItem]bool{
	PriorityManualHoldover:    true,
	PrioritySalesToolsBucket:  true,
	PriorityStabilityAccounts: true,
	PriorityTeamAlignment:     true,
	PriorityGeoAndContinuity:  true,
	PriorityContinuity:        true,
	PriorityGeography:         true,
	PriorityResidual:          true,
}

// BalanceIntensity multiplies the α/β/M balance penalties.
type BalanceIntensity string

const (
	IntensityVeryLight BalanceIntensity = "VERY_LIGHT"
	IntensityLight     BalanceIntensity = "LIGHT"
	IntensityNormal    BalanceIntensity = "NORMAL"
	IntensityHeavy     BalanceIntensity = "HEAVY"
	IntensityVeryHeavy BalanceIntensity = "VERY_HEAVY"
)

// Multiplier returns the intensity's penalty scaling factor.
func (b BalanceIntensity) Multiplier() float64 {
	switch b {
	case IntensityVeryLight:
		return 0.1
	case IntensityLight:
		return 0.5
	case IntensityHeavy:
		return 10
	case IntensityVeryHeavy:
		return 100
	default:
		return 1.0
	}
}

// SolverMode selects the solver oracle dispatch policy for a pass.
type SolverMode string

const (
	SolverModeBrowser SolverMode = "browser"
	SolverModeCloud    SolverMode = "cloud"
)

// MaxAccountsForGlobalLP is the default relaxed-mode size guard (spec §4.5.5,
// §7 ScaleExceeded): a single global MILP over more accounts than this is
// rejected, and the caller must switch to waterfall mode instead.
const MaxAccountsForGlobalLP = 8000

// LPConfiguration is the full configuration surface from spec §6.3, passed as
// a single immutable bag. Unknown keys in a stored config payload are rejected
// by the postgres adapter's decoder rather than silently ignored; unknown
// priority_config items are rejected by the loader (ConfigError).
type LPConfiguration struct {
	OptimizationModel OptimizationModel
	PriorityConfig    []PriorityItem
	BalanceIntensity  BalanceIntensity

	CustomerTargetARR float64
	CustomerMaxARR    float64
	CustomerMinARR    float64
	ProspectTargetARR float64
	ProspectMaxARR    float64
	ProspectMinARR    float64

	ATRMin                  float64
	ATRMax                  float64
	ATRVariance             float64
	CapacityVariancePercent float64
	ProspectVariancePercent float64

	CustomerContinuityWeight     float64
	CustomerGeographyWeight      float64
	CustomerTeamAlignmentWeight  float64
	ProspectContinuityWeight     float64
	ProspectGeographyWeight      float64
	ProspectTeamAlignmentWeight  float64

	ARRBalanceEnabled      bool
	ATRBalanceEnabled      bool
	PipelineBalanceEnabled bool

	CapacityHardCapEnabled bool
	HardCapARR             float64

	CRERiskLocked            bool
	RenewalSoonLocked        bool
	RenewalSoonDays          int
	PEFirmLocked             bool
	RecentChangeLocked       bool
	RecentChangeDays         int
	BackfillMigrationEnabled bool

	Continuity ContinuityConfig
	Geography  GeoScoreConfig
	Team       TeamScoreConfig

	SolverTimeoutSeconds int
	FeasibilityPenalty   float64
	LogLevel             string

	TerritoryMappings map[string]string

	// SalesToolsPredicate is an optional JS boolean expression evaluated by
	// internal/assign/predicate for the sales_tools_bucket priority item. An
	// empty string selects the default `arr > 0 && arr < threshold`
	// predicate (see §4.9).
	SalesToolsPredicate      string
	SalesToolsThreshold      float64
	StabilityCustomPredicates []CustomPredicate
}

// CustomPredicate is one user-supplied stability-lock predicate, evaluated
// after the fixed six-step check_stability order.
type CustomPredicate struct {
	Name string
	JS   string
}

// DefaultWeights returns the fallback (continuity, geography, team) weights
// used when PriorityConfig is empty, per pass type.
func DefaultWeights(customerPass bool) (wC, wG, wT float64) {
	if customerPass {
		return 0.35, 0.35, 0.30
	}
	return 0.20, 0.45, 0.35
}

// PenaltyConstants are the default α/β/M/feasibility penalty bases, scaled
// by BalanceIntensity.Multiplier().
type PenaltyConstants struct {
	Alpha       float64
	Beta        float64
	M           float64
	Feasibility float64
}

// DefaultPenaltyConstants mirrors spec §4.5.2.
func DefaultPenaltyConstants() PenaltyConstants {
	return PenaltyConstants{Alpha: 0.01, Beta: 0.10, M: 100.0, Feasibility: 1000}
}

// MetricWeights are the per-pass balance-metric weights from spec §4.5.2.
type MetricWeights struct {
	ARR      float64
	ATR      float64
	Pipeline float64
	Tier     float64 // total across all 4 tiers; each tier gets Tier/4
}

// DefaultMetricWeights returns the customer or prospect metric weights.
func DefaultMetricWeights(customerPass bool) MetricWeights {
	if customerPass {
		return MetricWeights{ARR: 0.50, ATR: 0.25, Tier: 0.25}
	}
	return MetricWeights{Pipeline: 0.50, Tier: 0.50}
}
