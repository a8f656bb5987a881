package domain

import "strings"

// Scale selects which of the two discrepant geography-score scales (§9 open
// question 1) a caller wants. Analytics and LP scales are both kept as named
// constants rather than unified, so the discrepancy recorded in the source
// stays explicit.
type Scale int

const (
	ScaleAnalytics Scale = iota
	ScaleLP
)

// GeoMatch classifies the relationship between an account's and a rep's
// resolved region.
type GeoMatch int

const (
	GeoExact GeoMatch = iota
	GeoSiblingSubRegion
	GeoSameMacroRegion
	GeoGlobalFallback
	GeoCrossMacroRegion
	GeoUnknown
)

// Region is a resolved three-level geography: macro region, sub-region, and
// the original territory string it was derived from.
type Region struct {
	Macro      string
	Sub        string
	Territory  string
	Unmapped   bool
}

// GeoScoreConfig carries the configurable geography constants from
// LPConfiguration's `geography` group. The analytics/LP sibling and parent
// scores differ per the unresolved-in-source discrepancy; both are kept.
type GeoScoreConfig struct {
	ExactMatchScore       float64
	SiblingScoreAnalytics float64
	SiblingScoreLP        float64
	ParentScoreAnalytics  float64
	ParentScoreLP         float64
	GlobalScore           float64
	CrossRegionScore      float64
	UnknownTerritoryScore float64
}

// DefaultGeoScoreConfig mirrors spec §4.1's geography score table.
func DefaultGeoScoreConfig() GeoScoreConfig {
	return GeoScoreConfig{
		ExactMatchScore:       1.00,
		SiblingScoreAnalytics: 0.85,
		SiblingScoreLP:        0.65,
		ParentScoreAnalytics:  0.65,
		ParentScoreLP:         0.40,
		GlobalScore:           0.40,
		CrossRegionScore:      0.20,
		UnknownTerritoryScore: 0.50,
	}
}

// ClassifyGeoMatch compares two resolved regions.
func ClassifyGeoMatch(account, rep Region) GeoMatch {
	if account.Unmapped || rep.Unmapped {
		return GeoUnknown
	}
	if account.Territory != "" && account.Territory == rep.Territory {
		return GeoExact
	}
	if account.Sub != "" && account.Sub == rep.Sub {
		return GeoSiblingSubRegion
	}
	if account.Macro != "" && account.Macro == rep.Macro {
		return GeoSameMacroRegion
	}
	if account.Macro == "GLOBAL" || rep.Macro == "GLOBAL" {
		return GeoGlobalFallback
	}
	return GeoCrossMacroRegion
}

// GeoScore returns the score for a match classification at the requested
// scale.
func GeoScore(match GeoMatch, scale Scale, cfg GeoScoreConfig) float64 {
	switch match {
	case GeoExact:
		return cfg.ExactMatchScore
	case GeoSiblingSubRegion:
		if scale == ScaleLP {
			return cfg.SiblingScoreLP
		}
		return cfg.SiblingScoreAnalytics
	case GeoSameMacroRegion:
		if scale == ScaleLP {
			return cfg.ParentScoreLP
		}
		return cfg.ParentScoreAnalytics
	case GeoGlobalFallback:
		return cfg.GlobalScore
	case GeoCrossMacroRegion:
		return cfg.CrossRegionScore
	default:
		return cfg.UnknownTerritoryScore
	}
}

// TerritoryResolver resolves a raw territory string into a Region. It first
// consults an explicit mapping (LPConfiguration.misc.territory_mappings),
// then falls back to keyword/state/city pattern matching, then "UNMAPPED".
type TerritoryResolver struct {
	explicit map[string]Region
	keywords []keywordRule
}

type keywordRule struct {
	contains string
	region   Region
}

// NewTerritoryResolver builds a resolver from an explicit territory→region
// mapping plus the engine's built-in keyword table.
func NewTerritoryResolver(explicit map[string]string) *TerritoryResolver {
	r := &TerritoryResolver{explicit: make(map[string]Region, len(explicit))}
	for territory, region := range explicit {
		r.explicit[normalizeKey(territory)] = parseRegionString(region)
	}
	r.keywords = defaultKeywordRules()
	return r
}

func (r *TerritoryResolver) Resolve(territory string) Region {
	key := normalizeKey(territory)
	if key == "" {
		return Region{Unmapped: true}
	}
	if region, ok := r.explicit[key]; ok {
		region.Territory = key
		return region
	}
	for _, rule := range r.keywords {
		if strings.Contains(key, rule.contains) {
			region := rule.region
			region.Territory = key
			return region
		}
	}
	return Region{Territory: key, Unmapped: true}
}

func normalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// parseRegionString accepts "MACRO/SUB" or a bare macro region.
func parseRegionString(s string) Region {
	s = normalizeKey(s)
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return Region{Macro: parts[0], Sub: parts[1]}
	}
	return Region{Macro: s, Sub: s}
}

// defaultKeywordRules provides a small built-in territory→region keyword
// table covering the common NA/EMEA/APAC patterns; explicit mappings always
// take precedence over this fallback.
func defaultKeywordRules() []keywordRule {
	return []keywordRule{
		{contains: "CALIFORNIA", region: Region{Macro: "AMER", Sub: "AMER-WEST"}},
		{contains: "PACIFIC", region: Region{Macro: "AMER", Sub: "AMER-WEST"}},
		{contains: "WEST", region: Region{Macro: "AMER", Sub: "AMER-WEST"}},
		{contains: "NEW YORK", region: Region{Macro: "AMER", Sub: "AMER-EAST"}},
		{contains: "EAST", region: Region{Macro: "AMER", Sub: "AMER-EAST"}},
		{contains: "CENTRAL", region: Region{Macro: "AMER", Sub: "AMER-CENTRAL"}},
		{contains: "CANADA", region: Region{Macro: "AMER", Sub: "AMER-NORTH"}},
		{contains: "UK", region: Region{Macro: "EMEA", Sub: "EMEA-NORTH"}},
		{contains: "GERMANY", region: Region{Macro: "EMEA", Sub: "EMEA-CENTRAL"}},
		{contains: "FRANCE", region: Region{Macro: "EMEA", Sub: "EMEA-CENTRAL"}},
		{contains: "EMEA", region: Region{Macro: "EMEA", Sub: "EMEA-CENTRAL"}},
		{contains: "AUSTRALIA", region: Region{Macro: "APAC", Sub: "APAC-SOUTH"}},
		{contains: "JAPAN", region: Region{Macro: "APAC", Sub: "APAC-NORTH"}},
		{contains: "SINGAPORE", region: Region{Macro: "APAC", Sub: "APAC-SOUTH"}},
		{contains: "APAC", region: Region{Macro: "APAC", Sub: "APAC-SOUTH"}},
		{contains: "GLOBAL", region: Region{Macro: "GLOBAL", Sub: "GLOBAL"}},
	}
}
