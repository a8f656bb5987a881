package domain

import "strings"

// regionAliases and peFirmAliases are small built-in alias tables,
// initialized once per process and immutable thereafter (no singletons, no
// mutation after init — see spec §9 "Global mutable state").
var regionAliases = map[string]string{
	"US":     "UNITED STATES",
	"U.S.":   "UNITED STATES",
	"USA":    "UNITED STATES",
	"UK":     "UNITED KINGDOM",
	"U.K.":   "UNITED KINGDOM",
	"EMEA":   "EMEA",
	"AMER":   "AMER",
	"AMERICAS": "AMER",
	"APAC":   "APAC",
	"APJ":    "APAC",
}

var teamTierAliases = map[string]TeamTier{
	"SMB":        TierSMB,
	"SMALL":      TierSMB,
	"GROWTH":     TierGrowth,
	"MID-MARKET": TierMM,
	"MIDMARKET":  TierMM,
	"MM":         TierMM,
	"ENTERPRISE": TierENT,
	"ENT":        TierENT,
}

// NormalizeRegion maps a raw region string to its canonical alias. It is
// idempotent: NormalizeRegion(NormalizeRegion(x)) == NormalizeRegion(x).
// Blank input normalizes to "UNMAPPED"; non-blank input that is not a known
// alias is returned trimmed and upper-cased, not mapped to "UNMAPPED".
func NormalizeRegion(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if key == "" {
		return "UNMAPPED"
	}
	if canonical, ok := regionAliases[key]; ok {
		return canonical
	}
	// Already-canonical values (including values this function itself
	// produced) round-trip unchanged.
	for _, canonical := range regionAliases {
		if key == canonical {
			return canonical
		}
	}
	return key
}

// NormalizeTeamTier maps a raw team-tier string to the closed TeamTier enum.
// Unknown input normalizes to TierUnknown.
func NormalizeTeamTier(raw string) TeamTier {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if key == "" {
		return TierUnknown
	}
	if tier, ok := teamTierAliases[key]; ok {
		return tier
	}
	return TierUnknown
}

// peFirmAliases normalizes common PE firm name variants to a canonical form
// so stability-lock matching on `pe_firm != nil` is alias-stable.
var peFirmAliases = map[string]string{
	"VISTA":         "VISTA EQUITY PARTNERS",
	"VISTA EQUITY":  "VISTA EQUITY PARTNERS",
	"THOMA BRAVO":   "THOMA BRAVO",
	"TB":            "THOMA BRAVO",
	"SILVER LAKE":   "SILVER LAKE PARTNERS",
}

// NormalizePEFirm maps a raw PE firm string to a canonical name, or returns
// "" when the input is blank (meaning "no PE firm"), never "UNMAPPED" — an
// unrecognized but non-blank name is kept verbatim since stability locking
// only cares whether the field is non-null.
func NormalizePEFirm(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	if canonical, ok := peFirmAliases[key]; ok {
		return canonical
	}
	return key
}
