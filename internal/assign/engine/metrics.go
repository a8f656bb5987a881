package engine

import (
	"math"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
	assignerrors "github.com/fieldcompass/territory-engine/internal/assign/errors"
	"github.com/fieldcompass/territory-engine/internal/assign/loader"
)

// computeQualityMetrics reduces one build's combined assignment set to the
// property-bound figures of spec §8, recomputed from the final assignments
// rather than carried over from any single pass's solver run, so cascaded
// child assignments and locked/pre-assigned accounts are represented too.
func computeQualityMetrics(assignments []domain.Assignment, data *loader.LoadedBuildData) QualityMetrics {
	resolver := domain.NewTerritoryResolver(data.Config.TerritoryMappings)
	repByID := make(map[string]domain.Rep, len(data.Reps))
	for _, r := range data.Reps {
		repByID[r.RepID] = r
	}

	var (
		n                                                        int
		continuityMatches                                        int
		geoExact, geoSibling, geoCross                           int
		tierExact, tierOneLevel                                  int
		arrByRep, atrByRep, pipelineByRep                        = map[string]float64{}, map[string]float64{}, map[string]float64{}
	)

	for _, asg := range assignments {
		acc, ok := data.Accounts[asg.AccountID]
		if !ok || asg.CascadedFromParent != "" {
			// Children inherit the parent's pair, not an independent one;
			// they still count toward rep load but not toward match rates.
			if ok {
				arrByRep[asg.RepID] += domain.AccountARR(*acc)
				atrByRep[asg.RepID] += domain.AccountATR(*acc)
				pipelineByRep[asg.RepID] += acc.PipelineValue
			}
			continue
		}
		n++
		arrByRep[asg.RepID] += domain.AccountARR(*acc)
		atrByRep[asg.RepID] += domain.AccountATR(*acc)
		pipelineByRep[asg.RepID] += acc.PipelineValue

		if acc.OwnerID != "" && acc.OwnerID == asg.RepID {
			continuityMatches++
		}

		if r, ok := repByID[asg.RepID]; ok {
			accRegion := resolver.Resolve(firstNonEmpty(acc.SalesTerritory, acc.Geo))
			repRegion := resolver.Resolve(r.Region)
			switch domain.ClassifyGeoMatch(accRegion, repRegion) {
			case domain.GeoExact:
				geoExact++
			case domain.GeoSiblingSubRegion:
				geoSibling++
			case domain.GeoCrossMacroRegion:
				geoCross++
			}

			accOrd, accOK := acc.Computed.Tier.Ordinal()
			repOrd, repOK := r.TeamTier.Ordinal()
			if accOK && repOK {
				dist := accOrd - repOrd
				if dist < 0 {
					dist = -dist
				}
				if dist == 0 {
					tierExact++
				} else if dist == 1 {
					tierOneLevel++
				}
			}
		}
	}

	m := QualityMetrics{
		ARRVariancePercent:      coefficientOfVariation(arrByRep),
		ATRVariancePercent:      coefficientOfVariation(atrByRep),
		PipelineVariancePercent: coefficientOfVariation(pipelineByRep),
	}
	if n > 0 {
		m.ContinuityRate = float64(continuityMatches) / float64(n)
		m.GeoExactMatchRate = float64(geoExact) / float64(n)
		m.GeoSiblingMatchRate = float64(geoSibling) / float64(n)
		m.CrossRegionRate = float64(geoCross) / float64(n)
		m.TierExactMatchRate = float64(tierExact) / float64(n)
		m.TierOneLevelRate = float64(tierOneLevel) / float64(n)
	}

	if data.Config.CapacityHardCapEnabled {
		for repID, arr := range arrByRep {
			if arr > data.Config.HardCapARR {
				m.RepsOverCapacity++
				overflow := arr - data.Config.HardCapARR
				m.FeasibilitySlackTotal += overflow
				data.Warnings.Add("%s: rep %s over hard cap by %.2f (arr=%.2f, cap=%.2f)",
					assignerrors.CapacityOverflow, repID, overflow, arr, data.Config.HardCapARR)
			}
		}
	}

	return m
}

// coefficientOfVariation returns stddev/mean across a rep load map, 0 when
// fewer than two reps carry load or the mean is zero.
func coefficientOfVariation(byRep map[string]float64) float64 {
	if len(byRep) < 2 {
		return 0
	}
	var sum float64
	for _, v := range byRep {
		sum += v
	}
	mean := sum / float64(len(byRep))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, v := range byRep {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(byRep))
	return math.Sqrt(variance) / mean
}
