package stability

import (
	"sort"

	"github.com/fieldcompass/territory-engine/internal/assign/domain"
)

// PreAssignResult is one strategic account's pre-assignment outcome.
type PreAssignResult struct {
	AccountID string
	RepID     string
	StaysWithOwner bool
}

// PreAssignStrategic distributes strategic accounts (is_strategic, or owned
// by a strategic rep) across strategic reps by ARR-balanced round robin:
// sort by ARR descending, assign each to the currently least-loaded
// strategic rep, per spec §4.4. Returns (results, poolEmpty) where
// poolEmpty is true when strategic accounts exist but no strategic reps
// do — the caller must then let those accounts fall through to regular
// optimization instead of using these (empty) results.
func PreAssignStrategic(accounts []domain.Account, strategicReps []domain.Rep) (results []PreAssignResult, poolEmpty bool) {
	var pool []domain.Account
	strategicRepSet := make(map[string]bool, len(strategicReps))
	for _, r := range strategicReps {
		strategicRepSet[r.RepID] = true
	}
	for _, a := range accounts {
		if a.IsStrategic || strategicRepSet[a.OwnerID] {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		return nil, false
	}
	if len(strategicReps) == 0 {
		return nil, true
	}

	sort.SliceStable(pool, func(i, j int) bool {
		arrI, arrJ := domain.AccountARR(pool[i]), domain.AccountARR(pool[j])
		if arrI != arrJ {
			return arrI > arrJ
		}
		return pool[i].AccountID < pool[j].AccountID
	})

	load := make(map[string]float64, len(strategicReps))
	for _, r := range strategicReps {
		load[r.RepID] = 0
	}

	results = make([]PreAssignResult, 0, len(pool))
	for _, a := range pool {
		target := leastLoaded(strategicReps, load)
		load[target] += domain.AccountARR(a)
		results = append(results, PreAssignResult{
			AccountID:      a.AccountID,
			RepID:          target,
			StaysWithOwner: a.OwnerID == target,
		})
	}
	return results, false
}

// leastLoaded returns the strategic rep id with the smallest current load,
// breaking ties by rep id for determinism.
func leastLoaded(reps []domain.Rep, load map[string]float64) string {
	best := reps[0].RepID
	bestLoad := load[best]
	for _, r := range reps[1:] {
		l := load[r.RepID]
		if l < bestLoad || (l == bestLoad && r.RepID < best) {
			best = r.RepID
			bestLoad = l
		}
	}
	return best
}

// Scores returns the fixed scoring triple recorded on a strategic
// pre-assignment Assignment per spec §4.4.
func (p PreAssignResult) Scores() domain.Scores {
	cont := 0.0
	if p.StaysWithOwner {
		cont = 1.0
	}
	team := 1.0
	return domain.Scores{Continuity: cont, Geography: 1.0, Team: &team, TieBreak: 0}
}
