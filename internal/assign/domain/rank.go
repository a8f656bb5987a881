package domain

import "sort"

// AssignRankBonus sorts accounts by ARR descending (ties broken by
// account_id for determinism) and writes Computed.Rank / Computed.RankBonus
// in place: rank_bonus(a) = 1 - rank(a)/|A|.
func AssignRankBonus(accounts []*Account) {
	n := len(accounts)
	if n == 0 {
		return
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		ai, aj := accounts[order[i]], accounts[order[j]]
		arrI, arrJ := AccountARR(*ai), AccountARR(*aj)
		if arrI != arrJ {
			return arrI > arrJ
		}
		return ai.AccountID < aj.AccountID
	})
	for rank, idx := range order {
		accounts[idx].Computed.Rank = rank
		accounts[idx].Computed.RankBonus = 1 - float64(rank)/float64(n)
	}
}
