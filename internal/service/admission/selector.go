package admission

import (
	"sort"

	"github.com/adrianov/diskadmit/internal/domain"
)

// EvictionPlan is the ordered set of other transfers proposed for removal
// to cover a byte deficit. It lives for a single admission cycle.
type EvictionPlan struct {
	Candidates       []domain.Transfer
	TotalReclaimable uint64
	Deficit          uint64
}

// Sufficient reports whether removing every candidate covers the deficit.
func (p *EvictionPlan) Sufficient() bool {
	return p.TotalReclaimable >= p.Deficit
}

// CandidateIDs returns the candidate transfer ids in eviction order.
func (p *EvictionPlan) CandidateIDs() []string {
	ids := make([]string, len(p.Candidates))
	for i, c := range p.Candidates {
		ids[i] = c.ID
	}
	return ids
}

// SelectCandidates picks transfers to evict so the target can fit on its
// volume. Candidates are other transfers on the same volume and in the
// same group, taken least-recently-touched first; a transfer with no
// recorded activity counts as oldest, and equal timestamps order by id so
// the plan is stable across runs. Accumulation is greedy: over-evicting by
// one candidate is acceptable, under-evicting is not.
//
// A zero deficit short-circuits to an empty, sufficient plan.
func SelectCandidates(transfers []domain.Transfer, targetID string, vol domain.VolumeID, groupID int, deficit uint64) *EvictionPlan {
	plan := &EvictionPlan{Deficit: deficit}
	if deficit == 0 {
		return plan
	}

	var pool []domain.Transfer
	for _, t := range transfers {
		if t.ID == targetID || t.Volume != vol || t.GroupID != groupID {
			continue
		}
		pool = append(pool, t)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		ai, aj := pool[i].EffectiveActivity(), pool[j].EffectiveActivity()
		if ai.Equal(aj) {
			return pool[i].ID < pool[j].ID
		}
		return ai.Before(aj)
	})

	for _, t := range pool {
		plan.Candidates = append(plan.Candidates, t)
		plan.TotalReclaimable += t.SizeWhenDone
		if plan.TotalReclaimable >= deficit {
			break
		}
	}

	return plan
}
