package sampler

import (
	"fmt"
	"sort"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/engine"
)

// Tier is how much detail a replay records.
type Tier string

const (
	// TierNone keeps only the result.
	TierNone Tier = "none"
	// TierLean keeps the event log.
	TierLean Tier = "lean"
	// TierFull keeps the event log and per-round snapshots.
	TierFull Tier = "full"
)

func (t Tier) rank() int {
	switch t {
	case TierFull:
		return 2
	case TierLean:
		return 1
	default:
		return 0
	}
}

func (t Tier) options(seed int64) engine.Options {
	return engine.Options{
		Seed:      seed,
		Logging:   t.rank() >= TierLean.rank(),
		Snapshots: t == TierFull,
	}
}

// PercentileBuckets is the number of score buckets a survey is cut into.
const PercentileBuckets = 100

// DecilePercentiles are the percentiles replayed at full detail.
var DecilePercentiles = []int{5, 15, 25, 35, 45, 50, 55, 65, 75, 85, 95}

// Selection is a seed chosen for replay and why.
type Selection struct {
	Seed    int64    `json:"seed"`
	Tier    Tier     `json:"tier"`
	Reasons []string `json:"reasons"`
}

// SelectSeeds picks the interesting runs of a survey: the median run of
// every percentile bucket, the decile markers, each encounter's worst,
// median and best run and every run in which a player died. A seed picked
// for several reasons is replayed once at the highest tier requested.
// Selections are returned in seed order.
func SelectSeeds(runs []domain.LightweightRun, encounters int) []Selection {
	n := len(runs)
	if n == 0 {
		return nil
	}
	picks := make(map[int64]*Selection)
	add := func(run domain.LightweightRun, tier Tier, reason string) {
		sel, ok := picks[run.Seed]
		if !ok {
			picks[run.Seed] = &Selection{Seed: run.Seed, Tier: tier, Reasons: []string{reason}}
			return
		}
		if tier.rank() > sel.Tier.rank() {
			sel.Tier = tier
		}
		sel.Reasons = append(sel.Reasons, reason)
	}

	sorted := sortedByScore(runs, func(r domain.LightweightRun) float64 { return r.Score })
	for b := range PercentileBuckets {
		lo, hi := b*n/PercentileBuckets, (b+1)*n/PercentileBuckets
		if lo >= hi {
			continue
		}
		add(sorted[lo+(hi-lo-1)/2], TierLean, fmt.Sprintf("bucket p%02d", b))
	}
	for _, p := range DecilePercentiles {
		add(sorted[min(n-1, p*n/100)], TierFull, fmt.Sprintf("decile p%d", p))
	}

	for e := range encounters {
		var reached []domain.LightweightRun
		for _, r := range runs {
			if len(r.EncounterScores) > e {
				reached = append(reached, r)
			}
		}
		if len(reached) == 0 {
			continue
		}
		byEncounter := sortedByScore(reached, func(r domain.LightweightRun) float64 { return r.EncounterScores[e] })
		last := len(byEncounter) - 1
		add(byEncounter[0], TierNone, fmt.Sprintf("encounter %d p0", e))
		add(byEncounter[last/2], TierNone, fmt.Sprintf("encounter %d p50", e))
		add(byEncounter[last], TierNone, fmt.Sprintf("encounter %d p100", e))
	}

	for _, r := range runs {
		if r.HasDeath {
			add(r, TierLean, "death")
		}
	}

	out := make([]Selection, 0, len(picks))
	for _, sel := range picks {
		out = append(out, *sel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })
	return out
}

// sortedByScore returns a copy of runs ordered by key, ties broken by seed.
func sortedByScore(runs []domain.LightweightRun, key func(domain.LightweightRun) float64) []domain.LightweightRun {
	sorted := append([]domain.LightweightRun(nil), runs...)
	sort.Slice(sorted, func(i, j int) bool {
		ki, kj := key(sorted[i]), key(sorted[j])
		if ki != kj {
			return ki < kj
		}
		return sorted[i].Seed < sorted[j].Seed
	})
	return sorted
}
