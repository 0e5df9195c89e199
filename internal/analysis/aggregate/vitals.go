package aggregate

import (
	"math"

	"github.com/louisbranch/skirmish/internal/combat/domain"
)

// MaxDoomHorizon caps how many repeated timelines the doom horizon counts.
const MaxDoomHorizon = 20

// Archetype labels, from most to least dangerous.
const (
	ArchetypeLosingBattle = "Losing Battle"
	ArchetypeTPKRisk      = "TPK Risk"
	ArchetypeLethal       = "Lethal"
	ArchetypeSwingy       = "Swingy"
	ArchetypeGrueling     = "Grueling"
	ArchetypeChallenging  = "Challenging"
	ArchetypeStandard     = "Standard"
	ArchetypeTrivial      = "Trivial"
)

// Vitals are the risk metrics derived from a batch.
type Vitals struct {
	// Lethality is the share of runs in which at least one player died.
	Lethality float64 `json:"lethality"`
	// TPKProbability is the share of runs with no surviving player.
	TPKProbability float64 `json:"tpk_probability"`
	// Attrition is the median HP lost percentage.
	Attrition float64 `json:"attrition"`
	// Volatility is how much more HP the worst decile loses than the
	// fifth.
	Volatility float64 `json:"volatility"`
	// DoomHorizon is how many back-to-back repeats of the timeline the
	// median party is expected to survive.
	DoomHorizon    int     `json:"doom_horizon"`
	ResourcePacing float64 `json:"resource_pacing"`
	Archetype      string  `json:"archetype"`
}

func computeVitals(sorted []domain.LightweightRun, deciles []Bucket, meta Meta, winRate float64) Vitals {
	n := float64(len(sorted))
	deaths, wipes := 0, 0
	hpLost := make([]float64, len(sorted))
	for i, r := range sorted {
		if r.HasDeath {
			deaths++
		}
		if r.Survivors == 0 {
			wipes++
		}
		hpLost[i] = r.HPLostPercent
	}

	v := Vitals{
		Lethality:      float64(deaths) / n,
		TPKProbability: float64(wipes) / n,
		Attrition:      median(hpLost),
	}
	if len(deciles) >= 5 && deciles[0].Count > 0 && deciles[4].Count > 0 {
		v.Volatility = math.Max(0, deciles[0].HPLostPercent-deciles[4].HPLostPercent)
	}
	v.DoomHorizon = doomHorizon(v.Attrition, v.TPKProbability)
	v.ResourcePacing = v.Attrition / float64(meta.ShortRests+1)
	v.Archetype = Classify(v, winRate)
	return v
}

func doomHorizon(attrition, tpk float64) int {
	if tpk >= 0.5 {
		return 0
	}
	if attrition <= 0 {
		return MaxDoomHorizon
	}
	return min(MaxDoomHorizon, int(math.Floor(100/attrition)))
}

// Classify labels a batch by the first threshold it crosses.
func Classify(v Vitals, winRate float64) string {
	switch {
	case winRate < 0.5:
		return ArchetypeLosingBattle
	case v.TPKProbability >= 0.10:
		return ArchetypeTPKRisk
	case v.Lethality >= 0.30:
		return ArchetypeLethal
	case v.Volatility >= 40:
		return ArchetypeSwingy
	case v.Attrition >= 60:
		return ArchetypeGrueling
	case v.Attrition >= 30:
		return ArchetypeChallenging
	case v.Attrition >= 10:
		return ArchetypeStandard
	default:
		return ArchetypeTrivial
	}
}
