package aggregate

import "github.com/louisbranch/skirmish/internal/combat/domain"

// CombattantSummary averages one combatant's stats over the runs that
// reached an encounter. Resources spent count only pools that outlast a
// turn.
type CombattantSummary struct {
	ID                    string      `json:"id"`
	Name                  string      `json:"name"`
	Team                  domain.Team `json:"team"`
	AverageDamageDealt    float64     `json:"average_damage_dealt"`
	AverageDamageTaken    float64     `json:"average_damage_taken"`
	AverageHealingDone    float64     `json:"average_healing_done"`
	AverageResourcesSpent float64     `json:"average_resources_spent"`
	DeathRate             float64     `json:"death_rate"`
}

// EncounterSummary averages one timeline encounter across runs.
type EncounterSummary struct {
	Index         int                 `json:"index"`
	Name          string              `json:"name"`
	Runs          int                 `json:"runs"`
	WinRate       float64             `json:"win_rate"`
	AverageRounds float64             `json:"average_rounds"`
	Combattants   []CombattantSummary `json:"combattants"`
}

type combattantTotals struct {
	summary CombattantSummary
	seen    int
	dealt   int
	taken   int
	healed  int
	spent   int
	deaths  int
}

// SummarizeEncounters averages each encounter over the results that
// reached it. Combatants are listed in the order they first appear.
func SummarizeEncounters(results []domain.SimulationResult) []EncounterSummary {
	var out []EncounterSummary
	for idx := 0; ; idx++ {
		s := EncounterSummary{Index: idx}
		won, rounds := 0, 0
		var order []string
		totals := map[string]*combattantTotals{}
		for _, r := range results {
			if idx >= len(r.Encounters) {
				continue
			}
			e := r.Encounters[idx]
			if s.Runs == 0 {
				s.Name = e.Name
			}
			s.Runs++
			rounds += e.Rounds
			if e.Outcome == domain.OutcomePlayersWin {
				won++
			}
			for _, c := range e.Combattants {
				t, ok := totals[c.ID]
				if !ok {
					t = &combattantTotals{summary: CombattantSummary{ID: c.ID, Name: c.Name, Team: c.Team}}
					totals[c.ID] = t
					order = append(order, c.ID)
				}
				stats := e.Stats[c.ID]
				t.seen++
				t.dealt += stats.DamageDealt
				t.taken += stats.DamageTaken
				t.healed += stats.HealingDone
				t.spent += max(0, c.FinalState.Resources.Spent()-c.InitialState.Resources.Spent())
				if c.InitialState.Alive() && !c.FinalState.Alive() {
					t.deaths++
				}
			}
		}
		if s.Runs == 0 {
			return out
		}

		s.WinRate = float64(won) / float64(s.Runs)
		s.AverageRounds = float64(rounds) / float64(s.Runs)
		for _, id := range order {
			t := totals[id]
			seen := float64(t.seen)
			t.summary.AverageDamageDealt = float64(t.dealt) / seen
			t.summary.AverageDamageTaken = float64(t.taken) / seen
			t.summary.AverageHealingDone = float64(t.healed) / seen
			t.summary.AverageResourcesSpent = float64(t.spent) / seen
			t.summary.DeathRate = float64(t.deaths) / seen
			s.Combattants = append(s.Combattants, t.summary)
		}
		out = append(out, s)
	}
}
