package domain

// Outcome is how an encounter ended.
type Outcome string

const (
	OutcomePlayersWin  Outcome = "players_win"
	OutcomeMonstersWin Outcome = "monsters_win"
	OutcomeStalemate   Outcome = "stalemate"
)

// EncounterStats tallies what one combatant did during an encounter.
type EncounterStats struct {
	DamageDealt     int `json:"damage_dealt"`
	DamageTaken     int `json:"damage_taken"`
	HealingDone     int `json:"healing_done"`
	HealingReceived int `json:"healing_received"`
	AttacksHit      int `json:"attacks_hit"`
	AttacksMissed   int `json:"attacks_missed"`
	CriticalHits    int `json:"critical_hits"`
	Kills           int `json:"kills"`
	ActionsUsed     int `json:"actions_used"`
	ReactionsUsed   int `json:"reactions_used"`
}

// EncounterResult is the outcome of one encounter.
type EncounterResult struct {
	Index       int                       `json:"index"`
	Name        string                    `json:"name"`
	Outcome     Outcome                   `json:"outcome"`
	Rounds      int                       `json:"rounds"`
	Combattants []Combattant              `json:"combattants"`
	Snapshots   []RoundSnapshot           `json:"snapshots,omitempty"`
	Stats       map[string]EncounterStats `json:"stats"`
	Score       float64                   `json:"score"`
}

// Players returns the player combatants.
func (e EncounterResult) Players() []Combattant {
	return e.team(TeamPlayers)
}

// Monsters returns the monster combatants.
func (e EncounterResult) Monsters() []Combattant {
	return e.team(TeamMonsters)
}

func (e EncounterResult) team(team Team) []Combattant {
	var out []Combattant
	for _, c := range e.Combattants {
		if c.Team == team {
			out = append(out, c)
		}
	}
	return out
}

// PlayerDied reports whether a player alive at the start fell during the encounter.
func (e EncounterResult) PlayerDied() bool {
	for _, c := range e.Players() {
		if c.InitialState.Alive() && !c.FinalState.Alive() {
			return true
		}
	}
	return false
}

// Score values a set of combatants: ten times the players' remaining HP
// minus the monsters' remaining HP.
func Score(combattants []Combattant) float64 {
	score := 0
	for _, c := range combattants {
		switch c.Team {
		case TeamPlayers:
			score += 10 * c.FinalState.HP
		case TeamMonsters:
			score -= c.FinalState.HP
		}
	}
	return float64(score)
}

// SimulationResult is the outcome of one full timeline run.
type SimulationResult struct {
	Seed       int64             `json:"seed"`
	Encounters []EncounterResult `json:"encounters"`
	Score      float64           `json:"score"`
	// Players holds the party's state after the last timeline step.
	Players []Combattant `json:"players"`
}

// Won reports whether the party is alive and the last encounter's monsters are not.
func (r SimulationResult) Won() bool {
	if len(r.Encounters) == 0 {
		return r.Survivors() > 0
	}
	last := r.Encounters[len(r.Encounters)-1]
	return aliveCount(last.Players()) > 0 && aliveCount(last.Monsters()) == 0
}

// Survivors counts living players at the end of the run.
func (r SimulationResult) Survivors() int {
	return aliveCount(r.Players)
}

// HPLostPercent is the share of the party's maximum HP missing at the end.
func (r SimulationResult) HPLostPercent() float64 {
	maxHP, hp := 0, 0
	for _, p := range r.Players {
		maxHP += p.FinalState.MaxHP
		hp += p.FinalState.HP
	}
	if maxHP == 0 {
		return 0
	}
	return 100 * float64(maxHP-hp) / float64(maxHP)
}

// TotalRounds sums rounds fought across encounters.
func (r SimulationResult) TotalRounds() int {
	n := 0
	for _, e := range r.Encounters {
		n += e.Rounds
	}
	return n
}

// FirstDeathEncounter returns the index of the first encounter in which a
// player fell, or -1.
func (r SimulationResult) FirstDeathEncounter() int {
	for i, e := range r.Encounters {
		if e.PlayerDied() {
			return i
		}
	}
	return -1
}

// Lightweight reduces the result to the fields the survey pass keeps.
func (r SimulationResult) Lightweight() LightweightRun {
	scores := make([]float64, len(r.Encounters))
	for i, e := range r.Encounters {
		scores[i] = e.Score
	}
	first := r.FirstDeathEncounter()
	return LightweightRun{
		Seed:                r.Seed,
		Score:               r.Score,
		EncounterScores:     scores,
		Survivors:           r.Survivors(),
		HasDeath:            first >= 0,
		FirstDeathEncounter: first,
		Won:                 r.Won(),
		HPLostPercent:       r.HPLostPercent(),
		Rounds:              r.TotalRounds(),
	}
}

func aliveCount(cs []Combattant) int {
	n := 0
	for _, c := range cs {
		if c.FinalState.Alive() {
			n++
		}
	}
	return n
}

// LightweightRun is the bounded-size summary of a run kept by the survey pass.
type LightweightRun struct {
	Seed                int64     `json:"seed"`
	Score               float64   `json:"score"`
	EncounterScores     []float64 `json:"encounter_scores"`
	Survivors           int       `json:"survivors"`
	HasDeath            bool      `json:"has_death"`
	FirstDeathEncounter int       `json:"first_death_encounter"`
	Won                 bool      `json:"won"`
	HPLostPercent       float64   `json:"hp_lost_percent"`
	Rounds              int       `json:"rounds"`
}

// Clone returns a copy that shares no slices with r.
func (r LightweightRun) Clone() LightweightRun {
	r.EncounterScores = append([]float64(nil), r.EncounterScores...)
	return r
}
