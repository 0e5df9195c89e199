package domain

import (
	"fmt"
)

// StepKind tags a timeline step.
type StepKind string

const (
	StepEncounter StepKind = "encounter"
	StepShortRest StepKind = "short_rest"
	StepLongRest  StepKind = "long_rest"
)

// DefaultMaxRounds ends an encounter as a stalemate when neither side falls.
const DefaultMaxRounds = 50

// Encounter is one fight against a fresh group of monsters.
type Encounter struct {
	Name     string     `json:"name"`
	Monsters []Creature `json:"monsters"`
	// Surprised sides skip their turns in round one.
	PlayersSurprised  bool `json:"players_surprised,omitempty"`
	MonstersSurprised bool `json:"monsters_surprised,omitempty"`
	// PreCast sides use their pre-cast buffs before initiative is rolled.
	PlayersPreCast  bool `json:"players_pre_cast,omitempty"`
	MonstersPreCast bool `json:"monsters_pre_cast,omitempty"`
	MaxRounds       int  `json:"max_rounds,omitempty"`
}

// RoundLimit returns MaxRounds or the default.
func (e Encounter) RoundLimit() int {
	if e.MaxRounds < 1 {
		return DefaultMaxRounds
	}
	return e.MaxRounds
}

// Surprised reports whether team skips round one.
func (e Encounter) Surprised(team Team) bool {
	if team == TeamPlayers {
		return e.PlayersSurprised
	}
	return e.MonstersSurprised
}

// PreCast reports whether team pre-casts buffs.
func (e Encounter) PreCast(team Team) bool {
	if team == TeamPlayers {
		return e.PlayersPreCast
	}
	return e.MonstersPreCast
}

// TimelineStep is an encounter or a rest.
type TimelineStep struct {
	Kind      StepKind   `json:"kind" jsonschema:"enum=encounter,enum=short_rest,enum=long_rest"`
	Encounter *Encounter `json:"encounter,omitempty"`
}

// Scenario is a party and the adventuring day it faces.
type Scenario struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Players     []Creature     `json:"players"`
	Timeline    []TimelineStep `json:"timeline"`
}

// PartySize counts player combatants.
func (s Scenario) PartySize() int {
	n := 0
	for _, p := range s.Players {
		n += p.Copies()
	}
	return n
}

// EncounterCount counts encounter steps.
func (s Scenario) EncounterCount() int {
	return s.countSteps(StepEncounter)
}

// ShortRestCount counts short rest steps.
func (s Scenario) ShortRestCount() int {
	return s.countSteps(StepShortRest)
}

func (s Scenario) countSteps(kind StepKind) int {
	n := 0
	for _, step := range s.Timeline {
		if step.Kind == kind {
			n++
		}
	}
	return n
}

// Validate checks every creature and timeline step.
func (s Scenario) Validate() error {
	if len(s.Players) == 0 {
		return fmt.Errorf("%w: scenario has no players", ErrInvalidCreature)
	}
	for _, p := range s.Players {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("player: %w", err)
		}
	}
	for i, step := range s.Timeline {
		switch step.Kind {
		case StepEncounter:
			if step.Encounter == nil || len(step.Encounter.Monsters) == 0 {
				return fmt.Errorf("%w: step %d: encounter has no monsters", ErrInvalidTimeline, i)
			}
			for _, m := range step.Encounter.Monsters {
				if err := m.Validate(); err != nil {
					return fmt.Errorf("step %d: monster: %w", i, err)
				}
			}
		case StepShortRest, StepLongRest:
		default:
			return fmt.Errorf("%w: step %d: unknown kind %q", ErrInvalidTimeline, i, step.Kind)
		}
	}
	return nil
}
