// Package domain defines the combat data model shared by the engine, the
// scenario loaders and the analysis pipeline: creatures and their actions,
// buffs, live combatant state and the results a simulation produces.
package domain

import (
	"errors"
	"fmt"

	"github.com/louisbranch/skirmish/internal/combat/resource"
	"github.com/louisbranch/skirmish/internal/core/dice"
)

var (
	// ErrInvalidCreature indicates a creature definition that cannot be simulated.
	ErrInvalidCreature = errors.New("invalid creature")
	// ErrInvalidAction indicates an action whose payload does not match its kind.
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidTimeline indicates a malformed timeline step.
	ErrInvalidTimeline = errors.New("invalid timeline")
)

// Ability is one of the six ability scores used for saving throws.
type Ability string

const (
	Strength     Ability = "str"
	Dexterity    Ability = "dex"
	Constitution Ability = "con"
	Intelligence Ability = "int"
	Wisdom       Ability = "wis"
	Charisma     Ability = "cha"
)

// Team identifies a side of the fight.
type Team int

const (
	TeamPlayers Team = iota + 1
	TeamMonsters
)

func (t Team) String() string {
	switch t {
	case TeamPlayers:
		return "players"
	case TeamMonsters:
		return "monsters"
	default:
		return fmt.Sprintf("team(%d)", int(t))
	}
}

// ResourceDecl declares a resource pool a creature starts with.
type ResourceDecl struct {
	Kind  resource.Kind      `json:"kind"`
	Max   int                `json:"max"`
	Reset resource.ResetRule `json:"reset"`
}

// ResourceCost is an amount of a resource consumed on use.
type ResourceCost struct {
	Kind   resource.Kind `json:"kind"`
	Amount int           `json:"amount"`
}

// Creature is the static definition of a player character or monster.
type Creature struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	HP                  int             `json:"hp"`
	AC                  int             `json:"ac"`
	Saves               map[Ability]int `json:"saves,omitempty"`
	InitiativeBonus     int             `json:"initiative_bonus,omitempty"`
	InitiativeAdvantage bool            `json:"initiative_advantage,omitempty"`
	Actions             []Action        `json:"actions,omitempty"`
	Triggers            []Trigger       `json:"triggers,omitempty"`
	Resources           []ResourceDecl  `json:"resources,omitempty"`
	InnateBuffs         []Buff          `json:"innate_buffs,omitempty"`
	// Ward is an arcane shield that absorbs damage before temporary HP.
	Ward int `json:"ward,omitempty"`
	// HitDie is the formula rolled per hit die spent on a short rest.
	HitDie string `json:"hit_die,omitempty"`
	// Count instantiates several copies of a monster in one encounter.
	Count int `json:"count,omitempty" jsonschema:"minimum=0"`
}

// Copies returns how many combatants the definition produces.
func (c Creature) Copies() int {
	if c.Count < 1 {
		return 1
	}
	return c.Count
}

// Save returns the saving throw bonus for ability.
func (c Creature) Save(ability Ability) int {
	return c.Saves[ability]
}

// Validate checks the creature and every action and trigger it declares.
func (c Creature) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCreature)
	}
	if c.HP <= 0 {
		return fmt.Errorf("%w: %s: hp must be positive", ErrInvalidCreature, c.ID)
	}
	if c.Ward < 0 || c.Count < 0 {
		return fmt.Errorf("%w: %s: ward and count must not be negative", ErrInvalidCreature, c.ID)
	}
	if err := validFormula(c.HitDie); err != nil {
		return fmt.Errorf("%w: %s: hit die: %w", ErrInvalidCreature, c.ID, err)
	}
	seen := make(map[string]struct{}, len(c.Actions))
	for _, action := range c.Actions {
		if err := action.Validate(); err != nil {
			return fmt.Errorf("%s: %w", c.ID, err)
		}
		if _, dup := seen[action.ID]; dup {
			return fmt.Errorf("%w: %s: duplicate action %q", ErrInvalidAction, c.ID, action.ID)
		}
		seen[action.ID] = struct{}{}
	}
	for _, trigger := range c.Triggers {
		if err := trigger.Validate(); err != nil {
			return fmt.Errorf("%s: %w", c.ID, err)
		}
	}
	for _, buff := range c.InnateBuffs {
		if err := buff.Validate(); err != nil {
			return fmt.Errorf("%s: %w", c.ID, err)
		}
	}
	return nil
}

func validFormula(expr string) error {
	_, err := dice.Parse(expr)
	return err
}
