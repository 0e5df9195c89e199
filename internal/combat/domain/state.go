package domain

import (
	"sort"

	"github.com/louisbranch/skirmish/internal/combat/resource"
)

// CreatureState is the mutable part of a combatant.
type CreatureState struct {
	HP      int             `json:"hp"`
	MaxHP   int             `json:"max_hp"`
	TempHP  int             `json:"temp_hp,omitempty"`
	Ward    int             `json:"ward,omitempty"`
	WardMax int             `json:"ward_max,omitempty"`
	Buffs   map[string]Buff `json:"buffs,omitempty"`
	// Concentration is the id of the buff the creature is concentrating on.
	Concentration string          `json:"concentration,omitempty"`
	Resources     resource.Ledger `json:"resources"`
}

// NewState builds the fresh state of a creature: full HP, a full ward,
// one action, bonus action and reaction per turn, declared resources and
// innate buffs.
func NewState(c Creature) CreatureState {
	s := CreatureState{
		HP:      c.HP,
		MaxHP:   c.HP,
		Ward:    c.Ward,
		WardMax: c.Ward,
	}
	s.Resources.Register(resource.Action, 1, resource.ResetTurn)
	s.Resources.Register(resource.BonusAction, 1, resource.ResetTurn)
	s.Resources.Register(resource.Reaction, 1, resource.ResetTurn)
	if c.HitDie != "" {
		s.Resources.Register(resource.HitDice, 1, resource.ResetLongRest)
	}
	for _, decl := range c.Resources {
		s.Resources.Register(decl.Kind, decl.Max, decl.Reset)
	}
	for _, buff := range c.InnateBuffs {
		buff.Source = ""
		buff.Remaining = buff.Rounds
		s.AddBuff(buff)
	}
	return s
}

// Alive reports whether the creature still has hit points.
func (s CreatureState) Alive() bool { return s.HP > 0 }

// Clone returns a deep copy.
func (s CreatureState) Clone() CreatureState {
	out := s
	if s.Buffs != nil {
		out.Buffs = make(map[string]Buff, len(s.Buffs))
		for id, buff := range s.Buffs {
			out.Buffs[id] = buff
		}
	}
	out.Resources = s.Resources.Clone()
	return out
}

// AddBuff attaches a buff, replacing any buff with the same id.
func (s *CreatureState) AddBuff(b Buff) {
	if s.Buffs == nil {
		s.Buffs = make(map[string]Buff)
	}
	s.Buffs[b.ID] = b
}

// HasBuff reports whether a buff with id is attached.
func (s CreatureState) HasBuff(id string) bool {
	_, ok := s.Buffs[id]
	return ok
}

// SortedBuffs returns attached buffs ordered by id.
func (s CreatureState) SortedBuffs() []Buff {
	buffs := make([]Buff, 0, len(s.Buffs))
	for _, buff := range s.Buffs {
		buffs = append(buffs, buff)
	}
	sort.Slice(buffs, func(i, j int) bool { return buffs[i].ID < buffs[j].ID })
	return buffs
}

// DiceBonus is a rolled modifier contributed by a named buff.
type DiceBonus struct {
	Name    string
	Formula string
}

// Modifiers is the sum of every attached buff.
type Modifiers struct {
	ToHit      int
	AC         int
	Damage     int
	DC         int
	Save       int
	ToHitDice  []DiceBonus
	DamageDice []DiceBonus
	SaveDice   []DiceBonus

	// Advantage counts are netted against each other by the caller.
	AttackAdvantage          int
	AttackDisadvantage       int
	AttackedWithAdvantage    int
	AttackedWithDisadvantage int

	Resistant     bool
	Incapacitated bool
}

// Modifiers aggregates the attached buffs in id order.
func (s CreatureState) Modifiers() Modifiers {
	var m Modifiers
	for _, b := range s.SortedBuffs() {
		m.ToHit += b.ToHit
		m.AC += b.AC
		m.Damage += b.Damage
		m.DC += b.DC
		m.Save += b.Save
		if b.ToHitDice != "" {
			m.ToHitDice = append(m.ToHitDice, DiceBonus{Name: b.DisplayName(), Formula: b.ToHitDice})
		}
		if b.DamageDice != "" {
			m.DamageDice = append(m.DamageDice, DiceBonus{Name: b.DisplayName(), Formula: b.DamageDice})
		}
		if b.SaveDice != "" {
			m.SaveDice = append(m.SaveDice, DiceBonus{Name: b.DisplayName(), Formula: b.SaveDice})
		}
		m.AttackAdvantage += boolInt(b.AttackAdvantage)
		m.AttackDisadvantage += boolInt(b.AttackDisadvantage)
		m.AttackedWithAdvantage += boolInt(b.AttackedWithAdvantage)
		m.AttackedWithDisadvantage += boolInt(b.AttackedWithDisadvantage)
		m.Resistant = m.Resistant || b.Resistance
		m.Incapacitated = m.Incapacitated || b.Incapacitated
	}
	return m
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ActionRecord notes one action a combatant took.
type ActionRecord struct {
	Round    int      `json:"round"`
	Slot     Slot     `json:"slot"`
	ActionID string   `json:"action_id"`
	Targets  []string `json:"targets,omitempty"`
}

// Combattant is a creature instantiated into a fight.
type Combattant struct {
	ID           string         `json:"id"`
	CreatureID   string         `json:"creature_id"`
	Name         string         `json:"name"`
	Team         Team           `json:"team"`
	Initiative   int            `json:"initiative"`
	InitialState CreatureState  `json:"initial_state"`
	FinalState   CreatureState  `json:"final_state"`
	Actions      []ActionRecord `json:"actions,omitempty"`

	// Creature and State are the live definition and state during a run.
	Creature *Creature     `json:"-"`
	State    CreatureState `json:"-"`
}

// NewCombattant instantiates a creature with a fresh state.
func NewCombattant(id string, team Team, c *Creature) *Combattant {
	name := c.Name
	if name == "" {
		name = c.ID
	}
	return &Combattant{
		ID:         id,
		CreatureID: c.ID,
		Name:       name,
		Team:       team,
		Creature:   c,
		State:      NewState(*c),
	}
}

// Alive reports whether the combatant still has hit points.
func (c *Combattant) Alive() bool { return c.State.Alive() }

// ArmorClass returns base AC plus buff AC.
func (c *Combattant) ArmorClass() int {
	return c.Creature.AC + c.State.Modifiers().AC
}

// Snapshot copies the combatant's live state.
func (c *Combattant) Snapshot() CombattantSnapshot {
	return CombattantSnapshot{ID: c.ID, Name: c.Name, Team: c.Team, State: c.State.Clone()}
}

// CombattantSnapshot is a combatant's state at the end of a round.
type CombattantSnapshot struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Team  Team          `json:"team"`
	State CreatureState `json:"state"`
}

// RoundSnapshot captures every combatant at the end of a round.
type RoundSnapshot struct {
	Round       int                  `json:"round"`
	Combattants []CombattantSnapshot `json:"combattants"`
}
