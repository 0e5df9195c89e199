// Package event records what happens during a simulation as an ordered,
// append-only log of typed events.
package event

import (
	"github.com/louisbranch/skirmish/internal/core/dice"
)

// Kind identifies an event type.
type Kind string

const (
	EncounterStarted    Kind = "encounter_started"
	EncounterEnded      Kind = "encounter_ended"
	InitiativeRolled    Kind = "initiative_rolled"
	RoundStarted        Kind = "round_started"
	RoundEnded          Kind = "round_ended"
	TurnStarted         Kind = "turn_started"
	TurnSkipped         Kind = "turn_skipped"
	ActionUsed          Kind = "action_used"
	AttackHit           Kind = "attack_hit"
	AttackMiss          Kind = "attack_miss"
	DamageDealt         Kind = "damage_dealt"
	DamageTaken         Kind = "damage_taken"
	HealingApplied      Kind = "healing_applied"
	SpellSaved          Kind = "spell_saved"
	SpellFailed         Kind = "spell_failed"
	BuffApplied         Kind = "buff_applied"
	BuffRemoved         Kind = "buff_removed"
	BuffExpired         Kind = "buff_expired"
	ConcentrationBroken Kind = "concentration_broken"
	ReactionTriggered   Kind = "reaction_triggered"
	WardRecharged       Kind = "ward_recharged"
	UnitDied            Kind = "unit_died"
	RestTaken           Kind = "rest_taken"
)

// Modifier is a named term of a roll total.
type Modifier struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Roll is the breakdown of a d20 test or a damage roll.
type Roll struct {
	Natural   int                `json:"natural,omitempty"`
	Faces     []int              `json:"faces,omitempty"`
	Dice      []dice.FormulaRoll `json:"dice,omitempty"`
	Modifiers []Modifier         `json:"modifiers,omitempty"`
	Total     int                `json:"total"`
	Target    int                `json:"target,omitempty"`
	// Advantage is the net advantage: positive, negative or zero.
	Advantage int  `json:"advantage,omitempty"`
	Critical  bool `json:"critical,omitempty"`
}

// Absorption splits damage taken across the layers that soaked it.
type Absorption struct {
	Ward     int `json:"ward"`
	TempHP   int `json:"temp_hp"`
	HP       int `json:"hp"`
	Overkill int `json:"overkill,omitempty"`
}

// Event is one entry of the log.
type Event struct {
	Seq       int         `json:"seq"`
	Kind      Kind        `json:"kind"`
	Encounter int         `json:"encounter"`
	Round     int         `json:"round"`
	ActorID   string      `json:"actor_id,omitempty"`
	TargetID  string      `json:"target_id,omitempty"`
	Name      string      `json:"name,omitempty"`
	Amount    int         `json:"amount,omitempty"`
	Roll      *Roll       `json:"roll,omitempty"`
	Absorbed  *Absorption `json:"absorbed,omitempty"`
}

// Log is an append-only event log. A nil or disabled log drops events, so
// callers emit unconditionally.
type Log struct {
	enabled bool
	events  []Event
}

// NewLog returns a log that records events when enabled is true.
func NewLog(enabled bool) *Log {
	return &Log{enabled: enabled}
}

// Enabled reports whether appended events are kept.
func (l *Log) Enabled() bool {
	return l != nil && l.enabled
}

// Append assigns the next sequence number and records e.
func (l *Log) Append(e Event) {
	if !l.Enabled() {
		return
	}
	e.Seq = len(l.events)
	l.events = append(l.events, e)
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.events)
}

// Events returns the recorded events. The slice must not be modified.
func (l *Log) Events() []Event {
	if l == nil {
		return nil
	}
	return l.events
}
