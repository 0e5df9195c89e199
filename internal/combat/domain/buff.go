package domain

import (
	"fmt"
)

// DurationKind says when a buff ends.
type DurationKind string

const (
	// DurationRounds buffs tick down at the end of every round.
	DurationRounds DurationKind = "rounds"
	// DurationNextAttackMade buffs end after their holder makes an attack.
	DurationNextAttackMade DurationKind = "until_next_attack_made"
	// DurationNextAttackTaken buffs end after their holder is attacked.
	DurationNextAttackTaken DurationKind = "until_next_attack_taken"
	// DurationEncounter buffs last until the encounter ends.
	DurationEncounter DurationKind = "encounter"
)

// Buff is a temporary or innate modifier attached to a combatant.
// Negative modifiers make it a debuff.
type Buff struct {
	ID       string       `json:"id"`
	Name     string       `json:"name,omitempty"`
	Duration DurationKind `json:"duration,omitempty"`
	Rounds   int          `json:"rounds,omitempty"`
	// Concentration buffs end when their caster's concentration breaks.
	Concentration bool `json:"concentration,omitempty"`

	ToHit      int    `json:"to_hit,omitempty"`
	ToHitDice  string `json:"to_hit_dice,omitempty"`
	AC         int    `json:"ac,omitempty"`
	Damage     int    `json:"damage,omitempty"`
	DamageDice string `json:"damage_dice,omitempty"`
	DC         int    `json:"dc,omitempty"`
	Save       int    `json:"save,omitempty"`
	SaveDice   string `json:"save_dice,omitempty"`

	AttackAdvantage          bool `json:"attack_advantage,omitempty"`
	AttackDisadvantage       bool `json:"attack_disadvantage,omitempty"`
	AttackedWithAdvantage    bool `json:"attacked_with_advantage,omitempty"`
	AttackedWithDisadvantage bool `json:"attacked_with_disadvantage,omitempty"`
	Resistance               bool `json:"resistance,omitempty"`
	Incapacitated            bool `json:"incapacitated,omitempty"`

	Triggers []Trigger `json:"triggers,omitempty"`

	// Source is the combatant that applied the buff; empty for innate buffs.
	Source string `json:"source,omitempty"`
	// Remaining counts rounds left for DurationRounds buffs.
	Remaining int `json:"remaining,omitempty"`
}

// DisplayName returns Name or falls back to ID.
func (b Buff) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return b.ID
}

// Innate reports whether the buff belongs to the creature itself.
func (b Buff) Innate() bool { return b.Source == "" }

// DurationOrDefault returns the duration kind, defaulting to the encounter.
func (b Buff) DurationOrDefault() DurationKind {
	if b.Duration == "" {
		return DurationEncounter
	}
	return b.Duration
}

// Validate checks the buff's id, duration and dice formulas.
func (b Buff) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("%w: buff id is required", ErrInvalidAction)
	}
	switch b.DurationOrDefault() {
	case DurationRounds:
		if b.Rounds < 1 {
			return fmt.Errorf("%w: buff %s: rounds must be positive", ErrInvalidAction, b.ID)
		}
	case DurationNextAttackMade, DurationNextAttackTaken, DurationEncounter:
	default:
		return fmt.Errorf("%w: buff %s: unknown duration %q", ErrInvalidAction, b.ID, b.Duration)
	}
	for _, expr := range []string{b.ToHitDice, b.DamageDice, b.SaveDice} {
		if err := validFormula(expr); err != nil {
			return fmt.Errorf("%w: buff %s: %w", ErrInvalidAction, b.ID, err)
		}
	}
	for _, trigger := range b.Triggers {
		if err := trigger.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TriggerCondition is the combat moment a trigger listens for.
type TriggerCondition string

const (
	OnAttacked    TriggerCondition = "on_attacked"
	OnHitTaken    TriggerCondition = "on_hit_taken"
	OnHitDealt    TriggerCondition = "on_hit_dealt"
	OnDamageTaken TriggerCondition = "on_damage_taken"
	OnTurnStart   TriggerCondition = "on_turn_start"
	OnAllyDown    TriggerCondition = "on_ally_down"
)

// TriggerEffect is what a fired trigger does.
type TriggerEffect string

const (
	// EffectACBonus raises AC until the end of the round, possibly turning a hit into a miss.
	EffectACBonus TriggerEffect = "ac_bonus"
	// EffectExtraDamage adds damage to the hit being resolved.
	EffectExtraDamage TriggerEffect = "extra_damage"
	// EffectInterrupt aborts the rest of the triggering action.
	EffectInterrupt TriggerEffect = "interrupt"
	// EffectRetaliate deals damage back to the triggering combatant.
	EffectRetaliate TriggerEffect = "retaliate"
	// EffectHealSelf restores the owner's hit points.
	EffectHealSelf TriggerEffect = "heal_self"
	// EffectRechargeWard restores the owner's ward up to its maximum.
	EffectRechargeWard TriggerEffect = "recharge_ward"
)

// Trigger is a reaction that fires on a combat moment when its costs are affordable.
type Trigger struct {
	ID     string           `json:"id"`
	Name   string           `json:"name,omitempty"`
	On     TriggerCondition `json:"on"`
	Effect TriggerEffect    `json:"effect"`
	Amount string           `json:"amount,omitempty"`
	Cost   []ResourceCost   `json:"cost,omitempty"`
}

// DisplayName returns Name or falls back to ID.
func (t Trigger) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// Validate checks the trigger's condition, effect and amount formula.
func (t Trigger) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: trigger id is required", ErrInvalidAction)
	}
	switch t.On {
	case OnAttacked, OnHitTaken, OnHitDealt, OnDamageTaken, OnTurnStart, OnAllyDown:
	default:
		return fmt.Errorf("%w: trigger %s: unknown condition %q", ErrInvalidAction, t.ID, t.On)
	}
	switch t.Effect {
	case EffectACBonus, EffectExtraDamage, EffectInterrupt, EffectRetaliate, EffectHealSelf, EffectRechargeWard:
	default:
		return fmt.Errorf("%w: trigger %s: unknown effect %q", ErrInvalidAction, t.ID, t.Effect)
	}
	if err := validFormula(t.Amount); err != nil {
		return fmt.Errorf("%w: trigger %s: %w", ErrInvalidAction, t.ID, err)
	}
	return validCosts(t.ID, t.Cost)
}
