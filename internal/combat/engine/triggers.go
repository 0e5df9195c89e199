package engine

import (
	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/event"
)

// triggerContext carries the moment a trigger reacts to. Triggers may
// write extra back into it for the hit being resolved.
type triggerContext struct {
	other       *domain.Combattant
	critical    bool
	attackTotal int
	armorClass  int
	extra       int
}

// fireTriggers fires every trigger of owner listening for on, innate ones
// first and then those granted by buffs in id order. A trigger fires only
// when it would have an effect and its costs can be paid.
func (r *run) fireTriggers(owner *domain.Combattant, on domain.TriggerCondition, tc *triggerContext) {
	if r.depth >= maxTriggerDepth || !owner.Alive() {
		return
	}
	r.depth++
	defer func() { r.depth-- }()

	for _, t := range triggersOf(owner) {
		if t.On != on {
			continue
		}
		if !owner.Alive() {
			return
		}
		if !r.useful(owner, t, on, tc) || !canPay(&owner.State.Resources, t.Cost) {
			continue
		}
		if err := pay(&owner.State.Resources, t.Cost); err != nil {
			continue
		}

		otherID := ""
		if tc.other != nil {
			otherID = tc.other.ID
		}
		r.stat(owner).ReactionsUsed++
		r.emit(event.Event{Kind: event.ReactionTriggered, ActorID: owner.ID, TargetID: otherID, Name: t.DisplayName()})

		switch t.Effect {
		case domain.EffectACBonus:
			bonus := domain.Buff{
				ID:       t.ID,
				Name:     t.DisplayName(),
				AC:       r.eval(t.Amount, false).Total,
				Duration: domain.DurationRounds,
				Rounds:   1,
			}
			r.effects.Apply(owner, bonus, owner)
		case domain.EffectExtraDamage:
			tc.extra += r.eval(t.Amount, tc.critical).Total
		case domain.EffectInterrupt:
			r.interrupted = true
		case domain.EffectRetaliate:
			r.applyDamage(owner, tc.other, r.eval(t.Amount, false).Total)
		case domain.EffectHealSelf:
			r.heal(owner, owner, r.eval(t.Amount, false).Total, false)
		case domain.EffectRechargeWard:
			s := &owner.State
			gained := min(s.WardMax-s.Ward, max(0, r.eval(t.Amount, false).Total))
			s.Ward += gained
			r.emit(event.Event{Kind: event.WardRecharged, ActorID: owner.ID, TargetID: owner.ID, Amount: gained})
		}
	}
}

func triggersOf(c *domain.Combattant) []domain.Trigger {
	triggers := c.Creature.Triggers
	for _, b := range c.State.SortedBuffs() {
		if len(b.Triggers) > 0 {
			triggers = append(triggers[:len(triggers):len(triggers)], b.Triggers...)
		}
	}
	return triggers
}

func (r *run) useful(owner *domain.Combattant, t domain.Trigger, on domain.TriggerCondition, tc *triggerContext) bool {
	hostile := tc.other != nil && tc.other.Team != owner.Team
	switch t.Effect {
	case domain.EffectACBonus:
		if owner.State.HasBuff(t.ID) {
			return false
		}
		if on == domain.OnHitTaken {
			return tc.attackTotal < tc.armorClass+r.formula(t.Amount).Max()
		}
		return true
	case domain.EffectExtraDamage:
		return tc.other != nil
	case domain.EffectInterrupt:
		return hostile
	case domain.EffectRetaliate:
		return hostile && tc.other.Alive()
	case domain.EffectHealSelf:
		return owner.State.HP < owner.State.MaxHP
	case domain.EffectRechargeWard:
		return owner.State.Ward < owner.State.WardMax
	}
	return false
}
