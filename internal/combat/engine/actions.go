package engine

import (
	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/event"
	"github.com/louisbranch/skirmish/internal/combat/targeting"
	"github.com/louisbranch/skirmish/internal/core/check"
	"github.com/louisbranch/skirmish/internal/core/dice"
)

func resolveTargets(c *domain.Combattant, action domain.Action, allies, enemies []*domain.Combattant) []*domain.Combattant {
	return targeting.Resolve(c, action, allies, enemies)
}

// resolveAttack swings Count times. A swing whose target has fallen
// retargets with the action's policy; the action ends when no target is left.
func (r *run) resolveAttack(attacker *domain.Combattant, action domain.Action, targets []*domain.Combattant) {
	target := targets[0]
	for range max(1, action.Attack.Count) {
		if r.interrupted || r.decided() || !attacker.Alive() {
			return
		}
		if !target.Alive() {
			allies, enemies := r.sides(attacker)
			next := resolveTargets(attacker, action, allies, enemies)
			if len(next) == 0 {
				return
			}
			target = next[0]
		}
		r.attack(attacker, target, action)
	}
}

func (r *run) attack(attacker, target *domain.Combattant, action domain.Action) {
	spec := action.Attack
	tc := &triggerContext{other: attacker}
	r.fireTriggers(target, domain.OnAttacked, tc)
	if r.interrupted || !attacker.Alive() || !target.Alive() {
		return
	}

	atk := attacker.State.Modifiers()
	def := target.State.Modifiers()
	net := netAdvantage(atk.AttackAdvantage+def.AttackedWithAdvantage, atk.AttackDisadvantage+def.AttackedWithDisadvantage)
	natural, faces := dice.D20WithAdvantage(r.rng, net)

	total := natural + spec.ToHit + atk.ToHit
	mods := []event.Modifier{{Name: "to_hit", Value: spec.ToHit}}
	if atk.ToHit != 0 {
		mods = append(mods, event.Modifier{Name: "buffs", Value: atk.ToHit})
	}
	var rolled []dice.FormulaRoll
	for _, bonus := range atk.ToHitDice {
		ev := r.eval(bonus.Formula, false)
		total += ev.Total
		mods = append(mods, event.Modifier{Name: bonus.Name, Value: ev.Total})
		rolled = append(rolled, ev.Rolls...)
	}

	ac := target.ArmorClass()
	result := check.Attack(natural, total, ac, spec.CritThreshold)
	if result.Success && !result.Critical {
		tc.attackTotal = total
		tc.armorClass = ac
		r.fireTriggers(target, domain.OnHitTaken, tc)
		ac = target.ArmorClass()
		result = check.Attack(natural, total, ac, spec.CritThreshold)
	}
	roll := &event.Roll{
		Natural:   natural,
		Faces:     faces,
		Dice:      rolled,
		Modifiers: mods,
		Total:     total,
		Target:    ac,
		Advantage: net,
		Critical:  result.Critical,
	}

	if !result.Success {
		r.stat(attacker).AttacksMissed++
		r.emit(event.Event{Kind: event.AttackMiss, ActorID: attacker.ID, TargetID: target.ID, Name: action.DisplayName(), Roll: roll})
		r.effects.ConsumeAttackMade(attacker)
		r.effects.ConsumeAttackTaken(target)
		return
	}

	damage := r.eval(spec.Damage, result.Critical)
	amount := damage.Total + atk.Damage
	roll.Dice = append(roll.Dice, damage.Rolls...)
	for _, bonus := range atk.DamageDice {
		ev := r.eval(bonus.Formula, result.Critical)
		amount += ev.Total
		roll.Dice = append(roll.Dice, ev.Rolls...)
	}
	hit := &triggerContext{other: target, critical: result.Critical}
	r.fireTriggers(attacker, domain.OnHitDealt, hit)
	amount = max(0, amount+hit.extra)

	stats := r.stat(attacker)
	stats.AttacksHit++
	if result.Critical {
		stats.CriticalHits++
	}
	r.emit(event.Event{Kind: event.AttackHit, ActorID: attacker.ID, TargetID: target.ID, Name: action.DisplayName(), Amount: amount, Roll: roll})
	r.effects.ConsumeAttackMade(attacker)
	r.effects.ConsumeAttackTaken(target)
	r.applyDamage(attacker, target, amount)

	for _, rider := range spec.Riders {
		if !target.Alive() || !attacker.Alive() {
			break
		}
		if rider.SaveDC > 0 && r.save(target, attacker, rider.SaveAbility, rider.SaveDC, rider.Buff.DisplayName()) {
			continue
		}
		r.effects.Apply(target, rider.Buff, attacker)
	}
}

// netAdvantage applies the rule that any advantage and any disadvantage
// cancel out regardless of how many sources each has.
func netAdvantage(advantages, disadvantages int) int {
	switch {
	case advantages > 0 && disadvantages == 0:
		return 1
	case disadvantages > 0 && advantages == 0:
		return -1
	default:
		return 0
	}
}

// save rolls a saving throw for target against dc, raised by the source's
// DC buffs, and reports whether it succeeded.
func (r *run) save(target, source *domain.Combattant, ability domain.Ability, dc int, name string) bool {
	mods := target.State.Modifiers()
	natural := dice.D20(r.rng)
	total := natural + target.Creature.Save(ability) + mods.Save
	for _, bonus := range mods.SaveDice {
		total += r.eval(bonus.Formula, false).Total
	}
	sourceID := ""
	if source != nil {
		dc += source.State.Modifiers().DC
		sourceID = source.ID
	}

	saved := check.Save(total, dc).Success
	kind := event.SpellFailed
	if saved {
		kind = event.SpellSaved
	}
	r.emit(event.Event{
		Kind:     kind,
		ActorID:  sourceID,
		TargetID: target.ID,
		Name:     name,
		Roll:     &event.Roll{Natural: natural, Faces: []int{natural}, Total: total, Target: dc},
	})
	return saved
}

// applyDamage soaks damage with the ward, then temporary HP, then HP.
// Resistance halves the amount first, rounding down.
func (r *run) applyDamage(source, target *domain.Combattant, amount int) {
	if amount <= 0 || !target.Alive() {
		return
	}
	if target.State.Modifiers().Resistant {
		amount /= 2
		if amount == 0 {
			return
		}
	}

	s := &target.State
	ward := min(s.Ward, amount)
	s.Ward -= ward
	rest := amount - ward
	temp := min(s.TempHP, rest)
	s.TempHP -= temp
	rest -= temp
	hp := min(s.HP, rest)
	s.HP -= hp

	r.stat(source).DamageDealt += amount
	r.stat(target).DamageTaken += amount
	r.emit(event.Event{Kind: event.DamageDealt, ActorID: source.ID, TargetID: target.ID, Amount: amount})
	r.emit(event.Event{
		Kind:     event.DamageTaken,
		ActorID:  source.ID,
		TargetID: target.ID,
		Amount:   amount,
		Absorbed: &event.Absorption{Ward: ward, TempHP: temp, HP: hp, Overkill: rest - hp},
	})

	if !target.Alive() {
		r.kill(source, target)
		return
	}
	if rest > 0 && s.Concentration != "" {
		dc := max(10, amount/2)
		if !r.save(target, nil, domain.Constitution, dc, "concentration") {
			r.effects.EndConcentration(target)
		}
	}
	r.fireTriggers(target, domain.OnDamageTaken, &triggerContext{other: source})
}

func (r *run) kill(killer, dead *domain.Combattant) {
	r.stat(killer).Kills++
	r.emit(event.Event{Kind: event.UnitDied, ActorID: killer.ID, TargetID: dead.ID})
	r.effects.OnDeath(dead)

	allies, _ := r.sides(dead)
	for _, ally := range allies {
		if ally != dead && ally.Alive() {
			r.fireTriggers(ally, domain.OnAllyDown, &triggerContext{other: killer})
		}
	}
}

func (r *run) resolveHeal(healer *domain.Combattant, action domain.Action, targets []*domain.Combattant) {
	for _, target := range targets {
		if r.interrupted {
			return
		}
		ev := r.eval(action.Heal.Amount, false)
		r.heal(healer, target, ev.Total, action.Heal.TempHP)
	}
}

// heal restores HP up to the maximum, or raises temporary HP to amount.
// Temporary HP never stacks and never exceeds the maximum HP.
func (r *run) heal(healer, target *domain.Combattant, amount int, temp bool) {
	if amount <= 0 || !target.Alive() {
		return
	}
	s := &target.State
	var gained int
	if temp {
		next := min(max(s.TempHP, amount), s.MaxHP)
		gained = next - s.TempHP
		s.TempHP = next
	} else {
		gained = min(s.MaxHP-s.HP, amount)
		s.HP += gained
	}
	r.stat(healer).HealingDone += gained
	r.stat(target).HealingReceived += gained
	r.emit(event.Event{Kind: event.HealingApplied, ActorID: healer.ID, TargetID: target.ID, Amount: gained})
}

func (r *run) resolveBuff(caster *domain.Combattant, action domain.Action, targets []*domain.Combattant) {
	if r.interrupted || !caster.Alive() {
		return
	}
	buff := action.Buff.Buff
	if buff.Concentration {
		r.effects.BeginConcentration(caster, buff.ID)
	}
	for _, target := range targets {
		if r.interrupted || !caster.Alive() {
			return
		}
		r.effects.Apply(target, buff, caster)
	}
}

func (r *run) resolveDebuff(caster *domain.Combattant, action domain.Action, targets []*domain.Combattant) {
	spec := action.Debuff
	if spec.Buff.Concentration {
		r.effects.BeginConcentration(caster, spec.Buff.ID)
	}
	for _, target := range targets {
		if r.interrupted || !caster.Alive() {
			return
		}
		if !target.Alive() {
			continue
		}
		if r.save(target, caster, spec.SaveAbility, spec.SaveDC, action.DisplayName()) {
			continue
		}
		r.effects.Apply(target, spec.Buff, caster)
	}
}

// resolveTemplate rolls damage once and lets each target save separately.
func (r *run) resolveTemplate(caster *domain.Combattant, action domain.Action, targets []*domain.Combattant) {
	spec := action.Template
	damage := r.eval(spec.Damage, false)
	if spec.Condition != nil && spec.Condition.Concentration {
		r.effects.BeginConcentration(caster, spec.Condition.ID)
	}
	for _, target := range targets {
		if r.interrupted || !caster.Alive() {
			return
		}
		if !target.Alive() {
			continue
		}
		amount := damage.Total
		saved := r.save(target, caster, spec.SaveAbility, spec.SaveDC, action.DisplayName())
		if saved {
			amount = 0
			if spec.HalfOnSave {
				amount = damage.Total / 2
			}
		}
		r.applyDamage(caster, target, amount)
		if !saved && spec.Condition != nil && target.Alive() && caster.Alive() {
			r.effects.Apply(target, *spec.Condition, caster)
		}
	}
}
