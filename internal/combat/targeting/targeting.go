// Package targeting picks targets for an action from the living combatants
// on each side according to the action's policy.
package targeting

import (
	"sort"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/core/dice"
)

// Resolve returns up to action.TargetCount() living targets for actor.
// Allies include the actor. Ties keep roster order. Heals skip allies at
// full HP; buffs and debuffs skip targets that already carry the buff.
// The result is empty when nothing qualifies.
func Resolve(actor *domain.Combattant, action domain.Action, allies, enemies []*domain.Combattant) []*domain.Combattant {
	policy := action.PolicyOrDefault()
	if policy == domain.TargetSelf {
		if actor.Alive() && qualifies(actor, action) {
			return []*domain.Combattant{actor}
		}
		return nil
	}

	pool := enemies
	if isAllyPolicy(policy) {
		pool = allies
	}
	candidates := make([]*domain.Combattant, 0, len(pool))
	for _, c := range pool {
		if c.Alive() && qualifies(c, action) {
			candidates = append(candidates, c)
		}
	}

	if key := rankKey(policy); key != nil {
		rankBy(candidates, key)
	}
	if n := action.TargetCount(); len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

func isAllyPolicy(p domain.TargetPolicy) bool {
	switch p {
	case domain.TargetAllyMostInjured, domain.TargetAllyHighestDPR, domain.TargetAllyFirst:
		return true
	}
	return false
}

func qualifies(c *domain.Combattant, action domain.Action) bool {
	switch action.Kind {
	case domain.ActionHeal:
		if action.Heal.TempHP {
			return c.State.TempHP == 0
		}
		return c.State.HP < c.State.MaxHP
	case domain.ActionBuff:
		return !c.State.HasBuff(action.Buff.Buff.ID)
	case domain.ActionDebuff:
		return !c.State.HasBuff(action.Debuff.Buff.ID)
	}
	return true
}

type rankedTarget struct {
	target *domain.Combattant
	rank   float64
}

// rankBy sorts candidates by key, highest first, keeping roster order on
// ties. key is called once per candidate.
func rankBy(candidates []*domain.Combattant, key func(c *domain.Combattant) float64) {
	ranked := make([]rankedTarget, len(candidates))
	for i, c := range candidates {
		ranked[i] = rankedTarget{target: c, rank: key(c)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].rank > ranked[j].rank })
	for i, r := range ranked {
		candidates[i] = r.target
	}
}

// rankKey returns the value a policy prefers highest, computed once per
// candidate. Nil keeps roster order.
func rankKey(p domain.TargetPolicy) func(c *domain.Combattant) float64 {
	switch p {
	case domain.TargetEnemyLowestHP:
		return func(c *domain.Combattant) float64 { return -float64(c.State.HP) }
	case domain.TargetEnemyHighestHP:
		return func(c *domain.Combattant) float64 { return float64(c.State.HP) }
	case domain.TargetEnemyLowestAC:
		return func(c *domain.Combattant) float64 { return -float64(c.ArmorClass()) }
	case domain.TargetEnemyHighestAC:
		return func(c *domain.Combattant) float64 { return float64(c.ArmorClass()) }
	case domain.TargetEnemyHighestDPR, domain.TargetAllyHighestDPR:
		return func(c *domain.Combattant) float64 { return EstimateDPR(c.Creature) }
	case domain.TargetAllyMostInjured:
		return func(c *domain.Combattant) float64 { return float64(c.State.MaxHP - c.State.HP) }
	}
	return nil
}

// EstimateDPR is the expected damage of a creature's best damaging action,
// ignoring hit chance.
func EstimateDPR(c *domain.Creature) float64 {
	best := 0.0
	for _, action := range c.Actions {
		var dpr float64
		switch action.Kind {
		case domain.ActionAttack:
			dpr = average(action.Attack.Damage) * float64(max(1, action.Attack.Count))
		case domain.ActionTemplate:
			dpr = average(action.Template.Damage) * float64(action.TargetCount())
		}
		best = max(best, dpr)
	}
	return best
}

func average(expr string) float64 {
	f, err := dice.Parse(expr)
	if err != nil {
		return 0
	}
	return f.Average()
}
