package engine

import (
	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/event"
	"github.com/louisbranch/skirmish/internal/combat/resource"
)

// shortRest refills short-rest resources and spends hit dice on any living
// player below half HP until they reach it or run out of dice.
func (r *run) shortRest() {
	r.round = 0
	for _, p := range r.players {
		if !p.Alive() {
			continue
		}
		p.State.Resources.Reset(resource.ResetShortRest)
		for p.Creature.HitDie != "" && p.State.HP*2 < p.State.MaxHP {
			if err := p.State.Resources.Consume(resource.HitDice, 1); err != nil {
				break
			}
			r.heal(p, p, max(1, r.eval(p.Creature.HitDie, false).Total), false)
		}
	}
	r.emit(event.Event{Kind: event.RestTaken, Name: string(domain.StepShortRest)})
}

// longRest restores every living player to full HP, ward and resources.
// The dead stay dead.
func (r *run) longRest() {
	r.round = 0
	for _, p := range r.players {
		if !p.Alive() {
			continue
		}
		p.State.Resources.Reset(resource.ResetLongRest)
		p.State.HP = p.State.MaxHP
		p.State.TempHP = 0
		p.State.Ward = p.State.WardMax
	}
	r.emit(event.Event{Kind: event.RestTaken, Name: string(domain.StepLongRest)})
}
