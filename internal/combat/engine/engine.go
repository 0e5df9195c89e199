// Package engine runs turn-based combat over a scenario's timeline.
//
// A Plan is an immutable, validated scenario with its dice formulas parsed
// once; it is safe to share between goroutines. Every Run owns its own
// random source, event log and live combatants, so runs with the same seed
// produce identical results regardless of logging or concurrency.
package engine

import (
	"fmt"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/event"
	"github.com/louisbranch/skirmish/internal/core/dice"
	"github.com/louisbranch/skirmish/internal/core/random"
)

// maxTriggerDepth bounds reactions fired from within other reactions.
const maxTriggerDepth = 3

// Options controls one run.
type Options struct {
	Seed int64
	// Logging records the full event log.
	Logging bool
	// Snapshots records every combatant's state at the end of every round.
	Snapshots bool
	// Source replaces the seeded random source, typically to force rolls.
	Source *random.Source
}

// Plan is a compiled scenario ready to run.
type Plan struct {
	scenario domain.Scenario
	formulas map[string]dice.Formula
}

// Compile validates sc and parses every formula it references.
func Compile(sc domain.Scenario) (*Plan, error) {
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("compile scenario: %w", err)
	}
	p := &Plan{scenario: sc, formulas: make(map[string]dice.Formula)}
	for _, c := range sc.Players {
		p.collect(c)
	}
	for _, step := range sc.Timeline {
		if step.Encounter == nil {
			continue
		}
		for _, m := range step.Encounter.Monsters {
			p.collect(m)
		}
	}
	return p, nil
}

// Scenario returns the compiled scenario.
func (p *Plan) Scenario() domain.Scenario { return p.scenario }

func (p *Plan) collect(c domain.Creature) {
	add := func(expr string) {
		if expr == "" {
			return
		}
		if _, ok := p.formulas[expr]; ok {
			return
		}
		// Validate already parsed every expression successfully.
		p.formulas[expr] = dice.MustParse(expr)
	}
	addBuff := func(b domain.Buff) {
		add(b.ToHitDice)
		add(b.DamageDice)
		add(b.SaveDice)
		for _, t := range b.Triggers {
			add(t.Amount)
		}
	}

	add(c.HitDie)
	for _, t := range c.Triggers {
		add(t.Amount)
	}
	for _, b := range c.InnateBuffs {
		addBuff(b)
	}
	for _, a := range c.Actions {
		switch a.Kind {
		case domain.ActionAttack:
			add(a.Attack.Damage)
			for _, rider := range a.Attack.Riders {
				addBuff(rider.Buff)
			}
		case domain.ActionHeal:
			add(a.Heal.Amount)
		case domain.ActionBuff:
			addBuff(a.Buff.Buff)
		case domain.ActionDebuff:
			addBuff(a.Debuff.Buff)
		case domain.ActionTemplate:
			add(a.Template.Damage)
			if a.Template.Condition != nil {
				addBuff(*a.Template.Condition)
			}
		}
	}
}

// Run simulates the whole timeline. The returned log is empty unless
// opts.Logging is set.
func (p *Plan) Run(opts Options) (domain.SimulationResult, *event.Log) {
	rng := opts.Source
	if rng == nil {
		rng = random.New(opts.Seed)
	}
	r := &run{
		plan:      p,
		rng:       rng,
		log:       event.NewLog(opts.Logging),
		snapshots: opts.Snapshots,
	}
	return r.simulate(opts.Seed), r.log
}

// Survey runs without logging or snapshots and keeps only the summary.
func (p *Plan) Survey(seed int64) domain.LightweightRun {
	result, _ := p.Run(Options{Seed: seed})
	return result.Lightweight()
}

// RunSingle compiles and runs one simulation of players against timeline.
func RunSingle(players []domain.Creature, timeline []domain.TimelineStep, seed int64, logging bool) (domain.SimulationResult, *event.Log, error) {
	plan, err := Compile(domain.Scenario{Players: players, Timeline: timeline})
	if err != nil {
		return domain.SimulationResult{}, nil, err
	}
	result, log := plan.Run(Options{Seed: seed, Logging: logging, Snapshots: logging})
	return result, log, nil
}
