package engine

import (
	"fmt"
	"sort"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/effect"
	"github.com/louisbranch/skirmish/internal/combat/event"
	"github.com/louisbranch/skirmish/internal/combat/resource"
	"github.com/louisbranch/skirmish/internal/core/dice"
	"github.com/louisbranch/skirmish/internal/core/random"
)

// run is the mutable context of one simulation.
type run struct {
	plan      *Plan
	rng       *random.Source
	log       *event.Log
	snapshots bool

	players []*domain.Combattant

	encounter   int
	round       int
	roster      []*domain.Combattant
	effects     *effect.Manager
	stats       map[string]*domain.EncounterStats
	interrupted bool
	depth       int

	// afterAction, when set, runs once every action has fully resolved.
	afterAction func()
}

func (r *run) simulate(seed int64) domain.SimulationResult {
	sc := r.plan.scenario
	r.players = instantiate(sc.Players, domain.TeamPlayers, nil)
	r.stats = make(map[string]*domain.EncounterStats)

	result := domain.SimulationResult{Seed: seed}
	for _, step := range sc.Timeline {
		switch step.Kind {
		case domain.StepEncounter:
			result.Encounters = append(result.Encounters, r.runEncounter(len(result.Encounters), step.Encounter))
		case domain.StepShortRest, domain.StepLongRest:
			// Rests are logged with the encounter they lead into.
			r.encounter = len(result.Encounters)
			if step.Kind == domain.StepShortRest {
				r.shortRest()
			} else {
				r.longRest()
			}
		}
	}

	result.Players = make([]domain.Combattant, len(r.players))
	for i, p := range r.players {
		p.FinalState = p.State.Clone()
		result.Players[i] = detach(p)
	}
	if n := len(result.Encounters); n > 0 {
		result.Score = result.Encounters[n-1].Score
	} else {
		result.Score = domain.Score(result.Players)
	}
	return result
}

// instantiate creates combatants for defs. Creatures with several copies,
// or whose id is already taken, get a numeric suffix.
func instantiate(defs []domain.Creature, team domain.Team, taken map[string]int) []*domain.Combattant {
	if taken == nil {
		taken = make(map[string]int)
	}
	var out []*domain.Combattant
	for i := range defs {
		def := &defs[i]
		for range def.Copies() {
			taken[def.ID]++
			id := def.ID
			if def.Copies() > 1 || taken[def.ID] > 1 {
				id = fmt.Sprintf("%s-%d", def.ID, taken[def.ID])
			}
			out = append(out, domain.NewCombattant(id, team, def))
		}
	}
	return out
}

// detach copies a combatant for a result, dropping live state.
func detach(c *domain.Combattant) domain.Combattant {
	out := *c
	out.State = domain.CreatureState{}
	out.Actions = append([]domain.ActionRecord(nil), c.Actions...)
	return out
}

func (r *run) runEncounter(index int, enc *domain.Encounter) domain.EncounterResult {
	r.encounter = index
	r.round = 0

	taken := make(map[string]int, len(r.players))
	for _, p := range r.players {
		taken[p.CreatureID]++
	}
	monsters := instantiate(enc.Monsters, domain.TeamMonsters, taken)

	r.roster = make([]*domain.Combattant, 0, len(r.players)+len(monsters))
	r.roster = append(r.roster, r.players...)
	r.roster = append(r.roster, monsters...)
	r.stats = make(map[string]*domain.EncounterStats, len(r.roster))
	for _, c := range r.roster {
		c.InitialState = c.State.Clone()
		c.Actions = nil
		c.Initiative = 0
		r.stats[c.ID] = &domain.EncounterStats{}
	}
	r.effects = effect.NewManager(r.roster, r.emit)
	r.emit(event.Event{Kind: event.EncounterStarted, Name: enc.Name})

	r.preCast(enc)
	order := r.rollInitiative()

	var snapshots []domain.RoundSnapshot
	rounds := 0
	for round := 1; round <= enc.RoundLimit() && !r.decided(); round++ {
		r.round = round
		rounds = round
		r.emit(event.Event{Kind: event.RoundStarted})
		for _, c := range order {
			if r.decided() {
				break
			}
			if !c.Alive() {
				continue
			}
			if round == 1 && enc.Surprised(c.Team) {
				r.emit(event.Event{Kind: event.TurnSkipped, ActorID: c.ID, Name: "surprised"})
				continue
			}
			r.takeTurn(c)
		}
		r.effects.TickRound()
		r.effects.Sweep()
		if r.snapshots {
			snapshots = append(snapshots, r.snapshot())
		}
		r.emit(event.Event{Kind: event.RoundEnded})
	}

	result := domain.EncounterResult{
		Index:     index,
		Name:      enc.Name,
		Outcome:   r.outcome(),
		Rounds:    rounds,
		Snapshots: snapshots,
		Stats:     make(map[string]domain.EncounterStats, len(r.stats)),
	}
	for _, c := range r.roster {
		c.FinalState = c.State.Clone()
		result.Combattants = append(result.Combattants, detach(c))
		result.Stats[c.ID] = *r.stats[c.ID]
	}
	result.Score = domain.Score(result.Combattants)
	r.effects.EndEncounter()
	r.emit(event.Event{Kind: event.EncounterEnded, Name: string(result.Outcome), Amount: int(result.Score)})
	return result
}

func (r *run) snapshot() domain.RoundSnapshot {
	snap := domain.RoundSnapshot{Round: r.round, Combattants: make([]domain.CombattantSnapshot, len(r.roster))}
	for i, c := range r.roster {
		snap.Combattants[i] = c.Snapshot()
	}
	return snap
}

// preCast lets sides that prepared for the fight use their pre-cast buffs.
func (r *run) preCast(enc *domain.Encounter) {
	for _, c := range r.roster {
		if !c.Alive() || !enc.PreCast(c.Team) {
			continue
		}
		allies, enemies := r.sides(c)
		for _, action := range c.Creature.Actions {
			if !action.PreCast || action.Kind != domain.ActionBuff {
				continue
			}
			targets := resolveTargets(c, action, allies, enemies)
			if len(targets) == 0 || !canPay(&c.State.Resources, action.Cost) {
				continue
			}
			if err := pay(&c.State.Resources, action.Cost); err != nil {
				continue
			}
			r.record(c, action, targets, "")
			r.resolveBuff(c, action, targets)
		}
	}
}

// rollInitiative returns living combatants in descending initiative.
// Ties keep roster order.
func (r *run) rollInitiative() []*domain.Combattant {
	order := make([]*domain.Combattant, 0, len(r.roster))
	for _, c := range r.roster {
		if !c.Alive() {
			continue
		}
		net := 0
		if c.Creature.InitiativeAdvantage {
			net = 1
		}
		natural, faces := dice.D20WithAdvantage(r.rng, net)
		c.Initiative = natural + c.Creature.InitiativeBonus
		r.emit(event.Event{
			Kind:    event.InitiativeRolled,
			ActorID: c.ID,
			Amount:  c.Initiative,
			Roll: &event.Roll{
				Natural:   natural,
				Faces:     faces,
				Modifiers: []event.Modifier{{Name: "initiative", Value: c.Creature.InitiativeBonus}},
				Total:     c.Initiative,
				Advantage: net,
			},
		})
		order = append(order, c)
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].Initiative > order[j].Initiative })
	return order
}

func (r *run) takeTurn(c *domain.Combattant) {
	c.State.Resources.Reset(resource.ResetTurn)
	r.emit(event.Event{Kind: event.TurnStarted, ActorID: c.ID})
	r.fireTriggers(c, domain.OnTurnStart, &triggerContext{})
	if !c.Alive() {
		return
	}
	if c.State.Modifiers().Incapacitated {
		r.effects.EndConcentration(c)
		r.emit(event.Event{Kind: event.TurnSkipped, ActorID: c.ID, Name: "incapacitated"})
		return
	}

	for _, slot := range []domain.Slot{domain.SlotAction, domain.SlotBonusAction} {
		if r.decided() || !c.Alive() {
			return
		}
		action, targets, ok := r.choose(c, slot)
		if !ok {
			continue
		}
		r.perform(c, action, targets, slot)
	}
}

// choose returns the first action in declaration order that fits slot, is
// affordable and has at least one valid target.
func (r *run) choose(c *domain.Combattant, slot domain.Slot) (domain.Action, []*domain.Combattant, bool) {
	if !c.State.Resources.Has(slot.Resource(), 1) {
		return domain.Action{}, nil, false
	}
	allies, enemies := r.sides(c)
	for _, action := range c.Creature.Actions {
		if action.SlotOrDefault() != slot || !canPay(&c.State.Resources, action.Cost) {
			continue
		}
		targets := resolveTargets(c, action, allies, enemies)
		if len(targets) == 0 {
			continue
		}
		return action, targets, true
	}
	return domain.Action{}, nil, false
}

func (r *run) perform(c *domain.Combattant, action domain.Action, targets []*domain.Combattant, slot domain.Slot) {
	costs := append([]domain.ResourceCost{{Kind: slot.Resource(), Amount: 1}}, action.Cost...)
	if err := pay(&c.State.Resources, costs); err != nil {
		return
	}
	r.record(c, action, targets, slot)
	r.interrupted = false

	switch action.Kind {
	case domain.ActionAttack:
		r.resolveAttack(c, action, targets)
	case domain.ActionHeal:
		r.resolveHeal(c, action, targets)
	case domain.ActionBuff:
		r.resolveBuff(c, action, targets)
	case domain.ActionDebuff:
		r.resolveDebuff(c, action, targets)
	case domain.ActionTemplate:
		r.resolveTemplate(c, action, targets)
	}
	r.interrupted = false
	if r.afterAction != nil {
		r.afterAction()
	}
}

func (r *run) record(c *domain.Combattant, action domain.Action, targets []*domain.Combattant, slot domain.Slot) {
	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
	}
	c.Actions = append(c.Actions, domain.ActionRecord{Round: r.round, Slot: slot, ActionID: action.ID, Targets: ids})
	r.stat(c).ActionsUsed++
	r.emit(event.Event{Kind: event.ActionUsed, ActorID: c.ID, TargetID: ids[0], Name: action.DisplayName()})
}

// sides splits the roster into c's allies, c included, and enemies.
func (r *run) sides(c *domain.Combattant) (allies, enemies []*domain.Combattant) {
	for _, other := range r.roster {
		if other.Team == c.Team {
			allies = append(allies, other)
		} else {
			enemies = append(enemies, other)
		}
	}
	return allies, enemies
}

func (r *run) alive(team domain.Team) int {
	n := 0
	for _, c := range r.roster {
		if c.Team == team && c.Alive() {
			n++
		}
	}
	return n
}

func (r *run) decided() bool {
	return r.alive(domain.TeamPlayers) == 0 || r.alive(domain.TeamMonsters) == 0
}

func (r *run) outcome() domain.Outcome {
	players, monsters := r.alive(domain.TeamPlayers), r.alive(domain.TeamMonsters)
	switch {
	case players > 0 && monsters == 0:
		return domain.OutcomePlayersWin
	case players == 0:
		return domain.OutcomeMonstersWin
	default:
		return domain.OutcomeStalemate
	}
}

func (r *run) emit(e event.Event) {
	if !r.log.Enabled() {
		return
	}
	e.Encounter = r.encounter
	e.Round = r.round
	r.log.Append(e)
}

// stat returns c's tally for the current encounter. Outside an encounter
// the tally is discarded.
func (r *run) stat(c *domain.Combattant) *domain.EncounterStats {
	if s, ok := r.stats[c.ID]; ok {
		return s
	}
	return &domain.EncounterStats{}
}

func (r *run) formula(expr string) dice.Formula {
	if f, ok := r.plan.formulas[expr]; ok {
		return f
	}
	f, _ := dice.Parse(expr)
	return f
}

func (r *run) eval(expr string, critical bool) dice.Evaluation {
	return r.formula(expr).Evaluate(r.rng, critical)
}

func canPay(ledger *resource.Ledger, costs []domain.ResourceCost) bool {
	need := make(map[resource.Kind]int, len(costs))
	for _, cost := range costs {
		need[cost.Kind] += cost.Amount
	}
	for kind, amount := range need {
		if !ledger.Has(kind, amount) {
			return false
		}
	}
	return true
}

// pay consumes costs atomically: on failure the ledger is left unchanged.
func pay(ledger *resource.Ledger, costs []domain.ResourceCost) error {
	if !canPay(ledger, costs) {
		return resource.ErrInsufficientResource
	}
	for _, cost := range costs {
		if err := ledger.Consume(cost.Kind, cost.Amount); err != nil {
			return err
		}
	}
	return nil
}
