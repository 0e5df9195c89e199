// Package effect manages buff lifecycles on a roster of combatants:
// application, concentration, round ticks, attack-consumed buffs and the
// cleanup that follows a death.
//
// Buffs refer to the combatant that applied them by id only. After every
// mutation that can end a combatant's influence, no living combatant holds
// a buff whose source is dead or whose source's concentration has ended.
package effect

import (
	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/event"
)

// Emitter receives lifecycle events. Encounter and round are filled by the caller.
type Emitter func(event.Event)

// Manager tracks buffs across one encounter's roster.
type Manager struct {
	roster []*domain.Combattant
	byID   map[string]*domain.Combattant
	emit   Emitter
}

// NewManager builds a manager over roster. A nil emitter drops events.
func NewManager(roster []*domain.Combattant, emit Emitter) *Manager {
	if emit == nil {
		emit = func(event.Event) {}
	}
	byID := make(map[string]*domain.Combattant, len(roster))
	for _, c := range roster {
		byID[c.ID] = c
	}
	return &Manager{roster: roster, byID: byID, emit: emit}
}

// Apply attaches buff to target on behalf of source. Concentration must be
// started by BeginConcentration before applying a concentration buff.
// An incapacitating buff breaks the target's own concentration. Nothing
// is attached when the target or a non-nil source is dead.
func (m *Manager) Apply(target *domain.Combattant, buff domain.Buff, source *domain.Combattant) {
	if !target.Alive() || (source != nil && !source.Alive()) {
		return
	}
	buff.Source = ""
	if source != nil {
		buff.Source = source.ID
	}
	buff.Remaining = buff.Rounds
	target.State.AddBuff(buff)
	m.emit(event.Event{Kind: event.BuffApplied, ActorID: buff.Source, TargetID: target.ID, Name: buff.DisplayName()})

	if buff.Incapacitated {
		m.EndConcentration(target)
	}
}

// BeginConcentration ends whatever caster was concentrating on and starts
// concentrating on buffID.
func (m *Manager) BeginConcentration(caster *domain.Combattant, buffID string) {
	m.EndConcentration(caster)
	caster.State.Concentration = buffID
}

// EndConcentration removes every buff the caster was sustaining.
func (m *Manager) EndConcentration(caster *domain.Combattant) {
	id := caster.State.Concentration
	if id == "" {
		return
	}
	caster.State.Concentration = ""
	m.emit(event.Event{Kind: event.ConcentrationBroken, ActorID: caster.ID, Name: id})
	for _, c := range m.roster {
		if buff, ok := c.State.Buffs[id]; ok && buff.Source == caster.ID && buff.Concentration {
			m.remove(c, buff, event.BuffRemoved)
		}
	}
}

// OnDeath ends the dead combatant's concentration and strips every buff it
// applied from every combatant.
func (m *Manager) OnDeath(dead *domain.Combattant) {
	m.EndConcentration(dead)
	for _, c := range m.roster {
		for _, buff := range c.State.SortedBuffs() {
			if buff.Source == dead.ID {
				m.remove(c, buff, event.BuffRemoved)
			}
		}
	}
}

// TickRound counts down round-limited buffs on living combatants and
// expires those that reach zero.
func (m *Manager) TickRound() {
	for _, c := range m.roster {
		if !c.Alive() {
			continue
		}
		for _, buff := range c.State.SortedBuffs() {
			if buff.DurationOrDefault() != domain.DurationRounds {
				continue
			}
			buff.Remaining--
			if buff.Remaining <= 0 {
				m.remove(c, buff, event.BuffExpired)
				continue
			}
			c.State.Buffs[buff.ID] = buff
		}
	}
	m.releaseIdleConcentration()
}

// ConsumeAttackMade ends the attacker's until-next-attack-made buffs.
func (m *Manager) ConsumeAttackMade(attacker *domain.Combattant) {
	m.consume(attacker, domain.DurationNextAttackMade)
}

// ConsumeAttackTaken ends the defender's until-next-attack-taken buffs.
func (m *Manager) ConsumeAttackTaken(defender *domain.Combattant) {
	m.consume(defender, domain.DurationNextAttackTaken)
}

func (m *Manager) consume(c *domain.Combattant, kind domain.DurationKind) {
	for _, buff := range c.State.SortedBuffs() {
		if buff.DurationOrDefault() == kind {
			m.remove(c, buff, event.BuffExpired)
		}
	}
	m.releaseIdleConcentration()
}

// Sweep removes buffs whose source is missing or dead and drops
// concentration that no longer sustains anything.
func (m *Manager) Sweep() {
	for _, c := range m.roster {
		for _, buff := range c.State.SortedBuffs() {
			if buff.Innate() {
				continue
			}
			source, ok := m.byID[buff.Source]
			if !ok || !source.Alive() {
				m.remove(c, buff, event.BuffRemoved)
			}
		}
	}
	m.releaseIdleConcentration()
}

// EndEncounter strips every non-innate buff and all concentration.
func (m *Manager) EndEncounter() {
	for _, c := range m.roster {
		c.State.Concentration = ""
		for _, buff := range c.State.SortedBuffs() {
			if !buff.Innate() {
				delete(c.State.Buffs, buff.ID)
			}
		}
	}
}

func (m *Manager) remove(c *domain.Combattant, buff domain.Buff, kind event.Kind) {
	delete(c.State.Buffs, buff.ID)
	m.emit(event.Event{Kind: kind, ActorID: buff.Source, TargetID: c.ID, Name: buff.DisplayName()})
}

// releaseIdleConcentration clears concentration no buff in the roster
// still depends on.
func (m *Manager) releaseIdleConcentration() {
	for _, caster := range m.roster {
		id := caster.State.Concentration
		if id == "" || m.sustains(caster.ID, id) {
			continue
		}
		caster.State.Concentration = ""
	}
}

func (m *Manager) sustains(casterID, buffID string) bool {
	for _, c := range m.roster {
		if buff, ok := c.State.Buffs[buffID]; ok && buff.Source == casterID {
			return true
		}
	}
	return false
}
