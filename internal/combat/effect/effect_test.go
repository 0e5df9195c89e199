package effect

import (
	"testing"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/event"
)

func roster() (cleric, fighter, ogre *domain.Combattant, m *Manager, log *event.Log) {
	cleric = domain.NewCombattant("cleric", domain.TeamPlayers, &domain.Creature{ID: "cleric", HP: 20, AC: 16})
	fighter = domain.NewCombattant("fighter", domain.TeamPlayers, &domain.Creature{ID: "fighter", HP: 30, AC: 18})
	ogre = domain.NewCombattant("ogre", domain.TeamMonsters, &domain.Creature{ID: "ogre", HP: 59, AC: 11})
	log = event.NewLog(true)
	m = NewManager([]*domain.Combattant{cleric, fighter, ogre}, log.Append)
	return cleric, fighter, ogre, m, log
}

var bless = domain.Buff{ID: "bless", ToHitDice: "1d4", Concentration: true, Duration: domain.DurationRounds, Rounds: 10}

func TestConcentrationDisplacesPreviousBuff(t *testing.T) {
	cleric, fighter, ogre, m, _ := roster()

	m.BeginConcentration(cleric, bless.ID)
	m.Apply(fighter, bless, cleric)
	m.Apply(cleric, bless, cleric)

	bane := domain.Buff{ID: "bane", ToHit: -2, Concentration: true}
	m.BeginConcentration(cleric, bane.ID)
	m.Apply(ogre, bane, cleric)

	if fighter.State.HasBuff("bless") || cleric.State.HasBuff("bless") {
		t.Fatal("bless survived a new concentration")
	}
	if !ogre.State.HasBuff("bane") || cleric.State.Concentration != "bane" {
		t.Fatalf("concentration = %q, ogre buffs = %v", cleric.State.Concentration, ogre.State.Buffs)
	}
}

func TestDeathPurgesSourcedBuffs(t *testing.T) {
	cleric, fighter, _, m, log := roster()
	m.BeginConcentration(cleric, bless.ID)
	m.Apply(fighter, bless, cleric)
	m.Apply(fighter, domain.Buff{ID: "aid", AC: 1}, cleric)
	fighter.State.AddBuff(domain.Buff{ID: "fighting_style", AC: 1})

	cleric.State.HP = 0
	m.OnDeath(cleric)

	if fighter.State.HasBuff("bless") || fighter.State.HasBuff("aid") {
		t.Fatalf("buffs from dead source remain: %v", fighter.State.Buffs)
	}
	if !fighter.State.HasBuff("fighting_style") {
		t.Fatal("innate buff removed")
	}
	if cleric.State.Concentration != "" {
		t.Fatal("dead caster still concentrating")
	}
	if got := len(event.Filter(log.Events(), event.ConcentrationBroken)); got != 1 {
		t.Fatalf("ConcentrationBroken events = %d, want 1", got)
	}
}

func TestApplyRefusesDeadSource(t *testing.T) {
	cleric, fighter, ogre, m, log := roster()
	ogre.State.HP = 0
	m.OnDeath(ogre)

	m.Apply(fighter, domain.Buff{ID: "sundered", AC: -5, Duration: domain.DurationEncounter}, ogre)
	m.Apply(ogre, domain.Buff{ID: "aid", AC: 1}, cleric)

	if fighter.State.HasBuff("sundered") || ogre.State.HasBuff("aid") {
		t.Fatalf("buffs attached across a death: fighter %v, ogre %v", fighter.State.Buffs, ogre.State.Buffs)
	}
	if got := len(event.Filter(log.Events(), event.BuffApplied)); got != 0 {
		t.Fatalf("BuffApplied events = %d, want 0", got)
	}

	m.Apply(fighter, domain.Buff{ID: "fighting_style", AC: 1}, nil)
	if !fighter.State.HasBuff("fighting_style") {
		t.Fatal("sourceless buff refused")
	}
}

func TestIncapacitationBreaksConcentration(t *testing.T) {
	cleric, fighter, ogre, m, _ := roster()
	m.BeginConcentration(cleric, bless.ID)
	m.Apply(fighter, bless, cleric)

	m.Apply(cleric, domain.Buff{ID: "stunned", Incapacitated: true, Duration: domain.DurationRounds, Rounds: 1}, ogre)

	if fighter.State.HasBuff("bless") {
		t.Fatal("bless survived caster incapacitation")
	}
}

func TestTickRoundExpiresAndReleases(t *testing.T) {
	cleric, fighter, _, m, _ := roster()
	short := bless
	short.Rounds = 2
	m.BeginConcentration(cleric, short.ID)
	m.Apply(fighter, short, cleric)

	m.TickRound()
	if got := fighter.State.Buffs["bless"].Remaining; got != 1 {
		t.Fatalf("Remaining = %d, want 1", got)
	}
	m.TickRound()
	if fighter.State.HasBuff("bless") {
		t.Fatal("bless did not expire")
	}
	if cleric.State.Concentration != "" {
		t.Fatal("concentration not released after expiry")
	}
}

func TestAttackConsumedBuffs(t *testing.T) {
	cleric, fighter, ogre, m, _ := roster()
	m.Apply(fighter, domain.Buff{ID: "guiding_bolt", AttackedWithAdvantage: true, Duration: domain.DurationNextAttackTaken}, cleric)
	m.Apply(ogre, domain.Buff{ID: "reckless", AttackAdvantage: true, Duration: domain.DurationNextAttackMade}, ogre)

	m.ConsumeAttackMade(fighter)
	if !fighter.State.HasBuff("guiding_bolt") {
		t.Fatal("attack made consumed an attack-taken buff")
	}
	m.ConsumeAttackTaken(fighter)
	m.ConsumeAttackMade(ogre)
	if fighter.State.HasBuff("guiding_bolt") || ogre.State.HasBuff("reckless") {
		t.Fatal("attack buffs not consumed")
	}
}

func TestSweepAndEndEncounter(t *testing.T) {
	cleric, fighter, _, m, _ := roster()
	fighter.State.AddBuff(domain.Buff{ID: "stale", Source: "wizard-from-last-fight"})
	m.Apply(fighter, domain.Buff{ID: "aid", AC: 1}, cleric)
	fighter.State.AddBuff(domain.Buff{ID: "fighting_style", AC: 1})

	m.Sweep()
	if fighter.State.HasBuff("stale") || !fighter.State.HasBuff("aid") {
		t.Fatalf("Sweep() buffs = %v", fighter.State.Buffs)
	}

	m.EndEncounter()
	if fighter.State.HasBuff("aid") || !fighter.State.HasBuff("fighting_style") {
		t.Fatalf("EndEncounter() buffs = %v", fighter.State.Buffs)
	}
}
