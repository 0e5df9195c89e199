package script

import (
	"strings"
	"testing"

	"github.com/louisbranch/skirmish/internal/combat/domain"
)

const ambush = `
local s = Scenario.new("Goblin Ambush")
s:describe("Four goblins spring from the brush.")
s:player{
  id = "cleric", name = "Cleric", hp = 38, ac = 18,
  saves = { wis = 7, con = 3 },
  resources = { { kind = "spell_slot_1", max = 4, reset = "long_rest" } },
  actions = {
    Action.buff{ id = "bless", targets = 3, policy = "ally_first", pre_cast = true,
      cost = { { kind = "spell_slot_1", amount = 1 } },
      buff = { id = "bless", to_hit_dice = "1d4", concentration = true, duration = "rounds", rounds = 10 } },
    Action.heal{ id = "healing_word", slot = "bonus_action", amount = "1d4+4" },
    Action.attack{ id = "mace", to_hit = 5, damage = "1d6+3" },
  },
}
s:encounter{
  name = "Ambush", players_surprised = true,
  monsters = {
    { id = "goblin", hp = 7, ac = 15, count = 4,
      actions = { Action.attack{ id = "scimitar", to_hit = 4, damage = "1d6+2" } } },
  },
}
s:short_rest()
s:long_rest()
return s
`

func TestLoadString(t *testing.T) {
	sc, err := LoadString(ambush)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if err := sc.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if sc.Name != "Goblin Ambush" || sc.Description == "" {
		t.Fatalf("name = %q description = %q", sc.Name, sc.Description)
	}
	if len(sc.Players) != 1 || len(sc.Timeline) != 3 {
		t.Fatalf("players = %d timeline = %d", len(sc.Players), len(sc.Timeline))
	}

	cleric := sc.Players[0]
	if cleric.Saves[domain.Wisdom] != 7 {
		t.Errorf("wis save = %d, want 7", cleric.Saves[domain.Wisdom])
	}
	bless := cleric.Actions[0]
	if bless.Kind != domain.ActionBuff || bless.Targets != 3 || !bless.PreCast || bless.Buff == nil {
		t.Fatalf("bless = %+v", bless)
	}
	if !bless.Buff.Buff.Concentration || bless.Buff.Buff.Rounds != 10 {
		t.Errorf("bless buff = %+v", bless.Buff.Buff)
	}
	if heal := cleric.Actions[1]; heal.Slot != domain.SlotBonusAction || heal.Heal.Amount != "1d4+4" {
		t.Errorf("healing word = %+v", heal)
	}

	enc := sc.Timeline[0].Encounter
	if enc == nil || !enc.PlayersSurprised || enc.Monsters[0].Count != 4 {
		t.Fatalf("encounter = %+v", enc)
	}
	if enc.Monsters[0].Actions[0].Attack.ToHit != 4 {
		t.Errorf("scimitar = %+v", enc.Monsters[0].Actions[0].Attack)
	}
	if sc.Timeline[1].Kind != domain.StepShortRest || sc.Timeline[2].Kind != domain.StepLongRest {
		t.Errorf("rests = %s %s", sc.Timeline[1].Kind, sc.Timeline[2].Kind)
	}
}

func TestLoadStringErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"must return scenario", `return 42`, "must return Scenario"},
		{"unknown field", `local s = Scenario.new("x"); s:player{ id = "a", hp = 1, armour = 3 }; return s`, "armour"},
		{"unknown payload field", `return Action.attack{ id = "a", damage = "1d4", reach = 10 }`, "reach"},
		{"syntax error", `local s = `, "load lua"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.source)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("LoadString() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
