// Package script loads scenarios written in a small Lua DSL:
//
//	local s = Scenario.new("Goblin Ambush")
//	s:player{ id = "fighter", hp = 44, ac = 18,
//	  actions = { Action.attack{ id = "longsword", to_hit = 7, damage = "1d8+4", count = 2 } } }
//	s:encounter{ name = "Ambush", players_surprised = true,
//	  monsters = { { id = "goblin", hp = 7, ac = 15, count = 4,
//	    actions = { Action.attack{ id = "scimitar", to_hit = 4, damage = "1d6+2" } } } } }
//	s:short_rest()
//	return s
//
// Tables use the same field names as the JSON format.
package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/skirmish/internal/combat/domain"
)

const (
	scenarioTypeName = "scenario"
	actionTypeName   = "action"
)

// baseActionKeys are the fields shared by every action kind; the remaining
// keys of an Action helper table form the kind's payload.
var baseActionKeys = map[string]bool{
	"id":       true,
	"name":     true,
	"slot":     true,
	"cost":     true,
	"targets":  true,
	"policy":   true,
	"pre_cast": true,
}

// LoadFile runs a scenario script, which must return a Scenario.
func LoadFile(path string) (domain.Scenario, error) {
	state := newState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return domain.Scenario{}, fmt.Errorf("load lua: %w", err)
	}
	return run(state)
}

// LoadString runs a scenario script held in memory.
func LoadString(source string) (domain.Scenario, error) {
	state := newState()
	if err := lua.LoadString(state, source); err != nil {
		return domain.Scenario{}, fmt.Errorf("load lua: %w", err)
	}
	return run(state)
}

func newState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerScenarioType(state)
	registerActionType(state)
	registerScenarioConstructor(state)
	registerActionHelpers(state)
	return state
}

func run(state *lua.State) (domain.Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return domain.Scenario{}, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return domain.Scenario{}, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	sc, ok := ud.(*domain.Scenario)
	if !ok || sc == nil {
		return domain.Scenario{}, fmt.Errorf("scenario script returned invalid Scenario")
	}
	return *sc, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerActionType(state *lua.State) {
	lua.NewMetaTable(state, actionTypeName)
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: scenarioNew}}, 0)
	state.SetGlobal("Scenario")
}

func registerActionHelpers(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{
		{Name: "attack", Function: actionHelper(domain.ActionAttack)},
		{Name: "heal", Function: actionHelper(domain.ActionHeal)},
		{Name: "buff", Function: actionHelper(domain.ActionBuff)},
		{Name: "debuff", Function: actionHelper(domain.ActionDebuff)},
		{Name: "template", Function: actionHelper(domain.ActionTemplate)},
	}, 0)
	state.SetGlobal("Action")
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	state.PushUserData(&domain.Scenario{Name: name})
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "describe", Function: scenarioDescribe},
	{Name: "player", Function: scenarioPlayer},
	{Name: "encounter", Function: scenarioEncounter},
	{Name: "short_rest", Function: scenarioRest(domain.StepShortRest)},
	{Name: "long_rest", Function: scenarioRest(domain.StepLongRest)},
}

func checkScenario(state *lua.State) *domain.Scenario {
	sc, _ := lua.CheckUserData(state, 1, scenarioTypeName).(*domain.Scenario)
	return sc
}

func scenarioDescribe(state *lua.State) int {
	sc := checkScenario(state)
	sc.Description = lua.CheckString(state, 2)
	return 0
}

func scenarioPlayer(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	var player domain.Creature
	if err := decode(tableToMap(state, 2), &player); err != nil {
		lua.Errorf(state, "player: %s", err.Error())
	}
	sc.Players = append(sc.Players, player)
	return 0
}

func scenarioEncounter(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	var encounter domain.Encounter
	if err := decode(tableToMap(state, 2), &encounter); err != nil {
		lua.Errorf(state, "encounter: %s", err.Error())
	}
	sc.Timeline = append(sc.Timeline, domain.TimelineStep{Kind: domain.StepEncounter, Encounter: &encounter})
	return 0
}

func scenarioRest(kind domain.StepKind) lua.Function {
	return func(state *lua.State) int {
		sc := checkScenario(state)
		sc.Timeline = append(sc.Timeline, domain.TimelineStep{Kind: kind})
		return 0
	}
}

// actionHelper builds an Action of kind from a flat table, splitting the
// shared fields from the kind's payload.
func actionHelper(kind domain.ActionKind) lua.Function {
	return func(state *lua.State) int {
		lua.CheckType(state, 1, lua.TypeTable)
		fields := tableToMap(state, 1)
		doc := map[string]any{"kind": kind}
		payload := map[string]any{}
		for key, value := range fields {
			if baseActionKeys[key] {
				doc[key] = value
			} else {
				payload[key] = value
			}
		}
		doc[string(kind)] = payload

		action := &domain.Action{}
		if err := decode(doc, action); err != nil {
			lua.Errorf(state, "%s action: %s", kind, err.Error())
		}
		state.PushUserData(action)
		lua.SetMetaTableNamed(state, actionTypeName)
		return 1
	}
}

// decode converts a Lua value tree into a domain type through its JSON
// form, rejecting unknown fields.
func decode(value any, target any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	case lua.TypeUserData:
		return state.ToUserData(index)
	default:
		return nil
	}
}

// tableToGo converts sequences to slices and everything else to maps.
// An empty table has no shape and becomes nil.
func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		count++
		if isArray {
			if idx, ok := state.ToInteger(-2); ok && state.TypeOf(-2) == lua.TypeNumber && idx > 0 {
				maxIndex = max(maxIndex, idx)
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}
	if count == 0 {
		return nil
	}

	if isArray && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}
	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
