package domain

import (
	"fmt"

	"github.com/louisbranch/skirmish/internal/combat/resource"
)

// ActionKind tags the payload an Action carries.
type ActionKind string

const (
	ActionAttack   ActionKind = "attack"
	ActionHeal     ActionKind = "heal"
	ActionBuff     ActionKind = "buff"
	ActionDebuff   ActionKind = "debuff"
	ActionTemplate ActionKind = "template"
)

// Slot is the part of a turn an action occupies.
type Slot string

const (
	SlotAction      Slot = "action"
	SlotBonusAction Slot = "bonus_action"
)

// Resource returns the per-turn resource the slot consumes.
func (s Slot) Resource() resource.Kind {
	if s == SlotBonusAction {
		return resource.BonusAction
	}
	return resource.Action
}

// TargetPolicy chooses targets for an action.
type TargetPolicy string

const (
	TargetEnemyLowestHP   TargetPolicy = "enemy_lowest_hp"
	TargetEnemyHighestHP  TargetPolicy = "enemy_highest_hp"
	TargetEnemyHighestDPR TargetPolicy = "enemy_highest_dpr"
	TargetEnemyLowestAC   TargetPolicy = "enemy_lowest_ac"
	TargetEnemyHighestAC  TargetPolicy = "enemy_highest_ac"
	TargetEnemyFirst      TargetPolicy = "enemy_first"
	TargetSelf            TargetPolicy = "self"
	TargetAllyMostInjured TargetPolicy = "ally_most_injured"
	TargetAllyHighestDPR  TargetPolicy = "ally_highest_dpr"
	TargetAllyFirst       TargetPolicy = "ally_first"
)

// Action is a closed tagged union: Kind selects which payload is set.
type Action struct {
	ID   string     `json:"id"`
	Name string     `json:"name,omitempty"`
	Kind ActionKind `json:"kind" jsonschema:"enum=attack,enum=heal,enum=buff,enum=debuff,enum=template"`
	Slot Slot       `json:"slot,omitempty"`
	// Cost is consumed in addition to the slot's per-turn resource.
	Cost []ResourceCost `json:"cost,omitempty"`
	// Targets caps how many targets the action affects.
	Targets int          `json:"targets,omitempty"`
	Policy  TargetPolicy `json:"policy,omitempty"`
	// PreCast actions are used before initiative when the encounter allows it.
	PreCast bool `json:"pre_cast,omitempty"`

	Attack   *AttackSpec   `json:"attack,omitempty"`
	Heal     *HealSpec     `json:"heal,omitempty"`
	Buff     *BuffSpec     `json:"buff,omitempty"`
	Debuff   *DebuffSpec   `json:"debuff,omitempty"`
	Template *TemplateSpec `json:"template,omitempty"`
}

// AttackSpec is a weapon or spell attack roll against AC.
type AttackSpec struct {
	ToHit  int    `json:"to_hit"`
	Damage string `json:"damage"`
	// Count is the number of swings; each swing retargets if its target fell.
	Count int `json:"count,omitempty"`
	// CritThreshold is the lowest natural roll that crits; zero means 20.
	CritThreshold int     `json:"crit_threshold,omitempty"`
	Riders        []Rider `json:"riders,omitempty"`
}

// Rider is a condition applied by a successful hit, optionally resisted by a save.
type Rider struct {
	Buff        Buff    `json:"buff"`
	SaveDC      int     `json:"save_dc,omitempty"`
	SaveAbility Ability `json:"save_ability,omitempty"`
}

// HealSpec restores hit points or grants temporary hit points.
type HealSpec struct {
	Amount string `json:"amount"`
	TempHP bool   `json:"temp_hp,omitempty"`
}

// BuffSpec applies a beneficial effect with no roll.
type BuffSpec struct {
	Buff Buff `json:"buff"`
}

// DebuffSpec applies an effect the target may resist with a saving throw.
type DebuffSpec struct {
	Buff        Buff    `json:"buff"`
	SaveDC      int     `json:"save_dc"`
	SaveAbility Ability `json:"save_ability"`
}

// TemplateSpec is an area effect: damage is rolled once and each target
// saves separately.
type TemplateSpec struct {
	Template    string  `json:"template,omitempty"`
	Damage      string  `json:"damage"`
	SaveDC      int     `json:"save_dc"`
	SaveAbility Ability `json:"save_ability"`
	HalfOnSave  bool    `json:"half_on_save,omitempty"`
	Condition   *Buff   `json:"condition,omitempty"`
}

// DisplayName returns Name or falls back to ID.
func (a Action) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// SlotOrDefault returns the action's slot, defaulting to the action slot.
func (a Action) SlotOrDefault() Slot {
	if a.Slot == "" {
		return SlotAction
	}
	return a.Slot
}

// TargetCount returns how many targets the action wants, at least one.
func (a Action) TargetCount() int {
	if a.Targets < 1 {
		return 1
	}
	return a.Targets
}

// PolicyOrDefault returns the configured policy or the kind's default.
func (a Action) PolicyOrDefault() TargetPolicy {
	if a.Policy != "" {
		return a.Policy
	}
	switch a.Kind {
	case ActionHeal:
		return TargetAllyMostInjured
	case ActionBuff:
		return TargetSelf
	default:
		return TargetEnemyLowestHP
	}
}

// Validate checks that exactly the payload named by Kind is present and
// that every formula parses.
func (a Action) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidAction)
	}
	payloads := 0
	for _, set := range []bool{a.Attack != nil, a.Heal != nil, a.Buff != nil, a.Debuff != nil, a.Template != nil} {
		if set {
			payloads++
		}
	}
	if payloads != 1 {
		return fmt.Errorf("%w: %s: want exactly one payload, got %d", ErrInvalidAction, a.ID, payloads)
	}

	var err error
	switch a.Kind {
	case ActionAttack:
		if a.Attack == nil {
			return a.missing()
		}
		err = validFormula(a.Attack.Damage)
		for _, rider := range a.Attack.Riders {
			if err == nil {
				err = rider.Buff.Validate()
			}
		}
	case ActionHeal:
		if a.Heal == nil {
			return a.missing()
		}
		err = validFormula(a.Heal.Amount)
	case ActionBuff:
		if a.Buff == nil {
			return a.missing()
		}
		err = a.Buff.Buff.Validate()
	case ActionDebuff:
		if a.Debuff == nil {
			return a.missing()
		}
		err = a.Debuff.Buff.Validate()
	case ActionTemplate:
		if a.Template == nil {
			return a.missing()
		}
		err = validFormula(a.Template.Damage)
		if err == nil && a.Template.Condition != nil {
			err = a.Template.Condition.Validate()
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidAction, a.ID, a.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidAction, a.ID, err)
	}
	if a.Slot != "" && a.Slot != SlotAction && a.Slot != SlotBonusAction {
		return fmt.Errorf("%w: %s: unknown slot %q", ErrInvalidAction, a.ID, a.Slot)
	}
	return validCosts(a.ID, a.Cost)
}

func validCosts(owner string, costs []ResourceCost) error {
	for _, cost := range costs {
		if cost.Kind == "" || cost.Amount < 0 {
			return fmt.Errorf("%w: %s: invalid cost %+v", ErrInvalidAction, owner, cost)
		}
	}
	return nil
}

func (a Action) missing() error {
	return fmt.Errorf("%w: %s: kind %s without %s payload", ErrInvalidAction, a.ID, a.Kind, a.Kind)
}
