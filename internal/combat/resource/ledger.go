// Package resource tracks a combatant's consumable quantities (action slots,
// spell slots, hit dice, class resources) and the rules that refill them.
//
// Every pool satisfies 0 <= Current <= Max after every mutation. Consuming
// more than is available fails instead of clamping; restoring clamps at Max.
package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrInsufficientResource indicates a consume larger than the pool's current value.
	ErrInsufficientResource = errors.New("insufficient resource")
	// ErrUnknownResource indicates a consume against a kind that was never registered.
	ErrUnknownResource = errors.New("unknown resource")
	// ErrInvalidAmount indicates a negative amount.
	ErrInvalidAmount = errors.New("resource amount must not be negative")
)

// Kind names a resource pool.
type Kind string

const (
	Action      Kind = "action"
	BonusAction Kind = "bonus_action"
	Reaction    Kind = "reaction"
	HitDice     Kind = "hit_dice"
)

// SpellSlot returns the kind for spell slots of the given level.
func SpellSlot(level int) Kind {
	return Kind(fmt.Sprintf("spell_slot_%d", level))
}

// ResetRule says which reset refills a pool.
type ResetRule string

const (
	ResetTurn      ResetRule = "turn"
	ResetShortRest ResetRule = "short_rest"
	ResetLongRest  ResetRule = "long_rest"
	ResetNever     ResetRule = "never"
)

// rank orders reset rules; an incoming reset satisfies every rule of equal
// or lower rank, so a long rest also refills short-rest pools.
func (r ResetRule) rank() int {
	switch r {
	case ResetTurn:
		return 0
	case ResetShortRest:
		return 1
	case ResetLongRest, "":
		return 2
	default:
		return math.MaxInt
	}
}

// Satisfies reports whether an incoming reset refills a pool with rule r.
func (r ResetRule) Satisfies(incoming ResetRule) bool {
	if incoming == ResetNever {
		return false
	}
	return r.rank() <= incoming.rank()
}

// Pool is the state of one resource kind.
type Pool struct {
	Current int       `json:"current"`
	Max     int       `json:"max"`
	Reset   ResetRule `json:"reset"`
	// Unbounded pools were never registered with a maximum.
	Unbounded bool `json:"unbounded,omitempty"`
}

// Ledger maps resource kinds to pools. The zero value is an empty ledger.
type Ledger struct {
	pools map[Kind]Pool
}

// Register declares a pool at full capacity, replacing any existing pool.
// A negative max is treated as zero.
func (l *Ledger) Register(kind Kind, max int, rule ResetRule) {
	if l.pools == nil {
		l.pools = make(map[Kind]Pool)
	}
	max = clampNonNegative(max)
	l.pools[kind] = Pool{Current: max, Max: max, Reset: rule}
}

// Has reports whether at least amount of kind is available.
// Non-positive amounts are always available.
func (l *Ledger) Has(kind Kind, amount int) bool {
	if amount <= 0 {
		return true
	}
	pool, ok := l.pools[kind]
	return ok && pool.Current >= amount
}

// Consume decrements kind by amount.
func (l *Ledger) Consume(kind Kind, amount int) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	pool, ok := l.pools[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, kind)
	}
	if pool.Current < amount {
		return fmt.Errorf("%w: %s needs %d, has %d", ErrInsufficientResource, kind, amount, pool.Current)
	}
	pool.Current -= amount
	l.pools[kind] = pool
	return nil
}

// Restore increments kind by amount, clamped at the pool's max. A kind that
// was never registered becomes an unbounded pool.
func (l *Ledger) Restore(kind Kind, amount int) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if l.pools == nil {
		l.pools = make(map[Kind]Pool)
	}
	pool, ok := l.pools[kind]
	if !ok {
		pool = Pool{Reset: ResetNever, Unbounded: true}
	}
	pool.Current += amount
	if pool.Unbounded {
		pool.Max = max(pool.Max, pool.Current)
	} else {
		pool.Current = min(pool.Current, pool.Max)
	}
	l.pools[kind] = pool
	return nil
}

// Reset refills every pool whose rule is satisfied by the incoming reset.
// Unbounded pools have no capacity to refill to and are left untouched.
func (l *Ledger) Reset(incoming ResetRule) {
	for kind, pool := range l.pools {
		if pool.Unbounded || !pool.Reset.Satisfies(incoming) {
			continue
		}
		pool.Current = pool.Max
		l.pools[kind] = pool
	}
}

// Current returns the available amount of kind, zero when unknown.
func (l *Ledger) Current(kind Kind) int {
	return l.pools[kind].Current
}

// Pool returns the pool for kind.
func (l *Ledger) Pool(kind Kind) (Pool, bool) {
	pool, ok := l.pools[kind]
	return pool, ok
}

// Kinds returns every registered kind in sorted order.
func (l *Ledger) Kinds() []Kind {
	kinds := make([]Kind, 0, len(l.pools))
	for kind := range l.pools {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Spent returns how much of every bounded pool is currently used. Pools
// refilled every turn are not counted.
func (l *Ledger) Spent() int {
	spent := 0
	for _, pool := range l.pools {
		if !pool.Unbounded && pool.Reset != ResetTurn {
			spent += pool.Max - pool.Current
		}
	}
	return spent
}

// Clone returns an independent copy of the ledger.
func (l Ledger) Clone() Ledger {
	if l.pools == nil {
		return Ledger{}
	}
	pools := make(map[Kind]Pool, len(l.pools))
	for kind, pool := range l.pools {
		pools[kind] = pool
	}
	return Ledger{pools: pools}
}

// MarshalJSON encodes the ledger as a kind -> pool object.
func (l Ledger) MarshalJSON() ([]byte, error) {
	if l.pools == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(l.pools)
}

// UnmarshalJSON decodes a kind -> pool object.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var pools map[Kind]Pool
	if err := json.Unmarshal(data, &pools); err != nil {
		return err
	}
	l.pools = pools
	return nil
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
