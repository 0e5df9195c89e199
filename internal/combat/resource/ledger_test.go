package resource

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestConsumeFailsInsteadOfClamping(t *testing.T) {
	var l Ledger
	l.Register(SpellSlot(1), 2, ResetLongRest)

	if err := l.Consume(SpellSlot(1), 3); !errors.Is(err, ErrInsufficientResource) {
		t.Fatalf("Consume(3) error = %v, want ErrInsufficientResource", err)
	}
	if got := l.Current(SpellSlot(1)); got != 2 {
		t.Fatalf("Current() = %d after failed consume, want 2", got)
	}
	if err := l.Consume(SpellSlot(1), 2); err != nil {
		t.Fatalf("Consume(2) error = %v", err)
	}
	if l.Has(SpellSlot(1), 1) {
		t.Fatal("expected empty pool")
	}
}

func TestConsumeUnknownResource(t *testing.T) {
	var l Ledger
	if err := l.Consume("ki", 1); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("Consume() error = %v, want ErrUnknownResource", err)
	}
	if !l.Has("ki", 0) {
		t.Fatal("zero amount must always be available")
	}
}

func TestRestoreClampsAtMax(t *testing.T) {
	var l Ledger
	l.Register(HitDice, 3, ResetLongRest)
	_ = l.Consume(HitDice, 2)
	if err := l.Restore(HitDice, 10); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got := l.Current(HitDice); got != 3 {
		t.Fatalf("Current() = %d, want 3", got)
	}
}

func TestRestoreUnregisteredIsUnbounded(t *testing.T) {
	var l Ledger
	_ = l.Restore("inspiration", 4)
	_ = l.Restore("inspiration", 4)
	if got := l.Current("inspiration"); got != 8 {
		t.Fatalf("Current() = %d, want 8", got)
	}
	pool, _ := l.Pool("inspiration")
	if !pool.Unbounded {
		t.Fatal("expected unbounded pool")
	}
}

func TestResetRules(t *testing.T) {
	tests := []struct {
		name     string
		incoming ResetRule
		want     map[Kind]int
	}{
		{"turn refills turn pools only", ResetTurn, map[Kind]int{Action: 1, "ki": 0, SpellSlot(1): 0, "relic": 0}},
		{"short rest refills turn and short", ResetShortRest, map[Kind]int{Action: 1, "ki": 2, SpellSlot(1): 0, "relic": 0}},
		{"long rest satisfies short rest rules", ResetLongRest, map[Kind]int{Action: 1, "ki": 2, SpellSlot(1): 4, "relic": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l Ledger
			l.Register(Action, 1, ResetTurn)
			l.Register("ki", 2, ResetShortRest)
			l.Register(SpellSlot(1), 4, ResetLongRest)
			l.Register("relic", 1, ResetNever)
			for _, kind := range l.Kinds() {
				_ = l.Consume(kind, l.Current(kind))
			}

			l.Reset(tt.incoming)
			for kind, want := range tt.want {
				if got := l.Current(kind); got != want {
					t.Errorf("Current(%s) = %d, want %d", kind, got, want)
				}
			}
		})
	}
}

func TestSpentIgnoresTurnPools(t *testing.T) {
	var l Ledger
	l.Register(SpellSlot(1), 4, ResetLongRest)
	l.Register(Reaction, 1, ResetTurn)
	_ = l.Restore("ki", 3)
	_ = l.Consume(SpellSlot(1), 3)
	_ = l.Consume(Reaction, 1)
	_ = l.Consume("ki", 2)

	if got := l.Spent(); got != 3 {
		t.Fatalf("Spent() = %d, want 3", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	var l Ledger
	l.Register(Reaction, 1, ResetTurn)
	c := l.Clone()
	_ = l.Consume(Reaction, 1)
	if c.Current(Reaction) != 1 {
		t.Fatal("clone shares state with original")
	}
}

func TestLedgerBoundsProperty(t *testing.T) {
	kinds := []Kind{Action, Reaction, "ki", SpellSlot(2), "loose"}
	rules := []ResetRule{ResetTurn, ResetShortRest, ResetLongRest, ResetNever}

	rapid.Check(t, func(t *rapid.T) {
		var l Ledger
		for _, kind := range kinds[:4] {
			l.Register(kind, rapid.IntRange(0, 6).Draw(t, string(kind)+"_max"), rapid.SampledFrom(rules).Draw(t, string(kind)+"_rule"))
		}

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := range steps {
			kind := rapid.SampledFrom(kinds).Draw(t, "kind")
			amount := rapid.IntRange(0, 8).Draw(t, "amount")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				before := l.Current(kind)
				err := l.Consume(kind, amount)
				if err != nil && l.Current(kind) != before {
					t.Fatalf("step %d: failed consume mutated %s", i, kind)
				}
			case 1:
				_ = l.Restore(kind, amount)
			default:
				l.Reset(rapid.SampledFrom(rules).Draw(t, "reset"))
			}

			for _, k := range l.Kinds() {
				pool, _ := l.Pool(k)
				if pool.Current < 0 || pool.Current > pool.Max {
					t.Fatalf("step %d: %s out of bounds: %+v", i, k, pool)
				}
			}
		}
	})
}
