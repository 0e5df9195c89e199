package dice

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// sequence replays fixed die faces regardless of die size.
type sequence struct {
	values []int
	next   int
}

func (s *sequence) Intn(n int) int {
	if s.next >= len(s.values) {
		return 0
	}
	v := s.values[s.next] - 1
	s.next++
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

func TestParseRejectsMalformedFormulas(t *testing.T) {
	for _, expr := range []string{"2d", "d", "1d6+", "(1d6", "2d6kh3", "abc", "1d0", "0d6", "1d6)"} {
		t.Run(expr, func(t *testing.T) {
			if _, err := Parse(expr); !errors.Is(err, ErrInvalidFormula) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidFormula", expr, err)
			}
		})
	}
}

func TestFormulaEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		expr       string
		faces      []int
		critical   bool
		wantTotal  int
		wantStatic int
		wantRolls  int
	}{
		{"constant", "7", nil, false, 7, 7, 0},
		{"dice plus modifier", "2d6+3", []int{4, 5}, false, 12, 3, 1},
		{"implicit count", "d8", []int{6}, false, 6, 0, 1},
		{"negative modifier", "1d8 - 2", []int{1}, false, -1, -2, 1},
		{"multiplication", "(1d4+1)*2", []int{3}, false, 8, 5, 1},
		{"keep highest", "2d20kh1", []int{3, 17}, false, 17, 0, 1},
		{"keep lowest", "2d20kl1", []int{3, 17}, false, 3, 0, 1},
		{"critical doubles dice only", "1d8+3", []int{5, 6}, true, 14, 3, 1},
		{"critical with two terms", "1d6+1d4+2", []int{6, 6, 4, 4}, true, 22, 2, 2},
		{"unary minus", "-2+1d4", []int{4}, false, 2, -2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.expr, err)
			}
			got := f.Evaluate(&sequence{values: tt.faces}, tt.critical)
			if got.Total != tt.wantTotal {
				t.Errorf("Evaluate(%q).Total = %d, want %d", tt.expr, got.Total, tt.wantTotal)
			}
			if got.Static != tt.wantStatic {
				t.Errorf("Evaluate(%q).Static = %d, want %d", tt.expr, got.Static, tt.wantStatic)
			}
			if len(got.Rolls) != tt.wantRolls {
				t.Errorf("Evaluate(%q) rolls = %d, want %d", tt.expr, len(got.Rolls), tt.wantRolls)
			}
		})
	}
}

func TestFormulaCriticalRollsTwiceTheDice(t *testing.T) {
	f := MustParse("3d6+2")
	got := f.Evaluate(rand.New(rand.NewSource(9)), true)
	if len(got.Rolls) != 1 || len(got.Rolls[0].Faces) != 6 {
		t.Fatalf("critical rolls = %+v, want one term with 6 faces", got.Rolls)
	}
}

func TestFormulaStatistics(t *testing.T) {
	tests := []struct {
		expr    string
		average float64
		min     int
		max     int
	}{
		{"", 0, 0, 0},
		{"2d6+3", 10, 5, 15},
		{"1d20-1d4", 8, -3, 19},
		{"2d20kh1", 13.825, 1, 20},
		{"(1d4)*3", 7.5, 3, 12},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f := MustParse(tt.expr)
			if got := f.Average(); math.Abs(got-tt.average) > 1e-9 {
				t.Errorf("Average() = %v, want %v", got, tt.average)
			}
			if got := f.Min(); got != tt.min {
				t.Errorf("Min() = %d, want %d", got, tt.min)
			}
			if got := f.Max(); got != tt.max {
				t.Errorf("Max() = %d, want %d", got, tt.max)
			}
		})
	}
}

func TestFormulaEvaluateStaysWithinBounds(t *testing.T) {
	f := MustParse("4d6kh3+1d8-2")
	rng := rand.New(rand.NewSource(3))
	for range 500 {
		got := f.Evaluate(rng, false).Total
		if got < f.Min() || got > f.Max() {
			t.Fatalf("Evaluate() = %d outside [%d, %d]", got, f.Min(), f.Max())
		}
	}
}

func TestEmptyFormula(t *testing.T) {
	var f Formula
	if !f.IsZero() || f.HasDice() {
		t.Fatal("expected zero formula without dice")
	}
	if got := f.Evaluate(nil, true).Total; got != 0 {
		t.Fatalf("Evaluate() = %d, want 0", got)
	}
}
