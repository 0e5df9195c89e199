package check

import "testing"

func TestAgainst(t *testing.T) {
	tests := []struct {
		total, difficulty int
		want              Result
	}{
		{15, 15, Result{Success: true, Margin: 0}},
		{20, 15, Result{Success: true, Margin: 5}},
		{9, 15, Result{Success: false, Margin: -6}},
		{-2, 0, Result{Success: false, Margin: -2}},
	}

	for _, tt := range tests {
		if got := Against(tt.total, tt.difficulty); got != tt.want {
			t.Errorf("Against(%d, %d) = %+v, want %+v", tt.total, tt.difficulty, got, tt.want)
		}
	}
}

func TestSaveIgnoresNaturalFaces(t *testing.T) {
	if got := Save(13, 13); !got.Success {
		t.Errorf("Save(13, 13) = %+v, want success", got)
	}
	if got := Save(21, 25); got.Success {
		t.Errorf("Save(21, 25) = %+v, want failure", got)
	}
}

func TestAttack(t *testing.T) {
	tests := []struct {
		name         string
		natural      int
		total        int
		ac           int
		threshold    int
		wantHit      bool
		wantCritical bool
		wantFumble   bool
	}{
		{"beats armor", 12, 17, 15, 20, true, false, false},
		{"ties armor", 10, 15, 15, 20, true, false, false},
		{"misses armor", 12, 14, 15, 20, false, false, false},
		{"natural 20 always crits", 20, 21, 30, 20, true, true, false},
		{"natural 1 always misses", 1, 40, 10, 20, false, false, true},
		{"expanded crit range", 19, 22, 15, 19, true, true, false},
		{"invalid threshold defaults to 20", 19, 22, 15, 0, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Attack(tt.natural, tt.total, tt.ac, tt.threshold)
			if got.Success != tt.wantHit || got.Critical != tt.wantCritical || got.Fumble != tt.wantFumble {
				t.Errorf("Attack(%d, %d, %d, %d) = %+v, want hit=%v critical=%v fumble=%v",
					tt.natural, tt.total, tt.ac, tt.threshold, got, tt.wantHit, tt.wantCritical, tt.wantFumble)
			}
			if got.Margin != tt.total-tt.ac {
				t.Errorf("Attack() margin = %d, want %d", got.Margin, tt.total-tt.ac)
			}
		})
	}
}
