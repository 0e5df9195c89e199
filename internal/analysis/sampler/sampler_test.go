package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pgregory.net/rapid"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/engine"
)

func skirmish(t testing.TB) *engine.Plan {
	t.Helper()
	wolves := domain.Encounter{Name: "wolves", Monsters: []domain.Creature{{
		ID: "wolf", HP: 11, AC: 13, Count: 2,
		Actions: []domain.Action{{ID: "bite", Kind: domain.ActionAttack, Attack: &domain.AttackSpec{ToHit: 4, Damage: "2d4+2"}}},
	}}}
	bandit := domain.Encounter{Name: "bandit", Monsters: []domain.Creature{{
		ID: "bandit", HP: 16, AC: 12,
		Actions: []domain.Action{{ID: "scimitar", Kind: domain.ActionAttack, Attack: &domain.AttackSpec{ToHit: 3, Damage: "1d6+1"}}},
	}}}
	plan, err := engine.Compile(domain.Scenario{
		Name: "road",
		Players: []domain.Creature{
			{ID: "ranger", HP: 18, AC: 14, Actions: []domain.Action{{ID: "longbow", Kind: domain.ActionAttack, Attack: &domain.AttackSpec{ToHit: 5, Damage: "1d8+3"}}}},
			{ID: "squire", HP: 12, AC: 16, Actions: []domain.Action{{ID: "spear", Kind: domain.ActionAttack, Attack: &domain.AttackSpec{ToHit: 3, Damage: "1d6+1"}}}},
		},
		Timeline: []domain.TimelineStep{
			{Kind: domain.StepEncounter, Encounter: &wolves},
			{Kind: domain.StepShortRest},
			{Kind: domain.StepEncounter, Encounter: &bandit},
		},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return plan
}

type memoryStore struct {
	mu    sync.Mutex
	runs  map[int64]domain.LightweightRun
	saves int
}

func (m *memoryStore) LoadRuns(_ context.Context, _ string, from, to int64) (map[int64]domain.LightweightRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]domain.LightweightRun{}
	for seed, run := range m.runs {
		if seed >= from && seed <= to {
			out[seed] = run
		}
	}
	return out, nil
}

func (m *memoryStore) SaveRuns(_ context.Context, _ string, runs []domain.LightweightRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs == nil {
		m.runs = map[int64]domain.LightweightRun{}
	}
	for _, run := range runs {
		m.runs[run.Seed] = run
	}
	m.saves++
	return nil
}

func TestCacheClearsWholesale(t *testing.T) {
	c := NewCache(2)
	c.Put("h", domain.LightweightRun{Seed: 1})
	c.Put("h", domain.LightweightRun{Seed: 2})
	c.Put("h", domain.LightweightRun{Seed: 2, Score: 5})
	if got := c.Stats(); got.Len != 2 || got.Clears != 0 {
		t.Fatalf("Stats() = %+v, overwrite must not clear", got)
	}

	c.Put("h", domain.LightweightRun{Seed: 3})
	if got := c.Stats(); got.Len != 1 || got.Clears != 1 {
		t.Fatalf("Stats() = %+v, want a single entry after clearing", got)
	}
	if _, ok := c.Get("h", 1); ok {
		t.Fatal("seed 1 survived the clear")
	}
	if _, ok := c.Get("other", 3); ok {
		t.Fatal("hash is not part of the key")
	}

	var nilCache *Cache
	nilCache.Put("h", domain.LightweightRun{Seed: 1})
	if _, ok := nilCache.Get("h", 1); ok {
		t.Fatal("nil cache stored a run")
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	c := NewCache(0)
	c.Put("h", domain.LightweightRun{Seed: 1, EncounterScores: []float64{10}})
	got, _ := c.Get("h", 1)
	got.EncounterScores[0] = 99
	again, _ := c.Get("h", 1)
	if again.EncounterScores[0] != 10 {
		t.Fatal("cache shares slices with callers")
	}
}

func TestSelectSeeds(t *testing.T) {
	runs := make([]domain.LightweightRun, 1000)
	for i := range runs {
		runs[i] = domain.LightweightRun{
			Seed:                int64(i),
			Score:               float64((i * 37) % 1000),
			EncounterScores:     []float64{float64(i % 50)},
			FirstDeathEncounter: -1,
		}
	}
	// Seed 500 scores 500: the p50 decile marker.
	runs[500].HasDeath = true

	selections := SelectSeeds(runs, 1)
	bySeed := map[int64]Selection{}
	for i, sel := range selections {
		if i > 0 && selections[i-1].Seed >= sel.Seed {
			t.Fatal("selections are not in seed order")
		}
		bySeed[sel.Seed] = sel
	}

	full := 0
	for _, sel := range selections {
		if sel.Tier == TierFull {
			full++
		}
	}
	if full != len(DecilePercentiles) {
		t.Fatalf("full tier selections = %d, want %d", full, len(DecilePercentiles))
	}
	if len(selections) > PercentileBuckets+len(DecilePercentiles)+3+1 {
		t.Fatalf("selected %d seeds", len(selections))
	}

	median, ok := bySeed[500]
	if !ok || median.Tier != TierFull || len(median.Reasons) != 2 {
		t.Fatalf("median selection = %+v, want full tier with decile and death reasons", median)
	}
}

func TestSelectSeedsEmpty(t *testing.T) {
	if got := SelectSeeds(nil, 3); got != nil {
		t.Fatalf("SelectSeeds(nil) = %v", got)
	}
}

func TestSurveyIsIndependentOfWorkers(t *testing.T) {
	plan := skirmish(t)
	rapid.Check(t, func(rt *rapid.T) {
		base := rapid.Int64Range(-1_000_000, 1_000_000).Draw(rt, "base")
		n := rapid.IntRange(1, 40).Draw(rt, "iterations")
		workers := rapid.IntRange(1, 8).Draw(rt, "workers")

		s, err := New(plan, Config{Iterations: n, BaseSeed: base, Workers: workers})
		if err != nil {
			rt.Fatalf("New() error = %v", err)
		}
		runs, err := s.Survey(context.Background())
		if err != nil {
			rt.Fatalf("Survey() error = %v", err)
		}
		for i, run := range runs {
			want := plan.Survey(base + int64(i))
			if run.Seed != want.Seed || run.Score != want.Score || run.Survivors != want.Survivors {
				rt.Fatalf("run %d = %+v, want %+v", i, run, want)
			}
		}
	})
}

func TestTwoPassReplaysReproduceSurvey(t *testing.T) {
	report, err := RunTwoPass(context.Background(), skirmish(t), Config{
		Iterations:       600,
		BaseSeed:         1234,
		Workers:          4,
		TwoPassThreshold: 100,
	})
	if err != nil {
		t.Fatalf("RunTwoPass() error = %v", err)
	}
	if !report.TwoPass || len(report.Survey) != 600 || len(report.Results) != 0 {
		t.Fatalf("report: two pass %v, survey %d, results %d", report.TwoPass, len(report.Survey), len(report.Results))
	}
	if len(report.Replays) == 0 {
		t.Fatal("no replays")
	}
	for _, r := range report.Replays {
		switch r.Tier {
		case TierFull:
			if len(r.Events) == 0 || len(r.Result.Encounters[0].Snapshots) == 0 {
				t.Fatalf("full replay %d lacks detail", r.Seed)
			}
		case TierLean:
			if len(r.Events) == 0 || len(r.Result.Encounters[0].Snapshots) != 0 {
				t.Fatalf("lean replay %d has wrong detail", r.Seed)
			}
		case TierNone:
			if len(r.Events) != 0 {
				t.Fatalf("none replay %d kept events", r.Seed)
			}
		}
	}
}

func TestSinglePassLogging(t *testing.T) {
	report, err := RunTwoPass(context.Background(), skirmish(t), Config{Iterations: 20, MaxLoggedRuns: 50})
	if err != nil {
		t.Fatalf("RunTwoPass() error = %v", err)
	}
	if report.TwoPass || len(report.Results) != 20 || len(report.Survey) != 20 || len(report.Replays) != 20 {
		t.Fatalf("report: two pass %v, results %d, survey %d, replays %d", report.TwoPass, len(report.Results), len(report.Survey), len(report.Replays))
	}
	for i, run := range report.Survey {
		if run.Score != report.Results[i].Score {
			t.Fatalf("survey %d out of step with results", i)
		}
		if len(report.Replays[i].Events) == 0 {
			t.Fatalf("logged run %d has no events", i)
		}
	}
}

func TestSinglePassAboveLoggingCapKeepsOnlySelectedResults(t *testing.T) {
	plan := skirmish(t)
	report, err := RunTwoPass(context.Background(), plan, Config{Iterations: 120, MaxLoggedRuns: 10})
	if err != nil {
		t.Fatalf("RunTwoPass() error = %v", err)
	}
	if report.TwoPass || len(report.Results) != 0 || len(report.Survey) != 120 {
		t.Fatalf("report: two pass %v, results %d, survey %d", report.TwoPass, len(report.Results), len(report.Survey))
	}

	selections := SelectSeeds(report.Survey, plan.Scenario().EncounterCount())
	if len(report.Replays) != len(selections) {
		t.Fatalf("replays = %d, want the %d selected seeds", len(report.Replays), len(selections))
	}
	for i, r := range report.Replays {
		if r.Seed != selections[i].Seed || r.Tier != selections[i].Tier {
			t.Fatalf("replay %d = seed %d tier %s, want seed %d tier %s", i, r.Seed, r.Tier, selections[i].Seed, selections[i].Tier)
		}
	}
	if err := Verify(report.Survey, report.Replays); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestSurveyReusesCacheAndStore(t *testing.T) {
	plan := skirmish(t)
	store := &memoryStore{}
	cache := NewCache(1000)
	cfg := Config{Iterations: 50, BaseSeed: 9, Cache: cache, Store: store}

	s, _ := New(plan, cfg)
	first, err := s.Survey(context.Background())
	if err != nil {
		t.Fatalf("Survey() error = %v", err)
	}
	if len(store.runs) != 50 || store.saves != 1 {
		t.Fatalf("store holds %d runs after %d saves", len(store.runs), store.saves)
	}

	again, _ := s.Survey(context.Background())
	if got := cache.Stats().Hits; got != 50 {
		t.Fatalf("cache hits = %d, want 50", got)
	}
	if store.saves != 1 {
		t.Fatal("cached survey saved again")
	}

	cfg.Cache = NewCache(1000)
	fromStore, _ := New(plan, cfg)
	third, _ := fromStore.Survey(context.Background())
	if store.saves != 1 {
		t.Fatal("stored survey saved again")
	}
	for i := range first {
		if first[i].Score != again[i].Score || first[i].Score != third[i].Score {
			t.Fatalf("run %d differs across cached surveys", i)
		}
	}
}

func TestVerifyDetectsDivergence(t *testing.T) {
	survivor := domain.Combattant{ID: "ranger", FinalState: domain.CreatureState{HP: 12, MaxHP: 30}}
	fallen := domain.Combattant{ID: "squire", FinalState: domain.CreatureState{MaxHP: 25}}
	survey := []domain.LightweightRun{{Seed: 4, Score: 120, Survivors: 1}}

	tests := []struct {
		name          string
		score         float64
		players       []domain.Combattant
		wantSurvivors int
		wantErr       bool
	}{
		{"score differs", 90, []domain.Combattant{survivor, fallen}, 1, true},
		{"survivors differ", 120, []domain.Combattant{fallen, fallen}, 0, true},
		{"within tolerance", 120 + 1e-12, []domain.Combattant{survivor, fallen}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replays := []Replay{{Selection: Selection{Seed: 4}, Result: domain.SimulationResult{Seed: 4, Score: tt.score, Players: tt.players}}}
			err := Verify(survey, replays)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
				return
			}
			var divergence *DivergenceError
			if !errors.As(err, &divergence) {
				t.Fatalf("Verify() error = %v, want DivergenceError", err)
			}
			if divergence.Seed != 4 || divergence.SurveySurvivors != 1 || divergence.ReplaySurvivors != tt.wantSurvivors {
				t.Fatalf("DivergenceError = %+v", divergence)
			}
		})
	}
}

func TestConfigErrors(t *testing.T) {
	if _, err := New(skirmish(t), Config{}); !errors.Is(err, ErrNoIterations) {
		t.Fatalf("New() error = %v, want ErrNoIterations", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, _ := New(skirmish(t), Config{Iterations: 10, TwoPassThreshold: 5})
	if _, err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}
