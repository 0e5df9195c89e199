// Package sampler runs Monte Carlo batches of a scenario. Small batches run
// once with full detail. Large batches run a lightweight survey of every
// seed, select the runs worth inspecting, replay only those with logging and
// verify each replay reproduces its surveyed score and survivors.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/engine"
	"github.com/louisbranch/skirmish/internal/combat/event"
	"github.com/louisbranch/skirmish/internal/scenario"
)

const tracerName = "github.com/louisbranch/skirmish/internal/analysis/sampler"

const (
	// DefaultTwoPassThreshold is the batch size above which the two-pass
	// strategy is used.
	DefaultTwoPassThreshold = 2000
	// DefaultMaxLoggedRuns caps how many single-pass runs keep event logs.
	DefaultMaxLoggedRuns = 500
)

// ErrNoIterations indicates a batch with no runs.
var ErrNoIterations = errors.New("iterations must be positive")

// scoreTolerance bounds the score difference a replay may show against its
// survey run.
const scoreTolerance = 1e-10

// DivergenceError reports a replay whose score or survivor count differs
// from its survey.
type DivergenceError struct {
	Seed            int64
	SurveyScore     float64
	ReplayScore     float64
	SurveySurvivors int
	ReplaySurvivors int
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("seed %d diverged: survey score %v with %d survivors, replay score %v with %d survivors",
		e.Seed, e.SurveyScore, e.SurveySurvivors, e.ReplayScore, e.ReplaySurvivors)
}

// RunStore persists survey runs across processes.
type RunStore interface {
	// LoadRuns returns stored runs for seeds in [from, to].
	LoadRuns(ctx context.Context, scenarioHash string, from, to int64) (map[int64]domain.LightweightRun, error)
	SaveRuns(ctx context.Context, scenarioHash string, runs []domain.LightweightRun) error
}

// Config controls a batch.
type Config struct {
	Iterations int
	// BaseSeed seeds iteration i with BaseSeed+i.
	BaseSeed int64
	// Workers bounds concurrent runs; zero uses GOMAXPROCS.
	Workers          int
	TwoPassThreshold int
	MaxLoggedRuns    int
	Cache            *Cache
	Store            RunStore
	Logger           logrus.FieldLogger
}

// Replay is a selected run re-executed with detail.
type Replay struct {
	Selection
	Result domain.SimulationResult `json:"result"`
	Events []event.Event           `json:"events,omitempty"`
}

// Report is the outcome of a batch.
type Report struct {
	ScenarioHash string `json:"scenario_hash"`
	BaseSeed     int64  `json:"base_seed"`
	Iterations   int    `json:"iterations"`
	TwoPass      bool   `json:"two_pass"`
	// Survey summarizes every run in iteration order.
	Survey []domain.LightweightRun `json:"survey"`
	// Results holds every full result of a single-pass batch small enough
	// to be logged.
	Results []domain.SimulationResult `json:"results,omitempty"`
	// Replays holds the detailed runs, in seed order.
	Replays []Replay `json:"replays,omitempty"`
}

// Sampler runs batches of one compiled scenario.
type Sampler struct {
	plan   *engine.Plan
	hash   string
	cfg    Config
	log    logrus.FieldLogger
	tracer trace.Tracer
}

// New prepares a sampler. Zero thresholds take their defaults.
func New(plan *engine.Plan, cfg Config) (*Sampler, error) {
	if cfg.Iterations <= 0 {
		return nil, ErrNoIterations
	}
	hash, err := scenario.Hash(plan.Scenario())
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.TwoPassThreshold <= 0 {
		cfg.TwoPassThreshold = DefaultTwoPassThreshold
	}
	if cfg.MaxLoggedRuns < 0 {
		cfg.MaxLoggedRuns = 0
	}
	log := cfg.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Sampler{
		plan:   plan,
		hash:   hash,
		cfg:    cfg,
		log:    log.WithFields(logrus.Fields{"scenario": plan.Scenario().Name, "scenario_hash": hash}),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// ScenarioHash returns the hash runs are cached and stored under.
func (s *Sampler) ScenarioHash() string { return s.hash }

// RunTwoPass runs one batch of plan with cfg.
func RunTwoPass(ctx context.Context, plan *engine.Plan, cfg Config) (Report, error) {
	s, err := New(plan, cfg)
	if err != nil {
		return Report{}, err
	}
	return s.Run(ctx)
}

// Run executes the batch, choosing single-pass or two-pass by size.
func (s *Sampler) Run(ctx context.Context) (Report, error) {
	report := Report{ScenarioHash: s.hash, BaseSeed: s.cfg.BaseSeed, Iterations: s.cfg.Iterations}
	if s.cfg.Iterations <= s.cfg.TwoPassThreshold {
		return s.singlePass(ctx, report)
	}
	report.TwoPass = true
	start := time.Now()

	survey, err := s.Survey(ctx)
	if err != nil {
		return Report{}, err
	}
	report.Survey = survey

	selections := SelectSeeds(survey, s.plan.Scenario().EncounterCount())
	s.log.WithFields(logrus.Fields{"phase": "selection", "iterations": len(survey), "selected": len(selections)}).Debug("seeds selected")
	replays, err := s.Replay(ctx, selections)
	if err != nil {
		return Report{}, err
	}
	if err := Verify(survey, replays); err != nil {
		s.log.WithError(err).Error("replay diverged from survey")
		return Report{}, err
	}
	report.Replays = replays
	s.log.WithFields(logrus.Fields{
		"phase":      "replay",
		"iterations": len(survey),
		"selected":   len(replays),
		"elapsed":    time.Since(start),
	}).Info("two-pass batch complete")
	return report, nil
}

// singlePass runs every seed once. A batch within MaxLoggedRuns keeps every
// full result with its event log. A larger batch keeps only the summary of
// each run, then replays the selected seeds at their tiers.
func (s *Sampler) singlePass(ctx context.Context, report Report) (Report, error) {
	ctx, span := s.tracer.Start(ctx, "sampler.single_pass", trace.WithAttributes(attribute.Int("iterations", s.cfg.Iterations)))
	defer span.End()

	start := time.Now()
	n := s.cfg.Iterations
	logged := n <= s.cfg.MaxLoggedRuns
	span.SetAttributes(attribute.Bool("logged", logged))
	if !logged {
		return s.lightweightPass(ctx, span, report, start)
	}

	results := make([]domain.SimulationResult, n)
	events := make([][]event.Event, n)
	err := s.forEach(ctx, indices(n), func(i int) {
		result, log := s.plan.Run(engine.Options{Seed: s.seed(i), Logging: true, Snapshots: true})
		results[i] = result
		events[i] = log.Events()
	})
	if err != nil {
		fail(span, err)
		return Report{}, err
	}

	report.Results = results
	report.Survey = make([]domain.LightweightRun, n)
	report.Replays = make([]Replay, n)
	for i, result := range results {
		report.Survey[i] = result.Lightweight()
		report.Replays[i] = Replay{
			Selection: Selection{Seed: result.Seed, Tier: TierFull, Reasons: []string{"single pass"}},
			Result:    result,
			Events:    events[i],
		}
	}
	s.log.WithFields(logrus.Fields{
		"phase":      "single_pass",
		"iterations": n,
		"logged":     true,
		"elapsed":    time.Since(start),
	}).Info("single-pass batch complete")
	return report, nil
}

// lightweightPass summarizes every seed without keeping its full result,
// then replays the selected seeds. It bypasses the cache and the store.
func (s *Sampler) lightweightPass(ctx context.Context, span trace.Span, report Report, start time.Time) (Report, error) {
	n := s.cfg.Iterations
	survey := make([]domain.LightweightRun, n)
	err := s.forEach(ctx, indices(n), func(i int) {
		survey[i] = s.plan.Survey(s.seed(i))
	})
	if err != nil {
		fail(span, err)
		return Report{}, err
	}
	report.Survey = survey

	selections := SelectSeeds(survey, s.plan.Scenario().EncounterCount())
	replays, err := s.Replay(ctx, selections)
	if err != nil {
		return Report{}, err
	}
	if err := Verify(survey, replays); err != nil {
		fail(span, err)
		s.log.WithError(err).Error("replay diverged from survey")
		return Report{}, err
	}
	report.Replays = replays
	s.log.WithFields(logrus.Fields{
		"phase":      "single_pass",
		"iterations": n,
		"logged":     false,
		"selected":   len(replays),
		"elapsed":    time.Since(start),
	}).Info("single-pass batch complete")
	return report, nil
}

// Survey runs every seed of the batch without logging, reusing cached and
// stored runs. Runs are returned in iteration order.
func (s *Sampler) Survey(ctx context.Context) ([]domain.LightweightRun, error) {
	ctx, span := s.tracer.Start(ctx, "sampler.survey", trace.WithAttributes(attribute.Int("iterations", s.cfg.Iterations)))
	defer span.End()

	start := time.Now()
	n := s.cfg.Iterations
	runs := make([]domain.LightweightRun, n)
	done := make([]bool, n)
	cached, stored := 0, 0
	for i := range n {
		if run, ok := s.cfg.Cache.Get(s.hash, s.seed(i)); ok {
			runs[i], done[i] = run, true
			cached++
		}
	}

	if s.cfg.Store != nil && cached < n {
		found, err := s.cfg.Store.LoadRuns(ctx, s.hash, s.seed(0), s.seed(n-1))
		if err != nil {
			fail(span, err)
			return nil, fmt.Errorf("load stored runs: %w", err)
		}
		for i := range n {
			if run, ok := found[s.seed(i)]; ok && !done[i] {
				runs[i], done[i] = run, true
				s.cfg.Cache.Put(s.hash, run)
				stored++
			}
		}
	}

	var pending []int
	for i := range n {
		if !done[i] {
			pending = append(pending, i)
		}
	}
	err := s.forEach(ctx, pending, func(i int) {
		runs[i] = s.plan.Survey(s.seed(i))
	})
	if err != nil {
		fail(span, err)
		return nil, err
	}

	fresh := make([]domain.LightweightRun, len(pending))
	for k, i := range pending {
		s.cfg.Cache.Put(s.hash, runs[i])
		fresh[k] = runs[i]
	}
	if s.cfg.Store != nil && len(fresh) > 0 {
		if err := s.cfg.Store.SaveRuns(ctx, s.hash, fresh); err != nil {
			fail(span, err)
			return nil, fmt.Errorf("save runs: %w", err)
		}
	}

	span.SetAttributes(attribute.Int("cached", cached), attribute.Int("stored", stored), attribute.Int("simulated", len(pending)))
	s.log.WithFields(logrus.Fields{
		"phase":      "survey",
		"iterations": n,
		"cached":     cached,
		"stored":     stored,
		"simulated":  len(pending),
		"elapsed":    time.Since(start),
	}).Debug("survey complete")
	return runs, nil
}

// Replay re-runs selections at their tiers. Replays are returned in the
// order of selections.
func (s *Sampler) Replay(ctx context.Context, selections []Selection) ([]Replay, error) {
	ctx, span := s.tracer.Start(ctx, "sampler.replay", trace.WithAttributes(attribute.Int("selections", len(selections))))
	defer span.End()

	replays := make([]Replay, len(selections))
	err := s.forEach(ctx, indices(len(selections)), func(i int) {
		sel := selections[i]
		result, log := s.plan.Run(sel.Tier.options(sel.Seed))
		replays[i] = Replay{Selection: sel, Result: result, Events: log.Events()}
	})
	if err != nil {
		fail(span, err)
		return nil, err
	}
	return replays, nil
}

// Verify checks that every replay reproduced the score and the survivor
// count its seed had in the survey.
func Verify(survey []domain.LightweightRun, replays []Replay) error {
	bySeed := make(map[int64]domain.LightweightRun, len(survey))
	for _, run := range survey {
		bySeed[run.Seed] = run
	}
	for _, replay := range replays {
		want, ok := bySeed[replay.Seed]
		if !ok {
			return fmt.Errorf("replayed seed %d was not surveyed", replay.Seed)
		}
		score, survivors := replay.Result.Score, replay.Result.Survivors()
		if math.Abs(score-want.Score) > scoreTolerance || survivors != want.Survivors {
			return &DivergenceError{
				Seed:            replay.Seed,
				SurveyScore:     want.Score,
				ReplayScore:     score,
				SurveySurvivors: want.Survivors,
				ReplaySurvivors: survivors,
			}
		}
	}
	return nil
}

func (s *Sampler) seed(i int) int64 {
	return s.cfg.BaseSeed + int64(i)
}

// forEach calls fn for every index, spreading contiguous chunks over the
// worker pool. Each index is handled by exactly one goroutine, so fn may
// write to a preallocated slot without locking. Cancellation is checked
// between runs.
func (s *Sampler) forEach(ctx context.Context, idx []int, fn func(i int)) error {
	if len(idx) == 0 {
		return nil
	}
	workers := min(s.cfg.Workers, len(idx))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for w := range workers {
		chunk := idx[w*len(idx)/workers : (w+1)*len(idx)/workers]
		g.Go(func() error {
			for _, i := range chunk {
				if err := gctx.Err(); err != nil {
					return err
				}
				fn(i)
			}
			return nil
		})
	}
	return g.Wait()
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
