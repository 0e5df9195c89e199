// Package simulate implements the simulate command: load a scenario, run a
// Monte Carlo batch and print the percentile report.
package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/skirmish/internal/analysis/aggregate"
	"github.com/louisbranch/skirmish/internal/analysis/sampler"
	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/engine"
	"github.com/louisbranch/skirmish/internal/core/random"
	"github.com/louisbranch/skirmish/internal/platform/config"
	"github.com/louisbranch/skirmish/internal/platform/logging"
	platformotel "github.com/louisbranch/skirmish/internal/platform/otel"
	"github.com/louisbranch/skirmish/internal/scenario"
	"github.com/louisbranch/skirmish/internal/storage/sqlite"
)

const serviceName = "skirmish-simulate"

// ErrNoScenario indicates a run without a scenario file.
var ErrNoScenario = errors.New("scenario path is required")

// Config holds simulate command configuration.
type Config struct {
	Scenario         string  `env:"SCENARIO_FILE"`
	Iterations       int     `env:"ITERATIONS" envDefault:"1000"`
	Seed             string  `env:"SEED"`
	Workers          int     `env:"WORKERS" envDefault:"0"`
	DBPath           string  `env:"DB_PATH"`
	CacheCapacity    int     `env:"CACHE_CAPACITY" envDefault:"100000"`
	TwoPassThreshold int     `env:"TWO_PASS_THRESHOLD" envDefault:"2000"`
	MaxLoggedRuns    int     `env:"MAX_LOGGED_RUNS" envDefault:"500"`
	ReportFile       string  `env:"REPORT_FILE"`
	LogLevel         string  `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string  `env:"LOG_FORMAT" envDefault:"text"`
	OTELEndpoint     string  `env:"OTEL_ENDPOINT"`
	OTELEnabled      bool    `env:"OTEL_ENABLED" envDefault:"true"`
	OTELSampleRatio  float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
	JSON             bool
	Schema           bool
}

// ParseConfig reads SKIRMISH_ environment variables, then flags.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to a .lua or .json scenario")
	fs.IntVar(&cfg.Iterations, "iterations", cfg.Iterations, "number of simulated runs")
	fs.StringVar(&cfg.Seed, "seed", cfg.Seed, "base seed; random when empty")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent runs (0 uses every CPU)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite path for stored runs and reports")
	fs.StringVar(&cfg.ReportFile, "report", cfg.ReportFile, "write the full report with replays as JSON to this path")
	fs.BoolVar(&cfg.JSON, "json", cfg.JSON, "print the analysis as JSON")
	fs.BoolVar(&cfg.Schema, "schema", cfg.Schema, "print the scenario JSON schema and exit")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Document is the full report written by -report.
type Document struct {
	Analysis aggregate.Output `json:"analysis"`
	Batch    sampler.Report   `json:"batch"`
}

// Run executes the simulate command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Schema {
		return scenario.WriteSchema(out)
	}
	if cfg.Scenario == "" {
		return ErrNoScenario
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: errOut})
	if err != nil {
		return err
	}
	shutdown, err := platformotel.Setup(ctx, serviceName, platformotel.Config{
		Endpoint:    cfg.OTELEndpoint,
		Disabled:    !cfg.OTELEnabled,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("flush traces")
		}
	}()

	sc, err := scenario.LoadFile(cfg.Scenario)
	if err != nil {
		return err
	}
	plan, err := engine.Compile(sc)
	if err != nil {
		return err
	}
	seed, source, err := resolveSeed(cfg.Seed)
	if err != nil {
		return err
	}

	samplerCfg := sampler.Config{
		Iterations:       cfg.Iterations,
		BaseSeed:         seed,
		Workers:          cfg.Workers,
		TwoPassThreshold: cfg.TwoPassThreshold,
		MaxLoggedRuns:    cfg.MaxLoggedRuns,
		Cache:            sampler.NewCache(cfg.CacheCapacity),
		Logger:           log,
	}
	var store *sqlite.Store
	if cfg.DBPath != "" {
		store, err = sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		samplerCfg.Store = store
	}

	log.WithField("seed", seed).WithField("seed_source", source).Info("simulating " + sc.Name)
	batch, err := sampler.RunTwoPass(ctx, plan, samplerCfg)
	if err != nil {
		return err
	}
	analysis, err := analyze(ctx, sc, batch)
	if err != nil {
		return err
	}

	if store != nil {
		encoded, err := json.Marshal(analysis)
		if err != nil {
			return fmt.Errorf("encode analysis: %w", err)
		}
		record, err := store.SaveReport(ctx, sqlite.ReportRecord{
			ScenarioHash: batch.ScenarioHash,
			ScenarioName: sc.Name,
			Runs:         batch.Iterations,
			BaseSeed:     batch.BaseSeed,
			Report:       encoded,
		})
		if err != nil {
			return err
		}
		log.WithField("report_id", record.ID).Info("report saved")
	}
	if cfg.ReportFile != "" {
		if err := writeDocument(cfg.ReportFile, Document{Analysis: analysis, Batch: batch}); err != nil {
			return err
		}
	}

	if cfg.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	}
	return printReport(out, analysis, batch)
}

func resolveSeed(raw string) (int64, random.SeedSource, error) {
	var requested *int64
	if raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("seed %q: %w", raw, err)
		}
		requested = &seed
	}
	return random.ResolveSeed(requested, nil)
}

// analyze builds the percentile report. Batches that kept every full result
// are analyzed directly. Otherwise buckets come from the survey and
// encounter summaries from the replays.
func analyze(ctx context.Context, sc domain.Scenario, batch sampler.Report) (aggregate.Output, error) {
	_, span := otel.Tracer(serviceName).Start(ctx, "simulate.analyze")
	defer span.End()

	meta := aggregate.Meta{ScenarioName: sc.Name, PartySize: sc.PartySize(), ShortRests: sc.ShortRestCount()}
	if len(batch.Results) > 0 {
		return aggregate.Analyze(batch.Results, meta)
	}
	analysis, err := aggregate.AnalyzeRuns(batch.Survey, meta)
	if err != nil {
		return aggregate.Output{}, err
	}
	results := make([]domain.SimulationResult, len(batch.Replays))
	for i, r := range batch.Replays {
		results[i] = r.Result
	}
	analysis.Encounters = aggregate.SummarizeEncounters(results)
	return analysis, nil
}

func writeDocument(path string, doc Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(doc); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report file: %w", err)
	}
	return f.Close()
}

func printReport(w io.Writer, a aggregate.Output, batch sampler.Report) error {
	p := message.NewPrinter(language.English)
	mode := "single pass"
	if batch.TwoPass {
		mode = p.Sprintf("two-pass, %d replayed", len(batch.Replays))
	}

	p.Fprintf(w, "Scenario: %s (party of %d, %d short rests)\n", a.ScenarioName, a.PartySize, a.ShortRests)
	p.Fprintf(w, "Runs: %d (%s), base seed %v\n", a.Runs, mode, strconv.FormatInt(batch.BaseSeed, 10))
	p.Fprintf(w, "Win rate: %.1f%%  Median score: %.0f\n\n", 100*a.WinRate, a.MedianScore)

	p.Fprintf(w, "%-7s %-21s %7s %9s %8s %7s  %s\n", "Decile", "Score range", "Win", "Survivors", "HP lost", "Rounds", "Median seed")
	for _, b := range a.Deciles {
		if b.Count == 0 {
			continue
		}
		scores := p.Sprintf("%.0f .. %.0f", b.MinScore, b.MaxScore)
		p.Fprintf(w, "%-7d %-21s %6.1f%% %9.1f %7.1f%% %7.1f  %s\n",
			b.Index+1, scores, 100*b.WinRate, b.MedianSurvivors, b.HPLostPercent, b.AverageRounds,
			strconv.FormatInt(b.MedianRun.Seed, 10))
	}

	v := a.Vitals
	p.Fprintf(w, "\nVitals\n")
	p.Fprintf(w, "  %-15s %.1f%%\n", "Lethality", 100*v.Lethality)
	p.Fprintf(w, "  %-15s %.1f%%\n", "TPK", 100*v.TPKProbability)
	p.Fprintf(w, "  %-15s %.1f%%\n", "Attrition", v.Attrition)
	p.Fprintf(w, "  %-15s %.1f\n", "Volatility", v.Volatility)
	p.Fprintf(w, "  %-15s %d\n", "Doom horizon", v.DoomHorizon)
	p.Fprintf(w, "  %-15s %.1f\n", "Pacing", v.ResourcePacing)
	_, err := p.Fprintf(w, "  %-15s %s\n", "Archetype", v.Archetype)
	return err
}
