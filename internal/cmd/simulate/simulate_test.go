package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/skirmish/internal/analysis/aggregate"
	"github.com/louisbranch/skirmish/internal/storage/sqlite"
)

const brawl = `
local s = Scenario.new("Tavern Brawl")
s:player{ id = "fighter", hp = 30, ac = 16, actions = { Action.attack{ id = "fists", to_hit = 5, damage = "1d4+3" } } }
s:player{ id = "rogue", hp = 22, ac = 14, actions = { Action.attack{ id = "dagger", to_hit = 6, damage = "1d4+4" } } }
s:encounter{
  name = "Brawl",
  monsters = { { id = "thug", hp = 11, ac = 11, count = 2, actions = { Action.attack{ id = "club", to_hit = 3, damage = "1d4+1" } } } },
}
s:short_rest()
return s
`

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brawl.lua")
	if err := os.WriteFile(path, []byte(brawl), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Iterations != 1000 || cfg.CacheCapacity != 100000 || cfg.TwoPassThreshold != 2000 || cfg.MaxLoggedRuns != 500 {
		t.Fatalf("ParseConfig() = %+v, want defaults", cfg)
	}
	if cfg.LogFormat != "text" || !cfg.OTELEnabled || cfg.OTELSampleRatio != 1 {
		t.Fatalf("ParseConfig() = %+v, want text logs with tracing enabled", cfg)
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SKIRMISH_ITERATIONS", "250")
	t.Setenv("SKIRMISH_DB_PATH", "env.db")
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, []string{"-db", "flag.db", "-seed", "42", "-json"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Iterations != 250 || cfg.DBPath != "flag.db" || cfg.Seed != "42" || !cfg.JSON {
		t.Fatalf("ParseConfig() = %+v", cfg)
	}
}

func TestParseConfigSampleRatioFromEnv(t *testing.T) {
	t.Setenv("SKIRMISH_OTEL_SAMPLE_RATIO", "0.25")
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.OTELSampleRatio != 0.25 {
		t.Fatalf("OTELSampleRatio = %v, want 0.25", cfg.OTELSampleRatio)
	}
}

func TestRunRequiresScenario(t *testing.T) {
	if err := Run(context.Background(), Config{}, nil, nil); !errors.Is(err, ErrNoScenario) {
		t.Fatalf("Run() error = %v, want ErrNoScenario", err)
	}
}

func TestRunSchema(t *testing.T) {
	var out bytes.Buffer
	if err := Run(context.Background(), Config{Schema: true}, &out, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !json.Valid(out.Bytes()) || !strings.Contains(out.String(), "Skirmish Scenario") {
		t.Fatalf("schema output = %s", out.String())
	}
}

func TestRunRejectsBadSeed(t *testing.T) {
	cfg := Config{Scenario: writeScenario(t), Iterations: 10, Seed: "soon"}
	if err := Run(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("expected error for non-numeric seed")
	}
}

func TestRunPrintsReport(t *testing.T) {
	var out bytes.Buffer
	cfg := Config{Scenario: writeScenario(t), Iterations: 40, Seed: "7", TwoPassThreshold: 2000, MaxLoggedRuns: 10}
	if err := Run(context.Background(), cfg, &out, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	report := out.String()
	for _, want := range []string{"Scenario: Tavern Brawl (party of 2, 1 short rests)", "Runs: 40 (single pass), base seed 7", "Decile", "Archetype"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestRunTwoPassPersists(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	reportPath := filepath.Join(dir, "report.json")
	var out bytes.Buffer
	cfg := Config{
		Scenario:         writeScenario(t),
		Iterations:       300,
		Seed:             "11",
		TwoPassThreshold: 100,
		CacheCapacity:    1000,
		DBPath:           dbPath,
		ReportFile:       reportPath,
		JSON:             true,
	}
	if err := Run(context.Background(), cfg, &out, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var analysis aggregate.Output
	if err := json.Unmarshal(out.Bytes(), &analysis); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if analysis.Runs != 300 || len(analysis.Deciles) != aggregate.Deciles || len(analysis.Encounters) != 1 {
		t.Fatalf("analysis = %+v", analysis)
	}

	raw, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report file: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode report file: %v", err)
	}
	if !doc.Batch.TwoPass || len(doc.Batch.Replays) == 0 || len(doc.Batch.Survey) != 300 {
		t.Fatalf("batch: two pass %v, replays %d, survey %d", doc.Batch.TwoPass, len(doc.Batch.Replays), len(doc.Batch.Survey))
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	reports, err := store.ListReports(context.Background(), doc.Batch.ScenarioHash, 5)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 1 || reports[0].Runs != 300 || reports[0].BaseSeed != 11 {
		t.Fatalf("reports = %+v", reports)
	}
	runs, err := store.LoadRuns(context.Background(), doc.Batch.ScenarioHash, 11, 310)
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(runs) != 300 {
		t.Fatalf("stored runs = %d, want 300", len(runs))
	}
}
