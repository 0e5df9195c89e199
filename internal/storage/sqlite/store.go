// Package sqlite persists survey runs and analysis reports in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/louisbranch/skirmish/internal/analysis/sampler"
	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/skirmish/internal/storage/sqlite/migrations"
)

var (
	// ErrNotConfigured indicates a nil or closed store.
	ErrNotConfigured = errors.New("storage is not configured")
	// ErrNotFound indicates a missing report.
	ErrNotFound = errors.New("record not found")
)

// Store provides SQLite-backed run and report persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a store at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// LoadRuns returns the stored runs of scenarioHash with seeds in [from, to].
func (s *Store) LoadRuns(ctx context.Context, scenarioHash string, from, to int64) (map[int64]domain.LightweightRun, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	seed,
	score,
	encounter_scores,
	survivors,
	has_death,
	first_death,
	won,
	hp_lost,
	rounds
FROM survey_runs
WHERE scenario_hash = ? AND seed BETWEEN ? AND ?
`, scenarioHash, from, to)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}
	defer rows.Close()

	runs := make(map[int64]domain.LightweightRun)
	for rows.Next() {
		var run domain.LightweightRun
		var scores string
		if err := rows.Scan(
			&run.Seed,
			&run.Score,
			&scores,
			&run.Survivors,
			&run.HasDeath,
			&run.FirstDeathEncounter,
			&run.Won,
			&run.HPLostPercent,
			&run.Rounds,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(scores), &run.EncounterScores); err != nil {
			return nil, fmt.Errorf("decode encounter scores of seed %d: %w", run.Seed, err)
		}
		runs[run.Seed] = run
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// SaveRuns upserts runs under scenarioHash in one transaction.
func (s *Store) SaveRuns(ctx context.Context, scenarioHash string, runs []domain.LightweightRun) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if scenarioHash == "" {
		return fmt.Errorf("scenario hash is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save runs: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO survey_runs (
	scenario_hash,
	seed,
	score,
	encounter_scores,
	survivors,
	has_death,
	first_death,
	won,
	hp_lost,
	rounds
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare save runs: %w", err)
	}
	defer stmt.Close()

	for _, run := range runs {
		scores := run.EncounterScores
		if scores == nil {
			scores = []float64{}
		}
		encoded, err := json.Marshal(scores)
		if err != nil {
			return fmt.Errorf("encode encounter scores of seed %d: %w", run.Seed, err)
		}
		if _, err := stmt.ExecContext(ctx,
			scenarioHash,
			run.Seed,
			run.Score,
			string(encoded),
			run.Survivors,
			run.HasDeath,
			run.FirstDeathEncounter,
			run.Won,
			run.HPLostPercent,
			run.Rounds,
		); err != nil {
			return fmt.Errorf("save run %d: %w", run.Seed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save runs: %w", err)
	}
	return nil
}

// ReportRecord is an archived analysis of one batch.
type ReportRecord struct {
	ID           string
	ScenarioHash string
	ScenarioName string
	Runs         int
	BaseSeed     int64
	Report       json.RawMessage
	CreatedAt    time.Time
}

// SaveReport archives a report, assigning its id and creation time when
// unset.
func (s *Store) SaveReport(ctx context.Context, record ReportRecord) (ReportRecord, error) {
	if err := s.ready(ctx); err != nil {
		return ReportRecord{}, err
	}
	if record.ScenarioHash == "" {
		return ReportRecord{}, fmt.Errorf("scenario hash is required")
	}
	if !json.Valid(record.Report) {
		return ReportRecord{}, fmt.Errorf("report must be valid json")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC().Truncate(time.Millisecond)

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO analysis_reports (
	id,
	scenario_hash,
	scenario_name,
	runs,
	base_seed,
	report_json,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.ScenarioHash,
		record.ScenarioName,
		record.Runs,
		record.BaseSeed,
		string(record.Report),
		record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return ReportRecord{}, fmt.Errorf("save report: %w", err)
	}
	return record, nil
}

// GetReport returns the report with id.
func (s *Store) GetReport(ctx context.Context, id string) (ReportRecord, error) {
	if err := s.ready(ctx); err != nil {
		return ReportRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, selectReports+"WHERE id = ?", id)
	record, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ReportRecord{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ReportRecord{}, fmt.Errorf("get report: %w", err)
	}
	return record, nil
}

// ListReports lists the newest reports of scenarioHash first.
func (s *Store) ListReports(ctx context.Context, scenarioHash string, limit int) ([]ReportRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, selectReports+`WHERE scenario_hash = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, scenarioHash, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	records := make([]ReportRecord, 0, limit)
	for rows.Next() {
		record, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return records, nil
}

const selectReports = `
SELECT
	id,
	scenario_hash,
	scenario_name,
	runs,
	base_seed,
	report_json,
	created_at
FROM analysis_reports
`

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (ReportRecord, error) {
	var record ReportRecord
	var report string
	var createdAt int64
	if err := row.Scan(
		&record.ID,
		&record.ScenarioHash,
		&record.ScenarioName,
		&record.Runs,
		&record.BaseSeed,
		&report,
		&createdAt,
	); err != nil {
		return ReportRecord{}, err
	}
	record.Report = json.RawMessage(report)
	record.CreatedAt = time.UnixMilli(createdAt).UTC()
	return record, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return ErrNotConfigured
	}
	return nil
}

var _ sampler.RunStore = (*Store)(nil)
