package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kevinfinalboss/lxcferry/internal/logger"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("execução não encontrada no histórico")

// timeLayout has a fixed width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	destination_host TEXT NOT NULL,
	dry_run          INTEGER NOT NULL,
	started_at       TEXT NOT NULL,
	duration_ms      INTEGER NOT NULL,
	total            INTEGER NOT NULL,
	success          INTEGER NOT NULL,
	failure          INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	run_id           TEXT NOT NULL REFERENCES runs(id),
	position         INTEGER NOT NULL,
	name             TEXT NOT NULL,
	outcome          TEXT NOT NULL,
	failed_step      TEXT NOT NULL,
	retries          INTEGER NOT NULL,
	source_size      INTEGER NOT NULL,
	destination_size INTEGER NOT NULL,
	error            TEXT NOT NULL,
	duration_ms      INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

type RunRecord struct {
	ID              string
	DestinationHost string
	DryRun          bool
	StartedAt       time.Time
	Duration        time.Duration
	Total           int
	Success         int
	Failure         int
}

type ResultRecord struct {
	Name            string
	Outcome         types.Outcome
	FailedStep      types.Step
	Retries         int
	SourceSize      uint64
	DestinationSize uint64
	Error           string
	Duration        time.Duration
}

// Store keeps every run and its per-container results in a sqlite file.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

func Open(path string, logger *logger.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("falha ao criar diretório do histórico %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("falha ao abrir histórico: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("falha ao inicializar histórico: %w", err)
	}

	logger.Debug("history_opened").Str("path", path).Send()

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Name() string {
	return "history"
}

// Record stores a finished run. Recording the same run twice replaces it.
func (s *Store) Record(ctx context.Context, summary *types.MigrationSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("falha ao iniciar transação: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, summary.RunID); err != nil {
		return fmt.Errorf("falha ao limpar resultados anteriores: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, destination_host, dry_run, started_at, duration_ms, total, success, failure)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID,
		summary.DestinationHost,
		summary.DryRun,
		summary.StartedAt.UTC().Format(timeLayout),
		summary.Duration.Milliseconds(),
		summary.TotalContainers,
		summary.SuccessCount,
		summary.FailureCount,
	)
	if err != nil {
		return fmt.Errorf("falha ao gravar execução %s: %w", summary.RunID, err)
	}

	for i, result := range summary.Results {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO results (run_id, position, name, outcome, failed_step, retries, source_size, destination_size, error, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			summary.RunID,
			i,
			result.Name,
			string(result.Outcome),
			string(result.FailedStep),
			result.Retries,
			int64(result.SourceSize),
			int64(result.DestinationSize),
			result.ErrorMessage(),
			result.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("falha ao gravar resultado de %s: %w", result.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("falha ao confirmar histórico: %w", err)
	}

	s.logger.Info("history_recorded").
		Str("run_id", summary.RunID).
		Int("containers", len(summary.Results)).
		Send()

	return nil
}

// Recent returns the newest runs first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, destination_host, dry_run, started_at, duration_ms, total, success, failure
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("falha ao consultar histórico: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) Run(ctx context.Context, runID string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, destination_host, dry_run, started_at, duration_ms, total, success, failure
		 FROM runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return run, err
}

// Results returns the container results of a run in input order.
func (s *Store) Results(ctx context.Context, runID string) ([]ResultRecord, error) {
	if _, err := s.Run(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, outcome, failed_step, retries, source_size, destination_size, error, duration_ms
		 FROM results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("falha ao consultar resultados: %w", err)
	}
	defer rows.Close()

	var results []ResultRecord
	for rows.Next() {
		var (
			r                 ResultRecord
			outcome, step     string
			srcSize, destSize int64
			durationMS        int64
		)
		if err := rows.Scan(&r.Name, &outcome, &step, &r.Retries, &srcSize, &destSize, &r.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("falha ao ler resultado: %w", err)
		}
		r.Outcome = types.Outcome(outcome)
		r.FailedStep = types.Step(step)
		r.SourceSize = uint64(srcSize)
		r.DestinationSize = uint64(destSize)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		run        RunRecord
		startedAt  string
		durationMS int64
	)
	if err := row.Scan(&run.ID, &run.DestinationHost, &run.DryRun, &startedAt, &durationMS, &run.Total, &run.Success, &run.Failure); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("falha ao ler execução: %w", err)
	}

	parsed, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return run, fmt.Errorf("data inválida no histórico %q: %w", startedAt, err)
	}
	run.StartedAt = parsed
	run.Duration = time.Duration(durationMS) * time.Millisecond

	return run, nil
}
