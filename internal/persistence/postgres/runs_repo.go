// Package postgres implements the persistence interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sawpanic/factorrun/internal/persistence"
)

// runsRepo implements RunsRepo for PostgreSQL.
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a PostgreSQL runs repository.
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunsRepo {
	return &runsRepo{db: db, timeout: timeout}
}

// Connect opens and pings a PostgreSQL connection.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// SaveRun inserts the run header, its return series and its statistics in one
// transaction; a failure rolls everything back.
func (r *runsRepo) SaveRun(ctx context.Context, run persistence.Run, returns []persistence.ReturnRow, stats []persistence.StatRow) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO factor_runs (id, factor, created_at, periods) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Factor, run.CreatedAt, run.Periods)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	retStmt, err := tx.PreparexContext(ctx,
		`INSERT INTO factor_returns (run_id, ts, factor_return, rf, excess) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("failed to prepare returns insert: %w", err)
	}
	defer retStmt.Close()
	for _, row := range returns {
		if _, err := retStmt.ExecContext(ctx, row.RunID, row.Date, row.FactorReturn, row.RF, row.Excess); err != nil {
			return fmt.Errorf("failed to insert return row %s: %w", row.Date.Format("2006-01-02"), err)
		}
	}

	statStmt, err := tx.PreparexContext(ctx,
		`INSERT INTO factor_stats (run_id, key, value) VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("failed to prepare stats insert: %w", err)
	}
	defer statStmt.Close()
	for _, row := range stats {
		if _, err := statStmt.ExecContext(ctx, row.RunID, row.Key, row.Value); err != nil {
			return fmt.Errorf("failed to insert stat %s: %w", row.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun fetches a run header by ID.
func (r *runsRepo) GetRun(ctx context.Context, id uuid.UUID) (*persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var run persistence.Run
	err := r.db.GetContext(ctx, &run,
		`SELECT id, factor, created_at, periods FROM factor_runs WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, optionally filtered by factor name.
func (r *runsRepo) ListRuns(ctx context.Context, factor string, limit int) ([]persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	var runs []persistence.Run
	var err error
	if factor == "" {
		err = r.db.SelectContext(ctx, &runs,
			`SELECT id, factor, created_at, periods FROM factor_runs ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		err = r.db.SelectContext(ctx, &runs,
			`SELECT id, factor, created_at, periods FROM factor_runs WHERE factor = $1 ORDER BY created_at DESC LIMIT $2`,
			factor, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
