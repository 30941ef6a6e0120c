// Package persistence defines storage interfaces for factor run artifacts.
package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Run is one persisted factor computation.
type Run struct {
	ID        uuid.UUID `db:"id"`
	Factor    string    `db:"factor"`
	CreatedAt time.Time `db:"created_at"`
	Periods   int       `db:"periods"`
}

// ReturnRow is one persisted period of a factor return series.
type ReturnRow struct {
	RunID        uuid.UUID `db:"run_id"`
	Date         time.Time `db:"ts"`
	FactorReturn float64   `db:"factor_return"`
	RF           *float64  `db:"rf"`     // nil when no risk-free observation
	Excess       *float64  `db:"excess"` // nil when no risk-free observation
}

// StatRow is one formatted statistic of a persisted run.
type StatRow struct {
	RunID uuid.UUID `db:"run_id"`
	Key   string    `db:"key"`
	Value string    `db:"value"`
}

// RunsRepo stores factor runs with their series and statistics.
type RunsRepo interface {
	SaveRun(ctx context.Context, run Run, returns []ReturnRow, stats []StatRow) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, factor string, limit int) ([]Run, error)
}
