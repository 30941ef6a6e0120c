// Package pipeline wires the aligner, sort engine, aggregator and statistics
// stages into one factor run.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/factorrun/internal/config"
	"github.com/sawpanic/factorrun/internal/panel"
	"github.com/sawpanic/factorrun/internal/portfolio"
	"github.com/sawpanic/factorrun/internal/riskstats"
	"github.com/sawpanic/factorrun/internal/sorts"
)

// Result is the final artifact of one factor run.
type Result struct {
	Factor     string            `json:"factor"`
	Series     portfolio.Series  `json:"series"`
	Stats      riskstats.Summary `json:"stats"`
	StatsError string            `json:"stats_error,omitempty"` // per-statistic degeneracy, not fatal
	Formations int               `json:"formations"`
	PanelCells int               `json:"panel_cells"`
}

// Run executes the full pipeline for one factor. The configuration must be
// validated by the caller; rows outside the analysis range are dropped before
// alignment. The aligned grid is read-only from the sort stage onward.
func Run(ctx context.Context, cfg config.Config, rows []panel.Observation, riskfree map[time.Time]float64, factor Factor) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inRange := rows[:0:0]
	for _, row := range rows {
		if row.Date.Before(cfg.Start) || row.Date.After(cfg.End) {
			continue
		}
		inRange = append(inRange, row)
	}

	grid, err := panel.Align(inRange, DefaultPolicies())
	if err != nil {
		return nil, fmt.Errorf("alignment failed: %w", err)
	}
	if err := deriveStandardMeasures(grid); err != nil {
		return nil, err
	}

	assignments, dates, err := formAssignments(ctx, cfg, grid, factor)
	if err != nil {
		return nil, err
	}
	schedule := sorts.NewSchedule(assignments)
	log.Info().
		Str("factor", factor.Name).
		Int("formation_dates", len(dates)).
		Int("assignments", schedule.Len()).
		Msg("Formation stage complete")

	series := portfolio.Aggregate(cfg, grid, schedule, factor.ReturnMeasure)
	series = portfolio.MergeRiskFree(series, riskfree)
	if len(series) == 0 {
		return nil, fmt.Errorf("factor %s produced an empty return series", factor.Name)
	}

	result := &Result{
		Factor:     factor.Name,
		Series:     series,
		Formations: schedule.Len(),
		PanelCells: grid.NonMissingNonZero(),
	}
	stats, err := riskstats.Compute(series.Returns(), series.ExcessReturns())
	result.Stats = stats
	if err != nil {
		// Degenerate statistics surface in the report, not as a run abort.
		result.StatsError = err.Error()
		log.Warn().Err(err).Str("factor", factor.Name).Msg("Statistic unavailable")
	}

	log.Info().
		Str("factor", factor.Name).
		Int("periods", len(series)).
		Float64("mean", stats.Mean).
		Msg("Factor run complete")
	return result, nil
}

// deriveStandardMeasures registers the computed measures the presets sort on,
// skipping those whose inputs the panel does not carry.
func deriveStandardMeasures(grid *panel.Grid) error {
	has := make(map[string]bool)
	for _, m := range grid.Measures() {
		has[m] = true
	}

	if !has[MeasureReturn] && has[MeasurePrice] {
		if err := grid.DeriveReturn(MeasureReturn, MeasurePrice, MeasureDividend); err != nil {
			return err
		}
		has[MeasureReturn] = true
	}
	if !has[MeasureMarketCap] && has[MeasurePrice] && has[MeasureShares] {
		err := grid.Derive(MeasureMarketCap, []string{MeasurePrice, MeasureShares}, func(v []float64) float64 {
			return v[0] * v[1]
		})
		if err != nil {
			return err
		}
		has[MeasureMarketCap] = true
	}
	if !has[MeasureBookToMarket] && has[MeasureBookEquity] && has[MeasureMarketCap] {
		err := grid.Derive(MeasureBookToMarket, []string{MeasureBookEquity, MeasureMarketCap}, func(v []float64) float64 {
			return v[0] / v[1]
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// formAssignments computes every formation date's sort. Dates are
// embarrassingly parallel: each worker owns the slots it drains from the
// index channel, and the WaitGroup is a full barrier before any lookup runs.
func formAssignments(ctx context.Context, cfg config.Config, grid *panel.Grid, factor Factor) ([]*sorts.Assignment, []time.Time, error) {
	dates := sorts.FormationDates(cfg, grid.Months())
	assignments := make([]*sorts.Assignment, len(dates))

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(dates) {
		workers = len(dates)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				d := dates[i]
				chars := factor.Characteristic.Compute(grid, d)
				assignments[i] = sorts.Sort(cfg, grid, d, chars, factor.SizeMeasure)
			}
		}()
	}

	var canceled error
feed:
	for i := range dates {
		if err := ctx.Err(); err != nil {
			canceled = err
			break feed
		}
		select {
		case <-ctx.Done():
			canceled = ctx.Err()
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	if canceled != nil {
		return nil, nil, canceled
	}
	return assignments, dates, nil
}
