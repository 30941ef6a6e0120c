// Package panel converts irregular long-format observations into a dense,
// month-end aligned entity-by-measure grid with per-measure fill policies.
package panel

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Observation is a single raw data point in long format.
type Observation struct {
	Entity  string    // Stable entity identifier
	Measure string    // Financial field name (price, dividend, book equity, ...)
	Date    time.Time // Raw timestamp, snapped to month-end during alignment
	Value   float64   // NaN marks an explicitly missing value
}

// Grid is the dense entity x measure x month panel produced by Align.
// Missing cells hold NaN. The grid is read-only once returned; downstream
// stages share it without copying.
type Grid struct {
	entities []string
	measures []string
	months   []time.Time
	monthIdx map[time.Time]int
	cells    map[string]map[string][]float64 // entity -> measure -> per-month values
}

// IsMissing reports whether v encodes an absent panel cell.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// MonthEnd snaps t to the last day of its calendar month (UTC, midnight).
func MonthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// Align builds the dense grid: timestamps are snapped to month-end, the
// chronologically last observation wins within each (entity, measure, month)
// cell (ties broken by row order, last wins), the grid is reindexed onto the
// contiguous month range spanning the global min/max observed month, and each
// measure's FillPolicy is applied. Missing data never causes an error.
func Align(rows []Observation, policies PolicyTable) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("panel: no observations to align")
	}

	type key struct {
		entity, measure string
		month           time.Time
	}
	type picked struct {
		date  time.Time
		value float64
	}

	latest := make(map[key]picked)
	entitySet := make(map[string]bool)
	measureSet := make(map[string]bool)
	var minMonth, maxMonth time.Time

	for _, row := range rows {
		month := MonthEnd(row.Date)
		entitySet[row.Entity] = true
		measureSet[row.Measure] = true
		if minMonth.IsZero() || month.Before(minMonth) {
			minMonth = month
		}
		if maxMonth.IsZero() || month.After(maxMonth) {
			maxMonth = month
		}

		k := key{row.Entity, row.Measure, month}
		if prev, ok := latest[k]; ok && row.Date.Before(prev.date) {
			continue
		}
		latest[k] = picked{date: row.Date, value: row.Value}
	}

	months := monthRange(minMonth, maxMonth)
	monthIdx := make(map[time.Time]int, len(months))
	for i, m := range months {
		monthIdx[m] = i
	}

	g := &Grid{
		entities: sortedKeys(entitySet),
		measures: sortedKeys(measureSet),
		months:   months,
		monthIdx: monthIdx,
		cells:    make(map[string]map[string][]float64, len(entitySet)),
	}
	for _, e := range g.entities {
		g.cells[e] = make(map[string][]float64, len(g.measures))
		for _, m := range g.measures {
			series := make([]float64, len(months))
			for i := range series {
				series[i] = math.NaN()
			}
			g.cells[e][m] = series
		}
	}
	for k, p := range latest {
		g.cells[k.entity][k.measure][monthIdx[k.month]] = p.value
	}

	applyPolicies(g, policies)

	log.Debug().
		Int("entities", len(g.entities)).
		Int("measures", len(g.measures)).
		Int("months", len(g.months)).
		Int("populated", g.NonMissingNonZero()).
		Msg("Panel aligned")

	return g, nil
}

// Entities returns the sorted entity identifiers.
func (g *Grid) Entities() []string { return g.entities }

// Measures returns the measure names, raw measures sorted first and derived
// measures appended in registration order.
func (g *Grid) Measures() []string { return g.measures }

// Months returns the contiguous ascending month-end range of the panel.
func (g *Grid) Months() []time.Time { return g.months }

// MonthIndex returns the position of month-end t in the panel range.
func (g *Grid) MonthIndex(t time.Time) (int, bool) {
	i, ok := g.monthIdx[t]
	return i, ok
}

// Value returns the cell for (entity, measure) at month-end t; NaN when the
// cell is missing or the coordinates are unknown.
func (g *Grid) Value(entity, measure string, t time.Time) float64 {
	i, ok := g.monthIdx[t]
	if !ok {
		return math.NaN()
	}
	return g.at(entity, measure, i)
}

// Series returns the per-month values for (entity, measure) across the whole
// panel range. The returned slice is shared; callers must not mutate it.
func (g *Grid) Series(entity, measure string) []float64 {
	byMeasure, ok := g.cells[entity]
	if !ok {
		return nil
	}
	return byMeasure[measure]
}

func (g *Grid) at(entity, measure string, i int) float64 {
	byMeasure, ok := g.cells[entity]
	if !ok {
		return math.NaN()
	}
	series, ok := byMeasure[measure]
	if !ok {
		return math.NaN()
	}
	return series[i]
}

// Derive registers a computed measure. The function receives the input
// measures' values for one (entity, month) cell, in the order given, and is
// evaluated only where every input is defined. Derived cells are never
// forward-filled; gaps in the inputs stay gaps in the output.
func (g *Grid) Derive(name string, inputs []string, fn func(vals []float64) float64) error {
	for _, in := range inputs {
		found := false
		for _, m := range g.measures {
			if m == in {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("panel: derived measure %q needs unknown input %q", name, in)
		}
	}

	vals := make([]float64, len(inputs))
	for _, e := range g.entities {
		series := make([]float64, len(g.months))
		for i := range g.months {
			defined := true
			for j, in := range inputs {
				v := g.at(e, in, i)
				if IsMissing(v) {
					defined = false
					break
				}
				vals[j] = v
			}
			if defined {
				series[i] = fn(vals)
			} else {
				series[i] = math.NaN()
			}
		}
		g.cells[e][name] = series
	}
	g.measures = append(g.measures, name)
	return nil
}

// DeriveReturn registers a periodic total-return measure computed from a
// price measure and an optional per-period payout measure:
// r_t = (p_t + payout_t) / p_{t-1} - 1. Defined only where both prices are;
// a missing payout counts as zero. Like Derive, the result is never filled.
func (g *Grid) DeriveReturn(name, priceMeasure, payoutMeasure string) error {
	hasPrice := false
	for _, m := range g.measures {
		if m == priceMeasure {
			hasPrice = true
			break
		}
	}
	if !hasPrice {
		return fmt.Errorf("panel: return measure %q needs unknown price measure %q", name, priceMeasure)
	}

	for _, e := range g.entities {
		prices := g.cells[e][priceMeasure]
		payouts := g.cells[e][payoutMeasure] // nil when measure absent
		series := make([]float64, len(g.months))
		series[0] = math.NaN()
		for i := 1; i < len(g.months); i++ {
			p, prev := prices[i], prices[i-1]
			if IsMissing(p) || IsMissing(prev) || prev == 0 {
				series[i] = math.NaN()
				continue
			}
			payout := 0.0
			if payouts != nil && !IsMissing(payouts[i]) {
				payout = payouts[i]
			}
			series[i] = (p+payout)/prev - 1
		}
		g.cells[e][name] = series
	}
	g.measures = append(g.measures, name)
	return nil
}

// NonMissingNonZero counts populated cells with a non-zero value, a cheap
// sanity figure for callers to compare against expectations.
func (g *Grid) NonMissingNonZero() int {
	count := 0
	for _, byMeasure := range g.cells {
		for _, series := range byMeasure {
			for _, v := range series {
				if !IsMissing(v) && v != 0 {
					count++
				}
			}
		}
	}
	return count
}

func monthRange(first, last time.Time) []time.Time {
	var months []time.Time
	for m := first; !m.After(last); m = MonthEnd(m.AddDate(0, 0, 1)) {
		months = append(months, m)
	}
	return months
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
