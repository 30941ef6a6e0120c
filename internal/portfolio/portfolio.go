// Package portfolio aggregates group returns under a formation schedule into
// the high-minus-low factor return series.
package portfolio

import (
	"math"
	"time"

	"github.com/sawpanic/factorrun/internal/config"
	"github.com/sawpanic/factorrun/internal/panel"
	"github.com/sawpanic/factorrun/internal/sorts"
)

// Point is one period of the factor return series. RF and Excess are NaN
// until a risk-free rate is merged in, and stay NaN for periods without a
// risk-free observation.
type Point struct {
	Date         time.Time `json:"date"`
	FactorReturn float64   `json:"factor_return"`
	RF           float64   `json:"rf"`
	Excess       float64   `json:"excess_return"`
}

// Series is the ordered factor return series, one point per period with a
// defined spread. Undefined periods are dropped, never zero-filled.
type Series []Point

// Returns extracts the raw factor returns.
func (s Series) Returns() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.FactorReturn
	}
	return out
}

// ExcessReturns extracts the excess returns; periods without a risk-free
// observation are NaN.
func (s Series) ExcessReturns() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Excess
	}
	return out
}

// Aggregate walks every panel period, resolves the most recent assignment
// strictly before it, and emits the high-minus-low spread. Periods before the
// first assignment (cold start) and periods where either group return is
// undefined produce no point.
func Aggregate(cfg config.Config, g *panel.Grid, schedule *sorts.Schedule, returnMeasure string) Series {
	var out Series
	for _, p := range g.Months() {
		a := schedule.Before(p)
		if a == nil {
			continue
		}
		low := groupReturn(cfg, g, a.Low, a.Weights, returnMeasure, p)
		high := groupReturn(cfg, g, a.High, a.Weights, returnMeasure, p)
		if math.IsNaN(low) || math.IsNaN(high) {
			continue
		}
		out = append(out, Point{
			Date:         p,
			FactorReturn: high - low,
			RF:           math.NaN(),
			Excess:       math.NaN(),
		})
	}
	return out
}

// groupReturn averages the period returns of group members present at p.
// Equal weighting takes the arithmetic mean over members with a defined
// return; value weighting normalizes by the summed weights of present
// members. A group with no member present yields NaN.
func groupReturn(cfg config.Config, g *panel.Grid, members []string, weights map[string]float64, returnMeasure string, p time.Time) float64 {
	var sum, weightSum float64
	present := 0
	for _, e := range members {
		r := g.Value(e, returnMeasure, p)
		if panel.IsMissing(r) {
			continue
		}
		present++
		if cfg.Weighting == config.ValueWeight {
			w := weights[e]
			sum += w * r
			weightSum += w
		} else {
			sum += r
			weightSum++
		}
	}
	if present == 0 || weightSum == 0 {
		return math.NaN()
	}
	return sum / weightSum
}

// MergeRiskFree joins a risk-free rate table onto the series, converting the
// annualized rate to a per-period rate with an Act/360 day count:
// periodRate = annualized * daysInMonth / 360. Periods without a risk-free
// observation keep NaN excess returns and are handled pairwise downstream.
func MergeRiskFree(series Series, annualized map[time.Time]float64) Series {
	out := make(Series, len(series))
	for i, p := range series {
		rate, ok := annualized[p.Date]
		if !ok || math.IsNaN(rate) {
			out[i] = p
			continue
		}
		rf := rate * float64(p.Date.Day()) / 360.0
		p.RF = rf
		p.Excess = p.FactorReturn - rf
		out[i] = p
	}
	return out
}
