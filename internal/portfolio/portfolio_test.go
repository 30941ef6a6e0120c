package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/factorrun/internal/config"
	"github.com/sawpanic/factorrun/internal/panel"
	"github.com/sawpanic/factorrun/internal/sorts"
)

func monthEnd(y int, m time.Month) time.Time {
	return panel.MonthEnd(time.Date(y, m, 1, 0, 0, 0, 0, time.UTC))
}

// returnsGrid aligns a "ret" series per entity, one value per month starting
// January 2020.
func returnsGrid(t *testing.T, series map[string][]float64) *panel.Grid {
	t.Helper()
	var rows []panel.Observation
	for e, values := range series {
		for i, v := range values {
			rows = append(rows, panel.Observation{
				Entity:  e,
				Measure: "ret",
				Date:    monthEnd(2020, time.January+time.Month(i)),
				Value:   v,
			})
		}
	}
	g, err := panel.Align(rows, nil)
	require.NoError(t, err)
	return g
}

func TestAggregate_HighMinusLowExample(t *testing.T) {
	// Characteristics 1..4 at January, returns realized in February.
	g := returnsGrid(t, map[string][]float64{
		"A": {math.NaN(), 0.05},
		"B": {math.NaN(), 0.10},
		"C": {math.NaN(), -0.02},
		"D": {math.NaN(), 0.01},
	})
	schedule := sorts.NewSchedule([]*sorts.Assignment{{
		Date: monthEnd(2020, time.January),
		Low:  []string{"A", "B"},
		High: []string{"C", "D"},
	}})

	series := Aggregate(config.Default(), g, schedule, "ret")
	require.Len(t, series, 1)
	assert.Equal(t, monthEnd(2020, time.February), series[0].Date)
	// mean(-0.02, 0.01) - mean(0.05, 0.10) = -0.005 - 0.075
	assert.InDelta(t, -0.08, series[0].FactorReturn, 1e-12)
}

func TestAggregate_ColdStart(t *testing.T) {
	g := returnsGrid(t, map[string][]float64{
		"A": {0.01, 0.02, 0.03},
		"B": {0.02, 0.01, 0.04},
	})
	schedule := sorts.NewSchedule([]*sorts.Assignment{{
		Date: monthEnd(2020, time.February),
		Low:  []string{"A"},
		High: []string{"B"},
	}})

	series := Aggregate(config.Default(), g, schedule, "ret")
	require.Len(t, series, 1, "periods before the first formation date emit nothing")
	assert.Equal(t, monthEnd(2020, time.March), series[0].Date)
}

func TestAggregate_LagInvariant(t *testing.T) {
	g := returnsGrid(t, map[string][]float64{
		"A": {0.01, 0.02, 0.03, 0.04},
		"B": {0.05, 0.06, 0.07, 0.08},
	})
	// Two assignments with swapped groups: whichever assignment is in force
	// determines the spread's sign.
	schedule := sorts.NewSchedule([]*sorts.Assignment{
		{Date: monthEnd(2020, time.January), Low: []string{"A"}, High: []string{"B"}},
		{Date: monthEnd(2020, time.March), Low: []string{"B"}, High: []string{"A"}},
	})

	series := Aggregate(config.Default(), g, schedule, "ret")
	require.Len(t, series, 3)

	// February and March still use the January assignment: the March-formed
	// assignment is never applied to March itself.
	assert.InDelta(t, 0.04, series[0].FactorReturn, 1e-12)  // Feb: B-A = 0.06-0.02
	assert.InDelta(t, 0.04, series[1].FactorReturn, 1e-12)  // Mar: B-A = 0.07-0.03
	assert.InDelta(t, -0.04, series[2].FactorReturn, 1e-12) // Apr: A-B = 0.04-0.08
}

func TestAggregate_ValueWeighting(t *testing.T) {
	g := returnsGrid(t, map[string][]float64{
		"A": {math.NaN(), 0.10},
		"B": {math.NaN(), 0.20},
		"C": {math.NaN(), 0.00},
	})
	cfg := config.Default()
	cfg.Weighting = config.ValueWeight

	base := map[string]float64{"A": 1, "B": 3, "C": 1}
	assignment := func(weights map[string]float64) *sorts.Schedule {
		return sorts.NewSchedule([]*sorts.Assignment{{
			Date:    monthEnd(2020, time.January),
			Low:     []string{"C"},
			High:    []string{"A", "B"},
			Weights: weights,
		}})
	}

	series := Aggregate(cfg, g, assignment(base), "ret")
	require.Len(t, series, 1)
	// High group: (1*0.10 + 3*0.20) / 4 = 0.175; low group returns 0.
	assert.InDelta(t, 0.175, series[0].FactorReturn, 1e-12)

	// Scaling all weights by a positive constant leaves the return unchanged.
	scaled := map[string]float64{"A": 7, "B": 21, "C": 7}
	series2 := Aggregate(cfg, g, assignment(scaled), "ret")
	require.Len(t, series2, 1)
	assert.InDelta(t, series[0].FactorReturn, series2[0].FactorReturn, 1e-12)
}

func TestAggregate_AbsentGroupDropsPeriod(t *testing.T) {
	g := returnsGrid(t, map[string][]float64{
		"A": {math.NaN(), 0.10, 0.10},
		"B": {math.NaN(), math.NaN(), 0.20},
	})
	schedule := sorts.NewSchedule([]*sorts.Assignment{{
		Date: monthEnd(2020, time.January),
		Low:  []string{"A"},
		High: []string{"B"},
	}})

	series := Aggregate(config.Default(), g, schedule, "ret")
	// February drops: the high group is entirely absent, never coerced to 0.
	require.Len(t, series, 1)
	assert.Equal(t, monthEnd(2020, time.March), series[0].Date)
}

func TestMergeRiskFree_Act360(t *testing.T) {
	feb := monthEnd(2020, time.February) // 29 days
	apr := monthEnd(2020, time.April)
	series := Series{
		{Date: feb, FactorReturn: 0.05, RF: math.NaN(), Excess: math.NaN()},
		{Date: apr, FactorReturn: 0.02, RF: math.NaN(), Excess: math.NaN()},
	}
	merged := MergeRiskFree(series, map[time.Time]float64{feb: 0.036})

	// 0.036 * 29 / 360
	assert.InDelta(t, 0.0029, merged[0].RF, 1e-12)
	assert.InDelta(t, 0.05-0.0029, merged[0].Excess, 1e-12)
	// No risk-free observation for April: excess stays undefined.
	assert.True(t, math.IsNaN(merged[1].RF))
	assert.True(t, math.IsNaN(merged[1].Excess))
}
