package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/factorrun/internal/config"
	"github.com/sawpanic/factorrun/internal/panel"
)

func monthEnd(y int, m time.Month) time.Time {
	return panel.MonthEnd(time.Date(y, m, 1, 0, 0, 0, 0, time.UTC))
}

// syntheticPanel builds a year of monthly prices and share counts for six
// entities with distinct constant monthly growth rates, so momentum ranks
// them deterministically.
func syntheticPanel() []panel.Observation {
	var rows []panel.Observation
	growth := []float64{0.01, 0.02, 0.03, 0.04, 0.05, 0.06}
	names := []string{"E1", "E2", "E3", "E4", "E5", "E6"}
	for i, name := range names {
		price := 100.0
		for m := 0; m < 12; m++ {
			d := monthEnd(2020, time.January+time.Month(m))
			rows = append(rows,
				panel.Observation{Entity: name, Measure: MeasurePrice, Date: d, Value: price},
				panel.Observation{Entity: name, Measure: MeasureShares, Date: d, Value: 1000},
			)
			price *= 1 + growth[i]
		}
	}
	return rows
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.LookbackMonths = 3
	cfg.SkipMonths = 1
	cfg.Start = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	cfg.End = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	return cfg
}

func TestRun_MomentumEndToEnd(t *testing.T) {
	cfg := testConfig()
	factor, err := Preset(cfg, "momentum")
	require.NoError(t, err)

	riskfree := map[time.Time]float64{}
	for m := time.January; m <= time.December; m++ {
		riskfree[monthEnd(2020, m)] = 0.036
	}

	result, err := Run(context.Background(), cfg, syntheticPanel(), riskfree, factor)
	require.NoError(t, err)

	// Returns exist from February; a 3-month lookback with skip 1 makes May
	// the first computable formation date, and the out-of-sample lag means
	// the series starts in June.
	require.Len(t, result.Series, 7)
	assert.Equal(t, monthEnd(2020, time.June), result.Series[0].Date)

	for _, p := range result.Series {
		// High-growth entities stay in the high group all year: the spread is
		// positive every period.
		assert.Greater(t, p.FactorReturn, 0.0)
		assert.False(t, math.IsNaN(p.RF))
		assert.InDelta(t, 0.036*float64(p.Date.Day())/360, p.RF, 1e-12)
	}
	assert.Greater(t, result.Stats.Mean, 0.0)
	assert.Equal(t, len(result.Series), result.Stats.N)
	assert.Greater(t, result.PanelCells, 0)
}

func TestRun_DeterministicAcrossWorkerCounts(t *testing.T) {
	factor, err := Preset(testConfig(), "momentum")
	require.NoError(t, err)

	var baseline []float64
	for _, workers := range []int{1, 4, 16} {
		cfg := testConfig()
		cfg.Workers = workers
		result, err := Run(context.Background(), cfg, syntheticPanel(), nil, factor)
		require.NoError(t, err)

		returns := result.Series.Returns()
		if baseline == nil {
			baseline = returns
			continue
		}
		assert.Equal(t, baseline, returns, "worker count %d changed the output", workers)
	}
}

func TestRun_SizeFactorUsesDerivedMarketCap(t *testing.T) {
	cfg := testConfig()
	factor, err := Preset(cfg, "size")
	require.NoError(t, err)

	result, err := Run(context.Background(), cfg, syntheticPanel(), nil, factor)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Series)
}

func TestRun_InvalidConfigFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.Grouping = "deciles"
	factor, err := Preset(testConfig(), "momentum")
	require.NoError(t, err)

	_, err = Run(context.Background(), cfg, syntheticPanel(), nil, factor)
	assert.Error(t, err)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	factor, err := Preset(testConfig(), "momentum")
	require.NoError(t, err)

	_, err = Run(ctx, testConfig(), syntheticPanel(), nil, factor)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreset_Unknown(t *testing.T) {
	_, err := Preset(testConfig(), "carry")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "momentum", "error lists the available presets")
}
