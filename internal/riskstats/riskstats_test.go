package riskstats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_Descriptives(t *testing.T) {
	raw := []float64{0.01, 0.03, -0.02, 0.05, 0.02, -0.01}
	s, err := Compute(raw, raw)
	require.NoError(t, err)

	assert.Equal(t, 6, s.N)
	assert.InDelta(t, 0.013333333333, s.Mean, 1e-9)
	assert.InDelta(t, 0.015, s.Median, 1e-12)
	// Sample standard deviation, n-1 denominator.
	assert.InDelta(t, 0.0258198889747, s.Std, 1e-9)
	assert.False(t, math.IsNaN(s.Skewness))
	assert.False(t, math.IsNaN(s.ExcessKurtosis))
	assert.False(t, math.IsNaN(s.TStat))
	assert.True(t, s.TPValue > 0 && s.TPValue < 1)
	assert.True(t, s.JBPValue > 0 && s.JBPValue <= 1)
}

func TestCompute_DropsUndefinedPairwise(t *testing.T) {
	raw := []float64{0.01, math.NaN(), 0.03, 0.02, -0.01, 0.04}
	excess := []float64{0.005, 0.01, math.NaN(), 0.015, math.NaN(), 0.03}

	s, err := Compute(raw, excess)
	require.NoError(t, err)
	// Raw statistics use the five defined raw observations; the excess gaps
	// do not delete shared rows.
	assert.Equal(t, 5, s.N)
	assert.InDelta(t, (0.01+0.03+0.02-0.01+0.04)/5, s.Mean, 1e-12)
	assert.False(t, math.IsNaN(s.Sharpe), "Sharpe computed over the four defined excess observations")
}

func TestCompute_SharpeUndefinedOnZeroVariance(t *testing.T) {
	raw := []float64{0.01, 0.02, 0.03, 0.01, 0.02}
	excess := []float64{0.01, 0.01, 0.01, 0.01, 0.01}

	s, err := Compute(raw, excess)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(s.Sharpe), "zero excess variance reports undefined, not a crash")
	assert.Equal(t, "undefined", findRow(t, s, "sharpe"))
}

func TestCompute_SharpeSign(t *testing.T) {
	excess := []float64{0.02, 0.01, 0.03, 0.02, 0.04, 0.01}
	s, err := Compute(excess, excess)
	require.NoError(t, err)
	assert.Greater(t, s.Sharpe, 0.0)
	// mean/std of the excess series.
	mean := 0.021666666666666667
	assert.InDelta(t, mean/s.Std, s.Sharpe, 1e-9)
}

func TestNeweyWestTStat_Alternating(t *testing.T) {
	// Strictly alternating series: mean zero, so the t-statistic is exactly
	// zero regardless of the (negative) autocovariances.
	values := []float64{1, -1, 1, -1, 1, -1, 1, -1}
	tstat, err := NeweyWestTStat(values, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, tstat, 1e-12)

	// Shifting every observation by 1 leaves residuals unchanged:
	// long-run variance 0.125, se = sqrt(0.125/8) = 0.125, t = 1/0.125.
	shifted := make([]float64, len(values))
	for i, v := range values {
		shifted[i] = v + 1
	}
	tstat, err = NeweyWestTStat(shifted, 3)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, tstat, 1e-9)
}

func TestNeweyWestTStat_Degenerate(t *testing.T) {
	// A constant series has zero long-run variance: reported as an error for
	// this statistic, not a panic or a bogus number.
	_, err := NeweyWestTStat([]float64{0.01, 0.01, 0.01, 0.01, 0.01, 0.01}, 3)
	assert.Error(t, err)

	_, err = NeweyWestTStat([]float64{0.01, 0.02}, 3)
	assert.Error(t, err, "too few observations for the lag order")
}

func TestCompute_DegenerateHACStillPopulatesRest(t *testing.T) {
	raw := []float64{0.01, 0.01, 0.01, 0.01, 0.01, 0.01}
	s, err := Compute(raw, raw)
	assert.Error(t, err)
	assert.Equal(t, 6, s.N)
	assert.InDelta(t, 0.01, s.Mean, 1e-12)
	assert.True(t, math.IsNaN(s.HACTStat))
}

func TestJarqueBera_NearNormalSample(t *testing.T) {
	// A symmetric, light-tailed sample should not reject normality hard.
	values := []float64{-2, -1.5, -1, -0.5, 0, 0.5, 1, 1.5, 2}
	jb, p := jarqueBera(values)
	assert.False(t, math.IsNaN(jb))
	assert.Greater(t, p, 0.05)
}

func TestRender_UndefinedFormatting(t *testing.T) {
	s := Summary{N: 3, Mean: 0.01, Sharpe: math.NaN()}
	rows := s.Render()
	require.NotEmpty(t, rows)
	assert.Equal(t, "observations", rows[0].Key)
	assert.Equal(t, "undefined", findRow(t, s, "sharpe"))
	assert.Equal(t, "0.010000", findRow(t, s, "mean"))
}

func findRow(t *testing.T, s Summary, key string) string {
	t.Helper()
	for _, row := range s.Render() {
		if row.Key == key {
			return row.Value
		}
	}
	t.Fatalf("missing row %q", key)
	return ""
}
