// Package riskstats computes descriptive and autocorrelation-robust summary
// statistics for a factor return series.
package riskstats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NeweyWestLags is the fixed lag order of the HAC variance estimator.
const NeweyWestLags = 3

// zeroVolTolerance guards the Sharpe denominator. An exact equality check
// misses floating-point "effectively zero" variance, so anything below this
// is treated as undefined.
const zeroVolTolerance = 1e-12

// Summary holds the statistics for one return series and its excess-return
// counterpart. Undefined values are NaN and render as "undefined".
type Summary struct {
	N              int     `json:"n"`
	Mean           float64 `json:"mean"`
	Median         float64 `json:"median"`
	Std            float64 `json:"std"`
	Skewness       float64 `json:"skewness"`
	ExcessKurtosis float64 `json:"excess_kurtosis"`
	TStat          float64 `json:"t_stat"`
	TPValue        float64 `json:"t_p_value"`
	Sharpe         float64 `json:"sharpe"`
	JarqueBera     float64 `json:"jarque_bera"`
	JBPValue       float64 `json:"jb_p_value"`
	HACTStat       float64 `json:"hac_t_stat"`
}

// Compute summarizes the raw series and its paired excess series. Undefined
// observations are dropped per series (pairwise), not by deleting shared
// rows. A degenerate HAC long-run variance is reported as an error for that
// statistic alone; every other field is still populated.
func Compute(raw, excess []float64) (Summary, error) {
	clean := dropUndefined(raw)
	s := Summary{N: len(clean)}
	if len(clean) == 0 {
		return s, fmt.Errorf("riskstats: no defined observations")
	}

	s.Mean = stat.Mean(clean, nil)
	s.Median = median(clean)
	if len(clean) >= 2 {
		s.Std = math.Sqrt(stat.Variance(clean, nil))
	} else {
		s.Std = math.NaN()
	}
	if len(clean) >= 3 {
		s.Skewness = stat.Skew(clean, nil)
	} else {
		s.Skewness = math.NaN()
	}
	if len(clean) >= 4 {
		s.ExcessKurtosis = stat.ExKurtosis(clean, nil)
	} else {
		s.ExcessKurtosis = math.NaN()
	}

	s.TStat, s.TPValue = meanZeroTTest(clean, s.Mean, s.Std)
	s.JarqueBera, s.JBPValue = jarqueBera(clean)
	s.Sharpe = sharpe(dropUndefined(excess))

	hac, err := NeweyWestTStat(clean, NeweyWestLags)
	s.HACTStat = hac
	return s, err
}

func dropUndefined(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// meanZeroTTest is a one-sample two-sided test of mean zero.
func meanZeroTTest(values []float64, mean, std float64) (tstat, pvalue float64) {
	n := len(values)
	if n < 2 || math.IsNaN(std) || std < zeroVolTolerance {
		return math.NaN(), math.NaN()
	}
	tstat = mean / (std / math.Sqrt(float64(n)))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	pvalue = 2 * t.Survival(math.Abs(tstat))
	return tstat, pvalue
}

// sharpe is mean(excess)/std(excess), undefined when the excess series is too
// short or its volatility is effectively zero.
func sharpe(excess []float64) float64 {
	if len(excess) < 2 {
		return math.NaN()
	}
	std := math.Sqrt(stat.Variance(excess, nil))
	if math.IsNaN(std) || std < zeroVolTolerance {
		return math.NaN()
	}
	return stat.Mean(excess, nil) / std
}

// jarqueBera computes the classic JB normality statistic from the
// uncorrected moment skewness and excess kurtosis, with a chi-squared(2)
// p-value.
func jarqueBera(values []float64) (statistic, pvalue float64) {
	n := float64(len(values))
	if n < 4 {
		return math.NaN(), math.NaN()
	}
	mean := stat.Mean(values, nil)
	var m2, m3, m4 float64
	for _, v := range values {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	m2 /= n
	m3 /= n
	m4 /= n
	if m2 < zeroVolTolerance {
		return math.NaN(), math.NaN()
	}
	skew := m3 / math.Pow(m2, 1.5)
	exKurt := m4/(m2*m2) - 3
	statistic = n / 6 * (skew*skew + exKurt*exKurt/4)
	chi2 := distuv.ChiSquared{K: 2}
	pvalue = chi2.Survival(statistic)
	return statistic, pvalue
}

// NeweyWestTStat computes the t-statistic of the series mean with a
// heteroskedasticity-and-autocorrelation-consistent long-run variance
// (Bartlett kernel, the regression-on-a-constant form). A non-positive
// long-run variance is numerical degeneracy and reported as an error rather
// than a bogus statistic.
func NeweyWestTStat(values []float64, lags int) (float64, error) {
	n := len(values)
	if n < lags+2 {
		return math.NaN(), fmt.Errorf("riskstats: %d observations too few for %d-lag HAC", n, lags)
	}
	mean := stat.Mean(values, nil)
	resid := make([]float64, n)
	for i, v := range values {
		resid[i] = v - mean
	}

	longRun := autocovariance(resid, 0)
	for l := 1; l <= lags; l++ {
		w := 1 - float64(l)/float64(lags+1)
		longRun += 2 * w * autocovariance(resid, l)
	}
	if longRun <= 0 {
		return math.NaN(), fmt.Errorf("riskstats: degenerate HAC long-run variance %g", longRun)
	}
	se := math.Sqrt(longRun / float64(n))
	return mean / se, nil
}

func autocovariance(resid []float64, lag int) float64 {
	n := len(resid)
	var sum float64
	for t := lag; t < n; t++ {
		sum += resid[t] * resid[t-lag]
	}
	return sum / float64(n)
}
