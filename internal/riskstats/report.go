package riskstats

import (
	"fmt"
	"math"
)

// Row is one formatted statistic for tabular output.
type Row struct {
	Key   string
	Value string
}

// Render flattens the summary into an ordered key/value table. NaN fields
// render as "undefined" instead of being dropped or zeroed.
func (s Summary) Render() []Row {
	f := func(v float64) string {
		if math.IsNaN(v) {
			return "undefined"
		}
		return fmt.Sprintf("%.6f", v)
	}
	return []Row{
		{"observations", fmt.Sprintf("%d", s.N)},
		{"mean", f(s.Mean)},
		{"median", f(s.Median)},
		{"std_dev", f(s.Std)},
		{"skewness", f(s.Skewness)},
		{"excess_kurtosis", f(s.ExcessKurtosis)},
		{"t_stat", f(s.TStat)},
		{"t_p_value", f(s.TPValue)},
		{"sharpe", f(s.Sharpe)},
		{"jarque_bera", f(s.JarqueBera)},
		{"jb_p_value", f(s.JBPValue)},
		{"newey_west_t", f(s.HACTStat)},
	}
}
