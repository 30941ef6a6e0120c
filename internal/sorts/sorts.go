// Package sorts implements the periodic cross-sectional sort that turns a
// characteristic into low/high portfolio assignments.
package sorts

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/factorrun/internal/config"
	"github.com/sawpanic/factorrun/internal/panel"
)

// Assignment is the sort outcome for one formation date: two disjoint entity
// groups plus, under value weighting, a sizing weight per member. Immutable
// once built; later periods look it up, never mutate it.
type Assignment struct {
	Date    time.Time
	Low     []string
	High    []string
	Weights map[string]float64 // nil under equal weighting
}

// Sort winsorizes the characteristic cross-section, computes breakpoints per
// the grouping method, and assigns entities to the low and high groups. Under
// value weighting, weights are read from sizeMeasure at the formation date;
// members with a missing or negative weight are dropped from their group.
// A date with no eligible entities yields nil.
func Sort(cfg config.Config, g *panel.Grid, formation time.Time, chars map[string]float64, sizeMeasure string) *Assignment {
	if len(chars) == 0 {
		return nil
	}

	entities := make([]string, 0, len(chars))
	values := make([]float64, 0, len(chars))
	for e, v := range chars {
		entities = append(entities, e)
		values = append(values, v)
	}
	// Deterministic iteration regardless of map order.
	sort.Sort(byEntity{entities, values})

	winsorized := winsorize(values, cfg.WinsorLower, cfg.WinsorUpper)

	lowCut, highCut, strict := breakpoints(winsorized, cfg.Grouping)

	a := &Assignment{Date: formation}
	if cfg.Weighting == config.ValueWeight {
		a.Weights = make(map[string]float64)
	}
	for i, e := range entities {
		v := winsorized[i]
		var low, high bool
		if strict {
			low, high = v < lowCut, v > highCut
		} else {
			low, high = v <= lowCut, v >= highCut
		}
		if !low && !high {
			continue
		}
		if a.Weights != nil {
			w := g.Value(e, sizeMeasure, formation)
			if panel.IsMissing(w) || w < 0 {
				continue
			}
			a.Weights[e] = w
		}
		if low {
			a.Low = append(a.Low, e)
		} else {
			a.High = append(a.High, e)
		}
	}

	if len(a.Low) == 0 && len(a.High) == 0 {
		return nil
	}
	log.Debug().
		Time("formation", formation).
		Int("low", len(a.Low)).
		Int("high", len(a.High)).
		Msg("Formed assignment")
	return a
}

// breakpoints returns the lower and upper cut values for the grouping method
// and whether membership is strict (median) or inclusive (quantile cuts).
func breakpoints(values []float64, grouping config.Grouping) (lowCut, highCut float64, strict bool) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	switch grouping {
	case config.Quintiles:
		return quantile(sorted, 0.20), quantile(sorted, 0.80), false
	case config.Thirds:
		return quantile(sorted, 0.30), quantile(sorted, 0.70), false
	default: // median
		m := quantile(sorted, 0.50)
		return m, m, true
	}
}

// winsorize clips each value to the [lower, upper] quantiles of the
// cross-section. Quantiles use linear interpolation over the sorted sample.
func winsorize(values []float64, lower, upper float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	lo := quantile(sorted, lower)
	hi := quantile(sorted, upper)

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case v < lo:
			out[i] = lo
		case v > hi:
			out[i] = hi
		default:
			out[i] = v
		}
	}
	return out
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

type byEntity struct {
	entities []string
	values   []float64
}

func (b byEntity) Len() int           { return len(b.entities) }
func (b byEntity) Less(i, j int) bool { return b.entities[i] < b.entities[j] }
func (b byEntity) Swap(i, j int) {
	b.entities[i], b.entities[j] = b.entities[j], b.entities[i]
	b.values[i], b.values[j] = b.values[j], b.values[i]
}
