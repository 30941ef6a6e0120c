package panel

// FillKind tags a FillPolicy variant.
type FillKind int

const (
	// NoFill leaves unobserved cells missing.
	NoFill FillKind = iota
	// ZeroFill replaces missing cells with 0.
	ZeroFill
	// BoundedForwardFill propagates the last observed value forward, but only
	// while the gap to the source observation stays within MaxGapDays and the
	// target month does not pass the entity's last valid AnchorMeasure month.
	BoundedForwardFill
)

// FillPolicy is the per-measure fill rule applied after reindexing.
type FillPolicy struct {
	Kind          FillKind
	MaxGapDays    int    // BoundedForwardFill only
	AnchorMeasure string // BoundedForwardFill only
}

// PolicyTable maps measure names to fill policies. Measures without an entry
// default to NoFill; new measures register a policy instead of adding
// branches to the aligner.
type PolicyTable map[string]FillPolicy

func applyPolicies(g *Grid, policies PolicyTable) {
	// Anchor cutoffs come from raw observed values, before any fill touches
	// the anchor measure itself.
	cutoffs := make(map[string]map[string]int)
	for _, policy := range policies {
		if policy.Kind != BoundedForwardFill {
			continue
		}
		if _, ok := cutoffs[policy.AnchorMeasure]; !ok {
			cutoffs[policy.AnchorMeasure] = anchorCutoffs(g, policy.AnchorMeasure)
		}
	}

	for _, measure := range g.measures {
		policy, ok := policies[measure]
		if !ok {
			continue
		}
		switch policy.Kind {
		case ZeroFill:
			for _, e := range g.entities {
				series := g.cells[e][measure]
				for i, v := range series {
					if IsMissing(v) {
						series[i] = 0
					}
				}
			}
		case BoundedForwardFill:
			for _, e := range g.entities {
				cutoff, hasAnchor := cutoffs[policy.AnchorMeasure][e]
				if !hasAnchor {
					continue // no anchor observation ever: leave missing
				}
				forwardFill(g, e, measure, policy.MaxGapDays, cutoff)
			}
		}
	}
}

// anchorCutoffs returns, per entity, the index of the last month with a valid
// observation of the anchor measure. Entities never observed are absent.
func anchorCutoffs(g *Grid, anchor string) map[string]int {
	cutoffs := make(map[string]int)
	for _, e := range g.entities {
		series, ok := g.cells[e][anchor]
		if !ok {
			continue
		}
		for i := len(series) - 1; i >= 0; i-- {
			if !IsMissing(series[i]) {
				cutoffs[e] = i
				break
			}
		}
	}
	return cutoffs
}

func forwardFill(g *Grid, entity, measure string, maxGapDays, cutoff int) {
	series := g.cells[entity][measure]
	source := -1 // index of the observation being propagated
	for i := 0; i <= cutoff && i < len(series); i++ {
		if !IsMissing(series[i]) {
			source = i
			continue
		}
		if source < 0 {
			continue
		}
		gapDays := g.months[i].Sub(g.months[source]).Hours() / 24
		if gapDays > float64(maxGapDays) {
			continue
		}
		series[i] = series[source]
	}
}
