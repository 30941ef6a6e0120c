package pipeline

import "github.com/sawpanic/factorrun/internal/panel"

// Canonical measure names used by the factor presets. Ingestion maps raw
// column headers onto these.
const (
	MeasurePrice       = "price"
	MeasureDividend    = "dividend"
	MeasureShares      = "shares_outstanding"
	MeasureBookEquity  = "book_equity"
	MeasureNetIncome   = "net_income"
	MeasureTotalAssets = "total_assets"

	// Derived measures registered by Run.
	MeasureReturn       = "total_return"
	MeasureMarketCap    = "market_cap"
	MeasureBookToMarket = "book_to_market"
)

// fundamentalsMaxGapDays bounds forward-filling of slow-moving accounting
// fields: annual reports plus a grace period.
const fundamentalsMaxGapDays = 400

// DefaultPolicies is the per-measure fill-policy table. Prices are never
// filled (a missing price month yields no return), dividends are zero when
// unreported, and accounting fields carry forward while the entity still
// trades and the report is not stale.
func DefaultPolicies() panel.PolicyTable {
	fundamentals := panel.FillPolicy{
		Kind:          panel.BoundedForwardFill,
		MaxGapDays:    fundamentalsMaxGapDays,
		AnchorMeasure: MeasurePrice,
	}
	return panel.PolicyTable{
		MeasurePrice:       {Kind: panel.NoFill},
		MeasureDividend:    {Kind: panel.ZeroFill},
		MeasureShares:      fundamentals,
		MeasureBookEquity:  fundamentals,
		MeasureNetIncome:   fundamentals,
		MeasureTotalAssets: fundamentals,
	}
}
