package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sawpanic/factorrun/internal/characteristic"
	"github.com/sawpanic/factorrun/internal/config"
	"github.com/sawpanic/factorrun/internal/pipeline"
)

var factorsCmd = &cobra.Command{
	Use:   "factors",
	Short: "List the available factor presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		presets := pipeline.Presets(config.Default())
		names := make([]string, 0, len(presets))
		for name := range presets {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FACTOR\tCHARACTERISTIC")
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s\n", name, describe(presets[name].Characteristic))
		}
		return w.Flush()
	},
}

func describe(c characteristic.Characteristic) string {
	switch v := c.(type) {
	case characteristic.TrailingReturn:
		return fmt.Sprintf("trailing %d-month return, skip %d", v.Lookback, v.Skip)
	case characteristic.RatioToLagged:
		return fmt.Sprintf("%s over %s lagged %d months", v.Numerator, v.Denominator, v.LagMonths)
	case characteristic.RawField:
		return fmt.Sprintf("raw %s", v.Measure)
	default:
		return "custom"
	}
}
