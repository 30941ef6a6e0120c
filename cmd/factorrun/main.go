package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd is the base command for the factorrun CLI.
var rootCmd = &cobra.Command{
	Use:   "factorrun",
	Short: "Long-short equity factor construction engine",
	Long: `factorrun builds long-short factor return series (momentum, value, size,
profitability, investment) from a monthly panel of company fundamentals and
prices, and reports risk-adjusted summary statistics.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(factorsCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
