package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/factorrun/internal/config"
	"github.com/sawpanic/factorrun/internal/ingest"
	"github.com/sawpanic/factorrun/internal/persistence"
	"github.com/sawpanic/factorrun/internal/persistence/postgres"
	"github.com/sawpanic/factorrun/internal/pipeline"
)

var (
	buildPanelPath    string
	buildRiskFreePath string
	buildConfigPath   string
	buildFactor       string
	buildFormat       string
	buildPostgresDSN  string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a factor return series and report its statistics",
	Long: `Build aligns the raw panel, forms periodic cross-sectional sorts, aggregates
the high-minus-low return series and prints risk-adjusted statistics.

Example usage:
  factorrun build --panel panel.csv --riskfree rf.csv --factor momentum
  factorrun build --panel panel.xlsx --factor value --format json
  factorrun build --panel panel.csv --factor size --postgres-dsn $DSN`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildPanelPath, "panel", "", "Long-format panel file (.csv or .xlsx)")
	buildCmd.Flags().StringVar(&buildRiskFreePath, "riskfree", "", "Risk-free rate file (date, annualized rate)")
	buildCmd.Flags().StringVar(&buildConfigPath, "config", "", "YAML run configuration (defaults when omitted)")
	buildCmd.Flags().StringVar(&buildFactor, "factor", "momentum", "Factor preset to build")
	buildCmd.Flags().StringVar(&buildFormat, "format", "table", "Output format: table or json")
	buildCmd.Flags().StringVar(&buildPostgresDSN, "postgres-dsn", "", "Persist the run to PostgreSQL when set")
	buildCmd.MarkFlagRequired("panel")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if buildConfigPath != "" {
		var err error
		cfg, err = config.Load(buildConfigPath)
		if err != nil {
			return err
		}
	}
	if buildFormat != "table" && buildFormat != "json" {
		return fmt.Errorf("unknown output format %q (want table or json)", buildFormat)
	}

	factor, err := pipeline.Preset(cfg, buildFactor)
	if err != nil {
		return err
	}

	rows, err := ingest.ReadPanel(buildPanelPath)
	if err != nil {
		return err
	}
	riskfree := map[time.Time]float64{}
	if buildRiskFreePath != "" {
		riskfree, err = ingest.ReadRiskFree(buildRiskFreePath)
		if err != nil {
			return err
		}
	}

	result, err := pipeline.Run(cmd.Context(), cfg, rows, riskfree, factor)
	if err != nil {
		return err
	}

	if buildPostgresDSN != "" {
		if err := persistRun(cmd.Context(), result); err != nil {
			return err
		}
	}

	if buildFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printTable(result)
}

func printTable(result *pipeline.Result) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Factor:\t%s\n", result.Factor)
	fmt.Fprintf(w, "Periods:\t%d\n", len(result.Series))
	fmt.Fprintf(w, "Formation dates:\t%d\n", result.Formations)
	fmt.Fprintf(w, "Panel cells:\t%d\n", result.PanelCells)
	fmt.Fprintln(w, "\t")
	for _, row := range result.Stats.Render() {
		fmt.Fprintf(w, "%s:\t%s\n", row.Key, row.Value)
	}
	if result.StatsError != "" {
		fmt.Fprintf(w, "note:\t%s\n", result.StatsError)
	}
	return w.Flush()
}

func persistRun(ctx context.Context, result *pipeline.Result) error {
	db, err := postgres.Connect(buildPostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := postgres.NewRunsRepo(db, 30*time.Second)
	run := persistence.Run{
		ID:        uuid.New(),
		Factor:    result.Factor,
		CreatedAt: time.Now().UTC(),
		Periods:   len(result.Series),
	}

	returns := make([]persistence.ReturnRow, 0, len(result.Series))
	for _, p := range result.Series {
		row := persistence.ReturnRow{RunID: run.ID, Date: p.Date, FactorReturn: p.FactorReturn}
		if !math.IsNaN(p.RF) {
			rf, excess := p.RF, p.Excess
			row.RF, row.Excess = &rf, &excess
		}
		returns = append(returns, row)
	}

	var stats []persistence.StatRow
	for _, s := range result.Stats.Render() {
		stats = append(stats, persistence.StatRow{RunID: run.ID, Key: s.Key, Value: s.Value})
	}

	if err := repo.SaveRun(ctx, run, returns, stats); err != nil {
		return err
	}
	log.Info().Str("run_id", run.ID.String()).Str("factor", result.Factor).Msg("Run persisted")
	return nil
}
