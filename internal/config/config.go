// Package config defines the immutable run configuration threaded through the
// factor pipeline. All validation happens before any computation starts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Frequency selects how often portfolios are re-formed.
type Frequency string

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
)

// Grouping selects the cross-sectional breakpoint method.
type Grouping string

const (
	// Median splits at the 50th percentile with strict membership: entities
	// exactly at the median belong to neither group.
	Median Grouping = "median"
	// Quintiles cuts at the 20th/80th percentiles, inclusive membership.
	Quintiles Grouping = "quintiles"
	// Thirds cuts at the 30th/70th percentiles (30/40/30), inclusive.
	Thirds Grouping = "30/40/30"
)

// Weighting selects how group returns average over members.
type Weighting string

const (
	EqualWeight Weighting = "equal"
	ValueWeight Weighting = "value"
)

// Config is the validated, immutable configuration for one factor run.
type Config struct {
	Frequency Frequency `yaml:"frequency"`
	Grouping  Grouping  `yaml:"grouping"`
	Weighting Weighting `yaml:"weighting"`

	// Winsorization quantile bounds in [0,1], lower < upper.
	WinsorLower float64 `yaml:"winsor_lower"`
	WinsorUpper float64 `yaml:"winsor_upper"`

	// Trailing-return window lengths in months.
	LookbackMonths int `yaml:"lookback_months"`
	SkipMonths     int `yaml:"skip_months"`

	// Calendar month in which the fiscal year ends (annual formation only).
	FiscalYearEndMonth time.Month `yaml:"fiscal_year_end_month"`

	// Analysis date range; observations outside are dropped before alignment.
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`

	// Parallelism for formation-date sorts; 0 means one worker per CPU.
	Workers int `yaml:"workers"`
}

// Default returns the baseline configuration used when no file is supplied.
func Default() Config {
	return Config{
		Frequency:          Monthly,
		Grouping:           Median,
		Weighting:          EqualWeight,
		WinsorLower:        0.01,
		WinsorUpper:        0.99,
		LookbackMonths:     11,
		SkipMonths:         1,
		FiscalYearEndMonth: time.December,
		Start:              time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:                time.Date(2030, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Load reads a YAML configuration file over the defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every enum and numeric bound, returning a descriptive error
// for the first violation found.
func (c Config) Validate() error {
	switch c.Frequency {
	case Monthly, Quarterly, Annual:
	default:
		return fmt.Errorf("unknown formation frequency %q (want monthly, quarterly or annual)", c.Frequency)
	}
	switch c.Grouping {
	case Median, Quintiles, Thirds:
	default:
		return fmt.Errorf("unknown grouping method %q (want median, quintiles or 30/40/30)", c.Grouping)
	}
	switch c.Weighting {
	case EqualWeight, ValueWeight:
	default:
		return fmt.Errorf("unknown weighting %q (want equal or value)", c.Weighting)
	}
	if c.WinsorLower < 0 || c.WinsorUpper > 1 || c.WinsorLower >= c.WinsorUpper {
		return fmt.Errorf("winsor bounds [%.3f, %.3f] invalid: need 0 <= lower < upper <= 1",
			c.WinsorLower, c.WinsorUpper)
	}
	if c.LookbackMonths <= 0 {
		return fmt.Errorf("lookback_months must be positive, got %d", c.LookbackMonths)
	}
	if c.SkipMonths <= 0 {
		return fmt.Errorf("skip_months must be positive, got %d", c.SkipMonths)
	}
	if c.FiscalYearEndMonth < time.January || c.FiscalYearEndMonth > time.December {
		return fmt.Errorf("fiscal_year_end_month %d outside 1..12", c.FiscalYearEndMonth)
	}
	if !c.End.After(c.Start) {
		return fmt.Errorf("analysis range [%s, %s] is empty",
			c.Start.Format("2006-01-02"), c.End.Format("2006-01-02"))
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	return nil
}
