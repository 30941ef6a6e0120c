// Package ingest loads long-format panel observations and risk-free rate
// tables from CSV or spreadsheet files.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/sawpanic/factorrun/internal/panel"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// ReadPanel loads (entity, measure, date, value) rows from path, dispatching
// on the file extension (.csv, .xlsx). The first row must be a header and is
// skipped. Empty, "NA" or "NaN" values load as missing.
func ReadPanel(path string) ([]panel.Observation, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}

	var rows []panel.Observation
	for i, rec := range records {
		if i == 0 {
			continue // header
		}
		if len(rec) < 4 {
			return nil, fmt.Errorf("ingest: row %d of %s has %d columns, want 4", i+1, path, len(rec))
		}
		date, err := parseDate(rec[2])
		if err != nil {
			return nil, fmt.Errorf("ingest: row %d of %s: %w", i+1, path, err)
		}
		rows = append(rows, panel.Observation{
			Entity:  strings.TrimSpace(rec[0]),
			Measure: strings.TrimSpace(rec[1]),
			Date:    date,
			Value:   parseValue(rec[3]),
		})
	}
	log.Info().Str("path", path).Int("rows", len(rows)).Msg("Loaded panel observations")
	return rows, nil
}

// ReadRiskFree loads a (date, annualized rate) table keyed by month-end.
// Duplicate months keep the last row.
func ReadRiskFree(path string) (map[time.Time]float64, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}

	rates := make(map[time.Time]float64)
	for i, rec := range records {
		if i == 0 {
			continue
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("ingest: row %d of %s has %d columns, want 2", i+1, path, len(rec))
		}
		date, err := parseDate(rec[0])
		if err != nil {
			return nil, fmt.Errorf("ingest: row %d of %s: %w", i+1, path, err)
		}
		rates[panel.MonthEnd(date)] = parseValue(rec[1])
	}
	return rates, nil
}

func readRecords(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readSheet(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("ingest: unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: reading %s: %w", path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("ingest: %s has no sheets", path)
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("ingest: reading %s: %w", path, err)
	}
	return records, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "na") || strings.EqualFold(s, "nan") {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
