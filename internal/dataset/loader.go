// Package dataset loads the enriched historical flood corpus from CSV. The
// loader is header-driven: columns may appear in any order, optional
// columns may be absent, and blank cells in optional columns stay unset so
// the feature catalog imputes them at training time.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

// Column names of the enriched historical dataset.
const (
	colWardCode    = "Ward_Code"
	colWardName    = "Ward_Name"
	colRainfall    = "Rainfall_mm"
	colRainfall24h = "Rainfall_24hr"
	colTideLevel   = "Tide_Level_m"
	colTemperature = "Temperature_C"
	colHumidity    = "Humidity_%"
	colWindSpeed   = "Wind_Speed_kmh"
	colSeason      = "Season"
	colElevation   = "Elevation_m"
	colDrainage    = "Drainage_Capacity"
	colDensity     = "Population_Density"
	colFlood       = "Flood_Occurred"
	colRiskLevel   = "Flood_Risk_Level"
)

var requiredColumns = []string{
	colWardCode, colRainfall, colTideLevel, colSeason, colFlood, colRiskLevel,
}

// LoadFile reads the corpus from a CSV file on disk.
func LoadFile(path string) ([]*domain.HistoricalRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Load reads the corpus from CSV data. The first row must be a header
// containing at least the ward code, rainfall, tide, season, and the two
// outcome columns.
func Load(r io.Reader) ([]*domain.HistoricalRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: dataset missing column %q", domain.ErrSchema, name)
		}
	}

	var records []*domain.HistoricalRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++

		rec, err := parseRow(cols, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: dataset has no rows", domain.ErrInsufficientData)
	}
	return records, nil
}

func parseRow(cols map[string]int, row []string) (*domain.HistoricalRecord, error) {
	cell := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	wardCode := cell(colWardCode)
	if wardCode == "" {
		return nil, domain.SchemaErrorf("empty %s", colWardCode)
	}
	season := cell(colSeason)
	if season == "" {
		return nil, domain.SchemaErrorf("empty %s", colSeason)
	}

	rainfall, err := requiredFloat(cell(colRainfall), colRainfall)
	if err != nil {
		return nil, err
	}
	tide, err := requiredFloat(cell(colTideLevel), colTideLevel)
	if err != nil {
		return nil, err
	}

	flood, err := parseBool(cell(colFlood))
	if err != nil {
		return nil, domain.SchemaErrorf("bad %s value %q", colFlood, cell(colFlood))
	}
	riskLevel, err := strconv.Atoi(cell(colRiskLevel))
	if err != nil || riskLevel < domain.RiskLow || riskLevel > domain.RiskHigh {
		return nil, domain.SchemaErrorf("bad %s value %q", colRiskLevel, cell(colRiskLevel))
	}

	rec := &domain.HistoricalRecord{
		WardCode:          wardCode,
		WardName:          cell(colWardName),
		ElevationCategory: cell(colElevation),
		DrainageCategory:  cell(colDrainage),
		DensityCategory:   cell(colDensity),
		FloodOccurred:     flood,
		FloodRiskLevel:    riskLevel,
		Observation: domain.Observation{
			RainfallMM: &rainfall,
			TideLevelM: &tide,
			Season:     season,
		},
	}
	if rec.WardName == "" {
		rec.WardName = wardCode
	}

	var parseErr error
	optional := func(name string) *float64 {
		raw := cell(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			parseErr = domain.SchemaErrorf("bad %s value %q", name, raw)
			return nil
		}
		return &v
	}

	rec.Observation.Rainfall24hMM = optional(colRainfall24h)
	rec.Observation.TemperatureC = optional(colTemperature)
	rec.Observation.HumidityPct = optional(colHumidity)
	rec.Observation.WindSpeedKmh = optional(colWindSpeed)
	if parseErr != nil {
		return nil, parseErr
	}

	return rec, nil
}

func requiredFloat(raw, name string) (float64, error) {
	if raw == "" {
		return 0, domain.SchemaErrorf("empty %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, domain.SchemaErrorf("bad %s value %q", name, raw)
	}
	return v, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("bad boolean %q", raw)
	}
}
