// Package population loads location tables from external formats into the
// in-memory form the sampler consumes. Loading is collaborator tooling: the
// sampler itself never touches files.
package population

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/sampler"
)

// missingMarkers are field values treated as missing and parsed to NaN so the
// sampler's validator can drop the row.
var missingMarkers = map[string]bool{
	"":    true,
	"na":  true,
	"n/a": true,
	"nan": true,
}

// LoadCSV reads a headered CSV file into a population table. The xColumn and
// yColumn headers locate the coordinate columns (matched case-insensitively);
// their resolved indices are returned alongside the table. Every field is
// parsed as float64; missing markers and unparseable values become NaN, which
// the sampler drops for coordinates and carries through for covariates.
func LoadCSV(path, xColumn, yColumn string) (sampler.Population, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return sampler.Population{}, 0, 0, eris.Wrapf(err, "population: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return sampler.Population{}, 0, 0, eris.Wrapf(err, "population: read header of %s", path)
	}

	xIdx := columnIndex(header, xColumn)
	yIdx := columnIndex(header, yColumn)
	if xIdx < 0 || yIdx < 0 {
		return sampler.Population{}, 0, 0, eris.Errorf(
			"population: coordinate columns %q, %q not found in header %v", xColumn, yColumn, header)
	}

	var rows [][]float64
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sampler.Population{}, 0, 0, eris.Wrapf(err, "population: read %s", path)
		}
		row := make([]float64, len(record))
		for i, field := range record {
			row[i] = parseField(field)
		}
		rows = append(rows, row)
	}

	zap.L().Info("population loaded",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(header)),
	)
	return sampler.Population{Columns: header, Rows: rows}, xIdx, yIdx, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func parseField(field string) float64 {
	s := strings.TrimSpace(field)
	if missingMarkers[strings.ToLower(s)] {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
