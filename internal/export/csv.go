// Package export writes sampling results to the formats downstream tooling
// consumes: CSV tables, GeoJSON point collections, XLSX workbooks, and YAML
// run manifests.
package export

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/survey-cli/internal/sampler"
)

// WriteRowsCSV writes the sampled rows as a headered CSV table with the
// population's column set. NaN covariates are written as NA.
func WriteRowsCSV(path string, columns []string, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

// pointRow is the fixed schema of the per-point provenance CSV.
type pointRow struct {
	Seq       int     `csv:"seq"`
	Kind      string  `csv:"kind"`
	X         float64 `csv:"x"`
	Y         float64 `csv:"y"`
	SourceRow int     `csv:"source_row"`
	Anchor    int     `csv:"anchor"`
}

// WritePointsCSV writes per-point provenance (kind, source row, anchor) in
// generation order.
func WritePointsCSV(path string, points []sampler.Point) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	for i, p := range points {
		row := pointRow{
			Seq:       i,
			Kind:      string(p.Kind),
			X:         p.X,
			Y:         p.Y,
			SourceRow: p.SourceRow,
			Anchor:    p.Anchor,
		}
		if err := enc.Encode(row); err != nil {
			return eris.Wrapf(err, "export: encode point %d", i)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush points csv")
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
