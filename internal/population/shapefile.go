package population

import (
	"math"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/sampler"
)

// LoadShapefile reads a point shapefile into a population table. Coordinates
// come from the point geometry and occupy the first two columns (indices 0
// and 1); numeric DBF attributes follow as covariates. Non-numeric attribute
// fields are skipped.
func LoadShapefile(path string) (sampler.Population, int, int, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return sampler.Population{}, 0, 0, eris.Wrapf(err, "population: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Keep only numeric DBF fields as covariate columns.
	var fieldIdx []int
	columns := []string{"x", "y"}
	for i, f := range reader.Fields() {
		if f.Fieldtype != 'N' && f.Fieldtype != 'F' {
			continue
		}
		fieldIdx = append(fieldIdx, i)
		columns = append(columns, strings.TrimRight(f.String(), "\x00"))
	}

	var rows [][]float64
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		point, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}

		row := make([]float64, 0, 2+len(fieldIdx))
		row = append(row, point.X, point.Y)
		for _, fi := range fieldIdx {
			row = append(row, parseAttribute(reader.Attribute(fi)))
		}
		rows = append(rows, row)
	}
	if err := reader.Err(); err != nil {
		return sampler.Population{}, 0, 0, eris.Wrapf(err, "population: read shapefile %s", path)
	}
	if len(rows) == 0 {
		return sampler.Population{}, 0, 0, eris.Errorf("population: no point records in %s", path)
	}

	log := zap.L().With(zap.String("path", path))
	if skipped > 0 {
		log.Warn("skipped non-point shapes", zap.Int("count", skipped))
	}
	log.Info("population loaded",
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(columns)),
	)
	return sampler.Population{Columns: columns, Rows: rows}, 0, 1, nil
}

func parseAttribute(value string) float64 {
	s := strings.TrimSpace(value)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
