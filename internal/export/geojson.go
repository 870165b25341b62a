package export

import (
	"fmt"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/survey-cli/internal/sampler"
)

// WriteGeoJSON writes the sample as a FeatureCollection of Point features.
// Each feature carries the point's kind, source row, anchor, and the row's
// covariates keyed by column name; coordinate columns are not duplicated into
// properties.
func WriteGeoJSON(path string, columns []string, res *sampler.Result, req sampler.Request) error {
	fc := &geojson.FeatureCollection{}
	for i, p := range res.Points {
		props := map[string]interface{}{
			"kind":       string(p.Kind),
			"source_row": p.SourceRow,
			"anchor":     p.Anchor,
		}
		for ci, v := range res.Rows[i] {
			if ci == req.XIndex || ci == req.YIndex || math.IsNaN(v) {
				continue
			}
			props[columnName(columns, ci)] = v
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{p.X, p.Y}),
			Properties: props,
		})
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

func columnName(columns []string, i int) string {
	if i < len(columns) && columns[i] != "" {
		return columns[i]
	}
	return fmt.Sprintf("col_%d", i)
}
