package export

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/survey-cli/internal/sampler"
)

// WriteXLSX writes a workbook with a "sample" sheet of sampled rows and a
// "parameters" sheet recording the request and the enforced parameters.
func WriteXLSX(path string, columns []string, res *sampler.Result, req sampler.Request) error {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("sample")
	if err != nil {
		return eris.Wrap(err, "export: add sample sheet")
	}
	header := sheet.AddRow()
	for _, c := range columns {
		header.AddCell().SetString(c)
	}
	header.AddCell().SetString("kind")
	for i, row := range res.Rows {
		r := sheet.AddRow()
		for _, v := range row {
			cell := r.AddCell()
			if math.IsNaN(v) {
				cell.SetString("NA")
			} else {
				cell.SetFloat(v)
			}
		}
		r.AddCell().SetString(string(res.Points[i].Kind))
	}

	params, err := file.AddSheet("parameters")
	if err != nil {
		return eris.Wrap(err, "export: add parameters sheet")
	}
	addParam := func(name string, value float64) {
		r := params.AddRow()
		r.AddCell().SetString(name)
		r.AddCell().SetFloat(value)
	}
	addParam("sample_size", float64(req.SampleSize))
	addParam("close_pairs", float64(req.ClosePairs))
	addParam("min_distance", req.MinDistance)
	addParam("requested_circle_radius", req.CircleRadius)
	addParam("scaled_min_distance", res.Effective.ScaledMinDistance)
	addParam("circle_radius", res.Effective.CircleRadius)
	addParam("primary_count", float64(res.Effective.PrimaryCount))
	addParam("dropped_rows", float64(res.DroppedRows))

	return eris.Wrapf(file.Save(path), "export: save %s", path)
}
