package main

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/export"
	"github.com/sells-group/survey-cli/internal/population"
	"github.com/sells-group/survey-cli/internal/sampler"
	"github.com/sells-group/survey-cli/internal/store"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Draw an inhibitory sample with close pairs",
	Long:  "Loads a population of locations from CSV or a point shapefile, draws a sample under the minimum-distance constraint with the requested close pairs, and writes the selected rows.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			return eris.New("--input population file is required")
		}
		size, _ := cmd.Flags().GetInt("size")
		if size <= 0 {
			return eris.New("--size must be positive")
		}

		xCol, _ := cmd.Flags().GetString("x-col")
		yCol, _ := cmd.Flags().GetString("y-col")
		if xCol == "" {
			xCol = cfg.Sample.XColumn
		}
		if yCol == "" {
			yCol = cfg.Sample.YColumn
		}

		pop, xIdx, yIdx, err := loadPopulation(input, xCol, yCol)
		if err != nil {
			return err
		}

		minDist, _ := cmd.Flags().GetFloat64("min-distance")
		closePairs, _ := cmd.Flags().GetInt("close-pairs")
		circleRadius, _ := cmd.Flags().GetFloat64("circle-radius")
		maxAttempts, _ := cmd.Flags().GetInt("max-attempts")
		if maxAttempts == 0 {
			maxAttempts = cfg.Sample.MaxAttempts
		}
		req := sampler.Request{
			SampleSize:   size,
			XIndex:       xIdx,
			YIndex:       yIdx,
			MinDistance:  minDist,
			ClosePairs:   closePairs,
			CircleRadius: circleRadius,
			MaxAttempts:  maxAttempts,
		}

		seed, _ := cmd.Flags().GetInt64("seed")
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		res, err := sampler.Generate(rand.New(rand.NewSource(seed)), pop, req)
		if err != nil {
			return eris.Wrap(err, "sample")
		}

		outputs, err := writeSampleOutputs(cmd, pop.Columns, res, req)
		if err != nil {
			return err
		}

		log := zap.L().With(zap.String("input", input), zap.Int64("seed", seed))
		noStore, _ := cmd.Flags().GetBool("no-store")
		var runID string
		if !noStore {
			runID, err = recordRun(ctx, input, seed, len(pop.Rows), req, res)
			if err != nil {
				log.Warn("recording run failed", zap.Error(err))
			}
		}

		if manifest, _ := cmd.Flags().GetString("manifest"); manifest != "" {
			m := export.NewManifest(input, seed, len(pop.Rows), req, res)
			m.RunID = runID
			m.Outputs = outputs
			if err := export.WriteManifest(manifest, m); err != nil {
				return err
			}
		}

		log.Info("sample complete",
			zap.Int("points", len(res.Points)),
			zap.Int("close_pairs", req.ClosePairs),
			zap.Float64("scaled_min_distance", res.Effective.ScaledMinDistance),
			zap.Int("dropped_rows", res.DroppedRows),
			zap.String("run_id", runID),
		)
		return nil
	},
}

// loadPopulation dispatches on file extension: .shp goes to the shapefile
// loader, everything else is read as CSV.
func loadPopulation(path, xCol, yCol string) (sampler.Population, int, int, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return population.LoadShapefile(path)
	}
	return population.LoadCSV(path, xCol, yCol)
}

// writeSampleOutputs writes every requested output format and returns the
// paths written, keyed by format.
func writeSampleOutputs(cmd *cobra.Command, columns []string, res *sampler.Result, req sampler.Request) (map[string]string, error) {
	outputs := map[string]string{}

	out, _ := cmd.Flags().GetString("output")
	if out != "" {
		if err := export.WriteRowsCSV(out, columns, res.Rows); err != nil {
			return nil, err
		}
		outputs["rows"] = out
	}
	if points, _ := cmd.Flags().GetString("points"); points != "" {
		if err := export.WritePointsCSV(points, res.Points); err != nil {
			return nil, err
		}
		outputs["points"] = points
	}
	if geojson, _ := cmd.Flags().GetString("geojson"); geojson != "" {
		if err := export.WriteGeoJSON(geojson, columns, res, req); err != nil {
			return nil, err
		}
		outputs["geojson"] = geojson
	}
	if xlsxPath, _ := cmd.Flags().GetString("xlsx"); xlsxPath != "" {
		if err := export.WriteXLSX(xlsxPath, columns, res, req); err != nil {
			return nil, err
		}
		outputs["xlsx"] = xlsxPath
	}
	return outputs, nil
}

// recordRun saves the run to the configured store and returns its ID.
func recordRun(ctx context.Context, source string, seed int64, populationSize int, req sampler.Request, res *sampler.Result) (string, error) {
	s, err := openStore(ctx)
	if err != nil {
		return "", err
	}
	defer s.Close() //nolint:errcheck

	run := store.NewRunRecord(source, seed, populationSize, req, res)
	if err := s.SaveRun(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}

func init() {
	sampleCmd.Flags().String("input", "", "population file (.csv or .shp)")
	sampleCmd.Flags().String("x-col", "", "x coordinate column name for CSV input (default from config)")
	sampleCmd.Flags().String("y-col", "", "y coordinate column name for CSV input (default from config)")
	sampleCmd.Flags().Int("size", 0, "total sample size including close pairs")
	sampleCmd.Flags().Float64("min-distance", 0, "minimum inhibition distance in coordinate units")
	sampleCmd.Flags().Int("close-pairs", 0, "number of close-pair points (at most half the sample size)")
	sampleCmd.Flags().Float64("circle-radius", 0, "maximum close-pair perturbation radius")
	sampleCmd.Flags().Int("max-attempts", 0, "rejection attempts per point before giving up (default from config)")
	sampleCmd.Flags().Int64("seed", 0, "random seed (0 uses current time)")
	sampleCmd.Flags().String("output", "sample.csv", "sampled rows CSV path (empty to skip)")
	sampleCmd.Flags().String("points", "", "per-point provenance CSV path")
	sampleCmd.Flags().String("geojson", "", "GeoJSON output path")
	sampleCmd.Flags().String("xlsx", "", "XLSX workbook output path")
	sampleCmd.Flags().String("manifest", "", "YAML run manifest path")
	sampleCmd.Flags().Bool("no-store", false, "skip recording the run in the run log")
	rootCmd.AddCommand(sampleCmd)
}
