package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/survey-cli/internal/export"
	"github.com/sells-group/survey-cli/internal/sampler"
	"github.com/sells-group/survey-cli/internal/store"
)

var replicateCmd = &cobra.Command{
	Use:   "replicate",
	Short: "Draw independent sample replicates",
	Long:  "Draws N independent inhibitory samples from the same population, each with a deterministic per-replicate seed, and writes one CSV per replicate.",
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
		replicates, _ := cmd.Flags().GetInt("replicates")
		if replicates <= 0 {
			return eris.New("--replicates must be positive")
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

		baseSeed, _ := cmd.Flags().GetInt64("seed")
		if baseSeed == 0 {
			baseSeed = time.Now().UnixNano()
		}

		outDir, _ := cmd.Flags().GetString("out-dir")
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return eris.Wrapf(err, "replicate: create %s", outDir)
		}

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		noStore, _ := cmd.Flags().GetBool("no-store")

		var st store.Store
		if !noStore {
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		zap.L().Info("drawing replicates",
			zap.Int("replicates", replicates),
			zap.Int("concurrency", concurrency),
			zap.Int64("base_seed", baseSeed),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		var succeeded, failed atomic.Int64

		for i := 0; i < replicates; i++ {
			seed := baseSeed + int64(i)
			out := filepath.Join(outDir, fmt.Sprintf("replicate_%03d.csv", i+1))
			g.Go(func() error {
				log := zap.L().With(zap.String("replicate", filepath.Base(out)), zap.Int64("seed", seed))

				res, err := sampler.Generate(rand.New(rand.NewSource(seed)), pop, req)
				if err != nil {
					failed.Add(1)
					log.Error("replicate failed", zap.Error(err))
					return nil // don't abort the batch on an individual failure
				}
				if err := export.WriteRowsCSV(out, pop.Columns, res.Rows); err != nil {
					failed.Add(1)
					log.Error("replicate write failed", zap.Error(err))
					return nil
				}
				if st != nil {
					run := store.NewRunRecord(fmt.Sprintf("%s#%d", input, i+1), seed, len(pop.Rows), req, res)
					if err := st.SaveRun(gctx, run); err != nil {
						log.Warn("recording replicate failed", zap.Error(err))
					}
				}
				succeeded.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "replicate")
		}

		zap.L().Info("replicates complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)
		if failed.Load() > 0 {
			return eris.Errorf("replicate: %d of %d replicates failed", failed.Load(), replicates)
		}
		return nil
	},
}

func init() {
	replicateCmd.Flags().String("input", "", "population file (.csv or .shp)")
	replicateCmd.Flags().String("x-col", "", "x coordinate column name for CSV input")
	replicateCmd.Flags().String("y-col", "", "y coordinate column name for CSV input")
	replicateCmd.Flags().Int("size", 0, "total sample size including close pairs")
	replicateCmd.Flags().Float64("min-distance", 0, "minimum inhibition distance in coordinate units")
	replicateCmd.Flags().Int("close-pairs", 0, "number of close-pair points")
	replicateCmd.Flags().Float64("circle-radius", 0, "maximum close-pair perturbation radius")
	replicateCmd.Flags().Int("max-attempts", 0, "rejection attempts per point before giving up")
	replicateCmd.Flags().Int64("seed", 0, "base seed; replicate i uses seed+i (0 uses current time)")
	replicateCmd.Flags().Int("replicates", 0, "number of independent samples to draw")
	replicateCmd.Flags().Int("concurrency", 4, "replicates drawn concurrently")
	replicateCmd.Flags().String("out-dir", "replicates", "output directory")
	replicateCmd.Flags().Bool("no-store", false, "skip recording runs in the run log")
	rootCmd.AddCommand(replicateCmd)
}
