package main

import (
	"encoding/csv"
	"math/rand"
	"os"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// simPoint is one synthetic population row.
type simPoint struct {
	X  float64 `csv:"x"`
	Y  float64 `csv:"y"`
	ID int     `csv:"id"`
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate a synthetic uniform population",
	Long:  "Writes a CSV of points scattered uniformly over a rectangle, for tuning inhibition parameters before sampling a real population.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		count, _ := cmd.Flags().GetInt("count")
		if count <= 0 {
			return eris.New("--count must be positive")
		}
		width, _ := cmd.Flags().GetFloat64("width")
		height, _ := cmd.Flags().GetFloat64("height")
		if width <= 0 || height <= 0 {
			return eris.New("--width and --height must be positive")
		}
		seed, _ := cmd.Flags().GetInt64("seed")
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		output, _ := cmd.Flags().GetString("output")

		if err := writeSimulatedPopulation(output, count, width, height, seed); err != nil {
			return err
		}

		zap.L().Info("population simulated",
			zap.String("output", output),
			zap.Int("count", count),
			zap.Float64("width", width),
			zap.Float64("height", height),
			zap.Int64("seed", seed),
		)
		return nil
	},
}

func writeSimulatedPopulation(path string, count int, width, height float64, seed int64) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "simulate: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	rng := rand.New(rand.NewSource(seed))
	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	for i := 0; i < count; i++ {
		p := simPoint{
			X:  rng.Float64() * width,
			Y:  rng.Float64() * height,
			ID: i + 1,
		}
		if err := enc.Encode(p); err != nil {
			return eris.Wrapf(err, "simulate: encode point %d", i)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "simulate: flush csv")
}

func init() {
	simulateCmd.Flags().Int("count", 1000, "number of points to generate")
	simulateCmd.Flags().Float64("width", 1000, "rectangle width in coordinate units")
	simulateCmd.Flags().Float64("height", 1000, "rectangle height in coordinate units")
	simulateCmd.Flags().Int64("seed", 0, "random seed (0 uses current time)")
	simulateCmd.Flags().String("output", "population.csv", "output CSV path")
	rootCmd.AddCommand(simulateCmd)
}
