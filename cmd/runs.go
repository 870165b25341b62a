package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/survey-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded sampling runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := s.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		printRuns(runs)
		return nil
	},
}

func printRuns(runs []store.RunRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSOURCE\tSIZE\tCLOSE PAIRS\tMIN DIST\tSCALED\tSEED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%g\t%.3f\t%d\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Source,
			r.SampleSize,
			r.ClosePairs,
			r.MinDistance,
			r.ScaledMinDistance,
			r.Seed,
		)
	}
	_ = w.Flush()
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
