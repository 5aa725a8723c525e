package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seedwright/seedwright/internal/junction"
	"github.com/seedwright/seedwright/internal/lock"
)

var (
	junctionStrategy string
	junctionDensity  float64
	junctionSeed     int64
	junctionOrphans  bool
	junctionBatch    int
)

var junctionCmd = &cobra.Command{
	Use:   "junction",
	Short: "Detect and fill many-to-many junction tables",
}

var junctionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detected junction tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		e, err := connectEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		infos, err := e.DetectJunctions(ctx)
		if err != nil {
			return fmt.Errorf("detecting junction tables: %w", err)
		}
		if len(infos) == 0 {
			fmt.Println("No junction tables detected.")
			return nil
		}

		fmt.Printf("%d junction table(s):\n", len(infos))
		for _, info := range infos {
			extra := ""
			if len(info.AdditionalColumns) > 0 {
				extra = " +" + strings.Join(info.AdditionalColumns, ",")
			}
			fmt.Printf("  %-24s %s <-> %s (confidence %.2f)%s\n",
				info.Table, info.Left.Table, info.Right.Table, info.Confidence, extra)
		}
		return nil
	},
}

var junctionFillCmd = &cobra.Command{
	Use:   "fill <table>",
	Short: "Generate and insert relationship rows for one junction table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		e, err := connectEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		lockPath := lock.PathFor(e.Config.Target.Database)
		if err := lock.Acquire(lockPath); err != nil {
			return err
		}
		defer lock.Release(lockPath)

		infos, err := e.DetectJunctions(ctx)
		if err != nil {
			return fmt.Errorf("detecting junction tables: %w", err)
		}
		var target *junction.JunctionTableInfo
		for i := range infos {
			if infos[i].Table == args[0] {
				target = &infos[i]
			}
		}
		if target == nil {
			return fmt.Errorf("%q is not a detected junction table", args[0])
		}

		if junctionBatch > 0 {
			e.Config.Seed.BatchSize = junctionBatch
		}

		fmt.Printf("Filling %s (%s <-> %s) at density %.2f...\n",
			target.Table, target.Left.Table, target.Right.Table, junctionDensity)
		rep, err := e.SeedJunction(ctx, *target, junction.GenerateOptions{
			Strategy:     junction.Strategy(junctionStrategy),
			Density:      junctionDensity,
			AvoidOrphans: junctionOrphans,
			Seed:         junctionSeed,
		})
		if err != nil {
			return fmt.Errorf("filling %s: %w", target.Table, err)
		}

		fmt.Printf("Inserted %d rows in %d batch(es), %d failed\n", rep.Inserted, rep.Batches, rep.Failed)
		for _, msg := range rep.Errors {
			fmt.Printf("  error: %s\n", msg)
		}
		return nil
	},
}

func init() {
	junctionFillCmd.Flags().StringVar(&junctionStrategy, "strategy", "random", "distribution: random, even, clustered")
	junctionFillCmd.Flags().Float64Var(&junctionDensity, "density", 0.3, "fraction of the cross product to fill (0, 1]")
	junctionFillCmd.Flags().Int64Var(&junctionSeed, "seed", 0, "random seed (0 derives one from the clock)")
	junctionFillCmd.Flags().BoolVar(&junctionOrphans, "avoid-orphans", false, "guarantee every row on both sides appears at least once")
	junctionFillCmd.Flags().IntVar(&junctionBatch, "batch-size", 0, "rows per insert batch (default: config batch_size)")
	junctionCmd.AddCommand(junctionListCmd)
	junctionCmd.AddCommand(junctionFillCmd)
	rootCmd.AddCommand(junctionCmd)
}
