package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/seedwright/seedwright/internal/state"
)

var (
	discoverTables []string
	discoverOutput string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover constraints and business rules",
	Long: `Analyze NOT NULL columns, CHECK clauses, foreign keys, and triggers to
derive confidence-scored business rules and table dependencies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		e, err := connectEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		tables, err := expandTables(ctx, e, discoverTables)
		if err != nil {
			return err
		}

		fmt.Println("Discovering constraints...")
		meta, err := e.DiscoverConstraints(ctx, tables)
		if err != nil {
			return fmt.Errorf("discovering constraints: %w", err)
		}

		fmt.Println(meta.Summary())
		fmt.Println()
		for _, r := range meta.BusinessRules {
			marker := " "
			if r.AutoFix != nil {
				marker = "*"
			}
			fmt.Printf("  [%.2f]%s %-14s %s: %s\n", r.Confidence, marker, r.Kind, r.Table, r.Condition)
		}
		if n := len(meta.Dependencies); n > 0 {
			fmt.Printf("\n%d table dependencies:\n", n)
			for _, d := range meta.Dependencies {
				req := "optional"
				if d.Required {
					req = "required"
				}
				fmt.Printf("  %s.%s -> %s.%s (%s)\n", d.FromTable, d.FromColumn, d.ToTable, d.ToColumn, req)
			}
		}

		outputPath := discoverOutput
		if outputPath == "" {
			outputPath = filepath.Join("output", "constraints.yaml")
		}
		if err := meta.WriteYAML(outputPath); err != nil {
			return fmt.Errorf("writing constraints: %w", err)
		}
		fmt.Printf("\nConstraints written to %s\n", outputPath)

		saveState(func(st *state.State) {
			st.ConstraintsPath = outputPath
			st.CompleteStep(state.StepDiscover)
		})
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringSliceVarP(&discoverTables, "tables", "t", nil, "tables to analyze (default: all)")
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", "", "output path for constraints YAML (default: output/constraints.yaml)")
	rootCmd.AddCommand(discoverCmd)
}
