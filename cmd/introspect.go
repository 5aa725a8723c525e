package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/seedwright/seedwright/internal/state"
)

var introspectOutput string

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Capture the database schema snapshot",
	Long: `Connect to the target database and extract tables, columns, constraints,
indexes, and triggers into a schema snapshot, with inferred table roles and a
framework fingerprint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		e, err := connectEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		fmt.Println("Introspecting schema...")
		result, err := e.Introspect(ctx)
		if err != nil {
			return fmt.Errorf("introspecting: %w", err)
		}

		fmt.Println(result.Snapshot.Summary())
		if result.Framework != nil {
			fmt.Printf("Framework: %s (confidence %.2f)\n", result.Framework.Name, result.Framework.Confidence)
		}
		for _, p := range result.Patterns {
			fmt.Printf("  %-24s role=%s confidence=%.2f\n", p.Table, p.Role, p.Confidence)
		}
		for _, w := range result.Warnings {
			fmt.Printf("Warning: %s\n", w)
		}
		for _, r := range result.Recommendations {
			fmt.Printf("Hint: %s\n", r)
		}

		outputPath := introspectOutput
		if outputPath == "" {
			outputPath = filepath.Join("output", "schema.yaml")
		}
		if err := result.Snapshot.WriteYAML(outputPath); err != nil {
			return fmt.Errorf("writing schema: %w", err)
		}
		fmt.Printf("\nSchema written to %s\n", outputPath)

		saveState(func(st *state.State) {
			st.SchemaPath = outputPath
			st.CompleteStep(state.StepIntrospect)
		})
		return nil
	},
}

func init() {
	introspectCmd.Flags().StringVarP(&introspectOutput, "output", "o", "", "output path for schema YAML (default: output/schema.yaml)")
	rootCmd.AddCommand(introspectCmd)
}
