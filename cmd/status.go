package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seedwright/seedwright/internal/config"
	"github.com/seedwright/seedwright/internal/lock"
	"github.com/seedwright/seedwright/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress and artifact locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := state.Load("")
		if err != nil {
			return fmt.Errorf("loading state: %w", err)
		}

		labels := map[state.Step]string{
			state.StepIntrospect: "1. Introspect",
			state.StepDiscover:   "2. Discover",
			state.StepPlan:       "3. Plan",
			state.StepSeed:       "4. Seed",
		}
		for _, step := range state.AllSteps() {
			mark := "  "
			if st.IsStepComplete(step) {
				mark = "OK"
			}
			fmt.Printf("  [%s] %s\n", mark, labels[step])
		}

		fmt.Println()
		if st.SchemaPath != "" {
			fmt.Printf("Schema: %s\n", st.SchemaPath)
		}
		if st.ConstraintsPath != "" {
			fmt.Printf("Constraints: %s\n", st.ConstraintsPath)
		}
		if st.WorkflowPath != "" {
			fmt.Printf("Workflow: %s\n", st.WorkflowPath)
		}
		if len(st.SelectedTables) > 0 {
			fmt.Printf("Tables: %d selected\n", len(st.SelectedTables))
		}
		if st.LastRunStatus != "" {
			fmt.Printf("Last run: %s (report: %s)\n", st.LastRunStatus, st.ReportPath)
		}
		if st.UndoManifestPath != "" {
			fmt.Printf("Undo manifest: %s\n", st.UndoManifestPath)
		}

		// Without a readable config there is no target whose lock to check.
		if cfg, err := config.Load(cfgFile); err == nil {
			held, pid, err := lock.IsHeld(lock.PathFor(cfg.Target.Database))
			if err != nil {
				return fmt.Errorf("checking lock: %w", err)
			}
			if held {
				fmt.Printf("\nA seeding run against %s is in progress (PID %d)\n", cfg.Target.Database, pid)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
