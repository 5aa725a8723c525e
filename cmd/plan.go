package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/seedwright/seedwright/internal/config"
	"github.com/seedwright/seedwright/internal/selection"
	"github.com/seedwright/seedwright/internal/state"
	"github.com/seedwright/seedwright/internal/workflow"
)

var (
	planTables          []string
	planMode            string
	planUserStrategy    string
	planOnFailure       string
	planIncludeOptional bool
	planValidate        bool
	planRollback        bool
	planOutput          string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a seeding workflow",
	Long: `Generate an ordered, constraint-aware seeding workflow for the requested
tables without executing it. The workflow is written as YAML so it can be
reviewed, edited, and fed to 'seedwright seed --workflow'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		e, err := connectEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		tables, err := expandTables(ctx, e, planTables)
		if err != nil {
			return err
		}

		wf, meta, err := e.GenerateWorkflow(ctx, tables, workflowOptions(e.Config))
		if err != nil {
			return fmt.Errorf("generating workflow: %w", err)
		}

		fmt.Println(wf.Summary())
		for _, step := range wf.Steps {
			req := ""
			if step.Required {
				req = " [required]"
			}
			fmt.Printf("  %-28s %s %s%s\n", step.ID, step.Operation, step.Table, req)
		}
		for _, w := range meta.Warnings {
			fmt.Printf("Warning: %s\n", w)
		}
		if len(meta.SkippedTables) > 0 {
			fmt.Printf("Skipped system tables: %v\n", meta.SkippedTables)
		}
		if len(tables) > 0 {
			for _, ref := range selection.FindOrphanedReferences(e.Introspection().Snapshot, tables) {
				fmt.Printf("Warning: %s.%s references %s, which is outside the selection; existing rows will be used\n",
					ref.Table, ref.ForeignKey, ref.ReferencedTable)
			}
		}

		outputPath := planOutput
		if outputPath == "" {
			outputPath = filepath.Join("output", "workflow.yaml")
		}
		if err := wf.WriteYAML(outputPath); err != nil {
			return fmt.Errorf("writing workflow: %w", err)
		}
		fmt.Printf("\nWorkflow written to %s\n", outputPath)

		saveState(func(st *state.State) {
			st.WorkflowPath = outputPath
			st.SelectedTables = tables
			st.CompleteStep(state.StepPlan)
		})
		return nil
	},
}

// workflowOptions merges the plan/seed flags over the config defaults.
func workflowOptions(cfg *config.Config) workflow.Options {
	opts := workflow.Options{
		Mode:              workflow.Mode(cfg.Seed.Mode),
		UserStrategy:      workflow.UserStrategy(cfg.Seed.UserStrategy),
		OnFailure:         workflow.FailurePolicy(cfg.Seed.OnFailure),
		IncludeOptional:   planIncludeOptional,
		IncludeValidation: planValidate,
		Rollback:          planRollback || cfg.Seed.Rollback,
	}
	if planMode != "" {
		opts.Mode = workflow.Mode(planMode)
	}
	if planUserStrategy != "" {
		opts.UserStrategy = workflow.UserStrategy(planUserStrategy)
	}
	if planOnFailure != "" {
		opts.OnFailure = workflow.FailurePolicy(planOnFailure)
	}
	return opts
}

func addWorkflowFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&planTables, "tables", "t", nil, "tables to seed (default: all)")
	cmd.Flags().StringVar(&planMode, "mode", "", "constraint mode: strict, permissive, auto_fix")
	cmd.Flags().StringVar(&planUserStrategy, "user-strategy", "", "field mapping strategy: comprehensive, minimal, adaptive")
	cmd.Flags().StringVar(&planOnFailure, "on-failure", "", "failure policy: fail_fast, graceful_degradation, best_effort")
	cmd.Flags().BoolVar(&planIncludeOptional, "include-optional", false, "map optional conventional fields too")
	cmd.Flags().BoolVar(&planValidate, "validate", false, "add post-insert validation steps")
	cmd.Flags().BoolVar(&planRollback, "rollback", false, "roll back inserted rows when the run fails")
}

func init() {
	addWorkflowFlags(planCmd)
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "output path for workflow YAML (default: output/workflow.yaml)")
	rootCmd.AddCommand(planCmd)
}
