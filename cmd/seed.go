package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seedwright/seedwright/internal/lock"
	"github.com/seedwright/seedwright/internal/report"
	"github.com/seedwright/seedwright/internal/rollback"
	"github.com/seedwright/seedwright/internal/state"
	"github.com/seedwright/seedwright/internal/workflow"
)

var (
	seedWorkflowPath string
	seedInputs       []string
	seedReportDir    string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate and execute a seeding workflow",
	Long: `Run the full pipeline: introspect, discover constraints, generate a
workflow, and execute it against the database with constraint validation and
auto-fixing. Pass --workflow to execute a previously planned workflow file
instead of generating one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		e, err := connectEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		// One writing run per target database at a time.
		lockPath := lock.PathFor(e.Config.Target.Database)
		if err := lock.Acquire(lockPath); err != nil {
			return err
		}
		defer lock.Release(lockPath)

		tables, err := expandTables(ctx, e, planTables)
		if err != nil {
			return err
		}

		var wf *workflow.Workflow
		if seedWorkflowPath != "" {
			wf, err = workflow.LoadYAML(seedWorkflowPath)
			if err != nil {
				return err
			}
			// Constraint metadata still drives validation during execution.
			if _, err := e.DiscoverConstraints(ctx, tables); err != nil {
				return fmt.Errorf("discovering constraints: %w", err)
			}
		} else {
			wf, _, err = e.GenerateWorkflow(ctx, tables, workflowOptions(e.Config))
			if err != nil {
				return fmt.Errorf("generating workflow: %w", err)
			}
		}

		input, err := parseInputs(seedInputs)
		if err != nil {
			return err
		}

		fmt.Println(wf.Summary())
		fmt.Println("Executing...")
		result, err := e.Execute(ctx, wf, input)
		if err != nil {
			return fmt.Errorf("executing workflow: %w", err)
		}

		rep := e.Report(wf, result)
		fmt.Println()
		fmt.Print(report.FormatText(rep))

		reportDir := seedReportDir
		if reportDir == "" {
			reportDir = "output"
		}
		reportPath := filepath.Join(reportDir, "seed-report.json")
		if err := report.WriteJSON(rep, reportPath); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", reportPath)

		manifestPath := ""
		if manifest := rollback.FromExecution(e.Config.Target.Database, wf.Name, result); len(manifest.Entries) > 0 {
			manifestPath = filepath.Join(reportDir, "undo-manifest.yaml")
			if err := manifest.WriteYAML(manifestPath); err != nil {
				return fmt.Errorf("writing undo manifest: %w", err)
			}
			fmt.Printf("Undo manifest written to %s (revert with 'seedwright undo')\n", manifestPath)
		}

		saveState(func(st *state.State) {
			st.LastRunStatus = rep.Execution.Status
			st.ReportPath = reportPath
			st.UndoManifestPath = manifestPath
			st.CompleteStep(state.StepSeed)
		})

		if !result.Success {
			return fmt.Errorf("seeding finished with %d failed step(s)", result.Failed)
		}
		return nil
	},
}

// parseInputs turns repeated key=value flags into the workflow input map.
// Values parse as bool or int when they look like one, else stay strings.
func parseInputs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	input := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q, expected key=value", pair)
		}
		switch {
		case val == "true" || val == "false":
			input[key] = val == "true"
		default:
			if n, err := strconv.Atoi(val); err == nil {
				input[key] = n
			} else {
				input[key] = val
			}
		}
	}
	return input, nil
}

func init() {
	addWorkflowFlags(seedCmd)
	seedCmd.Flags().StringVarP(&seedWorkflowPath, "workflow", "w", "", "execute this workflow YAML instead of generating one")
	seedCmd.Flags().StringArrayVarP(&seedInputs, "input", "i", nil, "workflow input as key=value (repeatable)")
	seedCmd.Flags().StringVar(&seedReportDir, "report-dir", "", "directory for the run report (default: output)")
	rootCmd.AddCommand(seedCmd)
}
