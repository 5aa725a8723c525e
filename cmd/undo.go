package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seedwright/seedwright/internal/lock"
	"github.com/seedwright/seedwright/internal/rollback"
	"github.com/seedwright/seedwright/internal/state"
)

var undoManifestPath string

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Delete the rows inserted by the last seeding run",
	Long: `Read the undo manifest written by 'seedwright seed' and delete every row
it records, children before parents. Without --manifest the manifest path is
taken from the pipeline state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		manifestPath := undoManifestPath
		if manifestPath == "" {
			st, err := state.Load("")
			if err != nil {
				return fmt.Errorf("loading state: %w", err)
			}
			manifestPath = st.UndoManifestPath
		}
		if manifestPath == "" {
			return fmt.Errorf("no undo manifest recorded; pass --manifest or run 'seedwright seed' first")
		}

		manifest, err := rollback.LoadYAML(manifestPath)
		if err != nil {
			return err
		}
		if len(manifest.Entries) == 0 {
			fmt.Println("Nothing to undo.")
			return nil
		}

		lockPath := lock.PathFor(manifest.Database)
		if err := lock.Acquire(lockPath); err != nil {
			return err
		}
		defer lock.Release(lockPath)

		e, err := connectEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		fmt.Printf("Undoing %d row(s) from the %s run of %s...\n",
			len(manifest.Entries), manifest.CreatedAt.Format("2006-01-02 15:04"), manifest.Database)
		result, err := rollback.Execute(ctx, e.Client, manifest)
		if err != nil {
			return err
		}

		fmt.Printf("Deleted %d of %d row(s)\n", result.Deleted, len(manifest.Entries))
		for _, msg := range result.Errors {
			fmt.Printf("  error: %s\n", msg)
		}

		if len(result.Errors) == 0 {
			saveState(func(st *state.State) {
				st.LastRunStatus = "undone"
				st.UndoManifestPath = ""
			})
		}
		return nil
	},
}

func init() {
	undoCmd.Flags().StringVar(&undoManifestPath, "manifest", "", "undo manifest path (default: last run's manifest)")
	rootCmd.AddCommand(undoCmd)
}
