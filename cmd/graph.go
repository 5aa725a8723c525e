package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the table dependency graph",
	Long: `Build the foreign-key dependency graph and print the creation order,
detected cycles, and junction-table flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		e, err := connectEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		g, err := e.BuildDependencyGraph(ctx)
		if err != nil {
			return fmt.Errorf("building dependency graph: %w", err)
		}

		fmt.Printf("Creation order (%d tables):\n", len(g.CreationOrder))
		for i, t := range g.CreationOrder {
			var marks []string
			if n := g.Node(t); n != nil {
				if n.IsJunctionTable {
					marks = append(marks, "junction")
				}
				if n.InCycle {
					marks = append(marks, "cycle")
				}
			}
			suffix := ""
			if len(marks) > 0 {
				suffix = " (" + strings.Join(marks, ", ") + ")"
			}
			fmt.Printf("  %2d. %s%s\n", i+1, t, suffix)
		}

		if len(g.Edges) > 0 {
			fmt.Printf("\n%d dependencies:\n", len(g.Edges))
			for _, edge := range g.Edges {
				req := ""
				if edge.Required {
					req = " [required]"
				}
				fmt.Printf("  %s -> %s%s\n", edge.From, edge.To, req)
			}
		}

		for _, cycle := range g.Cycles {
			fmt.Printf("\nWarning: dependency cycle %s\n", strings.Join(cycle, " -> "))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
