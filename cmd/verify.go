package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seedwright/seedwright/internal/validation"
)

var (
	verifyTables []string
	verifySample int
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate seeded data against the schema",
	Long: `Check that seeded tables hold rows, that sampled foreign keys resolve to
existing rows, and that required columns carry values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		e, err := connectEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		tables, err := expandTables(ctx, e, verifyTables)
		if err != nil {
			return err
		}

		result := e.Introspection()
		if result == nil {
			result, err = e.Introspect(ctx)
			if err != nil {
				return fmt.Errorf("introspecting: %w", err)
			}
		}
		meta, err := e.DiscoverConstraints(ctx, tables)
		if err != nil {
			return fmt.Errorf("discovering constraints: %w", err)
		}

		v := &validation.Validator{
			Client:     e.Client,
			Snapshot:   result.Snapshot,
			Metadata:   meta,
			SampleSize: verifySample,
			Callback: func(table, checkType string, passed bool) {
				mark := "ok"
				if !passed {
					mark = "FAIL"
				}
				fmt.Printf("  %-24s %-10s %s\n", table, checkType, mark)
			},
		}

		fmt.Println("Validating seeded data...")
		res, err := v.Validate(ctx, tables)
		if err != nil {
			return fmt.Errorf("validating: %w", err)
		}

		fmt.Println()
		for _, tr := range res.Tables {
			if tr.Status == "PASS" {
				continue
			}
			if tr.RowCountCheck != nil && !tr.RowCountCheck.Passed {
				fmt.Printf("%s: no rows\n", tr.Name)
			}
			if tr.IntegrityCheck != nil && !tr.IntegrityCheck.Passed {
				for _, o := range tr.IntegrityCheck.Orphans {
					fmt.Printf("%s: %s=%v has no row in %s\n", tr.Name, o.Column, o.Value, o.ReferencedTable)
				}
			}
			if tr.RequiredCheck != nil && !tr.RequiredCheck.Passed {
				for _, m := range tr.RequiredCheck.Missing {
					fmt.Printf("%s: %s is NULL in %d sampled row(s)\n", tr.Name, m.Column, m.Rows)
				}
			}
		}
		fmt.Printf("Validation: %s (%d table(s) in %s)\n",
			res.Status, len(res.Tables), res.CompletedAt.Sub(res.StartedAt).Round(time.Millisecond))

		if res.Status == "FAIL" {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringSliceVar(&verifyTables, "tables", nil, "tables to validate (default: all)")
	verifyCmd.Flags().IntVar(&verifySample, "sample-size", 10, "rows to sample per table")
	rootCmd.AddCommand(verifyCmd)
}
