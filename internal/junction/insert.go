package junction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seedwright/seedwright/internal/metadata"
)

// InsertReport summarizes a batched relationship load. Partial success is
// reported through counts, not errors: a failed batch does not stop the
// remaining batches.
type InsertReport struct {
	Table    string   `json:"table"`
	Inserted int      `json:"inserted"`
	Failed   int      `json:"failed"`
	Batches  int      `json:"batches"`
	Errors   []string `json:"errors,omitempty"`
}

// Insert writes generated relationship rows in fixed-size batches. A row
// failure abandons the rest of its batch and moves on to the next one.
func Insert(ctx context.Context, client metadata.Client, info JunctionTableInfo, pairs []Pair, batchSize int, log *slog.Logger) (*InsertReport, error) {
	if log == nil {
		log = slog.Default()
	}
	if batchSize < 1 {
		batchSize = 100
	}

	rows := Rows(info, pairs)
	report := &InsertReport{Table: info.Table}
	for start := 0; start < len(rows); start += batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		report.Batches++

		batch := rows[start:end]
		for i, row := range batch {
			if _, err := client.InsertRow(ctx, info.Table, row); err != nil {
				failed := len(batch) - i
				report.Failed += failed
				report.Errors = append(report.Errors,
					fmt.Sprintf("batch %d: %v (%d rows abandoned)", report.Batches, err, failed))
				log.Warn("junction batch failed",
					"table", info.Table, "batch", report.Batches, "error", err)
				break
			}
			report.Inserted++
		}
	}

	log.Info("junction insert complete",
		"table", info.Table,
		"inserted", report.Inserted,
		"failed", report.Failed,
		"batches", report.Batches)
	return report, nil
}
