package tasks

import (
	"context"
	"fmt"

	"github.com/edgard/textgenbot/internal/config"
)

// newLedgerPruneTask deletes ledger rows older than the configured retention.
func newLedgerPruneTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "ledger_prune")

	return func(ctx context.Context) error {
		retention := config.DefaultRetention
		if deps.Config != nil && deps.Config.Database.Retention > 0 {
			retention = deps.Config.Database.Retention
		}
		cutoff := deps.now().Add(-retention)

		deleted, err := deps.Store.PruneGenerations(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Ledger prune failed", "error", err, "cutoff", cutoff)
			return fmt.Errorf("ledger prune failed: %w", err)
		}

		log.InfoContext(ctx, "Ledger pruned", "deleted", deleted, "retention", retention)
		return nil
	}
}
