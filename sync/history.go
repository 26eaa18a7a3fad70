package sync

import (
	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// newRunID mints the identifier that ties one run's log lines and its
// sync_history row together.
func newRunID() string {
	return uuid.NewString()
}

// writeHistory appends an audit row for one run. History is best-effort:
// a failure to record it must not fail the sync itself.
func writeHistory(app core.App, opts RunOptions, runID string, stats *Stats, status, errMsg string) {
	collection, err := app.FindCollectionByNameOrId(CollectionHistory)
	if err != nil {
		app.Logger().Error("Failed to find sync_history collection", "error", err)
		return
	}

	integration := opts.Integration

	record := core.NewRecord(collection)
	record.Set("church", integration.GetString("church"))
	record.Set("user", opts.UserID)
	record.Set("integration", integration.Id)
	record.Set("integration_type", integration.GetString("integration_type"))
	record.Set("run_id", runID)
	record.Set("records_inserted", stats.Inserted)
	record.Set("records_updated", stats.Updated)
	record.Set("records_skipped", stats.Skipped)
	record.Set("errors", stats.Errors)
	record.Set("status", status)
	record.Set("sync_type", opts.SyncType)
	record.Set("error_message", errMsg)

	if err := app.Save(record); err != nil {
		app.Logger().Error("Failed to save sync_history record",
			"runId", runID, "error", err)
	}
}

// recentHistory returns the latest history rows for one integration,
// newest first.
func recentHistory(app core.App, integrationID string, limit int) ([]*core.Record, error) {
	return app.FindRecordsByFilter(
		CollectionHistory,
		"integration = {:integration}",
		"-created",
		limit,
		0,
		dbx.Params{"integration": integrationID},
	)
}
