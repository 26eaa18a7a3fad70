package sync

import (
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"

	"github.com/church/ekklesia/dedup"
	"github.com/church/ekklesia/sheet"
)

// Collection names.
const (
	CollectionTransactions = "transactions"
	CollectionIntegrations = "sheet_integrations"
	CollectionHistory      = "sync_history"
	CollectionCategories   = "categories"
	CollectionMinistries   = "ministries"
)

// Integration types.
const (
	IntegrationGoogle      = "google"
	IntegrationPublicSheet = "public_sheet"
)

// Integration sync_status values.
const (
	StatusIdle    = "idle"
	StatusSyncing = "syncing"
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// loadIntegration fetches a sheet_integrations record by id.
func loadIntegration(app core.App, id string) (*core.Record, error) {
	return app.FindRecordById(CollectionIntegrations, id)
}

// columnMapping decodes the integration's column_mapping JSON field.
func columnMapping(integration *core.Record) (sheet.ColumnMapping, error) {
	mapping := sheet.ColumnMapping{}
	if err := integration.UnmarshalJSONField("column_mapping", &mapping); err != nil {
		return nil, fmt.Errorf("decode column_mapping: %w", err)
	}
	if len(mapping) == 0 {
		return nil, fmt.Errorf("integration has no column mapping configured")
	}
	return mapping, nil
}

// markSyncing flips the integration to the syncing state so the UI can
// show progress and a second trigger sees the run.
func markSyncing(app core.App, integration *core.Record) error {
	integration.Set("sync_status", StatusSyncing)
	integration.Set("last_error", "")
	return app.Save(integration)
}

// markResult records the terminal state of a run on the integration.
// last_synced_at only advances on success or partial success.
func markResult(app core.App, integration *core.Record, status, errMsg string) {
	integration.Set("sync_status", status)
	integration.Set("last_error", errMsg)
	if status == StatusSuccess || status == StatusPartial {
		integration.Set("last_synced_at", types.NowDateTime())
	}
	if err := app.Save(integration); err != nil {
		app.Logger().Error("Failed to save integration status",
			"integrationId", integration.Id, "error", err)
	}
}

// loadExistingTransactions fetches every transaction of one church for
// index building. The ledger is tenant-scoped; other churches' records
// never enter the index. Records come back in creation order so the
// index's first-write-wins maps always pick the oldest record on a
// content-hash collision.
func loadExistingTransactions(app core.App, churchID string) ([]*dedup.ExistingTransaction, error) {
	records, err := app.FindRecordsByFilter(
		CollectionTransactions,
		"church = {:church}",
		"created",
		0,
		0,
		dbx.Params{"church": churchID},
	)
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}

	existing := make([]*dedup.ExistingTransaction, 0, len(records))
	for _, record := range records {
		existing = append(existing, recordToExisting(record))
	}
	return existing, nil
}

// recordToExisting converts a transactions record to the in-memory shape
// the decider works with.
func recordToExisting(record *core.Record) *dedup.ExistingTransaction {
	return &dedup.ExistingTransaction{
		ID:         record.Id,
		ExternalID: record.GetString("external_id"),
		ChurchID:   record.GetString("church"),
		TransactionData: dedup.TransactionData{
			Description: record.GetString("description"),
			Amount:      decimal.NewFromFloat(record.GetFloat("amount")),
			Type:        dedup.TransactionType(record.GetString("type")),
			Status:      dedup.TransactionStatus(record.GetString("status")),
			DueDate:     record.GetString("due_date"),
			PaymentDate: record.GetString("payment_date"),
			CategoryID:  record.GetString("category"),
			MinistryID:  record.GetString("ministry"),
			Notes:       record.GetString("notes"),
		},
	}
}

// loadLookups builds the name-to-id maps used to resolve category and
// ministry cells. Lookup failures degrade to empty maps: a missing
// collection must not block a sync, the relations just stay blank.
func loadLookups(app core.App, churchID string) Lookups {
	return Lookups{
		Categories: nameIndex(app, CollectionCategories, churchID),
		Ministries: nameIndex(app, CollectionMinistries, churchID),
	}
}

func nameIndex(app core.App, collection, churchID string) map[string]string {
	index := make(map[string]string)

	records, err := app.FindRecordsByFilter(
		collection,
		"church = {:church}",
		"",
		0,
		0,
		dbx.Params{"church": churchID},
	)
	if err != nil {
		app.Logger().Warn("Lookup collection unavailable",
			"collection", collection, "error", err)
		return index
	}

	for _, record := range records {
		key := dedup.Normalize(record.GetString("name"))
		if key == "" {
			continue
		}
		if _, ok := index[key]; !ok {
			index[key] = record.Id
		}
	}
	return index
}
