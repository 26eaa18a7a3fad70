package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/church/ekklesia/dedup"
	"github.com/church/ekklesia/sheet"
)

// ErrInvalidMapping means the integration's column mapping is missing,
// malformed or points at headers the sheet does not have.
var ErrInvalidMapping = errors.New("invalid column mapping")

// Service runs sheet syncs against the transactions ledger.
type Service struct {
	app core.App
	now func() time.Time
}

// NewService creates a sync service.
func NewService(app core.App) *Service {
	return &Service{app: app, now: time.Now}
}

// RunOptions parameterizes one sync run. Fetch abstracts the source so
// OAuth and public-sheet runs share the same pipeline.
type RunOptions struct {
	Integration *core.Record
	SyncType    string // "manual" or "automatic"
	UserID      string
	Fetch       func(ctx context.Context) (*sheet.Table, error)
}

// RunResult is the terminal outcome of one sync run.
type RunResult struct {
	Stats   Stats
	Status  string
	Message string
}

// Run executes one sync: load the tenant's ledger, fetch and parse the
// sheet, decide each row and apply the resulting plan. Inserts go into a
// single database transaction; updates are applied one by one with
// individual failures counted rather than aborting the run.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	integration := opts.Integration
	churchID := integration.GetString("church")
	runID := newRunID()

	logger := slog.With(
		"integrationId", integration.Id,
		"church", churchID,
		"runId", runID,
	)
	logger.Info("Sync run started", "syncType", opts.SyncType)

	if err := markSyncing(s.app, integration); err != nil {
		return nil, fmt.Errorf("marking integration as syncing: %w", err)
	}

	mapping, err := columnMapping(integration)
	if err != nil {
		return nil, s.fail(opts, runID, &Stats{}, fmt.Errorf("%w: %v", ErrInvalidMapping, err))
	}

	existing, err := loadExistingTransactions(s.app, churchID)
	if err != nil {
		return nil, s.fail(opts, runID, &Stats{}, err)
	}
	ix := dedup.BuildIndex(existing)

	table, err := opts.Fetch(ctx)
	if err != nil {
		return nil, s.fail(opts, runID, &Stats{}, err)
	}
	if err := mapping.Validate(table); err != nil {
		return nil, s.fail(opts, runID, &Stats{}, fmt.Errorf("%w: %v", ErrInvalidMapping, err))
	}

	parser := &sheet.Parser{Mapping: mapping, Today: s.now()}
	lookups := loadLookups(s.app, churchID)
	plan := buildPlan(table, parser, integration.GetString("sheet_id"), ix, lookups)

	if err := s.applyInserts(churchID, plan.Inserts); err != nil {
		// The batch rolled back and the updates never ran; only skips and
		// row errors actually happened.
		aborted := plan.Stats
		aborted.Inserted = 0
		aborted.Updated = 0
		aborted.Details = nil
		return nil, s.fail(opts, runID, &aborted, fmt.Errorf("inserting transactions: %w", err))
	}
	s.applyUpdates(plan.Updates, &plan.Stats, logger)

	status := StatusSuccess
	if plan.Stats.Errors > 0 {
		status = StatusPartial
	}

	markResult(s.app, integration, status, "")
	writeHistory(s.app, opts, runID, &plan.Stats, status, "")

	result := &RunResult{
		Stats:  plan.Stats,
		Status: status,
		Message: fmt.Sprintf("Sync completed: %d inserted, %d updated, %d skipped, %d errors",
			plan.Stats.Inserted, plan.Stats.Updated, plan.Stats.Skipped, plan.Stats.Errors),
	}

	logger.Info("Sync run finished",
		"status", status,
		"inserted", plan.Stats.Inserted,
		"updated", plan.Stats.Updated,
		"skipped", plan.Stats.Skipped,
		"errors", plan.Stats.Errors,
	)
	return result, nil
}

// fail records a run that aborted before completion. The integration is
// marked errored and the run still lands in sync_history.
func (s *Service) fail(opts RunOptions, runID string, stats *Stats, err error) error {
	markResult(s.app, opts.Integration, StatusError, err.Error())
	writeHistory(s.app, opts, runID, stats, StatusError, err.Error())
	return err
}

// applyInserts saves the pending inserts inside one transaction. A batch
// either lands whole or not at all.
func (s *Service) applyInserts(churchID string, inserts []InsertOp) error {
	if len(inserts) == 0 {
		return nil
	}

	collection, err := s.app.FindCollectionByNameOrId(CollectionTransactions)
	if err != nil {
		return fmt.Errorf("finding transactions collection: %w", err)
	}

	return s.app.RunInTransaction(func(txApp core.App) error {
		for _, op := range inserts {
			record := core.NewRecord(collection)
			record.Set("church", churchID)
			record.Set("description", op.Data.Description)
			record.Set("amount", op.Data.Amount.InexactFloat64())
			record.Set("type", string(op.Data.Type))
			record.Set("status", string(op.Data.Status))
			record.Set("due_date", op.Data.DueDate)
			record.Set("payment_date", op.Data.PaymentDate)
			record.Set("category", op.Data.CategoryID)
			record.Set("ministry", op.Data.MinistryID)
			record.Set("notes", op.Data.Notes)
			record.Set("external_id", op.ExternalID)

			if err := txApp.Save(record); err != nil {
				return fmt.Errorf("saving %q: %w", op.Data.Description, err)
			}
		}
		return nil
	})
}

// applyUpdates applies field diffs one record at a time. A failed update
// moves the row from its planned counter into Errors.
func (s *Service) applyUpdates(updates []UpdateOp, stats *Stats, logger *slog.Logger) {
	for _, op := range updates {
		record, err := s.app.FindRecordById(CollectionTransactions, op.Existing.ID)
		if err != nil {
			logger.Warn("Transaction disappeared during sync",
				"transactionId", op.Existing.ID, "error", err)
			demoteToError(op, stats)
			continue
		}

		for field, change := range op.Changes {
			if field == dedup.FieldAmount {
				// Amount diffs carry fixed-point strings; the column is
				// numeric.
				if amount, perr := strconv.ParseFloat(fmt.Sprintf("%v", change.New), 64); perr == nil {
					record.Set(field, amount)
				}
				continue
			}
			record.Set(field, change.New)
		}

		if err := s.app.Save(record); err != nil {
			logger.Warn("Failed to update transaction",
				"transactionId", op.Existing.ID, "error", err)
			demoteToError(op, stats)
		}
	}
}

func demoteToError(op UpdateOp, stats *Stats) {
	if op.Meaningful {
		stats.Updated--
	} else {
		stats.Skipped--
	}
	stats.Errors++
}
