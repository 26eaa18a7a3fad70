package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	gosync "sync"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/robfig/cron/v3"

	"github.com/church/ekklesia/sheet"
)

// HistoryRetentionDays is how long sync_history rows are kept before the
// daily prune removes them.
const HistoryRetentionDays = 30

// defaultSchedule is the auto-sync sweep cadence when SYNC_SCHEDULE is
// not set.
const defaultSchedule = "*/30 * * * *"

// autoSyncSpacing is the pause between consecutive integrations in one
// sweep, keeping sequential tenants from hammering the Sheets API.
const autoSyncSpacing = 2 * time.Second

// Scheduler manages cron-based sync scheduling.
type Scheduler struct {
	app     core.App
	cron    *cron.Cron
	service *Service
	mu      gosync.Mutex
	running bool
}

// NewScheduler creates a new scheduler.
func NewScheduler(app core.App) *Scheduler {
	return &Scheduler{
		app:     app,
		cron:    cron.New(),
		service: NewService(app),
	}
}

// Start registers the cron entries and starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := strings.TrimSpace(os.Getenv("SYNC_SCHEDULE"))
	if schedule == "" {
		schedule = defaultSchedule
	}

	_, err := s.cron.AddFunc(schedule, func() {
		slog.Info("Starting scheduled auto-sync sweep")
		s.runAutoSync()
	})
	if err != nil {
		return fmt.Errorf("adding auto-sync schedule %q: %w", schedule, err)
	}

	_, err = s.cron.AddFunc("0 3 * * *", func() {
		if err := s.pruneOldHistory(); err != nil {
			slog.Warn("Failed to prune sync history", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("adding prune schedule: %w", err)
	}

	s.cron.Start()
	s.running = true

	slog.Info("Sync scheduler started", "schedule", schedule)
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	slog.Info("Stopping sync scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	slog.Info("Sync scheduler stopped")
}

// runAutoSync syncs every integration flagged auto_sync, sequentially
// with spacing between runs.
func (s *Scheduler) runAutoSync() {
	ctx := context.Background()

	integrations, err := s.app.FindRecordsByFilter(
		CollectionIntegrations,
		"auto_sync = true",
		"created",
		0,
		0,
	)
	if err != nil {
		slog.Error("Failed to load auto-sync integrations", "error", err)
		return
	}
	if len(integrations) == 0 {
		return
	}

	slog.Info("Auto-sync sweep", "integrations", len(integrations))

	for i, integration := range integrations {
		if i > 0 {
			time.Sleep(autoSyncSpacing)
		}

		if err := s.syncOne(ctx, integration); err != nil {
			slog.Error("Auto-sync run failed",
				"integrationId", integration.Id, "error", err)
		}
	}
}

// syncOne runs a single integration the same way the manual endpoints do,
// attributed to the integration's owner with sync_type automatic.
func (s *Scheduler) syncOne(ctx context.Context, integration *core.Record) error {
	sheetID := integration.GetString("sheet_id")
	sheetName := integration.GetString("sheet_name")

	var fetch func(ctx context.Context) (*sheet.Table, error)

	switch integration.GetString("integration_type") {
	case IntegrationGoogle:
		if !sheet.IsEnabled() {
			return fmt.Errorf("sheet sync is disabled, skipping google integration")
		}
		oauthCfg, err := sheet.OAuthConfigFromEnv()
		if err != nil {
			return err
		}
		refreshToken := integration.GetString("refresh_token")
		fetch = func(ctx context.Context) (*sheet.Table, error) {
			client, err := sheet.NewOAuthClient(ctx, oauthCfg, refreshToken)
			if err != nil {
				return nil, err
			}
			return client.FetchTable(ctx, sheetID, sheetName)
		}
	case IntegrationPublicSheet:
		fetch = func(ctx context.Context) (*sheet.Table, error) {
			return sheet.FetchPublicTable(ctx, nil, sheetID, sheetName)
		}
	default:
		return fmt.Errorf("unknown integration type %q", integration.GetString("integration_type"))
	}

	_, err := s.service.Run(ctx, RunOptions{
		Integration: integration,
		SyncType:    SyncTypeAutomatic,
		UserID:      integration.GetString("user"),
		Fetch:       fetch,
	})
	return err
}

// pruneOldHistory deletes sync_history records older than the retention
// window.
func (s *Scheduler) pruneOldHistory() error {
	cutoff := time.Now().AddDate(0, 0, -HistoryRetentionDays).UTC().Format(time.RFC3339)

	records, err := s.app.FindRecordsByFilter(
		CollectionHistory,
		fmt.Sprintf("created < '%s'", cutoff),
		"-created",
		1000,
		0,
	)
	if err != nil {
		return fmt.Errorf("finding old history records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	deleted := 0
	for _, record := range records {
		if err := s.app.Delete(record); err != nil {
			slog.Warn("Failed to delete history record", "recordId", record.Id, "error", err)
		} else {
			deleted++
		}
	}

	slog.Info("Pruned sync history", "deleted", deleted, "found", len(records))
	return nil
}

// Global scheduler instance
var (
	globalScheduler *Scheduler
	schedulerOnce   gosync.Once
)

// GetScheduler returns the global scheduler instance.
func GetScheduler(app core.App) *Scheduler {
	schedulerOnce.Do(func() {
		globalScheduler = NewScheduler(app)
	})
	return globalScheduler
}

// StartSyncScheduler starts the global scheduler.
func StartSyncScheduler(app core.App) error {
	return GetScheduler(app).Start()
}
