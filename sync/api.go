package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/church/ekklesia/ratelimit"
	"github.com/church/ekklesia/sheet"
)

// publicSyncCooldown throttles manual public-sheet runs. The gviz export
// has no per-account quota on our side, so this is the only brake.
var publicSyncCooldown = ratelimit.CooldownConfig{
	MaxAttempts: 1,
	Window:      5 * time.Minute,
}

// SyncType values recorded on sync_history.
const (
	SyncTypeManual    = "manual"
	SyncTypeAutomatic = "automatic"
)

// requireAuth wraps a handler function to require authentication
func requireAuth(handler func(*core.RequestEvent) error) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if e.Auth == nil {
			return apis.NewUnauthorizedError("Authentication required", nil)
		}
		return handler(e)
	}
}

// syncRequest is the body of the manual sync endpoints.
type syncRequest struct {
	IntegrationID string `json:"integrationId"`
	SyncType      string `json:"syncType"`
}

// InitializeSyncService sets up the sync API endpoints.
func InitializeSyncService(app *pocketbase.PocketBase, e *core.ServeEvent) error {
	service := NewService(app)
	cooldown := ratelimit.NewMemoryLimiter()

	// OAuth-connected Google Sheets sync
	e.Router.POST("/api/custom/sync/sheet", requireAuth(func(e *core.RequestEvent) error {
		return handleSheetSync(e, service)
	}))

	// Public ("anyone with the link") sheet sync
	e.Router.POST("/api/custom/sync/public-sheet", requireAuth(func(e *core.RequestEvent) error {
		return handlePublicSheetSync(e, service, cooldown)
	}))

	// Last sync status + recent history for an integration
	e.Router.GET("/api/custom/sync/status", requireAuth(func(e *core.RequestEvent) error {
		return handleSyncStatus(e, service)
	}))

	return nil
}

// handleSheetSync runs a google-type integration through the Sheets API.
func handleSheetSync(e *core.RequestEvent, service *Service) error {
	integration, req, err := bindIntegration(e, IntegrationGoogle)
	if err != nil {
		return err
	}

	if !sheet.IsEnabled() {
		return e.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Sheet sync is disabled on this server",
		})
	}

	oauthCfg, err := sheet.OAuthConfigFromEnv()
	if err != nil {
		return e.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
	}

	sheetID := integration.GetString("sheet_id")
	sheetName := integration.GetString("sheet_name")
	refreshToken := integration.GetString("refresh_token")

	fetch := func(ctx context.Context) (*sheet.Table, error) {
		client, err := sheet.NewOAuthClient(ctx, oauthCfg, refreshToken)
		if err != nil {
			return nil, err
		}
		return client.FetchTable(ctx, sheetID, sheetName)
	}

	return runAndRespond(e, service, RunOptions{
		Integration: integration,
		SyncType:    req.SyncType,
		UserID:      e.Auth.Id,
		Fetch:       fetch,
	})
}

// handlePublicSheetSync runs a public_sheet-type integration through the
// gviz export, behind a per-integration cooldown.
func handlePublicSheetSync(e *core.RequestEvent, service *Service, cooldown ratelimit.Limiter) error {
	integration, req, err := bindIntegration(e, IntegrationPublicSheet)
	if err != nil {
		return err
	}

	key := "sync_public_sheet:" + integration.Id
	if res := cooldown.Check(key, publicSyncCooldown); !res.Allowed {
		retryAfter := int(time.Until(res.ResetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return e.JSON(http.StatusTooManyRequests, map[string]interface{}{
			"success":    false,
			"error":      "Sync was run recently for this sheet, try again later",
			"retryAfter": retryAfter,
		})
	}

	sheetID := integration.GetString("sheet_id")
	sheetName := integration.GetString("sheet_name")

	fetch := func(ctx context.Context) (*sheet.Table, error) {
		return sheet.FetchPublicTable(ctx, nil, sheetID, sheetName)
	}

	return runAndRespond(e, service, RunOptions{
		Integration: integration,
		SyncType:    req.SyncType,
		UserID:      e.Auth.Id,
		Fetch:       fetch,
	})
}

// handleSyncStatus reports the integration's current state plus its most
// recent history rows.
func handleSyncStatus(e *core.RequestEvent, service *Service) error {
	integrationID := e.Request.URL.Query().Get("integrationId")
	if integrationID == "" {
		return e.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "integrationId query parameter is required",
		})
	}

	integration, err := loadIntegration(service.app, integrationID)
	if err != nil {
		return apis.NewNotFoundError("Integration not found", err)
	}
	if err := checkOwnership(e, integration); err != nil {
		return err
	}

	history, err := recentHistory(service.app, integration.Id, 10)
	if err != nil {
		return e.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to load sync history",
		})
	}

	runs := make([]map[string]interface{}, 0, len(history))
	for _, record := range history {
		runs = append(runs, map[string]interface{}{
			"runId":           record.GetString("run_id"),
			"status":          record.GetString("status"),
			"syncType":        record.GetString("sync_type"),
			"recordsInserted": record.GetInt("records_inserted"),
			"recordsUpdated":  record.GetInt("records_updated"),
			"recordsSkipped":  record.GetInt("records_skipped"),
			"errors":          record.GetInt("errors"),
			"errorMessage":    record.GetString("error_message"),
			"created":         record.GetString("created"),
		})
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"syncStatus":   integration.GetString("sync_status"),
		"lastSyncedAt": integration.GetString("last_synced_at"),
		"lastError":    integration.GetString("last_error"),
		"history":      runs,
	})
}

// bindIntegration parses the request body, loads the integration and
// enforces ownership and type.
func bindIntegration(e *core.RequestEvent, wantType string) (*core.Record, *syncRequest, error) {
	req := &syncRequest{}
	if err := e.BindBody(req); err != nil {
		return nil, nil, apis.NewBadRequestError("Invalid request body", err)
	}
	if req.IntegrationID == "" {
		return nil, nil, apis.NewBadRequestError("integrationId is required", nil)
	}

	syncType, err := normalizeSyncType(req.SyncType)
	if err != nil {
		return nil, nil, apis.NewBadRequestError(err.Error(), nil)
	}
	req.SyncType = syncType

	integration, err := loadIntegration(e.App, req.IntegrationID)
	if err != nil {
		return nil, nil, apis.NewNotFoundError("Integration not found", err)
	}

	if err := checkOwnership(e, integration); err != nil {
		return nil, nil, err
	}

	if got := integration.GetString("integration_type"); got != wantType {
		return nil, nil, apis.NewBadRequestError(
			fmt.Sprintf("Integration type %q cannot be synced through this endpoint", got), nil)
	}

	return integration, req, nil
}

// normalizeSyncType validates the caller-supplied sync type. Empty
// defaults to manual; anything else must be one of the two known values,
// since it lands verbatim in sync_history.
func normalizeSyncType(raw string) (string, error) {
	switch raw {
	case "":
		return SyncTypeManual, nil
	case SyncTypeManual, SyncTypeAutomatic:
		return raw, nil
	default:
		return "", fmt.Errorf("unknown syncType %q", raw)
	}
}

func checkOwnership(e *core.RequestEvent, integration *core.Record) error {
	if integration.GetString("user") != e.Auth.Id {
		return apis.NewForbiddenError("You do not own this integration", nil)
	}
	return nil
}

// runAndRespond executes the sync and renders the shared response shape.
func runAndRespond(e *core.RequestEvent, service *Service, opts RunOptions) error {
	result, err := service.Run(e.Request.Context(), opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sheet.ErrSourceAccess) || errors.Is(err, sheet.ErrEmptySource) ||
			errors.Is(err, ErrInvalidMapping) {
			status = http.StatusBadRequest
		}
		return e.JSON(status, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"success":         true,
		"recordsInserted": result.Stats.Inserted,
		"recordsUpdated":  result.Stats.Updated,
		"recordsSkipped":  result.Stats.Skipped,
		"errors":          result.Stats.Errors,
		"message":         result.Message,
		"details":         result.Stats.Details,
	})
}
