package sheet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/church/ekklesia/ratelimit"
)

const (
	envOAuthClientID     = "GOOGLE_OAUTH_CLIENT_ID"
	envOAuthClientSecret = "GOOGLE_OAUTH_CLIENT_SECRET"
	envSyncEnabled       = "SHEET_SYNC_ENABLED"

	// defaultReadRange covers the usual ledger layout when an integration
	// does not configure an explicit range.
	defaultReadRange = "A:Z"
)

// IsEnabled reports whether sheet syncing is enabled via environment.
func IsEnabled() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(envSyncEnabled)))
	return val == "true" || val == "1"
}

// OAuthConfig holds the application's Google OAuth client credentials.
// Per-tenant refresh tokens are stored on integration records; these
// credentials are what turns a refresh token into a bearer token.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
}

// OAuthConfigFromEnv reads the OAuth client credentials from the
// environment, reporting every missing variable at once.
func OAuthConfigFromEnv() (*OAuthConfig, error) {
	cfg := &OAuthConfig{
		ClientID:     strings.TrimSpace(os.Getenv(envOAuthClientID)),
		ClientSecret: strings.TrimSpace(os.Getenv(envOAuthClientSecret)),
	}

	var missing []string
	if cfg.ClientID == "" {
		missing = append(missing, envOAuthClientID)
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, envOAuthClientSecret)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Google OAuth configuration: %v", missing)
	}
	return cfg, nil
}

// Client reads spreadsheet values through the Sheets API on behalf of one
// connected account. Calls are paced and retried on quota errors.
type Client struct {
	svc   *sheets.Service
	pacer *ratelimit.Pacer
}

// NewOAuthClient builds a Sheets client from a stored refresh token. The
// underlying token source refreshes the bearer token transparently and
// retries the request, so an expired access token never surfaces here;
// only a revoked or invalid refresh token does.
func NewOAuthClient(ctx context.Context, cfg *OAuthConfig, refreshToken string) (*Client, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: integration has no refresh token", ErrSourceAccess)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       []string{sheets.SpreadsheetsReadonlyScope},
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	svc, err := sheets.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:   svc,
		pacer: ratelimit.NewPacer(nil),
	}, nil
}

// FetchTable reads one range of a spreadsheet and normalizes it to a Table.
// readRange may be a tab name, a full A1 range, or empty for the default.
func (c *Client) FetchTable(ctx context.Context, spreadsheetID, readRange string) (*Table, error) {
	if readRange == "" {
		readRange = defaultReadRange
	}

	var resp *sheets.ValueRange
	err := c.pacer.ExecuteWithRetry(ctx, func() error {
		var callErr error
		resp, callErr = c.svc.Spreadsheets.Values.
			Get(spreadsheetID, readRange).
			Context(ctx).
			Do()
		return callErr
	})
	if err != nil {
		return nil, classifySheetsError(err)
	}

	if resp == nil || len(resp.Values) == 0 {
		return nil, ErrEmptySource
	}
	return NewTableFromValues(resp.Values)
}

// classifySheetsError folds Sheets API failures into the source-access
// taxonomy so handlers can pick a status code without inspecting Google
// error types.
func classifySheetsError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: access denied, reconnect the Google account", ErrSourceAccess)
		case http.StatusNotFound:
			return fmt.Errorf("%w: spreadsheet not found", ErrSourceAccess)
		}
	}
	// oauth2 wraps refresh failures in url.Error with a RetrieveError
	// inside; the message is the most useful part either way.
	if strings.Contains(err.Error(), "oauth2") || strings.Contains(err.Error(), "invalid_grant") {
		return fmt.Errorf("%w: token refresh failed, reconnect the Google account", ErrSourceAccess)
	}
	return fmt.Errorf("fetch sheet values: %w", err)
}
