package sheet

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestClassifySheetsError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantAccess bool
	}{
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, true},
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, true},
		{"not found", &googleapi.Error{Code: http.StatusNotFound}, true},
		{"revoked token", errors.New(`oauth2: "invalid_grant" token revoked`), true},
		{"server error", &googleapi.Error{Code: http.StatusInternalServerError}, false},
		{"network error", errors.New("connection reset by peer"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifySheetsError(tt.err)
			if errors.Is(got, ErrSourceAccess) != tt.wantAccess {
				t.Errorf("classifySheetsError(%v) = %v, want ErrSourceAccess=%v",
					tt.err, got, tt.wantAccess)
			}
		})
	}
}

func TestOAuthConfigFromEnv(t *testing.T) {
	t.Setenv(envOAuthClientID, "client-id")
	t.Setenv(envOAuthClientSecret, "client-secret")

	cfg, err := OAuthConfigFromEnv()
	if err != nil {
		t.Fatalf("OAuthConfigFromEnv: %v", err)
	}
	if cfg.ClientID != "client-id" || cfg.ClientSecret != "client-secret" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestOAuthConfigFromEnv_ReportsAllMissing(t *testing.T) {
	t.Setenv(envOAuthClientID, "")
	t.Setenv(envOAuthClientSecret, "")

	_, err := OAuthConfigFromEnv()
	if err == nil {
		t.Fatal("expected an error with no credentials configured")
	}
	for _, name := range []string{envOAuthClientID, envOAuthClientSecret} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q should name %s", err, name)
		}
	}
}

func TestIsEnabled(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"false", false},
		{"0", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			t.Setenv(envSyncEnabled, tt.value)
			if got := IsEnabled(); got != tt.want {
				t.Errorf("IsEnabled() with %q = %v, want %v", os.Getenv(envSyncEnabled), got, tt.want)
			}
		})
	}
}
