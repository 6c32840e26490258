package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("KFSH_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("KFSH_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("KFSH_TIMEZONE", "UTC")
}

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("KFSH_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("expected UTC location, got %v", cfg.Location)
	}
	if cfg.ExpiryGrace != 24*time.Hour {
		t.Fatalf("default grace = %v, want 24h", cfg.ExpiryGrace)
	}
	if len(cfg.WeekendDays) != 2 || cfg.WeekendDays[0] != time.Friday || cfg.WeekendDays[1] != time.Saturday {
		t.Fatalf("default weekend = %v", cfg.WeekendDays)
	}
}

func TestLoadFallsBackToConventionalKeys(t *testing.T) {
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("JWT_SIGNING_KEY", "legacy")
	t.Setenv("KFSH_TIMEZONE", "UTC")
	t.Setenv("KFSH_DB_BACKEND", "sqlite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN != "file::memory:" || cfg.JWTSigningKey != "legacy" {
		t.Fatalf("fallback keys not read: %+v", cfg)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"backend", "KFSH_DB_BACKEND", "oracle"},
		{"anchor", "KFSH_PLANNER_ANCHOR", "middle"},
		{"weekend", "KFSH_WEEKEND_DAYS", "fri,funday"},
		{"timezone", "KFSH_TIMEZONE", "Mars/Olympus"},
		{"event bus", "KFSH_EVENT_BUS", "kafka"},
		{"grace", "KFSH_EXPIRY_GRACE_MINUTES", "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadRequiresSigningKey(t *testing.T) {
	t.Setenv("KFSH_DB_DSN", "x")
	t.Setenv("KFSH_JWT_SIGNING_KEY", "")
	t.Setenv("JWT_SIGNING_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing signing key error")
	}
}

func TestParseWeekdays(t *testing.T) {
	days, err := ParseWeekdays(" Sat , sunday ,")
	if err != nil {
		t.Fatalf("ParseWeekdays: %v", err)
	}
	if len(days) != 2 || days[0] != time.Saturday || days[1] != time.Sunday {
		t.Fatalf("got %v", days)
	}
}
