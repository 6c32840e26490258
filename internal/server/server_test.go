package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/config"
)

const testCatalog = `products:
  - id: f18-fdg
    name: "[18F]FDG"
    half_life_minutes: 109.77
    production_minutes: 90
    buffer_minutes: 60
    dose_processing_minutes: 15
    max_batch_activity: "3000"
    activity_unit: mCi
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "products.yaml")
	if err := os.WriteFile(catalogPath, []byte(testCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	loc, err := time.LoadLocation("Asia/Riyadh")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return &config.Config{
		Environment:       "test",
		HTTPBind:          "127.0.0.1",
		HTTPPort:          0,
		DBBackend:         config.DatabaseSQLite,
		DBDSN:             filepath.Join(dir, "kfsh.db"),
		JWTSigningKey:     "test-secret",
		Timezone:          "Asia/Riyadh",
		Location:          loc,
		WeekendDays:       []time.Weekday{time.Friday, time.Saturday},
		ReservationScope:  "global",
		ReservationPrefix: "RSV",
		ExpiryGrace:       24 * time.Hour,
		ExpiryInterval:    time.Minute,
		ExpiryBatchSize:   50,
		PlannerAnchor:     "earliest",
		PlannerBuffer:     time.Hour,
		ProductCatalog:    catalogPath,
		EventBus:          config.EventBusMemory,
		OutboxInterval:    time.Minute,
		ExportDir:         filepath.Join(dir, "exports"),
		MetricsEnabled:    true,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestHealthzReportsDatabaseAndBuild(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var body healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Database != "ok" {
		t.Fatalf("unexpected health %+v", body)
	}
	if body.Build.Version == "" {
		t.Fatalf("expected build version")
	}
	if body.Leader != nil {
		t.Fatalf("leader reported without election")
	}
}

func TestRoutesAreMounted(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	cases := []struct {
		path string
		want int
	}{
		{"/metrics", http.StatusOK},
		{"/api/v1/health", http.StatusOK},
		{"/api/v1/capacity/calendar?start_date=2026-03-01&end_date=2026-03-07", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rr.Code != tc.want {
			t.Errorf("GET %s status=%d want %d", tc.path, rr.Code, tc.want)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("GET %s missing security headers", tc.path)
		}
	}
}

func TestMetricsCanBeDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsEnabled = false
	srv := newTestServer(t, cfg)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rr.Code)
	}
}

func TestRedisBackedServerReportsLeadership(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()
	cfg.EventBus = config.EventBusRedis
	cfg.CacheEnabled = true
	cfg.LeaderElectionEnabled = true
	cfg.InstanceID = "node-a"
	srv := newTestServer(t, cfg)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var body healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Leader == nil {
		t.Fatalf("expected leader field when election is enabled")
	}
}

func TestNewFailsOnMissingCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProductCatalog = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing catalog")
	}
}
