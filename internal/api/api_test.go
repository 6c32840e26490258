package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	ws "nhooyr.io/websocket"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/audit"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/auth"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/batching"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/catalog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/db"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/expiry"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/integrity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/orders"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/reservation"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/scheduling"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/windowgen"
)

var testSecret = []byte("test-secret")

type testEnv struct {
	router http.Handler
	db     *gorm.DB
	bus    *events.Bus
	svc    *scheduling.Service
	window *models.CapacityWindow
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(database) })

	logger := zerolog.Nop()
	fixed := clock.NewFixed(time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC))
	bus := events.NewBus()
	windows := capacity.NewStore(database, logger)
	ledger := reservation.NewLedger(database, windows, logger, reservation.WithClock(fixed))
	orderStore := orders.NewStore(database)
	cat, err := catalog.NewStatic(catalog.Product{
		ID:                    "f18-fdg",
		Name:                  "F-18 FDG",
		HalfLife:              110 * time.Minute,
		ProductionDuration:    60 * time.Minute,
		Buffer:                30 * time.Minute,
		DoseProcessingMinutes: 10,
		MaxBatchActivity:      decimal.NewFromInt(1000),
		ActivityUnit:          "mCi",
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	svc := scheduling.New(scheduling.Deps{
		DB:        database,
		Windows:   windows,
		Ledger:    ledger,
		Orders:    orderStore,
		Catalog:   cat,
		Planner:   batching.NewPlanner(orderStore, cat, windows, fixed, time.UTC, batching.AnchorEarliest, logger),
		Generator: windowgen.New(time.UTC, nil),
		Sweeper:   expiry.NewSweeper(ledger, fixed, bus, expiry.Config{Grace: 24 * time.Hour}, logger),
		Integrity: integrity.NewService(database, windows, logger),
		Bus:       bus,
		Clock:     fixed,
		Location:  time.UTC,
	}, logger)

	ctx := context.Background()
	if _, err := svc.SyncCustomer(ctx, models.Customer{ID: "cust-1", Active: true}); err != nil {
		t.Fatalf("sync customer: %v", err)
	}
	w, err := svc.CreateWindow(ctx, scheduling.WindowRequest{Date: "2026-03-02", StartTime: "06:00", EndTime: "14:00", CapacityMinutes: 480}, "test")
	if err != nil {
		t.Fatalf("create window: %v", err)
	}

	r := chi.NewRouter()
	New(svc, database, testSecret, bus, audit.NewService(database, bus, logger), logger).Routes(r)
	return &testEnv{router: r, db: database, bus: bus, svc: svc, window: w}
}

func token(t *testing.T, roles ...string) string {
	t.Helper()
	tok, err := auth.Issue(testSecret, auth.Claims{UserID: "u-" + strings.Join(roles, "-"), Roles: roles}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func reservationBody(doses int) map[string]any {
	return map[string]any{
		"customer_id":        "cust-1",
		"product_id":         "f18-fdg",
		"requested_date":     "2026-03-02",
		"requested_activity": "12.5",
		"activity_unit":      "mCi",
		"number_of_doses":    doses,
	}
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/v1/capacity/calendar?start_date=2026-03-02&end_date=2026-03-02", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rr.Code)
	}
}

func TestReservationFlowAndErrorStatuses(t *testing.T) {
	env := newTestEnv(t)
	desk := token(t, auth.RoleOrderDesk)

	rr := env.do(t, http.MethodPost, "/api/v1/reservations", desk, reservationBody(30))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created models.Reservation
	decodeBody(t, rr, &created)
	if created.WindowID != env.window.ID || created.EstimatedMinutes != 300 {
		t.Fatalf("unexpected reservation %+v", created)
	}

	body := reservationBody(20)
	body["window_id"] = env.window.ID
	rr = env.do(t, http.MethodPost, "/api/v1/reservations", desk, body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("over capacity status=%d, want 409", rr.Code)
	}
	var apiErr scheduling.Error
	decodeBody(t, rr, &apiErr)
	if apiErr.Code != scheduling.CodeCapacityExceeded {
		t.Fatalf("error code=%s", apiErr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/reservations/"+created.ID+"/confirm", desk, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/v1/reservations/"+created.ID+"/convert", desk, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("convert status=%d body=%s", rr.Code, rr.Body.String())
	}
	var converted struct {
		OrderID string `json:"created_order_id"`
	}
	decodeBody(t, rr, &converted)
	if converted.OrderID == "" {
		t.Fatal("expected created_order_id")
	}

	rr = env.do(t, http.MethodPost, "/api/v1/reservations/"+created.ID+"/cancel", desk, map[string]string{"reason": "late"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("cancel converted status=%d, want 409", rr.Code)
	}
	decodeBody(t, rr, &apiErr)
	if apiErr.Code != scheduling.CodeInvalidTransition {
		t.Fatalf("error code=%s", apiErr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/reservations/00000000-0000-0000-0000-000000000000", desk, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing reservation status=%d, want 404", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/reservations?status=converted", desk, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var list struct {
		Reservations []models.Reservation `json:"reservations"`
	}
	decodeBody(t, rr, &list)
	if len(list.Reservations) != 1 {
		t.Fatalf("listed %d reservations, want 1", len(list.Reservations))
	}
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	desk := token(t, auth.RoleOrderDesk)

	body := reservationBody(0)
	rr := env.do(t, http.MethodPost, "/api/v1/reservations", desk, body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
	var apiErr scheduling.Error
	decodeBody(t, rr, &apiErr)
	if apiErr.Code != scheduling.CodeValidationFailed || len(apiErr.Violations) == 0 {
		t.Fatalf("unexpected error %+v", apiErr)
	}

	body = reservationBody(1)
	body["priority"] = "high"
	rr = env.do(t, http.MethodPost, "/api/v1/reservations", desk, body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status=%d, want 400", rr.Code)
	}
}

func TestRoleChecks(t *testing.T) {
	env := newTestEnv(t)
	portal := token(t, auth.RolePortal)

	rr := env.do(t, http.MethodPost, "/api/v1/capacity/windows/generate", portal, map[string]any{})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("portal generate status=%d, want 403", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/admin/integrity", token(t, auth.RolePlanner), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("planner integrity status=%d, want 403", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/admin/integrity", token(t, auth.RoleAdmin), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin integrity status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCalendarAndWindows(t *testing.T) {
	env := newTestEnv(t)
	planner := token(t, auth.RolePlanner)

	rr := env.do(t, http.MethodPost, "/api/v1/capacity/windows", planner, map[string]any{
		"date": "2026-03-02", "start_time": "10:00", "end_time": "12:00", "capacity_minutes": 60,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("overlap status=%d, want 409", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/capacity/windows/"+env.window.ID+"/deactivate", planner, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("deactivate status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/v1/capacity/calendar?start_date=2026-03-02&end_date=2026-03-02&include_inactive=true", planner, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("calendar status=%d", rr.Code)
	}
	var cal capacity.Calendar
	decodeBody(t, rr, &cal)
	if len(cal.Windows) != 1 || cal.Windows[0].IsActive {
		t.Fatalf("unexpected calendar %+v", cal.Windows)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/capacity/export?start_date=2026-03-02&end_date=2026-03-02", planner, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("export without store status=%d, want 503", rr.Code)
	}
}

func TestAcceptInfeasibleSuggestionIs422(t *testing.T) {
	env := newTestEnv(t)
	sg := batching.Suggestion{
		ProductID:   "f18-fdg",
		Orders:      []batching.Member{{OrderID: "o-1"}},
		Feasible:    false,
		Reasons:     []batching.Reason{batching.ReasonNoWindow},
		Fingerprint: "x",
	}
	rr := env.do(t, http.MethodPost, "/api/v1/batches", token(t, auth.RolePlanner), sg)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422 body=%s", rr.Code, rr.Body.String())
	}
}

func TestSyncOrderFeedsSuggestions(t *testing.T) {
	env := newTestEnv(t)
	desk := token(t, auth.RoleOrderDesk)

	rr := env.do(t, http.MethodPut, "/api/v1/sync/orders/11111111-1111-1111-1111-111111111111", desk, map[string]any{
		"customer_id":         "cust-1",
		"product_id":          "f18-fdg",
		"requested_activity":  "10",
		"activity_unit":       "mCi",
		"delivery_time_start": "2026-03-02T10:00:00Z",
		"status":              "VALIDATED",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("sync status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/v1/batches/suggestions?date=2026-03-02", token(t, auth.RolePlanner), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("suggestions status=%d", rr.Code)
	}
	var out struct {
		Suggestions []batching.Suggestion `json:"suggestions"`
	}
	decodeBody(t, rr, &out)
	if len(out.Suggestions) != 1 || !out.Suggestions[0].Feasible {
		t.Fatalf("unexpected suggestions %+v", out.Suggestions)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/batches", token(t, auth.RolePlanner), out.Suggestions[0])
	if rr.Code != http.StatusCreated {
		t.Fatalf("accept status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestServiceKeyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := token(t, auth.RoleAdmin)

	rr := env.do(t, http.MethodPost, "/api/v1/admin/service-keys", admin, map[string]any{
		"name": "order-service", "roles": []string{auth.RoleOrderDesk},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create key status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created struct {
		Key        string            `json:"key"`
		ServiceKey models.ServiceKey `json:"service_key"`
	}
	decodeBody(t, rr, &created)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations", nil)
	req.Header.Set("X-API-Key", created.Key)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("service key request status=%d", rec.Code)
	}

	rr = env.do(t, http.MethodDelete, "/api/v1/admin/service-keys/"+created.ServiceKey.ID, admin, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("revoke status=%d", rr.Code)
	}
	rr = env.do(t, http.MethodDelete, "/api/v1/admin/service-keys/"+created.ServiceKey.ID, admin, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second revoke status=%d, want 404", rr.Code)
	}

	var audits int64
	env.db.Model(&models.AuditLog{}).Where("action = ?", models.AuditActionServiceKeyCreate).Count(&audits)
	if audits != 1 {
		t.Fatalf("service key audit rows=%d, want 1", audits)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code scheduling.ErrorCode
		want int
	}{
		{scheduling.CodeCapacityExceeded, http.StatusConflict},
		{scheduling.CodeNoCapacity, http.StatusConflict},
		{scheduling.CodeInvalidTransition, http.StatusConflict},
		{scheduling.CodeStaleSuggestion, http.StatusConflict},
		{scheduling.CodeNotFound, http.StatusNotFound},
		{scheduling.CodeValidationFailed, http.StatusBadRequest},
		{scheduling.CodeInfeasibleSchedule, http.StatusUnprocessableEntity},
		{scheduling.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := statusFor(tt.code); got != tt.want {
				t.Fatalf("statusFor(%s)=%d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestEventsWebSocketStreamsCapacityChanges(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token(t, auth.RolePlanner))
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/events?types=capacity.changed", &ws.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "done")

	// The subscription is registered after the upgrade, so keep publishing
	// until the first message arrives.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				env.bus.Publish(events.EventCapacityChanged, events.CapacityChanged(env.window.ID))
			}
		}
	}()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != string(events.EventCapacityChanged) || msg.Payload[events.KeyWindowID] != env.window.ID {
		t.Fatalf("unexpected message %s", data)
	}
}
