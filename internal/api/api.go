/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	ws "nhooyr.io/websocket"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/audit"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/auth"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/scheduling"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// API exposes HTTP handlers.
type API struct {
	svc       *scheduling.Service
	db        *gorm.DB
	jwtSecret []byte
	bus       events.Broker
	auditSvc  *audit.Service
	logger    zerolog.Logger
}

// New creates the API router wrapper. auditSvc may be nil.
func New(svc *scheduling.Service, db *gorm.DB, jwtSecret []byte, bus events.Broker, auditSvc *audit.Service, logger zerolog.Logger) *API {
	return &API{
		svc:       svc,
		db:        db,
		jwtSecret: jwtSecret,
		bus:       bus,
		auditSvc:  auditSvc,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers /api/v1 on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.db, a.jwtSecret))

			pr.Get("/events", a.handleEvents)

			pr.Route("/capacity", func(r chi.Router) {
				r.Get("/calendar", a.handleCalendar)
				r.Route("/windows", func(r chi.Router) {
					r.Use(auth.RequireRole(auth.RolePlanner))
					r.Post("/", a.handleWindowCreate)
					r.Post("/generate", a.handleWindowsGenerate)
					r.Post("/{windowID}/deactivate", a.handleWindowDeactivate)
				})
				r.With(auth.RequireRole(auth.RolePlanner)).Get("/export", a.handleCalendarExport)
			})

			pr.Route("/reservations", func(r chi.Router) {
				r.With(auth.RequireRole(auth.RoleOrderDesk, auth.RolePortal, auth.RolePlanner)).Get("/", a.handleReservationsList)
				r.With(auth.RequireRole(auth.RoleOrderDesk, auth.RolePortal)).Post("/", a.handleReservationCreate)
				r.Route("/{reservationID}", func(r chi.Router) {
					r.With(auth.RequireRole(auth.RoleOrderDesk, auth.RolePortal, auth.RolePlanner)).Get("/", a.handleReservationGet)
					r.With(auth.RequireRole(auth.RoleOrderDesk, auth.RolePortal)).Get("/draft", a.handleReservationDraft)
					r.With(auth.RequireRole(auth.RoleOrderDesk, auth.RolePortal)).Post("/confirm", a.handleReservationConfirm)
					r.With(auth.RequireRole(auth.RoleOrderDesk, auth.RolePortal)).Post("/cancel", a.handleReservationCancel)
					r.With(auth.RequireRole(auth.RoleOrderDesk)).Post("/convert", a.handleReservationConvert)
				})
			})

			pr.Route("/batches", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RolePlanner))
				r.Get("/suggestions", a.handleBatchSuggestions)
				r.Post("/", a.handleBatchAccept)
			})

			pr.Route("/sync", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleOrderDesk))
				r.Put("/orders/{orderID}", a.handleOrderSync)
				r.Put("/customers/{customerID}", a.handleCustomerSync)
			})

			pr.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				r.Get("/integrity", a.handleIntegrityReport)
				r.Post("/integrity/repair", a.handleIntegrityRepair)
				r.Post("/expiry/run", a.handleExpiryRun)
				r.Get("/audit", a.handleAuditList)
				r.Route("/service-keys", func(r chi.Router) {
					r.Get("/", a.handleServiceKeysList)
					r.Post("/", a.handleServiceKeyCreate)
					r.Delete("/{keyID}", a.handleServiceKeyRevoke)
				})
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// defaultStreamEvents are sent when the client does not pick types.
var defaultStreamEvents = []events.EventType{
	events.EventCapacityChanged,
	events.EventReservationCreated,
	events.EventReservationConfirmed,
	events.EventReservationCancelled,
	events.EventReservationExpired,
	events.EventReservationConverted,
	events.EventBatchCreated,
}

type streamEvent struct {
	eventType events.EventType
	payload   events.Payload
}

// handleEvents streams domain events over a websocket until the client
// goes away.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIActiveConnections.Inc()
	defer telemetry.APIActiveConnections.Dec()

	// Reads are not expected; CloseRead handles control frames and cancels
	// ctx when the peer closes.
	ctx := conn.CloseRead(r.Context())

	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = defaultStreamEvents
	}

	merged := make(chan streamEvent, 32)
	subscribers := make([]events.Subscriber, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		sub := a.bus.Subscribe(eventType)
		subscribers = append(subscribers, sub)
		go func(et events.EventType, sub events.Subscriber) {
			for payload := range sub {
				select {
				case merged <- streamEvent{eventType: et, payload: payload}:
				case <-ctx.Done():
					return
				}
			}
		}(eventType, sub)
	}
	defer func() {
		for i, eventType := range eventTypes {
			a.bus.Unsubscribe(eventType, subscribers[i])
		}
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case ev := <-merged:
			if err := writeEvent(ctx, conn, ev.eventType, ev.payload); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *ws.Conn, eventType events.EventType, payload events.Payload) error {
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, events.EventType(part))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(code scheduling.ErrorCode) int {
	switch code {
	case scheduling.CodeCapacityExceeded,
		scheduling.CodeNoCapacity,
		scheduling.CodeInvalidTransition,
		scheduling.CodeStaleSuggestion,
		scheduling.CodeWindowConflict,
		scheduling.CodeWindowInactive:
		return http.StatusConflict
	case scheduling.CodeNotFound:
		return http.StatusNotFound
	case scheduling.CodeValidationFailed:
		return http.StatusBadRequest
	case scheduling.CodeInfeasibleSchedule:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err in the collaborator-facing form. Internal
// causes are logged, never returned.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	pub := scheduling.Public(err)
	status := statusFor(pub.Code)
	if status == http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, pub)
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, string(scheduling.CodeValidationFailed), "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// clientIP is the request address after chi's RealIP middleware.
func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return host
}
