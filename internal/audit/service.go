/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
)

// actions maps audited event types to their audit action.
var actions = map[events.EventType]models.AuditAction{
	events.EventReservationCreated:   models.AuditActionReservationCreate,
	events.EventReservationConfirmed: models.AuditActionReservationConfirm,
	events.EventReservationCancelled: models.AuditActionReservationCancel,
	events.EventReservationExpired:   models.AuditActionReservationExpire,
	events.EventReservationConverted: models.AuditActionReservationConvert,
	events.EventBatchCreated:         models.AuditActionBatchCreate,
	events.EventWindowsGenerated:     models.AuditActionWindowsGenerate,
	events.EventWindowCreated:        models.AuditActionWindowCreate,
	events.EventWindowDeactivated:    models.AuditActionWindowDeactivate,
	events.EventIntegrityRepaired:    models.AuditActionIntegrityRepair,
	events.EventCalendarExported:     models.AuditActionCalendarExport,
}

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    events.Broker
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

type received struct {
	action  models.AuditAction
	payload events.Payload
}

// Start subscribes to audited events and stores them until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("audit service starting")

	in := make(chan received, 64)
	var wg sync.WaitGroup
	subs := make(map[events.EventType]events.Subscriber, len(events.AuditedEvents))
	for _, et := range events.AuditedEvents {
		action, ok := actions[et]
		if !ok {
			continue
		}
		sub := s.bus.Subscribe(et)
		subs[et] = sub
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range sub {
				select {
				case in <- received{action: action, payload: p}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	defer func() {
		for et, sub := range subs {
			s.bus.Unsubscribe(et, sub)
		}
		wg.Wait()
	}()

	s.logger.Info().Int("event_types", len(subs)).Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return
		case r := <-in:
			s.logAuditEntry(ctx, r.action, r.payload)
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := FromPayload(action, payload)
	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// FromPayload builds an entry, lifting the well-known keys out of details.
func FromPayload(action models.AuditAction, payload events.Payload) *models.AuditLog {
	entry := &models.AuditLog{
		Action:  action,
		Details: make(map[string]any),
	}
	if actor, ok := payload[events.KeyActor].(string); ok {
		entry.Actor = actor
	}
	if resourceType, ok := payload[events.KeyResourceType].(string); ok {
		entry.ResourceType = resourceType
	}
	if resourceID, ok := payload[events.KeyResourceID].(string); ok {
		entry.ResourceID = resourceID
	}
	if ipAddress, ok := payload["ip_address"].(string); ok {
		entry.IPAddress = ipAddress
	}

	for k, v := range payload {
		switch k {
		case events.KeyActor, events.KeyResourceType, events.KeyResourceID, "ip_address":
			// Already extracted
		default:
			entry.Details[k] = v
		}
	}
	return entry
}

// Log records an audit entry directly (for non-event-bus actions).
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Msg("audit entry logged")
	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	Actor        string
	Action       models.AuditAction
	ResourceType string
	ResourceID   string
	StartTime    *time.Time
	EndTime      *time.Time
	Limit        int
	Offset       int
}

// Query retrieves audit logs with filters.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.Actor != "" {
		query = query.Where("actor = ?", filters.Actor)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.ResourceType != "" {
		query = query.Where("resource_type = ?", filters.ResourceType)
	}
	if filters.ResourceID != "" {
		query = query.Where("resource_id = ?", filters.ResourceID)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query = query.Limit(limit)
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	// Most recent first
	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
