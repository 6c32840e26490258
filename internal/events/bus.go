/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package events is the in-process publish/subscribe hub for scheduling
// domain events.
package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationConfirmed EventType = "reservation.confirmed"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventReservationExpired   EventType = "reservation.expired"
	EventReservationConverted EventType = "reservation.converted"

	EventBatchCreated EventType = "batch.created"

	EventWindowsGenerated  EventType = "window.generated"
	EventWindowCreated     EventType = "window.created"
	EventWindowDeactivated EventType = "window.deactivated"

	// Emitted whenever window counters move; drives cache invalidation and
	// the live calendar feed.
	EventCapacityChanged EventType = "capacity.changed"

	EventIntegrityAlert    EventType = "integrity.alert"
	EventIntegrityRepaired EventType = "integrity.repaired"

	EventCalendarExported EventType = "calendar.exported"
)

// AuditedEvents are the event types persisted to the audit log.
var AuditedEvents = []EventType{
	EventReservationCreated,
	EventReservationConfirmed,
	EventReservationCancelled,
	EventReservationExpired,
	EventReservationConverted,
	EventBatchCreated,
	EventWindowsGenerated,
	EventWindowCreated,
	EventWindowDeactivated,
	EventIntegrityRepaired,
	EventCalendarExported,
}

// Broker is implemented by the in-process bus and the distributed buses.
type Broker interface {
	Subscribe(eventType EventType) Subscriber
	Publish(eventType EventType, payload Payload)
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}
