/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduling is the facade collaborators call. It validates input,
// delegates to the capacity store, reservation ledger and batch planner, maps
// their errors to the public taxonomy and publishes domain events.
package scheduling

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/batching"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/cache"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/catalog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/expiry"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/export"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/integrity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/orders"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/reservation"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/windowgen"
)

// Deps are the collaborators of the facade. Cache, Exporter and Bus may be nil.
type Deps struct {
	DB        *gorm.DB
	Windows   *capacity.Store
	Ledger    *reservation.Ledger
	Orders    *orders.Store
	Catalog   catalog.Catalog
	Planner   *batching.Planner
	Generator *windowgen.Generator
	Sweeper   *expiry.Sweeper
	Integrity *integrity.Service
	Exporter  *export.Exporter
	Cache     *cache.Cache
	Bus       events.Broker
	Clock     clock.Clock
	Location  *time.Location
}

// Service is the scheduling facade.
type Service struct {
	db        *gorm.DB
	windows   *capacity.Store
	ledger    *reservation.Ledger
	orders    *orders.Store
	catalog   catalog.Catalog
	planner   *batching.Planner
	generator *windowgen.Generator
	sweeper   *expiry.Sweeper
	integrity *integrity.Service
	exporter  *export.Exporter
	cache     *cache.Cache
	bus       events.Broker
	clock     clock.Clock
	loc       *time.Location
	validator *Validator
	logger    zerolog.Logger
}

// New creates the facade.
func New(deps Deps, logger zerolog.Logger) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Service{
		db:        deps.DB,
		windows:   deps.Windows,
		ledger:    deps.Ledger,
		orders:    deps.Orders,
		catalog:   deps.Catalog,
		planner:   deps.Planner,
		generator: deps.Generator,
		sweeper:   deps.Sweeper,
		integrity: deps.Integrity,
		exporter:  deps.Exporter,
		cache:     deps.Cache,
		bus:       deps.Bus,
		clock:     deps.Clock,
		loc:       deps.Location,
		validator: NewValidator(deps.Clock, deps.Location),
		logger:    logger.With().Str("component", "scheduling").Logger(),
	}
}

// Location returns the plant time zone.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) publish(et events.EventType, p events.Payload) {
	events.Publish(s.bus, et, p)
}

// capacityChanged drops this node's cached calendars before announcing the
// change, so the caller's next read is fresh. Other nodes invalidate when the
// event reaches them.
func (s *Service) capacityChanged(ctx context.Context, windowID string) {
	if err := s.cache.InvalidateCalendars(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("calendar cache invalidation failed")
	}
	s.publish(events.EventCapacityChanged, events.CapacityChanged(windowID))
}
