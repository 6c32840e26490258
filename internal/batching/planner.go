/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package batching

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/catalog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
)

// OrderSource supplies orders eligible for scheduling on a date.
type OrderSource interface {
	Eligible(ctx context.Context, date string) ([]models.Order, error)
}

// WindowLocator finds the active window containing an instant.
type WindowLocator interface {
	WindowAt(ctx context.Context, t time.Time, loc *time.Location) (*models.CapacityWindow, error)
}

// Planner computes suggestions from live order and window state. It never
// writes.
type Planner struct {
	orders  OrderSource
	catalog catalog.Catalog
	windows WindowLocator
	clock   clock.Clock
	loc     *time.Location
	anchor  Anchor
	logger  zerolog.Logger
}

// NewPlanner creates a planner.
func NewPlanner(orders OrderSource, cat catalog.Catalog, windows WindowLocator, c clock.Clock, loc *time.Location, anchor Anchor, logger zerolog.Logger) *Planner {
	if anchor == "" {
		anchor = AnchorEarliest
	}
	return &Planner{
		orders:  orders,
		catalog: cat,
		windows: windows,
		clock:   c,
		loc:     loc,
		anchor:  anchor,
		logger:  logger.With().Str("component", "batch_planner").Logger(),
	}
}

// Suggest returns ranked suggestions for orders delivering on date.
func (p *Planner) Suggest(ctx context.Context, date string) ([]Suggestion, error) {
	eligible, err := p.orders.Eligible(ctx, date)
	if err != nil {
		return nil, err
	}

	products, err := p.products(ctx, eligible)
	if err != nil {
		return nil, err
	}

	suggestions := Plan(eligible, products, p.clock.Now(), p.anchor)
	for i := range suggestions {
		if err := p.locate(ctx, &suggestions[i]); err != nil {
			return nil, err
		}
		telemetry.SuggestionsTotal.WithLabelValues(strconv.FormatBool(suggestions[i].Feasible)).Inc()
	}

	p.logger.Debug().
		Str("date", date).
		Int("orders", len(eligible)).
		Int("suggestions", len(suggestions)).
		Msg("batch suggestions computed")
	return suggestions, nil
}

// Recompute plans a single product group from orders already loaded by the
// caller, for re-validation at acceptance time.
func (p *Planner) Recompute(ctx context.Context, productID string, group []models.Order) (Suggestion, error) {
	products, err := p.products(ctx, group)
	if err != nil {
		return Suggestion{}, err
	}
	sorted := append([]models.Order(nil), group...)
	sortByDeadline(sorted)
	prod, ok := products[productID]
	return planGroup(productID, prod, ok, sorted, p.clock.Now(), p.anchor), nil
}

func (p *Planner) products(ctx context.Context, orders []models.Order) (map[string]catalog.Product, error) {
	products := map[string]catalog.Product{}
	for _, o := range orders {
		if _, seen := products[o.ProductID]; seen {
			continue
		}
		prod, err := p.catalog.Product(ctx, o.ProductID)
		if errors.Is(err, catalog.ErrUnknownProduct) {
			p.logger.Warn().Str("product_id", o.ProductID).Str("order_id", o.ID).Msg("order references unknown product")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", o.ProductID, err)
		}
		products[o.ProductID] = prod
	}
	return products, nil
}

// locate attaches the window containing the start and flags missing or
// insufficient capacity.
func (p *Planner) locate(ctx context.Context, s *Suggestion) error {
	if s.SuggestedStartTime.IsZero() {
		return nil
	}
	w, err := p.windows.WindowAt(ctx, s.SuggestedStartTime, p.loc)
	if errors.Is(err, capacity.ErrWindowNotFound) {
		s.flag(ReasonNoWindow)
		return nil
	}
	if err != nil {
		return err
	}
	s.WindowID = w.ID
	if capacity.Describe(*w).AvailableMinutes < s.ProductionMinutes {
		s.flag(ReasonCapacityShortfall)
	}
	return nil
}
