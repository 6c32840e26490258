/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package batching groups eligible orders into decay-corrected production
// batch suggestions. Plan is pure; Planner adds the window lookup.
package batching

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/catalog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/shopspring/decimal"
)

// Anchor selects the delivery deadline the batch start is solved from.
type Anchor string

const (
	// AnchorEarliest solves from the earliest deadline so every order is
	// reachable. This is the default.
	AnchorEarliest Anchor = "earliest"
	// AnchorLatest solves from the latest deadline and flags members whose
	// deadline falls before the batch can be released.
	AnchorLatest Anchor = "latest"
)

// Reason explains why a suggestion is not feasible.
type Reason string

const (
	ReasonStartInPast       Reason = "START_IN_PAST"
	ReasonActivityCeiling   Reason = "ACTIVITY_CEILING"
	ReasonDeadlineMissed    Reason = "DEADLINE_MISSED"
	ReasonNoWindow          Reason = "NO_WINDOW"
	ReasonCapacityShortfall Reason = "CAPACITY_SHORTFALL"
	ReasonUnknownProduct    Reason = "UNKNOWN_PRODUCT"
	ReasonUnknownUnit       Reason = "UNKNOWN_UNIT"
)

// Member is one order inside a suggestion.
type Member struct {
	OrderID            string          `json:"order_id"`
	CustomerID         string          `json:"customer_id"`
	RequestedActivity  decimal.Decimal `json:"requested_activity"`
	RequestedUnit      string          `json:"requested_unit"`
	DeliveryTimeStart  time.Time       `json:"delivery_time_start"`
	DecayReference     time.Time       `json:"decay_reference"`
	DecayFactor        float64         `json:"decay_factor"`
	ProductionActivity decimal.Decimal `json:"production_activity"`
	DeadlineMissed     bool            `json:"deadline_missed,omitempty"`
	DecayUnbounded     bool            `json:"decay_unbounded,omitempty"`
}

// Suggestion is a proposed batch. It is not persisted.
type Suggestion struct {
	ProductID          string          `json:"product_id"`
	Orders             []Member        `json:"orders"`
	OrderCount         int             `json:"order_count"`
	TotalActivity      decimal.Decimal `json:"total_activity"`
	ActivityUnit       string          `json:"activity_unit"`
	SuggestedStartTime time.Time       `json:"suggested_start_time"`
	SuggestedEndTime   time.Time       `json:"suggested_end_time"`
	ProductionMinutes  int             `json:"production_minutes"`
	WindowID           string          `json:"window_id,omitempty"`
	Feasible           bool            `json:"feasible"`
	Reasons            []Reason        `json:"reasons,omitempty"`
	Fingerprint        string          `json:"fingerprint"`
}

// OrderIDs returns the member ids in suggestion order.
func (s Suggestion) OrderIDs() []string {
	ids := make([]string, len(s.Orders))
	for i, m := range s.Orders {
		ids[i] = m.OrderID
	}
	return ids
}

func (s *Suggestion) flag(r Reason) {
	for _, existing := range s.Reasons {
		if existing == r {
			return
		}
	}
	s.Reasons = append(s.Reasons, r)
	s.Feasible = false
}

// maxGrowth bounds the decay compensation. Past it no realistic activity
// ceiling can be met and the multiplication only produces huge numbers.
const maxGrowth = 1e12

// ProductionActivity is the activity that must be produced at start so that
// requested remains at delivery: requested * exp(lambda * (delivery - start)).
// ok is false when the compensation is unbounded, which happens for
// short-lived isotopes over long lead times.
func ProductionActivity(p catalog.Product, requested decimal.Decimal, start, delivery time.Time) (activity decimal.Decimal, factor float64, ok bool) {
	elapsed := delivery.Sub(start)
	growth := p.GrowthFactor(elapsed)
	if math.IsInf(growth, 0) || math.IsNaN(growth) || growth > maxGrowth {
		return decimal.Zero, p.DecayFactor(elapsed), false
	}
	return requested.Mul(decimal.NewFromFloat(growth)).Round(4), 1 / growth, true
}

// Plan groups orders by product and computes one suggestion per product.
// products missing from the map yield an UNKNOWN_PRODUCT suggestion.
func Plan(orders []models.Order, products map[string]catalog.Product, now time.Time, anchor Anchor) []Suggestion {
	groups := map[string][]models.Order{}
	for _, o := range orders {
		groups[o.ProductID] = append(groups[o.ProductID], o)
	}

	out := make([]Suggestion, 0, len(groups))
	for productID, group := range groups {
		sortByDeadline(group)
		p, ok := products[productID]
		out = append(out, planGroup(productID, p, ok, group, now, anchor))
	}

	Sort(out)
	return out
}

func sortByDeadline(group []models.Order) {
	sort.Slice(group, func(i, j int) bool {
		if !group[i].DeliveryTimeStart.Equal(group[j].DeliveryTimeStart) {
			return group[i].DeliveryTimeStart.Before(group[j].DeliveryTimeStart)
		}
		return group[i].ID < group[j].ID
	})
}

// planGroup expects group sorted by sortByDeadline.
func planGroup(productID string, p catalog.Product, known bool, group []models.Order, now time.Time, anchor Anchor) Suggestion {
	s := Suggestion{
		ProductID:     productID,
		OrderCount:    len(group),
		Feasible:      true,
		TotalActivity: decimal.Zero,
		Fingerprint:   Fingerprint(productID, group),
	}
	if !known {
		for _, o := range group {
			s.Orders = append(s.Orders, Member{
				OrderID:           o.ID,
				CustomerID:        o.CustomerID,
				RequestedActivity: o.RequestedActivity,
				RequestedUnit:     o.ActivityUnit,
				DeliveryTimeStart: o.DeliveryTimeStart,
				DecayReference:    o.DecayReference(),
			})
		}
		s.flag(ReasonUnknownProduct)
		return s
	}

	// group is sorted by deadline, so the ends are the anchors.
	ref := group[0].DeliveryTimeStart
	if anchor == AnchorLatest {
		ref = group[len(group)-1].DeliveryTimeStart
	}
	s.ActivityUnit = p.ActivityUnit
	s.ProductionMinutes = p.ProductionMinutes()
	s.SuggestedStartTime = ref.Add(-p.ProductionDuration - p.Buffer)
	s.SuggestedEndTime = s.SuggestedStartTime.Add(p.ProductionDuration)
	releasedAt := s.SuggestedEndTime.Add(p.Buffer)

	for _, o := range group {
		m := Member{
			OrderID:           o.ID,
			CustomerID:        o.CustomerID,
			RequestedActivity: o.RequestedActivity,
			RequestedUnit:     o.ActivityUnit,
			DeliveryTimeStart: o.DeliveryTimeStart,
			DecayReference:    o.DecayReference(),
		}
		requested, err := catalog.ConvertActivity(o.RequestedActivity, o.ActivityUnit, p.ActivityUnit)
		if err != nil {
			s.flag(ReasonUnknownUnit)
			s.Orders = append(s.Orders, m)
			continue
		}
		var ok bool
		m.ProductionActivity, m.DecayFactor, ok = ProductionActivity(p, requested, s.SuggestedStartTime, m.DecayReference)
		if !ok {
			m.DecayUnbounded = true
			s.flag(ReasonActivityCeiling)
		}
		if o.DeliveryTimeStart.Before(releasedAt) {
			m.DeadlineMissed = true
			s.flag(ReasonDeadlineMissed)
		}
		s.TotalActivity = s.TotalActivity.Add(m.ProductionActivity)
		s.Orders = append(s.Orders, m)
	}

	if s.SuggestedStartTime.Before(now) {
		s.flag(ReasonStartInPast)
	}
	if s.TotalActivity.GreaterThan(p.MaxBatchActivity) {
		s.flag(ReasonActivityCeiling)
	}
	return s
}

// Sort orders suggestions by start ascending, then larger batches first.
func Sort(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if !s[i].SuggestedStartTime.Equal(s[j].SuggestedStartTime) {
			return s[i].SuggestedStartTime.Before(s[j].SuggestedStartTime)
		}
		if s[i].OrderCount != s[j].OrderCount {
			return s[i].OrderCount > s[j].OrderCount
		}
		return s[i].ProductID < s[j].ProductID
	})
}

// Fingerprint identifies the exact order set a suggestion was computed from.
// Any change to a member order (or the set itself) changes it.
func Fingerprint(productID string, orders []models.Order) string {
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		parts = append(parts, strings.Join([]string{
			o.ID,
			o.UpdatedAt.UTC().Format(time.RFC3339Nano),
			o.RequestedActivity.String(),
			o.ActivityUnit,
			o.DeliveryTimeStart.UTC().Format(time.RFC3339Nano),
		}, "|"))
	}
	sort.Strings(parts)

	h := sha256.New()
	h.Write([]byte(productID))
	for _, p := range parts {
		h.Write([]byte{'\n'})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
