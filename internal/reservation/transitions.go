/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package reservation

import "github.com/salahatech/KFSH-Ordering-sub001/internal/models"

// Event is a reservation lifecycle event.
type Event string

const (
	EventConfirm Event = "confirm"
	EventCancel  Event = "cancel"
	EventExpire  Event = "expire"
	EventConvert Event = "convert"
)

// Effect is what a transition does to the window counters.
type Effect int

const (
	EffectNone Effect = iota
	EffectRelease
	EffectCommit
)

type transition struct {
	to     models.ReservationStatus
	effect Effect
}

// transitions is the complete table; anything missing is invalid.
var transitions = map[models.ReservationStatus]map[Event]transition{
	models.ReservationTentative: {
		EventConfirm: {models.ReservationConfirmed, EffectNone},
		EventCancel:  {models.ReservationCancelled, EffectRelease},
		EventExpire:  {models.ReservationExpired, EffectRelease},
	},
	models.ReservationConfirmed: {
		EventCancel:  {models.ReservationCancelled, EffectRelease},
		EventConvert: {models.ReservationConverted, EffectCommit},
	},
}

// Next returns the target state and capacity effect of applying ev in from.
func Next(from models.ReservationStatus, ev Event) (models.ReservationStatus, Effect, bool) {
	t, ok := transitions[from][ev]
	return t.to, t.effect, ok
}

// CanTransition reports whether ev is allowed in from.
func CanTransition(from models.ReservationStatus, ev Event) bool {
	_, _, ok := Next(from, ev)
	return ok
}
