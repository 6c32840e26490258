/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"errors"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/catalog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/export"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/integrity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/orders"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/reservation"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/windowgen"
)

var (
	ErrNoCapacity           = errors.New("no window has enough available minutes")
	ErrStaleSuggestion      = errors.New("capacity or orders changed, regenerate suggestions")
	ErrInfeasibleSuggestion = errors.New("suggestion is not feasible")
	ErrUnknownCustomer      = errors.New("customer not found")
	ErrValidation           = errors.New("validation failed")
)

// ErrorCode is the collaborator-facing error taxonomy.
type ErrorCode string

const (
	CodeCapacityExceeded   ErrorCode = "CAPACITY_EXCEEDED"
	CodeNoCapacity         ErrorCode = "NO_CAPACITY"
	CodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	CodeStaleSuggestion    ErrorCode = "STALE_SUGGESTION"
	CodeInfeasibleSchedule ErrorCode = "INFEASIBLE_SCHEDULE"
	CodeWindowConflict     ErrorCode = "WINDOW_CONFLICT"
	CodeWindowInactive     ErrorCode = "WINDOW_INACTIVE"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	CodeInternal           ErrorCode = "INTERNAL"
)

// Error is what collaborators see. Internal causes never leak into Message
// for CodeInternal.
type Error struct {
	Code       ErrorCode   `json:"error"`
	Message    string      `json:"message"`
	Violations []Violation `json:"violations,omitempty"`
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// Code classifies err. INSUFFICIENT_RESERVED is an integrity failure and is
// reported as INTERNAL; the ledger has already raised the alert.
func Code(err error) ErrorCode {
	var pub *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pub):
		return pub.Code
	case errors.Is(err, capacity.ErrCapacityExceeded):
		return CodeCapacityExceeded
	case errors.Is(err, ErrNoCapacity):
		return CodeNoCapacity
	case errors.Is(err, reservation.ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrStaleSuggestion):
		return CodeStaleSuggestion
	case errors.Is(err, ErrInfeasibleSuggestion):
		return CodeInfeasibleSchedule
	case errors.Is(err, capacity.ErrDuplicateWindow), errors.Is(err, capacity.ErrOverlappingWindow):
		return CodeWindowConflict
	case errors.Is(err, capacity.ErrWindowInactive):
		return CodeWindowInactive
	case errors.Is(err, reservation.ErrNotFound),
		errors.Is(err, capacity.ErrWindowNotFound),
		errors.Is(err, orders.ErrOrderNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnknownCustomer),
		errors.Is(err, reservation.ErrInvalidRequest),
		errors.Is(err, reservation.ErrWindowDateMismatch),
		errors.Is(err, capacity.ErrInvalidWindow),
		errors.Is(err, capacity.ErrInvalidMinutes),
		errors.Is(err, catalog.ErrUnknownProduct),
		errors.Is(err, catalog.ErrUnknownUnit),
		errors.Is(err, windowgen.ErrInvalidTemplate),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, integrity.ErrUnsupportedFinding):
		return CodeValidationFailed
	}
	return CodeInternal
}

// Public converts err into the collaborator-facing form.
func Public(err error) *Error {
	if err == nil {
		return nil
	}
	var pub *Error
	if errors.As(err, &pub) {
		return pub
	}
	code := Code(err)
	if code == CodeInternal {
		return &Error{Code: code, Message: "internal error"}
	}
	return &Error{Code: code, Message: err.Error()}
}
