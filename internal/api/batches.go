/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/auth"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/batching"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
)

func (a *API) handleBatchSuggestions(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	suggestions, err := a.svc.SuggestBatches(r.Context(), date)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if suggestions == nil {
		suggestions = []batching.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":        date,
		"suggestions": suggestions,
	})
}

// handleBatchAccept takes a suggestion exactly as returned by
// /batches/suggestions.
func (a *API) handleBatchAccept(w http.ResponseWriter, r *http.Request) {
	var sg batching.Suggestion
	if !decodeJSON(w, r, &sg) {
		return
	}
	b, err := a.svc.AcceptSuggestion(r.Context(), sg, auth.Actor(r.Context()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (a *API) handleOrderSync(w http.ResponseWriter, r *http.Request) {
	var o models.Order
	if !decodeJSON(w, r, &o) {
		return
	}
	o.ID = chi.URLParam(r, "orderID")
	saved, err := a.svc.SyncOrder(r.Context(), o)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (a *API) handleCustomerSync(w http.ResponseWriter, r *http.Request) {
	var c models.Customer
	if !decodeJSON(w, r, &c) {
		return
	}
	c.ID = chi.URLParam(r, "customerID")
	saved, err := a.svc.SyncCustomer(r.Context(), c)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
