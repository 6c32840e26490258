/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/auth"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/reservation"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/scheduling"
)

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (a *API) handleReservationCreate(w http.ResponseWriter, r *http.Request) {
	var req scheduling.ReservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.svc.CreateReservation(r.Context(), req, auth.Actor(r.Context()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) handleReservationGet(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.GetReservation(r.Context(), chi.URLParam(r, "reservationID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleReservationsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := reservation.Filter{
		CustomerID: q.Get("customer_id"),
		ProductID:  q.Get("product_id"),
		WindowID:   q.Get("window_id"),
		FromDate:   q.Get("from"),
		ToDate:     q.Get("to"),
		Limit:      100,
	}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, models.ReservationStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 && n <= 1000 {
			f.Limit = n
		}
	}
	if offset := q.Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n >= 0 {
			f.Offset = n
		}
	}

	list, err := a.svc.ListReservations(r.Context(), f)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reservations": list,
		"limit":        f.Limit,
		"offset":       f.Offset,
	})
}

func (a *API) handleReservationDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := a.svc.CopyReservationAsDraft(r.Context(), chi.URLParam(r, "reservationID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (a *API) handleReservationConfirm(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.ConfirmReservation(r.Context(), chi.URLParam(r, "reservationID"), auth.Actor(r.Context()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleReservationCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.svc.CancelReservation(r.Context(), chi.URLParam(r, "reservationID"), req.Reason, auth.Actor(r.Context()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleReservationConvert(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.ConvertReservation(r.Context(), chi.URLParam(r, "reservationID"), auth.Actor(r.Context()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
