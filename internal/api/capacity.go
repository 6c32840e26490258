/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/auth"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/scheduling"
)

func (a *API) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeInactive, _ := strconv.ParseBool(q.Get("include_inactive"))

	cal, err := a.svc.GetCapacityCalendar(r.Context(), q.Get("start_date"), q.Get("end_date"), includeInactive)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

func (a *API) handleWindowCreate(w http.ResponseWriter, r *http.Request) {
	var req scheduling.WindowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	win, err := a.svc.CreateWindow(r.Context(), req, auth.Actor(r.Context()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, win)
}

func (a *API) handleWindowsGenerate(w http.ResponseWriter, r *http.Request) {
	var req scheduling.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.svc.GenerateWindows(r.Context(), req, auth.Actor(r.Context()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleWindowDeactivate(w http.ResponseWriter, r *http.Request) {
	win, err := a.svc.DeactivateWindow(r.Context(), chi.URLParam(r, "windowID"), auth.Actor(r.Context()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, win)
}

func (a *API) handleCalendarExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := a.svc.ExportCalendar(r.Context(), q.Get("start_date"), q.Get("end_date"), q.Get("format"), auth.Actor(r.Context()))
	if err != nil {
		if errors.Is(err, scheduling.ErrExportDisabled) {
			writeError(w, http.StatusServiceUnavailable, "EXPORT_DISABLED", "calendar export is not configured")
			return
		}
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
