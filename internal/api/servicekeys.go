/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/auth"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/scheduling"
)

const defaultKeyLifetimeDays = 365

var knownRoles = map[string]bool{
	auth.RoleAdmin:     true,
	auth.RolePlanner:   true,
	auth.RoleOrderDesk: true,
	auth.RolePortal:    true,
}

type serviceKeyRequest struct {
	Name          string   `json:"name"`
	Roles         []string `json:"roles"`
	ExpiresInDays int      `json:"expires_in_days,omitempty"`
}

func (a *API) handleServiceKeysList(w http.ResponseWriter, r *http.Request) {
	keys, err := auth.ListServiceKeys(a.db.WithContext(r.Context()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if keys == nil {
		keys = []models.ServiceKey{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_keys": keys})
}

// handleServiceKeyCreate returns the plaintext key once.
func (a *API) handleServiceKeyCreate(w http.ResponseWriter, r *http.Request) {
	var req serviceKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Roles) == 0 {
		writeError(w, http.StatusBadRequest, string(scheduling.CodeValidationFailed), "name and roles are required")
		return
	}
	for _, role := range req.Roles {
		if !knownRoles[role] {
			writeError(w, http.StatusBadRequest, string(scheduling.CodeValidationFailed), "unknown role "+role)
			return
		}
	}
	if req.ExpiresInDays <= 0 {
		req.ExpiresInDays = defaultKeyLifetimeDays
	}

	plaintext, key, err := auth.GenerateServiceKey(req.Name, req.Roles, time.Duration(req.ExpiresInDays)*24*time.Hour)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := a.db.WithContext(r.Context()).Create(key).Error; err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	a.logAudit(r, &models.AuditLog{
		Action:       models.AuditActionServiceKeyCreate,
		ResourceType: "service_key",
		ResourceID:   key.ID,
		Details:      map[string]any{"name": key.Name, "roles": key.Roles},
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"key":         plaintext,
		"service_key": key,
	})
}

func (a *API) handleServiceKeyRevoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "keyID")
	err := auth.RevokeServiceKey(a.db.WithContext(r.Context()), id, time.Now().UTC())
	if errors.Is(err, auth.ErrKeyNotFound) {
		writeError(w, http.StatusNotFound, string(scheduling.CodeNotFound), "service key not found")
		return
	}
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	a.logAudit(r, &models.AuditLog{
		Action:       models.AuditActionServiceKeyRevoke,
		ResourceType: "service_key",
		ResourceID:   id,
	})
	w.WriteHeader(http.StatusNoContent)
}
