/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/auth"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/integrity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/scheduling"
)

type integrityRepairRequest struct {
	Type       string `json:"type"`
	ResourceID string `json:"resource_id"`
}

func (a *API) handleIntegrityReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.svc.CheckIntegrity(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	byType := make(map[string]int, len(report.ByType))
	for k, v := range report.ByType {
		byType[string(k)] = v
	}
	a.logAudit(r, &models.AuditLog{
		Action:       models.AuditActionIntegrityScan,
		ResourceType: "integrity_report",
		Details: map[string]any{
			"total":   report.Total,
			"by_type": byType,
		},
	})

	findings := report.Findings
	if findings == nil {
		findings = []integrity.Finding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generated_at": report.GeneratedAt,
		"total":        report.Total,
		"by_type":      byType,
		"findings":     findings,
	})
}

func (a *API) handleIntegrityRepair(w http.ResponseWriter, r *http.Request) {
	var req integrityRepairRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Type == "" || req.ResourceID == "" {
		writeError(w, http.StatusBadRequest, string(scheduling.CodeValidationFailed), "type and resource_id are required")
		return
	}

	result, err := a.svc.RepairIntegrity(r.Context(), integrity.RepairInput{
		Type:       integrity.FindingType(req.Type),
		ResourceID: req.ResourceID,
	}, auth.Actor(r.Context()))
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("type", req.Type).
			Str("resource_id", req.ResourceID).
			Msg("integrity repair failed")
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleExpiryRun(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.ExpireDue(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// logAudit writes entry with the caller's identity. Failures are logged only.
func (a *API) logAudit(r *http.Request, entry *models.AuditLog) {
	if a.auditSvc == nil {
		return
	}
	entry.Actor = auth.Actor(r.Context())
	entry.IPAddress = clientIP(r)
	if err := a.auditSvc.Log(r.Context(), entry); err != nil {
		a.logger.Error().Err(err).Str("action", string(entry.Action)).Msg("failed to write audit log")
	}
}
