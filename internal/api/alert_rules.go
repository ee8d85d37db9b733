package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/urbanrisk/floodwatch/internal/domain"
	"github.com/urbanrisk/floodwatch/internal/repository"
)

// AlertRuleRequest is the request body for creating or updating an alert
// rule.
type AlertRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Severity    string  `json:"severity"`
	Threshold   float64 `json:"threshold"`
	Enabled     bool    `json:"enabled"`
}

// ListAlertRules returns all rules currently loaded in the alert engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /alerts/rules/reload.
func (h *Handler) ListAlertRules(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "alert engine not available",
		})
		return
	}

	loaded := h.alerts.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetAlertRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetAlertRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.alerts != nil {
		for _, rule := range h.alerts.LoadedRules() {
			if rule.ID == ruleID {
				writeJSON(w, http.StatusOK, rule)
				return
			}
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateAlertRule validates a new rule, loads it into the engine, and
// persists it.
func (h *Handler) CreateAlertRule(w http.ResponseWriter, r *http.Request) {
	h.upsertAlertRule(w, r, "", http.StatusCreated)
}

// UpdateAlertRule replaces an existing rule by ID.
func (h *Handler) UpdateAlertRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}
	h.upsertAlertRule(w, r, ruleID, http.StatusOK)
}

func (h *Handler) upsertAlertRule(w http.ResponseWriter, r *http.Request, forceID string, okStatus int) {
	ctx := r.Context()

	var req AlertRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if forceID != "" {
		req.ID = forceID
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	switch req.Severity {
	case domain.SeverityWatch, domain.SeverityWarning, domain.SeveritySevere:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "severity must be one of: watch, warning, severe",
		})
		return
	}

	rule := &domain.AlertRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Severity:    req.Severity,
		Threshold:   req.Threshold,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression by attempting to load
	if h.alerts != nil {
		if err := h.alerts.LoadRule(rule); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid CEL expression: " + err.Error(),
			})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveAlertRule(ctx, rule); err != nil {
			slog.Error("failed to save alert rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("alert rule saved", "id", rule.ID, "name", rule.Name)
	writeJSON(w, okStatus, rule)
}

// DeleteAlertRule removes a rule from the engine and the database.
func (h *Handler) DeleteAlertRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteAlertRule(ctx, ruleID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{
					"error": "rule not found",
				})
				return
			}
			slog.Error("failed to delete alert rule", "id", ruleID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to delete rule",
			})
			return
		}
	}

	if h.alerts != nil {
		h.alerts.RemoveRule(ruleID)
	}

	slog.Info("alert rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "rule deleted",
	})
}

// ReloadAlertRules reloads all enabled rules from the database into the
// engine, enabling hot-reload without a server restart.
func (h *Handler) ReloadAlertRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil || h.alerts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository or alert engine not available",
		})
		return
	}

	dbRules, err := h.repo.ListAlertRules(ctx)
	if err != nil {
		slog.Error("failed to list alert rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.alerts.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload alert rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("alert rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}
