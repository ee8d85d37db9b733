package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/urbanrisk/floodwatch/internal/alerts"
	"github.com/urbanrisk/floodwatch/internal/domain"
	"github.com/urbanrisk/floodwatch/internal/engine"
	"github.com/urbanrisk/floodwatch/internal/observability"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *engine.Engine
	alerts   *alerts.Engine
	tracker  *alerts.Tracker
	provider domain.ObservationProvider
	metrics  *observability.Metrics
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, alertEngine *alerts.Engine, tracker *alerts.Tracker, provider domain.ObservationProvider, metrics *observability.Metrics, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   eng,
		alerts:   alertEngine,
		tracker:  tracker,
		provider: provider,
		metrics:  metrics,
		version:  version,
	}
}

// CustomAssessRequest is the request body for POST /assess/custom.
type CustomAssessRequest struct {
	WardCode    string             `json:"ward_code"`
	Observation domain.Observation `json:"observation"`
}

// AssessResponse is the response for the single-ward assessment endpoints.
type AssessResponse struct {
	Assessment *domain.Assessment   `json:"assessment"`
	Alerts     []domain.AlertResult `json:"alerts,omitempty"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// AllWardsResponse is the response for GET /assess/all-wards.
type AllWardsResponse struct {
	Assessments []*domain.Assessment `json:"assessments"`
	Failed      map[string]string    `json:"failed,omitempty"`
	Count       int                  `json:"count"`
	Metadata    struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// AssessWard handles POST /assess/ward/{code}: fetches the live observation
// for the ward and runs it through the active model.
func (h *Handler) AssessWard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	wardCode := chi.URLParam(r, "code")

	if wardCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "ward code is required",
		})
		return
	}

	if h.provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "observation provider not available",
		})
		return
	}

	obs, _, err := h.provider.Current(ctx, wardCode)
	if err != nil {
		slog.Error("observation fetch failed", "ward", wardCode, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "failed to fetch observation: " + err.Error(),
		})
		return
	}

	h.assess(w, r, obs, wardCode, start)
}

// AssessCustom handles POST /assess/custom: assesses a caller-supplied
// observation instead of live weather.
func (h *Handler) AssessCustom(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CustomAssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.WardCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "ward_code is required",
		})
		return
	}

	h.assess(w, r, &req.Observation, req.WardCode, start)
}

func (h *Handler) assess(w http.ResponseWriter, r *http.Request, obs *domain.Observation, wardCode string, start time.Time) {
	ctx := r.Context()

	a, err := h.engine.Assess(obs, wardCode)
	if err != nil {
		writeJSON(w, assessmentStatus(err), map[string]string{
			"error": err.Error(),
		})
		return
	}

	fired := h.finalize(ctx, a)

	if h.metrics != nil {
		h.metrics.AssessmentsTotal.WithLabelValues(a.ConfidenceLevel).Inc()
		h.metrics.AssessmentDuration.Observe(time.Since(start).Seconds())
		h.metrics.FloodProbability.Observe(a.FloodProbability)
	}

	resp := AssessResponse{Assessment: a, Alerts: fired}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// AssessAllWards handles GET /assess/all-wards: assesses every ward the
// provider serves against a single model snapshot, so one response is
// internally consistent even if a retrain lands mid-flight.
func (h *Handler) AssessAllWards(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	if h.provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "observation provider not available",
		})
		return
	}

	state := h.engine.Current()
	if state == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": engine.ErrNotTrained.Error(),
		})
		return
	}

	resp := AllWardsResponse{Failed: map[string]string{}}
	for _, code := range h.provider.Wards() {
		obs, _, err := h.provider.Current(ctx, code)
		if err != nil {
			resp.Failed[code] = err.Error()
			continue
		}

		a, err := state.Assess(obs, code)
		if err != nil {
			resp.Failed[code] = err.Error()
			continue
		}

		h.finalize(ctx, a)
		if h.metrics != nil {
			h.metrics.AssessmentsTotal.WithLabelValues(a.ConfidenceLevel).Inc()
			h.metrics.FloodProbability.Observe(a.FloodProbability)
		}
		resp.Assessments = append(resp.Assessments, a)
	}

	if len(resp.Failed) == 0 {
		resp.Failed = nil
	}
	resp.Count = len(resp.Assessments)
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// finalize stamps identity onto a fresh assessment, persists it, publishes
// it, and runs the alert rules. Returns the fired alerts. Persistence and
// alerting failures are logged, not surfaced: the assessment itself is
// already computed and belongs to the caller.
func (h *Handler) finalize(ctx context.Context, a *domain.Assessment) []domain.AlertResult {
	a.ID = uuid.New().String()
	a.AssessedAt = time.Now().UTC()

	if h.repo != nil {
		if err := h.repo.SaveAssessment(ctx, a); err != nil {
			slog.Error("failed to save assessment", "id", a.ID, "error", err)
		}
	}

	if h.bus != nil {
		if payload, err := json.Marshal(a); err == nil {
			if err := h.bus.Publish(ctx, domain.TopicAssessmentCompleted, payload); err != nil {
				slog.Error("failed to publish assessment", "id", a.ID, "error", err)
			}
		}
	}

	if h.alerts == nil {
		return nil
	}

	results, err := h.alerts.EvaluateAll(ctx, a)
	if err != nil {
		slog.Error("alert evaluation failed", "assessment", a.ID, "error", err)
		return nil
	}

	var fired []domain.AlertResult
	for _, res := range results {
		if !res.Fired {
			continue
		}
		fired = append(fired, res)

		if h.tracker != nil {
			if err := h.tracker.Record(ctx, a.WardCode, alerts.RecentAlertWindow); err != nil {
				slog.Warn("failed to record alert", "ward", a.WardCode, "error", err)
			}
		}
		if h.metrics != nil {
			h.metrics.AlertsFired.WithLabelValues(res.Severity).Inc()
		}
		if h.bus != nil {
			if payload, err := json.Marshal(res); err == nil {
				if err := h.bus.Publish(ctx, domain.TopicAlertRaised, payload); err != nil {
					slog.Error("failed to publish alert", "rule", res.RuleID, "error", err)
				}
			}
		}
		slog.Info("alert fired",
			"rule", res.RuleID,
			"ward", a.WardCode,
			"severity", res.Severity,
			"score", res.Score,
		)
	}

	return fired
}

// WardZones handles GET /wards/zones.
func (h *Handler) WardZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.engine.WardZones()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"zones": zones,
		"count": len(zones),
	})
}

// WeatherResponse is the response for GET /weather/current/{code}.
type WeatherResponse struct {
	Ward        *domain.Ward        `json:"ward"`
	Observation *domain.Observation `json:"observation"`
}

// CurrentWeather handles GET /weather/current/{code}: returns the current
// observation for a ward without running an assessment. The provider falls
// back to seasonal conditions when the upstream API is unreachable, so this
// endpoint stays useful offline.
func (h *Handler) CurrentWeather(w http.ResponseWriter, r *http.Request) {
	wardCode := chi.URLParam(r, "code")
	if wardCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "ward code is required",
		})
		return
	}

	if h.provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "observation provider not available",
		})
		return
	}

	obs, ward, err := h.provider.Current(r.Context(), wardCode)
	if err != nil {
		slog.Error("observation fetch failed", "ward", wardCode, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "failed to fetch observation: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, WeatherResponse{Ward: ward, Observation: obs})
}

// ModelInfo handles GET /models/info.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	state := h.engine.Current()
	if state == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": engine.ErrNotTrained.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":    state.Version,
		"trained_at": state.TrainedAt,
		"report":     state.Report,
	})
}

// TriggerRetrain handles POST /models/retrain by publishing a retrain
// request onto the bus. The retrain worker picks it up asynchronously.
func (h *Handler) TriggerRetrain(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	if err := h.bus.Publish(r.Context(), domain.TopicModelRetrain, []byte(`{}`)); err != nil {
		slog.Error("failed to publish retrain request", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to request retrain",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "retrain requested",
	})
}

// GetAssessment retrieves a persisted assessment by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "assessment id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	a, err := h.repo.GetAssessment(ctx, id)
	if err != nil {
		slog.Error("failed to get assessment", "id", id, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "assessment not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server can serve assessments. It reports not
// ready until a model has been trained or restored.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.engine.Current() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready":  "false",
			"reason": "no trained model",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func assessmentStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotTrained):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrSchema), errors.Is(err, domain.ErrUnknownCategory):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
