package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/GanizaniSitara/controls-ux/internal/application/aggregation"
	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// CacheService is the read and refresh surface of the aggregation cache.
type CacheService interface {
	GetSnapshot(ctx context.Context) (*aggregation.View, error)
	GetHealth(ctx context.Context) *aggregation.Health
	GetApplicationDetail(ctx context.Context, appID string) (*aggregation.ApplicationDetail, error)
	Refresh(ctx context.Context) error
}

// CacheHandler serves the cache health, snapshot, refresh and application views.
type CacheHandler struct {
	cache  CacheService
	logger *logger.Logger
}

// NewCacheHandler creates the handler.
func NewCacheHandler(cache CacheService, logger *logger.Logger) *CacheHandler {
	return &CacheHandler{cache: cache, logger: logger}
}

// Health reports cache freshness. It always answers 200; the status field carries the verdict.
func (h *CacheHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toHealthDTO(h.cache.GetHealth(r.Context())), h.logger)
}

// Ready answers 200 once any snapshot, live or fallback, can be served.
func (h *CacheHandler) Ready(w http.ResponseWriter, r *http.Request) {
	view, err := h.cache.GetSnapshot(r.Context())
	if err != nil || view.Source == aggregation.SourceNone {
		http.Error(w, "no data", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Snapshot returns the served snapshot. With no data anywhere it answers 503
// with an empty snapshot carrying the cache metadata.
func (h *CacheHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	view, err := h.cache.GetSnapshot(r.Context())
	if errors.Is(err, aggregation.ErrCacheUnavailable) {
		writeJSON(w, http.StatusServiceUnavailable, dto.NewSnapshotDTO(view.Snapshot, string(view.Source), "unavailable"), h.logger)
		return
	}
	if err != nil {
		h.logger.Error("Failed to read snapshot", err)
		writeError(w, http.StatusInternalServerError, "failed to read snapshot", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewSnapshotDTO(view.Snapshot, string(view.Source), "ok"), h.logger)
}

// Refresh runs a refresh cycle, joining one already in flight.
func (h *CacheHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.cache.Refresh(r.Context())
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, "refresh still running", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("Manual refresh failed", err, "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusInternalServerError, err.Error(), h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toHealthDTO(h.cache.GetHealth(r.Context())), h.logger)
}

// Application returns one application's raw records and verdicts.
func (h *CacheHandler) Application(w http.ResponseWriter, r *http.Request) {
	appID := strings.TrimSpace(r.PathValue("id"))
	if appID == "" {
		writeError(w, http.StatusBadRequest, "application id is required", h.logger)
		return
	}

	detail, err := h.cache.GetApplicationDetail(r.Context(), appID)
	switch {
	case errors.Is(err, aggregation.ErrApplicationNotFound):
		writeError(w, http.StatusNotFound, "application not found", h.logger)
		return
	case errors.Is(err, aggregation.ErrCacheUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error(), h.logger)
		return
	case err != nil:
		h.logger.Error("Failed to read application detail", err, "app_id", appID)
		writeError(w, http.StatusInternalServerError, "failed to read application", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationDTO(detail), h.logger)
}

func toHealthDTO(health *aggregation.Health) *dto.CacheHealthDTO {
	out := &dto.CacheHealthDTO{
		Status:       health.Status.String(),
		Message:      health.Message,
		Source:       string(health.Source),
		Applications: health.Applications,
		Providers:    health.Providers,
		Rules:        health.Rules,
		Metadata:     dto.FromMetadata(health.Metadata),
		CheckedAt:    health.CheckedAt,
	}
	if health.Age != nil {
		seconds := health.Age.Seconds()
		out.CacheAgeSeconds = &seconds
	}
	return out
}

// toApplicationDTO renders verdicts as strings; a rule that failed as a whole
// shows its error for every application.
func toApplicationDTO(detail *aggregation.ApplicationDetail) *dto.ApplicationDetailDTO {
	results := make(map[string]string, len(detail.Verdicts)+len(detail.RuleErrors))
	for ruleID, verdict := range detail.Verdicts {
		results[ruleID] = verdict.String()
	}
	for ruleID, message := range detail.RuleErrors {
		results[ruleID] = "Error: " + message
	}
	return &dto.ApplicationDetailDTO{
		AppID:       detail.AppID,
		RawData:     detail.Raw,
		RuleResults: results,
		Source:      string(detail.Source),
	}
}
