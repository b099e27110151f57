package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/GanizaniSitara/controls-ux/internal/application/aggregation"
	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
	"github.com/GanizaniSitara/controls-ux/internal/application/usecase"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// SnapshotSource serves the current snapshot.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context) (*aggregation.View, error)
}

type fitnessResponse struct {
	Source  string                  `json:"source"`
	Results []*dto.FitnessResultDTO `json:"results"`
}

// FitnessHandler evaluates every registered fitness function on request.
type FitnessHandler struct {
	cache   SnapshotSource
	fitness *usecase.CalculateFitnessUseCase
	logger  *logger.Logger
}

func NewFitnessHandler(cache SnapshotSource, fitness *usecase.CalculateFitnessUseCase, logger *logger.Logger) *FitnessHandler {
	return &FitnessHandler{cache: cache, fitness: fitness, logger: logger}
}

// List returns the fitness results, optionally narrowed with ?id=<function id>.
func (h *FitnessHandler) List(w http.ResponseWriter, r *http.Request) {
	view, err := h.cache.GetSnapshot(r.Context())
	if err != nil && !errors.Is(err, aggregation.ErrCacheUnavailable) {
		h.logger.Error("Failed to read snapshot for fitness", err)
		writeError(w, http.StatusInternalServerError, "failed to read snapshot", h.logger)
		return
	}

	results := h.fitness.Execute(view.Snapshot)
	if id := r.URL.Query().Get("id"); id != "" {
		filtered := results[:0]
		for _, result := range results {
			if result.ID == id || result.FunctionID == id {
				filtered = append(filtered, result)
			}
		}
		if len(filtered) == 0 {
			writeError(w, http.StatusNotFound, "fitness function not found", h.logger)
			return
		}
		results = filtered
	}

	status := http.StatusOK
	if errors.Is(err, aggregation.ErrCacheUnavailable) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, fitnessResponse{Source: string(view.Source), Results: results}, h.logger)
}
