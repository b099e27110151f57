package usecase

import (
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/fitness"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// CalculateFitnessUseCase summarises a snapshot with every registered fitness function.
// It runs on the read path, never during a refresh.
type CalculateFitnessUseCase struct {
	registry *fitness.Registry
	logger   *logger.Logger
}

// NewCalculateFitnessUseCase creates the use case.
func NewCalculateFitnessUseCase(registry *fitness.Registry, logger *logger.Logger) *CalculateFitnessUseCase {
	return &CalculateFitnessUseCase{registry: registry, logger: logger}
}

// Execute returns one DTO per function that produced a result.
func (uc *CalculateFitnessUseCase) Execute(snapshot *entity.CacheSnapshot) []*dto.FitnessResultDTO {
	started := time.Now()
	results := uc.registry.CalculateAll(snapshot)

	uc.logger.Debug("Fitness functions calculated",
		"functions", len(uc.registry.Functions()),
		"results", len(results),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return dto.ToFitnessResultDTOs(results)
}
