package biz

import (
	"github.com/unred/signal-bridge/internal/biz/repo"
	"github.com/unred/signal-bridge/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Classifier *usecase.SignalClassifier
	Pipeline   *usecase.PipelineUsecase
	Delivery   *usecase.DeliveryUsecase
}

// NewUsecases wires the usecases over the given repositories
func NewUsecases(
	watermarks repo.WatermarkRepo,
	queue repo.QueueRepo,
	converter repo.ConverterRepo,
	mode usecase.ClassifierMode,
	delivery usecase.DeliveryConfig,
) *Usecases {
	classifier := usecase.NewSignalClassifier(mode)
	return &Usecases{
		Classifier: classifier,
		Pipeline:   usecase.NewPipelineUsecase(watermarks, queue, classifier),
		Delivery:   usecase.NewDeliveryUsecase(converter, delivery),
	}
}
