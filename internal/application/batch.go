package application

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

// CalculationRequest holds the inputs of one CreateFinalResult call.
type CalculationRequest struct {
	Subset          domain.Subset
	Average         domain.AverageDescriptor
	Period          domain.CalculationPeriod
	Measure         *domain.Measure
	Intermediates   []domain.EntityTotalsSeries
	TargetInstances []domain.EntityInstance
}

// BatchCalculator runs independent calculations concurrently. Calculations
// share no mutable state: the stage factory clones every series it is
// given.
type BatchCalculator struct {
	factory     *CalculationStageFactory
	concurrency int
	metrics     ports.MetricsCollector
	logger      *slog.Logger
}

// NewBatchCalculator creates a batch runner. A concurrency below one uses
// GOMAXPROCS.
func NewBatchCalculator(factory *CalculationStageFactory, concurrency int, metrics ports.MetricsCollector, logger *slog.Logger) (*BatchCalculator, error) {
	if factory == nil {
		return nil, fmt.Errorf("stage factory cannot be nil")
	}
	if concurrency < 1 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchCalculator{
		factory:     factory,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger.With("component", "batch_calculator"),
	}, nil
}

// CreateFinalResults calculates every request and returns results in
// request order. The first failure cancels the remaining work and is
// returned.
func (b *BatchCalculator) CreateFinalResults(ctx context.Context, requests []CalculationRequest) ([][]domain.EntityWeightedDailyResults, error) {
	out := make([][]domain.EntityWeightedDailyResults, len(requests))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	if b.metrics != nil {
		b.metrics.RecordGauge("batch_requests", float64(len(requests)), map[string]string{"stage": "batch"})
	}

	for i, req := range requests {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results, err := b.factory.CreateFinalResult(ctx,
				req.Subset, req.Average, req.Period, req.Measure, req.Intermediates, req.TargetInstances)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			out[i] = results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		b.logger.WarnContext(ctx, "batch calculation aborted", "requests", len(requests), "error", err)
		return nil, err
	}
	return out, nil
}
