package application

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

// TreeRequest describes one tree accumulation over response records.
type TreeRequest struct {
	Measure *domain.Measure

	// Entities is the coordinate the measure and filter are evaluated at.
	Entities domain.EntityValueCombination

	Breaks []domain.Break

	// Filter restricts contributing responses. Nil includes everything.
	Filter ports.Filter

	// WeightedMean, when set, accumulates squared deviations into every
	// node's Variance.
	WeightedMean *float64
}

// TreeAccumulator builds ResultSampleSizePair trees from response records.
// Responses are split into contiguous partitions, each accumulated by its
// own worker into a private tree, and the partial trees are reduced in
// partition order with domain.AddPairs.
type TreeAccumulator struct {
	workers int
}

// NewTreeAccumulator creates an accumulator using up to workers
// goroutines. A value below one uses GOMAXPROCS.
func NewTreeAccumulator(workers int) *TreeAccumulator {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &TreeAccumulator{workers: workers}
}

// Accumulate scans responses and returns the root of the result tree.
func (a *TreeAccumulator) Accumulate(ctx context.Context, responses []*domain.Response, req TreeRequest) (domain.ResultSampleSizePair, error) {
	if req.Measure == nil {
		return domain.ResultSampleSizePair{}, fmt.Errorf("%w: measure is required", domain.ErrInvalidMeasure)
	}

	include := func(*domain.Response) bool { return true }
	if req.Filter != nil {
		include = req.Filter.CreateForEntityValues(req.Entities)
	}

	parts := partition(len(responses), a.workers)
	partial := make([]domain.ResultSampleSizePair, len(parts))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range parts {
		g.Go(func() error {
			tree := domain.NewResultTree(req.Breaks)
			for _, r := range responses[p[0]:p[1]] {
				if err := ctx.Err(); err != nil {
					return err
				}
				if !include(r) {
					continue
				}
				value, ok := req.Measure.Value(r, req.Entities)
				if !ok {
					continue
				}
				indexer := domain.ResponseBreakIndexer{Response: r, Entities: req.Entities}
				tree.AddToBreakResults(req.Breaks, indexer, value, req.WeightedMean)
			}
			partial[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ResultSampleSizePair{}, err
	}

	total := domain.NewResultTree(req.Breaks)
	for _, tree := range partial {
		var err error
		if total, err = domain.AddPairs(total, tree); err != nil {
			return domain.ResultSampleSizePair{}, err
		}
	}
	return total, nil
}

// partition splits n items into at most k contiguous [start, end) ranges.
func partition(n, k int) [][2]int {
	if n == 0 {
		return nil
	}
	k = min(k, n)
	size := (n + k - 1) / k
	parts := make([][2]int, 0, k)
	for start := 0; start < n; start += size {
		parts = append(parts, [2]int{start, min(start+size, n)})
	}
	return parts
}
