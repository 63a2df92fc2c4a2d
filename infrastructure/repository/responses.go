package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

var (
	_ ports.WeightedTotalSource = (*ResponseStore)(nil)
	_ ports.ProfileQuerier      = (*ResponseStore)(nil)
)

// ResponseStore totals response records held in memory. It stands in for
// the external totalisation layer in tests and local runs.
type ResponseStore struct {
	mu        sync.RWMutex
	responses map[string][]*domain.Response
}

// NewResponseStore creates an empty store.
func NewResponseStore() *ResponseStore {
	return &ResponseStore{responses: make(map[string][]*domain.Response)}
}

// Add appends responses to a subset. Responses must not be modified after
// they are added.
func (s *ResponseStore) Add(subsetID string, responses ...*domain.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[subsetID] = append(s.responses[subsetID], responses...)
}

// Totals implements ports.WeightedTotalSource. Monthly series reach back
// far enough before the period start for the average's trailing windows,
// and every bucket in range is emitted even when it has no responses.
func (s *ResponseStore) Totals(ctx context.Context, req ports.TotalsRequest) ([]domain.EntityTotalsSeries, error) {
	if req.Measure == nil {
		return nil, ports.NewQueryError("totals", req.SubsetID, domain.ErrInvalidMeasure)
	}
	if err := req.Period.Validate(); err != nil {
		return nil, ports.NewQueryError("totals", req.SubsetID, err)
	}
	dates, bucketOf, err := buckets(req.Average, req.Period)
	if err != nil {
		return nil, ports.NewQueryError("totals", req.SubsetID, err)
	}

	s.mu.RLock()
	responses := s.responses[req.SubsetID]
	s.mu.RUnlock()

	instances := req.Instances
	if len(instances) == 0 || len(req.Measure.EntityCombination) == 0 {
		instances = []domain.EntityInstance{{}}
	}

	series := make([]domain.EntityTotalsSeries, 0, len(instances))
	for _, inst := range instances {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var evc domain.EntityValueCombination
		if len(req.Measure.EntityCombination) > 0 {
			evc = domain.MustEntityValueCombination(domain.EntityValue{Type: req.Measure.EntityCombination[0], Value: inst.ID})
		}
		include := func(*domain.Response) bool { return true }
		if req.Filter != nil {
			include = req.Filter.CreateForEntityValues(evc)
		}

		totals := make([]domain.WeightedTotal, len(dates))
		for i, d := range dates {
			totals[i] = domain.WeightedTotal{Date: d, ChildResults: emptyChildTotals(d, req.Breaks)}
		}
		for _, r := range responses {
			idx, ok := bucketOf(r.Date)
			if !ok || !include(r) {
				continue
			}
			value, ok := req.Measure.Value(r, evc)
			if !ok {
				continue
			}
			indexer := domain.ResponseBreakIndexer{Response: r, Entities: evc}
			t := &totals[idx]
			addResponse(t, r, value, req.Average.IncludeResponseIDs)
			addToChildTotals(t.ChildResults, req.Breaks, indexer, r, value, req.Average.IncludeResponseIDs)
		}
		series = append(series, domain.EntityTotalsSeries{EntityInstance: inst, Totals: totals})
	}
	return series, nil
}

// QueryWeighted implements ports.ProfileQuerier. It produces one row per
// measure, brand and other instance, zero-filled where no response counts.
func (s *ResponseStore) QueryWeighted(ctx context.Context, q ports.ProfileQuery) ([]ports.ProfileRow, error) {
	s.mu.RLock()
	responses := s.responses[q.SubsetID]
	s.mu.RUnlock()

	start, end := dayOf(q.Span.StartDate), dayOf(q.Span.EndDate)
	var rows []ports.ProfileRow
	for _, m := range q.Measures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(m.EntityCombination) != 2 {
			return nil, ports.NewQueryError("profile", m.Name,
				fmt.Errorf("%w: profile measures need two entity types", domain.ErrInvalidMeasure))
		}
		brandType, otherType := m.EntityCombination[0], m.EntityCombination[1]
		for _, brandID := range q.BrandIDs {
			for _, otherID := range q.OtherInstances[otherType] {
				evc := domain.MustEntityValueCombination(
					domain.EntityValue{Type: brandType, Value: brandID},
					domain.EntityValue{Type: otherType, Value: otherID},
				)
				row := ports.ProfileRow{MeasureName: m.Name, BrandID: brandID, OtherInstanceID: otherID}
				for _, r := range responses {
					if d := dayOf(r.Date); d.Before(start) || d.After(end) {
						continue
					}
					if !inQueryBase(q, r, evc) {
						continue
					}
					value, ok := m.Value(r, evc)
					if !ok {
						continue
					}
					row.WeightedValueTotal += value * r.Weight
					row.WeightedSampleCount += r.Weight
				}
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}

func inQueryBase(q ports.ProfileQuery, r *domain.Response, evc domain.EntityValueCombination) bool {
	if q.BaseField == nil {
		return true
	}
	v, ok := r.Answer(*q.BaseField, evc)
	return ok && (len(q.BaseValues) == 0 || slices.Contains(q.BaseValues, v))
}

// buckets lists the bucket end dates for a request and returns a lookup from
// a response date to its bucket index.
func buckets(average domain.AverageDescriptor, period domain.CalculationPeriod) ([]time.Time, func(time.Time) (int, bool), error) {
	start, end := dayOf(period.StartDate()), dayOf(period.EndDate())
	switch average.TotalisationPeriodUnit {
	case domain.TotalisationAll:
		return []time.Time{end}, func(d time.Time) (int, bool) {
			d = dayOf(d)
			return 0, !d.Before(start) && !d.After(end)
		}, nil

	case domain.TotalisationDay:
		var dates []time.Time
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
		return dates, func(d time.Time) (int, bool) {
			d = dayOf(d)
			if d.Before(start) || d.After(end) {
				return 0, false
			}
			return int(d.Sub(start).Hours() / 24), true
		}, nil

	case domain.TotalisationMonth:
		first := firstMonth(average, start)
		last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
		var dates []time.Time
		for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
			dates = append(dates, m.AddDate(0, 1, -1))
		}
		return dates, func(d time.Time) (int, bool) {
			d = dayOf(d)
			if d.Before(first) || d.After(end) {
				return 0, false
			}
			return (d.Year()-first.Year())*12 + int(d.Month()-first.Month()), true
		}, nil

	default:
		return nil, nil, fmt.Errorf("%w: totalisation unit %q", domain.ErrUnsupportedAverage, average.TotalisationPeriodUnit)
	}
}

// firstMonth is the first month a monthly series must cover. Calendar
// rollups start at the first month of the window holding start; moving
// averages reach back a full trailing window.
func firstMonth(average domain.AverageDescriptor, start time.Time) time.Time {
	month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	if w := average.MakeUpTo.MonthsInWindow(); w > 0 {
		return month.AddDate(0, -((int(start.Month()) - 1) % w), 0)
	}
	return month.AddDate(0, -(max(average.NumberOfPeriodsInAverage, 1) - 1), 0)
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func addResponse(t *domain.WeightedTotal, r *domain.Response, value float64, includeIDs bool) {
	t.WeightedValueTotal += value * r.Weight
	t.UnweightedValueTotal += value
	t.UnweightedSampleCount++
	t.WeightedSampleCount += r.Weight
	if includeIDs {
		t.ResponseIDsForDay = append(t.ResponseIDsForDay, r.ID)
	}
}

// emptyChildTotals shapes a child array for breaks the same way
// domain.EmptyWithChildResults shapes result trees.
func emptyChildTotals(date time.Time, breaks []domain.Break) []domain.WeightedTotal {
	if len(breaks) == 0 {
		return nil
	}
	var children []domain.WeightedTotal
	for i := range breaks {
		for range breaks[i].Instances {
			children = append(children, domain.WeightedTotal{
				Date:         date,
				ChildResults: emptyChildTotals(date, nested(&breaks[i])),
			})
		}
	}
	return children
}

func addToChildTotals(
	children []domain.WeightedTotal,
	breaks []domain.Break,
	indexer domain.BreakIndexer,
	r *domain.Response,
	value float64,
	includeIDs bool,
) {
	offset := 0
	for i := range breaks {
		b := &breaks[i]
		for _, idx := range indexer.InstanceIndexes(b) {
			if offset+idx >= len(children) {
				continue
			}
			node := &children[offset+idx]
			addResponse(node, r, value, includeIDs)
			addToChildTotals(node.ChildResults, nested(b), indexer, r, value, includeIDs)
		}
		offset += len(b.Instances)
	}
}

func nested(b *domain.Break) []domain.Break {
	if b.ChildBreak == nil {
		return nil
	}
	return []domain.Break{*b.ChildBreak}
}
