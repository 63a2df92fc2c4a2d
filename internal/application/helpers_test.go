package application

import (
	"sync"
	"time"

	"github.com/ahrav/go-tabulate/internal/domain"
)

const (
	brand  domain.EntityType = "brand"
	aspect domain.EntityType = "aspect"
)

func month(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }

func monthEnd(y int, m time.Month) time.Time { return month(y, m).AddDate(0, 1, -1) }

func ptr[T any](v T) *T { return &v }

func mustPeriod(start, end time.Time) domain.CalculationPeriod {
	p, err := domain.NewCalculationPeriod(domain.CalculationPeriodSpan{StartDate: start, EndDate: end})
	if err != nil {
		panic(err)
	}
	return p
}

// monthlyTotals builds one total per month starting at start, with the
// given weighted value totals and a weighted and unweighted sample of
// sample each.
func monthlyTotals(start time.Time, sample float64, values ...float64) []domain.WeightedTotal {
	totals := make([]domain.WeightedTotal, len(values))
	for i, v := range values {
		d := start.AddDate(0, i+1, -1)
		totals[i] = domain.WeightedTotal{
			Date:                  d,
			WeightedValueTotal:    v,
			UnweightedValueTotal:  v,
			UnweightedSampleCount: uint32(sample),
			WeightedSampleCount:   sample,
		}
	}
	return totals
}

var quarterly = domain.AverageDescriptor{
	AverageID:              "quarterly",
	DisplayName:            "Quarterly",
	TotalisationPeriodUnit: domain.TotalisationMonth,
	MakeUpTo:               domain.MakeUpToQuarterEnd,
}

func ratingMeasure() *domain.Measure {
	return &domain.Measure{
		Name:              "Rating",
		CalculationType:   domain.CalculationAverage,
		EntityCombination: []domain.EntityType{brand},
		PrimaryField:      &domain.Field{Name: "rating", EntityCombination: []domain.EntityType{brand}},
	}
}

// recordingMetrics is a ports.MetricsCollector that keeps counter totals.
type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	latency  map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: make(map[string]float64), latency: make(map[string]int)}
}

func (m *recordingMetrics) RecordLatency(operation string, _ time.Duration, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency[operation]++
}

func (m *recordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metric
	if status := labels["status"]; status != "" {
		key += ":" + status
	}
	m.counters[key] += value
}

func (m *recordingMetrics) RecordGauge(string, float64, map[string]string) {}

func (m *recordingMetrics) RecordHistogram(string, float64, map[string]string) {}

func (m *recordingMetrics) counter(key string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key]
}
