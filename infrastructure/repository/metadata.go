// Package repository provides in-memory implementations of the metadata
// and data-access ports, built from configuration or test fixtures.
package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

// ErrDuplicate is returned when a record with the same key is added twice.
var ErrDuplicate = errors.New("duplicate record")

var (
	_ ports.EntityRepository  = (*Metadata)(nil)
	_ ports.MeasureRepository = (*Metadata)(nil)
	_ ports.SubsetRepository  = (*Metadata)(nil)
	_ ports.AverageRepository = (*Metadata)(nil)
)

// Metadata is an in-memory store of measures, subsets, averages and entity
// instances. Records are added once at load time and shared read-only
// afterwards; it is safe for concurrent use.
type Metadata struct {
	mu       sync.RWMutex
	measures map[string]*domain.Measure
	subsets  map[string]domain.Subset
	averages map[string]domain.AverageDescriptor
	entities map[domain.EntityType]map[int]domain.EntityInstance
}

// NewMetadata creates an empty metadata store.
func NewMetadata() *Metadata {
	return &Metadata{
		measures: make(map[string]*domain.Measure),
		subsets:  make(map[string]domain.Subset),
		averages: make(map[string]domain.AverageDescriptor),
		entities: make(map[domain.EntityType]map[int]domain.EntityInstance),
	}
}

// AddMeasure stores a measure under its name. The measure must not be
// modified after it is added.
func (m *Metadata) AddMeasure(measure *domain.Measure) error {
	if measure == nil {
		return fmt.Errorf("%w: nil measure", domain.ErrInvalidMeasure)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.measures[measure.Name]; ok {
		return ports.NewRepositoryError("measure", measure.Name, ErrDuplicate)
	}
	m.measures[measure.Name] = measure
	return nil
}

// AddSubset stores a subset under its id.
func (m *Metadata) AddSubset(subset domain.Subset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subsets[subset.ID]; ok {
		return ports.NewRepositoryError("subset", subset.ID, ErrDuplicate)
	}
	m.subsets[subset.ID] = subset
	return nil
}

// AddAverage stores an averaging descriptor under its id.
func (m *Metadata) AddAverage(average domain.AverageDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.averages[average.AverageID]; ok {
		return ports.NewRepositoryError("average", average.AverageID, ErrDuplicate)
	}
	m.averages[average.AverageID] = average
	return nil
}

// AddEntityInstance stores an instance of entityType.
func (m *Metadata) AddEntityInstance(entityType domain.EntityType, instance domain.EntityInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.entities[entityType]
	if !ok {
		byID = make(map[int]domain.EntityInstance)
		m.entities[entityType] = byID
	}
	if _, ok := byID[instance.ID]; ok {
		return ports.NewRepositoryError(string(entityType), strconv.Itoa(instance.ID), ErrDuplicate)
	}
	byID[instance.ID] = instance
	return nil
}

// Measure implements ports.MeasureRepository.
func (m *Metadata) Measure(ctx context.Context, name string) (*domain.Measure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	measure, ok := m.measures[name]
	if !ok {
		return nil, ports.NewRepositoryError("measure", name, ports.ErrNotFound)
	}
	return measure, nil
}

// Subset implements ports.SubsetRepository.
func (m *Metadata) Subset(ctx context.Context, id string) (domain.Subset, error) {
	if err := ctx.Err(); err != nil {
		return domain.Subset{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	subset, ok := m.subsets[id]
	if !ok {
		return domain.Subset{}, ports.NewRepositoryError("subset", id, ports.ErrNotFound)
	}
	return subset, nil
}

// Average implements ports.AverageRepository.
func (m *Metadata) Average(ctx context.Context, id string) (domain.AverageDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return domain.AverageDescriptor{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	average, ok := m.averages[id]
	if !ok {
		return domain.AverageDescriptor{}, ports.NewRepositoryError("average", id, ports.ErrNotFound)
	}
	return average, nil
}

// Averages implements ports.AverageRepository, ordered by id.
func (m *Metadata) Averages(ctx context.Context) ([]domain.AverageDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.SortedFunc(maps.Values(m.averages), func(a, b domain.AverageDescriptor) int {
		return cmp.Compare(a.AverageID, b.AverageID)
	}), nil
}

// Instance implements ports.EntityRepository.
func (m *Metadata) Instance(ctx context.Context, entityType domain.EntityType, id int) (domain.EntityInstance, error) {
	if err := ctx.Err(); err != nil {
		return domain.EntityInstance{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	instance, ok := m.entities[entityType][id]
	if !ok {
		return domain.EntityInstance{}, ports.NewRepositoryError(string(entityType), strconv.Itoa(id), ports.ErrNotFound)
	}
	return instance, nil
}

// Instances implements ports.EntityRepository, ordered by id. An unknown
// entity type has no instances.
func (m *Metadata) Instances(ctx context.Context, entityType domain.EntityType) ([]domain.EntityInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.SortedFunc(maps.Values(m.entities[entityType]), func(a, b domain.EntityInstance) int {
		return cmp.Compare(a.ID, b.ID)
	}), nil
}
