package application

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-tabulate/infrastructure/aggregators"
	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

// ProfileResultsCalculator produces flattened category results for two
// entity yes/no measures, such as brand imagery by attribute. Measures
// sharing a base are fetched with one weighted query.
type ProfileResultsCalculator struct {
	subsets  ports.SubsetRepository
	averages ports.AverageRepository
	entities ports.EntityRepository
	querier  ports.ProfileQuerier
	metrics  ports.MetricsCollector
	logger   *slog.Logger

	// queries collapses identical group queries issued concurrently.
	queries singleflight.Group
}

// NewProfileResultsCalculator creates a calculator. metrics and logger may
// be nil.
func NewProfileResultsCalculator(
	subsets ports.SubsetRepository,
	averages ports.AverageRepository,
	entities ports.EntityRepository,
	querier ports.ProfileQuerier,
	metrics ports.MetricsCollector,
	logger *slog.Logger,
) (*ProfileResultsCalculator, error) {
	if subsets == nil || averages == nil || entities == nil || querier == nil {
		return nil, fmt.Errorf("profile calculator requires subset, average and entity repositories and a querier")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileResultsCalculator{
		subsets:  subsets,
		averages: averages,
		entities: entities,
		querier:  querier,
		metrics:  metrics,
		logger:   logger.With("component", "profile_calculator"),
	}, nil
}

// measureGroup is a set of measures sharing a base field and base values.
type measureGroup struct {
	key        string
	baseField  *domain.Field
	baseValues []int
	measures   []*domain.Measure
}

type rowKey struct {
	measure string
	brand   int
	other   int
}

// GetResults returns one CategoryResult per measure and other-entity
// instance for activeBrand. AverageValue is the mean result over
// brandsToIncludeInAverage and is nil when that list is empty.
//
// Input problems are reported before any data is fetched: measures that
// are not yes/no over exactly two entity types, varcodes colliding within
// a base group, and periods with other than one span.
func (c *ProfileResultsCalculator) GetResults(
	ctx context.Context,
	measures []*domain.Measure,
	subsetID string,
	comparisonDates domain.CalculationPeriod,
	averageName string,
	brandsToIncludeInAverage []int,
	activeBrand int,
	organisation string,
) ([]domain.CategoryResult, error) {
	start := time.Now()

	groups, err := groupProfileMeasures(measures)
	if err != nil {
		return nil, err
	}
	if err := comparisonDates.Validate(); err != nil {
		return nil, err
	}
	if len(comparisonDates.Spans) != 1 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrMultipleSpans, len(comparisonDates.Spans))
	}

	subset, err := c.subsets.Subset(ctx, subsetID)
	if err != nil {
		return nil, err
	}
	average, err := c.resolveAverage(ctx, averageName)
	if err != nil {
		return nil, err
	}

	names, others, err := c.resolveInstances(ctx, measures)
	if err != nil {
		return nil, err
	}

	brands := append([]int{activeBrand}, brandsToIncludeInAverage...)
	slices.Sort(brands)
	brands = slices.Compact(brands)

	rowsByGroup := make([][]ports.ProfileRow, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		g.Go(func() error {
			query := ports.ProfileQuery{
				SubsetID:       subset.ID,
				Span:           comparisonDates.Spans[0],
				Average:        average,
				BaseField:      group.baseField,
				BaseValues:     group.baseValues,
				Measures:       group.measures,
				BrandIDs:       brands,
				Organisation:   organisation,
				OtherInstances: others,
			}
			rows, err := c.query(gctx, query, group.key)
			if err != nil {
				return err
			}
			rowsByGroup[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []domain.CategoryResult
	for i, group := range groups {
		mapped, err := mapProfileRows(group, rowsByGroup[i], names, activeBrand, brandsToIncludeInAverage)
		if err != nil {
			return nil, err
		}
		results = append(results, mapped...)
	}

	if c.metrics != nil {
		labels := map[string]string{"stage": "profile"}
		c.metrics.RecordLatency("profile_results", time.Since(start), labels)
		c.metrics.RecordHistogram("profile_rows", float64(len(results)), labels)
	}
	c.logger.DebugContext(ctx, "profile results calculated",
		"subset", subset.ID,
		"average", average.AverageID,
		"groups", len(groups),
		"results", len(results),
	)
	return results, nil
}

// query runs one group query, sharing the call with any identical query
// already in flight.
func (c *ProfileResultsCalculator) query(ctx context.Context, q ports.ProfileQuery, groupKey string) ([]ports.ProfileRow, error) {
	key := strings.Join([]string{
		q.SubsetID,
		q.Span.StartDate.Format(time.DateOnly),
		q.Span.EndDate.Format(time.DateOnly),
		q.Average.AverageID,
		q.Organisation,
		groupKey,
		fmt.Sprint(q.BrandIDs),
		measureNames(q.Measures),
	}, "|")

	v, err, shared := c.queries.Do(key, func() (any, error) {
		return c.querier.QueryWeighted(ctx, q)
	})
	if err != nil {
		return nil, ports.NewQueryError("profile", groupKey, err)
	}
	if shared {
		c.logger.DebugContext(ctx, "profile query shared", "group", groupKey)
	}
	return v.([]ports.ProfileRow), nil
}

// groupProfileMeasures validates measures and groups them by base, in
// order of first appearance.
func groupProfileMeasures(measures []*domain.Measure) ([]measureGroup, error) {
	fold := cases.Fold()
	var groups []measureGroup
	index := make(map[string]int)
	varcodes := make(map[string]map[string]string)

	for _, m := range measures {
		if m == nil {
			return nil, fmt.Errorf("%w: nil profile measure", domain.ErrInvalidMeasure)
		}
		if m.CalculationType != domain.CalculationYesNo || len(m.EntityCombination) != 2 {
			return nil, domain.NewConfigurationError(m.Name, "",
				fmt.Errorf("%w: profile measures must be yes_no over two entity types, got %s over %d",
					domain.ErrInvalidMeasure, m.CalculationType, len(m.EntityCombination)))
		}

		key := baseKey(m)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, measureGroup{key: key, baseField: m.BaseField, baseValues: m.BaseValues})
			varcodes[key] = make(map[string]string)
		}

		code := m.VarCode
		if code == "" {
			code = m.Name
		}
		folded := fold.String(code)
		if other, dup := varcodes[key][folded]; dup {
			return nil, domain.NewConfigurationError(m.Name, "",
				fmt.Errorf("%w: %q clashes with measure %s in base group %s", domain.ErrVarCodeCollision, code, other, key))
		}
		varcodes[key][folded] = m.Name
		groups[i].measures = append(groups[i].measures, m)
	}
	return groups, nil
}

func baseKey(m *domain.Measure) string {
	if m.BaseField == nil {
		return "*"
	}
	values := slices.Clone(m.BaseValues)
	slices.Sort(values)
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return m.BaseField.Name + "=" + strings.Join(parts, ",")
}

func measureNames(measures []*domain.Measure) string {
	names := make([]string, len(measures))
	for i, m := range measures {
		names[i] = m.Name
	}
	return strings.Join(names, ",")
}

// resolveAverage finds an average by id or display name, ignoring case.
// Unknown names fail with the closest configured name as a suggestion.
func (c *ProfileResultsCalculator) resolveAverage(ctx context.Context, name string) (domain.AverageDescriptor, error) {
	averages, err := c.averages.Averages(ctx)
	if err != nil {
		return domain.AverageDescriptor{}, err
	}

	fold := cases.Fold()
	want := fold.String(name)
	for _, a := range averages {
		if fold.String(a.AverageID) == want || (a.DisplayName != "" && fold.String(a.DisplayName) == want) {
			return a, nil
		}
	}

	suggestion, best := "", -1
	for _, a := range averages {
		for _, candidate := range []string{a.AverageID, a.DisplayName} {
			if candidate == "" {
				continue
			}
			if d := levenshtein.ComputeDistance(want, fold.String(candidate)); best < 0 || d < best {
				suggestion, best = candidate, d
			}
		}
	}
	err = ports.ErrNotFound
	if suggestion != "" {
		err = fmt.Errorf("%w (did you mean %q?)", ports.ErrNotFound, suggestion)
	}
	return domain.AverageDescriptor{}, ports.NewRepositoryError("average", name, err)
}

// resolveInstances loads the instances of every entity type the measures
// use. It returns names by type and id, and the ids of each second entity
// type for the query.
func (c *ProfileResultsCalculator) resolveInstances(
	ctx context.Context,
	measures []*domain.Measure,
) (map[domain.EntityType]map[int]string, map[domain.EntityType][]int, error) {
	names := make(map[domain.EntityType]map[int]string)
	others := make(map[domain.EntityType][]int)
	for _, m := range measures {
		for pos, t := range m.EntityCombination {
			if _, done := names[t]; !done {
				instances, err := c.entities.Instances(ctx, t)
				if err != nil {
					return nil, nil, err
				}
				byID := make(map[int]string, len(instances))
				for _, inst := range instances {
					byID[inst.ID] = inst.Name
				}
				names[t] = byID
			}
			if pos == 1 {
				if _, done := others[t]; !done {
					ids := make([]int, 0, len(names[t]))
					for id := range names[t] {
						ids = append(ids, id)
					}
					slices.Sort(ids)
					others[t] = ids
				}
			}
		}
	}
	return names, others, nil
}

// mapProfileRows turns a group's rows into category results for the
// active brand, ordered by measure then other instance id.
func mapProfileRows(
	group measureGroup,
	rows []ports.ProfileRow,
	names map[domain.EntityType]map[int]string,
	activeBrand int,
	averageBrands []int,
) ([]domain.CategoryResult, error) {
	byKey := make(map[rowKey]ports.ProfileRow, len(rows))
	for _, r := range rows {
		byKey[rowKey{r.MeasureName, r.BrandID, r.OtherInstanceID}] = r
	}

	var results []domain.CategoryResult
	for _, m := range group.measures {
		brandType, otherType := m.EntityCombination[0], m.EntityCombination[1]
		if _, ok := names[brandType][activeBrand]; !ok {
			return nil, ports.NewRepositoryError(string(brandType), strconv.Itoa(activeBrand), ports.ErrNotFound)
		}

		var active []ports.ProfileRow
		for _, r := range rows {
			if r.MeasureName == m.Name && r.BrandID == activeBrand {
				active = append(active, r)
			}
		}
		slices.SortFunc(active, func(a, b ports.ProfileRow) int { return cmp.Compare(a.OtherInstanceID, b.OtherInstanceID) })

		for _, r := range active {
			name, ok := names[otherType][r.OtherInstanceID]
			if !ok {
				return nil, ports.NewRepositoryError(string(otherType), strconv.Itoa(r.OtherInstanceID), ports.ErrNotFound)
			}
			result, err := aggregators.ApplyCalculationType(m, r.WeightedValueTotal, r.WeightedSampleCount)
			if err != nil {
				return nil, err
			}
			averageValue, err := averageOverBrands(m, byKey, averageBrands, r.OtherInstanceID)
			if err != nil {
				return nil, err
			}
			results = append(results, domain.CategoryResult{
				MeasureName:                 m.Name,
				EntityInstanceName:          name,
				Result:                      result,
				AverageValue:                averageValue,
				BaseVariableConfigurationID: m.BaseVariableConfigurationID,
			})
		}
	}
	return results, nil
}

// averageOverBrands is the mean of the brands' results at one other
// instance. Brands without a row count as zero.
func averageOverBrands(m *domain.Measure, rows map[rowKey]ports.ProfileRow, brands []int, other int) (*float64, error) {
	if len(brands) == 0 {
		return nil, nil
	}
	var sum float64
	for _, b := range brands {
		r := rows[rowKey{m.Name, b, other}]
		v, err := aggregators.ApplyCalculationType(m, r.WeightedValueTotal, r.WeightedSampleCount)
		if err != nil {
			return nil, err
		}
		sum += v
	}
	mean := sum / float64(len(brands))
	return &mean, nil
}
