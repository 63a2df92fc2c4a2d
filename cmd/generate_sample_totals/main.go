package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ahrav/go-tabulate/infrastructure/repository"
	"github.com/ahrav/go-tabulate/infrastructure/significance"
	"github.com/ahrav/go-tabulate/internal/application"
	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
	"github.com/ahrav/go-tabulate/internal/testutils"
)

const subsetID = "UK"

var averages = map[string]domain.AverageDescriptor{
	"monthly": {
		AverageID:                "monthly",
		DisplayName:              "Monthly",
		TotalisationPeriodUnit:   domain.TotalisationMonth,
		MakeUpTo:                 domain.MakeUpToMonthEnd,
		NumberOfPeriodsInAverage: 1,
	},
	"quarterly": {
		AverageID:              "quarterly",
		DisplayName:            "Quarterly",
		TotalisationPeriodUnit: domain.TotalisationMonth,
		MakeUpTo:               domain.MakeUpToQuarterEnd,
	},
	"rolling": {
		AverageID:                "rolling",
		DisplayName:              "3 month rolling",
		TotalisationPeriodUnit:   domain.TotalisationMonth,
		MakeUpTo:                 domain.MakeUpToMonthEnd,
		NumberOfPeriodsInAverage: 3,
	},
}

type output struct {
	Metadata   testutils.DatasetMetadata                      `json:"metadata"`
	Statistics *testutils.DatasetStatistics                   `json:"statistics"`
	Average    domain.AverageDescriptor                       `json:"average"`
	Totals     map[string][]domain.EntityTotalsSeries         `json:"totals"`
	Results    map[string][]domain.EntityWeightedDailyResults `json:"results"`
	Profile    []domain.CategoryResult                        `json:"profile"`
}

func main() {
	var (
		respondents = flag.Int("respondents", testutils.DefaultRespondents, "Number of respondents to generate")
		months      = flag.Int("months", 6, "Number of fieldwork months")
		startFlag   = flag.String("start", "2024-01", "First fieldwork month (YYYY-MM)")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		averageID   = flag.String("average", "quarterly", "Average to calculate: monthly, quarterly or rolling")
		outputPath  = flag.String("output", "testdata/sample_totals/sample_totals.json", "Output file path")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	start, err := time.Parse("2006-01", *startFlag)
	if err != nil {
		log.Fatalf("Invalid start month: %v", err)
	}
	average, ok := averages[*averageID]
	if !ok {
		log.Fatalf("Unknown average %q", *averageID)
	}

	cfg := testutils.DefaultGeneratorConfig()
	cfg.Respondents = *respondents
	cfg.Start = start
	cfg.Months = *months
	cfg.Seed = *seed
	dataset := testutils.GenerateSurveyDataset(cfg)
	if err := testutils.ValidateSurveyDataset(dataset); err != nil {
		log.Fatalf("Generated dataset is invalid: %v", err)
	}

	out, err := calculate(context.Background(), dataset, average, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to calculate results: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal results: %v", err)
	}
	if err := os.WriteFile(*outputPath, data, 0o644); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}

	fmt.Printf("Generated sample totals:\n")
	fmt.Printf("- Path: %s\n", *outputPath)
	fmt.Printf("- Respondents: %d\n", out.Statistics.TotalRespondents)
	fmt.Printf("- Months: %v\n", out.Statistics.Months())
	fmt.Printf("- Total weight: %.2f\n", out.Statistics.TotalWeight)
	fmt.Printf("- Average: %s\n", average.AverageID)
	fmt.Printf("- Measures: %d, profile rows: %d\n", len(out.Results), len(out.Profile))
}

func calculate(
	ctx context.Context,
	dataset *testutils.SurveyDataset,
	average domain.AverageDescriptor,
	cfg testutils.GeneratorConfig,
	logger *slog.Logger,
) (*output, error) {
	responses, err := dataset.DomainResponses()
	if err != nil {
		return nil, err
	}
	store := repository.NewResponseStore()
	store.Add(subsetID, responses...)

	metadata := repository.NewMetadata()
	if err := metadata.AddSubset(domain.Subset{ID: subsetID, DisplayName: "United Kingdom"}); err != nil {
		return nil, err
	}
	if err := metadata.AddAverage(average); err != nil {
		return nil, err
	}
	for _, b := range dataset.Brands {
		if err := metadata.AddEntityInstance(testutils.EntityBrand, b); err != nil {
			return nil, err
		}
	}
	for _, a := range dataset.Aspects {
		if err := metadata.AddEntityInstance(testutils.EntityAspect, a); err != nil {
			return nil, err
		}
	}

	period, err := domain.NewCalculationPeriod(domain.CalculationPeriodSpan{
		StartDate: cfg.Start,
		EndDate:   cfg.Start.AddDate(0, cfg.Months, -1),
	})
	if err != nil {
		return nil, err
	}

	tester, err := significance.NewTester(significance.DefaultConfig())
	if err != nil {
		return nil, err
	}
	factory, err := application.NewCalculationStageFactory(
		application.NewDefaultAggregatorRegistry(),
		application.WithLogger(logger),
		application.WithSignificance(tester),
	)
	if err != nil {
		return nil, err
	}

	out := &output{
		Metadata:   dataset.Metadata,
		Statistics: testutils.ComputeDatasetStatistics(dataset),
		Average:    average,
		Totals:     make(map[string][]domain.EntityTotalsSeries),
		Results:    make(map[string][]domain.EntityWeightedDailyResults),
	}

	subset, err := metadata.Subset(ctx, subsetID)
	if err != nil {
		return nil, err
	}

	var profileMeasures []*domain.Measure
	for _, m := range testutils.SurveyMeasures() {
		if len(m.EntityCombination) > 1 {
			profileMeasures = append(profileMeasures, m)
			continue
		}
		totals, err := store.Totals(ctx, ports.TotalsRequest{
			SubsetID:  subsetID,
			Measure:   m,
			Average:   average,
			Period:    period,
			Instances: dataset.Brands,
		})
		if err != nil {
			return nil, fmt.Errorf("totals for %s: %w", m.Name, err)
		}
		results, err := factory.CreateFinalResult(ctx, subset, average, period, m, totals, dataset.Brands)
		if err != nil {
			return nil, err
		}
		out.Totals[m.Name] = totals
		out.Results[m.Name] = results
	}

	profile, err := application.NewProfileResultsCalculator(metadata, metadata, metadata, store, nil, logger)
	if err != nil {
		return nil, err
	}
	brandIDs := make([]int, len(dataset.Brands))
	for i, b := range dataset.Brands {
		brandIDs[i] = b.ID
	}
	out.Profile, err = profile.GetResults(ctx, profileMeasures, subsetID, period, average.AverageID, brandIDs, brandIDs[0], "synthetic")
	if err != nil {
		return nil, fmt.Errorf("profile results: %w", err)
	}

	logger.Info("sample totals calculated",
		"respondents", len(responses),
		"measures", len(out.Results),
		"profile_rows", len(out.Profile),
	)
	return out, nil
}
