package application

import (
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tabulate/internal/domain"
)

// MetadataConfig is the YAML document describing the calculation metadata
// of a survey: subsets, averaging windows, entity instances and measures.
// It is the primary configuration entry point and is turned into an
// in-memory repository by ConfigLoader.
type MetadataConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across system updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the survey.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Subsets are the configured population slices.
	Subsets []domain.Subset `yaml:"subsets" validate:"required,min=1,dive"`
	// Averages are the averaging windows results can be requested for.
	Averages []AverageConfig `yaml:"averages" validate:"required,min=1,dive"`
	// Entities lists the instances of every entity type.
	Entities []EntityConfig `yaml:"entities" validate:"dive"`
	// Measures are the metric definitions.
	Measures []domain.Measure `yaml:"measures" validate:"required,min=1,dive"`
}

// Metadata provides descriptive information about a metadata document.
type Metadata struct {
	// Name is the human-readable identifier of the survey.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains what the survey covers.
	Description string `yaml:"description" validate:"max=1000"`
	// Labels are arbitrary key-value pairs for external systems.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// AverageConfig is an averaging descriptor, optionally pinned to a named
// period aggregator with its own parameters.
type AverageConfig struct {
	domain.AverageDescriptor `yaml:",inline"`

	// Aggregator overrides the aggregator the registry would select from
	// the totalisation unit and make-up-to boundary.
	Aggregator *AggregatorConfig `yaml:"aggregator,omitempty"`
}

// AggregatorConfig names a period aggregator type and its parameters.
type AggregatorConfig struct {
	// Type is a registered aggregator type name.
	Type string `yaml:"type" validate:"required,oneof=noop rep_compatible multi_month"`
	// Parameters contains type-specific configuration as flexible YAML
	// that is validated by the aggregator itself.
	Parameters yaml.Node `yaml:"parameters,omitempty"`
}

// EntityConfig lists the instances of one entity type.
type EntityConfig struct {
	Type      domain.EntityType       `yaml:"type" validate:"required"`
	Instances []domain.EntityInstance `yaml:"instances" validate:"required,min=1,dive"`
}
