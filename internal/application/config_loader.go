package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tabulate/infrastructure/repository"
	"github.com/ahrav/go-tabulate/internal/domain"
)

// ConfigLoader parses, validates and caches metadata configuration,
// building an in-memory repository from each distinct document.
type ConfigLoader struct {
	// validator performs struct tag validation with the custom metadata
	// tags registered.
	validator *validator.Validate
	// registry receives aggregator pins declared on averages.
	registry *DefaultAggregatorRegistry
	// cache stores built repositories indexed by SHA256 hash of the
	// normalised configuration.
	// WARNING: Cached repositories are shared and MUST NOT be mutated.
	cache   map[string]*repository.Metadata
	cacheMu sync.RWMutex
	// sf prevents duplicate builds when several goroutines load the same
	// document at once.
	sf singleflight.Group
}

// NewConfigLoader creates a loader. Aggregator pins in loaded documents
// are registered with registry, which may be nil when documents declare
// none.
func NewConfigLoader(registry *DefaultAggregatorRegistry) (*ConfigLoader, error) {
	v := validator.New()

	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &ConfigLoader{
		validator: v,
		registry:  registry,
		cache:     make(map[string]*repository.Metadata),
	}, nil
}

// LoadFromFile loads metadata from a YAML file.
// WARNING: The returned repository is a cached instance shared by every
// caller loading the same configuration. Callers MUST NOT add records to it.
func (cl *ConfigLoader) LoadFromFile(ctx context.Context, path string) (*repository.Metadata, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return cl.load(ctx, data)
}

// LoadFromReader loads metadata from r. The same caching rules as
// LoadFromFile apply.
func (cl *ConfigLoader) LoadFromReader(ctx context.Context, r io.Reader) (*repository.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	return cl.load(ctx, data)
}

func (cl *ConfigLoader) load(ctx context.Context, data []byte) (*repository.Metadata, error) {
	config, err := cl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Hash the normalised config so formatting differences share a cache entry.
	hash, err := cl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if md, ok := cl.getCached(hash); ok {
			return md, nil
		}

		if err := cl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		md, err := cl.buildRepository(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to build repository: %w", err)
		}

		cl.cacheRepository(hash, md)
		return md, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*repository.Metadata), nil
}

// parseYAML decodes strictly so misspelt keys are rejected rather than
// silently ignored.
func (cl *ConfigLoader) parseYAML(data []byte) (*MetadataConfig, error) {
	var config MetadataConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

func (cl *ConfigLoader) validateConfig(config *MetadataConfig) error {
	if err := cl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}

	if err := cl.validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}

	return nil
}

// validateSemantics checks rules struct tags cannot express: unique keys,
// measures referring only to declared entity types, usable normalisation
// ranges and valid aggregator parameters. Every violation is reported.
func (cl *ConfigLoader) validateSemantics(config *MetadataConfig) error {
	verr := domain.NewValidationError("metadata " + config.Metadata.Name)

	subsetIDs := make(map[string]struct{}, len(config.Subsets))
	for _, s := range config.Subsets {
		if _, dup := subsetIDs[s.ID]; dup {
			verr.AddError(fmt.Sprintf("duplicate subset ID %q", s.ID))
		}
		subsetIDs[s.ID] = struct{}{}
	}

	averageIDs := make(map[string]struct{}, len(config.Averages))
	for _, a := range config.Averages {
		if _, dup := averageIDs[a.AverageID]; dup {
			verr.AddError(fmt.Sprintf("duplicate average ID %q", a.AverageID))
		}
		averageIDs[a.AverageID] = struct{}{}

		if a.Aggregator != nil {
			if err := ValidateAggregatorParameters(a.Aggregator.Type, a.Aggregator.Parameters); err != nil {
				verr.AddError(fmt.Sprintf("average %q aggregator: %v", a.AverageID, err))
			}
		}
	}

	entityTypes := make(map[domain.EntityType]struct{}, len(config.Entities))
	for _, e := range config.Entities {
		if _, dup := entityTypes[e.Type]; dup {
			verr.AddError(fmt.Sprintf("duplicate entity type %q", e.Type))
		}
		entityTypes[e.Type] = struct{}{}
	}

	measureNames := make(map[string]struct{}, len(config.Measures))
	for _, m := range config.Measures {
		if _, dup := measureNames[m.Name]; dup {
			verr.AddError(fmt.Sprintf("duplicate measure name %q", m.Name))
		}
		measureNames[m.Name] = struct{}{}

		for i, t := range m.EntityCombination {
			if _, ok := entityTypes[t]; !ok {
				verr.AddError(fmt.Sprintf("measure %q uses undeclared entity type %q", m.Name, t))
			}
			if slices.Contains(m.EntityCombination[:i], t) {
				verr.AddError(fmt.Sprintf("measure %q: %v: duplicate entity type %q", m.Name, domain.ErrInvalidEntityCombination, t))
			}
		}

		if from, _, ok := m.NormalisationRanges(); ok && from.Max == from.Min {
			verr.AddError(fmt.Sprintf("measure %q: pre normalisation range is empty", m.Name))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// buildRepository loads the validated config into a fresh repository and,
// once every record is stored, registers aggregator pins. A failed build
// leaves the registry untouched.
func (cl *ConfigLoader) buildRepository(ctx context.Context, config *MetadataConfig) (*repository.Metadata, error) {
	md := repository.NewMetadata()

	for _, s := range config.Subsets {
		if err := md.AddSubset(s); err != nil {
			return nil, err
		}
	}

	var pins []averagePin
	for _, a := range config.Averages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := md.AddAverage(a.AverageDescriptor); err != nil {
			return nil, err
		}
		if a.Aggregator == nil {
			continue
		}
		if cl.registry == nil {
			return nil, fmt.Errorf("average %q pins an aggregator but the loader has no registry", a.AverageID)
		}
		var params map[string]any
		if a.Aggregator.Parameters.Kind != 0 {
			if err := a.Aggregator.Parameters.Decode(&params); err != nil {
				return nil, fmt.Errorf("failed to decode parameters: %w", err)
			}
		}
		if _, err := cl.registry.CreateNamedAggregator(a.Aggregator.Type, "average:"+a.AverageID, maps.Clone(params)); err != nil {
			return nil, fmt.Errorf("average %q: %w", a.AverageID, err)
		}
		pins = append(pins, averagePin{averageID: a.AverageID, aggregatorType: a.Aggregator.Type, params: params})
	}

	for _, e := range config.Entities {
		for _, inst := range e.Instances {
			if err := md.AddEntityInstance(e.Type, inst); err != nil {
				return nil, err
			}
		}
	}

	for i := range config.Measures {
		m := config.Measures[i]
		if err := md.AddMeasure(&m); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range pins {
		if err := cl.registry.PinAverage(p.averageID, p.aggregatorType, p.params); err != nil {
			return nil, fmt.Errorf("average %q: %w", p.averageID, err)
		}
	}

	return md, nil
}

// averagePin is an aggregator pin held back until the build succeeds.
type averagePin struct {
	averageID      string
	aggregatorType string
	params         map[string]any
}

// calculateConfigHash computes the SHA256 hash of the re-encoded config so
// semantically identical documents hash the same regardless of formatting.
func (cl *ConfigLoader) calculateConfigHash(config *MetadataConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (cl *ConfigLoader) getCached(hash string) (*repository.Metadata, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	md, ok := cl.cache[hash]
	return md, ok
}

func (cl *ConfigLoader) cacheRepository(hash string, md *repository.Metadata) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = md
}

// ClearCache drops every cached repository, forcing subsequent loads to
// rebuild.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*repository.Metadata)
}

// registerCustomValidators registers semantic version validation and the
// metadata validation tags.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}

	if err := RegisterMetadataValidators(v); err != nil {
		return fmt.Errorf("failed to register metadata validators: %w", err)
	}

	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}
