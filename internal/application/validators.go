package application

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tabulate/infrastructure/aggregators"
	"github.com/ahrav/go-tabulate/internal/domain"
)

// ValidateAggregatorParameters checks YAML parameters for an aggregator
// type by overlaying them onto the type's default configuration.
// Absent parameters are valid.
func ValidateAggregatorParameters(aggregatorType string, params yaml.Node) error {
	if params.Kind == 0 {
		return nil
	}

	var target interface{ UnmarshalParameters(yaml.Node) error }
	var err error
	switch aggregatorType {
	case "noop":
		target, err = aggregators.NewNoOp(aggregatorType, aggregators.NoOpConfig{})
	case "rep_compatible":
		target, err = aggregators.NewRepCompatible(aggregatorType, aggregators.DefaultRepCompatibleConfig())
	case "multi_month":
		target, err = aggregators.NewMultiMonth(aggregatorType, aggregators.DefaultMultiMonthConfig())
	default:
		return fmt.Errorf("unknown aggregator type: %s", aggregatorType)
	}
	if err != nil {
		return err
	}
	return target.UnmarshalParameters(params)
}

// RegisterMetadataValidators registers the custom validation tags used by
// domain and configuration structs.
func RegisterMetadataValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("calctype", validateCalculationType); err != nil {
		return fmt.Errorf("failed to register calctype validator: %w", err)
	}

	if err := v.RegisterValidation("makeupto", validateMakeUpTo); err != nil {
		return fmt.Errorf("failed to register makeupto validator: %w", err)
	}

	return nil
}

// validateCalculationType accepts the calculation types that have a
// result formula.
func validateCalculationType(fl validator.FieldLevel) bool {
	switch domain.CalculationType(fl.Field().String()) {
	case domain.CalculationAverage, domain.CalculationYesNo, domain.CalculationNetPromoterScore:
		return true
	default:
		return false
	}
}

// validateMakeUpTo accepts the known make-up-to boundaries.
func validateMakeUpTo(fl validator.FieldLevel) bool {
	switch domain.MakeUpTo(fl.Field().String()) {
	case domain.MakeUpToDay, domain.MakeUpToMonthEnd, domain.MakeUpToQuarterEnd,
		domain.MakeUpToHalfYearEnd, domain.MakeUpToCalendarYearEnd:
		return true
	default:
		return false
	}
}
