package testutils

import "github.com/ahrav/go-tabulate/internal/domain"

// Dataset size constants
const (
	// MinimumRespondents is the smallest dataset that still yields
	// significance-testable monthly results.
	MinimumRespondents = 30

	// DefaultRespondents is the size used when none is given.
	DefaultRespondents = 1000
)

// Entity types written by the generator.
const (
	EntityBrand  domain.EntityType = "brand"
	EntityAspect domain.EntityType = "aspect"
)

// Field identifiers written by the generator.
const (
	FieldRegion    = "region"
	FieldGender    = "gender"
	FieldAware     = "aware"
	FieldRating    = "rating"
	FieldRecommend = "recommend"
	FieldImagery   = "imagery"
)

// Answer codes
const (
	AnswerYes = 1
	AnswerNo  = 2

	RatingMin = 1
	RatingMax = 10

	RegionCount = 3
)

// Display names for generated instances, used in order.
var (
	BrandNames  = []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta"}
	AspectNames = []string{"Modern", "Trusted", "Good value", "Innovative"}
)
