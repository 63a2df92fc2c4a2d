package testutils

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

// NewTestValidator returns the validator used for survey datasets. It is
// built once; validator.Validate is safe for concurrent use.
var NewTestValidator = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})
