package cacheinfra

import (
	"github.com/goliatone/go-errors"
)

// CategoryConfiguration marks errors raised while building a cache or adapter.
// They are reported at construction time, never from a cached call.
const CategoryConfiguration errors.Category = "configuration"

// NewConfigurationError builds a configuration error with an optional metadata map.
func NewConfigurationError(message string, meta ...map[string]any) *errors.Error {
	return errors.New(message, CategoryConfiguration).
		WithTextCode("INVALID_CONFIGURATION").
		WithMetadata(meta...)
}

// IsConfigurationError reports whether err was raised while building a cache,
// an invoker or an adapter.
func IsConfigurationError(err error) bool {
	return errors.HasCategory(err, CategoryConfiguration)
}

// ErrNilFetchFunc is returned when a lookup is made without a fetch function.
var ErrNilFetchFunc = errors.New("fetch function cannot be nil", errors.CategoryBadInput).
	WithTextCode("NIL_FETCH_FUNC")
