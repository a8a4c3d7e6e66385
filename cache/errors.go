package cache

import "github.com/goliatone/go-service-cache/internal/cacheinfra"

// CategoryConfiguration is the go-errors category of construction-time failures.
const CategoryConfiguration = cacheinfra.CategoryConfiguration

// ErrNilFetchFunc is returned when a lookup is made without a fetch function.
var ErrNilFetchFunc = cacheinfra.ErrNilFetchFunc

// NewConfigurationError builds an error in CategoryConfiguration.
func NewConfigurationError(message string, meta ...map[string]any) error {
	return cacheinfra.NewConfigurationError(message, meta...)
}

// IsConfigurationError reports whether err was raised while building a cache,
// an invoker or an adapter.
func IsConfigurationError(err error) bool {
	return cacheinfra.IsConfigurationError(err)
}
