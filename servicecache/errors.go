package servicecache

import (
	"github.com/goliatone/go-errors"
)

var (
	// ErrUnknownOperation is returned by Call and CallAsync for names the adapter does not expose.
	ErrUnknownOperation = errors.New("unknown operation", errors.CategoryBadInput).
		WithTextCode("UNKNOWN_OPERATION")

	// ErrInvalidArguments is returned when call arguments do not match the operation
	// parameters. The cache is not consulted.
	ErrInvalidArguments = errors.New("invalid arguments", errors.CategoryBadInput).
		WithTextCode("INVALID_ARGUMENTS")
)
