package domain

import "errors"

var (
	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrProviderUnavailable is returned when a provider request fails at
	// the transport level; callers treat it as a miss for that provider
	ErrProviderUnavailable = errors.New("provider request failed")
)
