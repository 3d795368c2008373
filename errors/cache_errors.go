// engine/errors/cache_errors.go
package errors

import "errors"

var (
	ErrStoreUnavailable  = errors.New("remote store unavailable")
	ErrInvalidationRace  = errors.New("cache entry invalidated during repopulation")
	ErrInvalidCacheLevel = errors.New("invalid cache level")
	ErrUnknownDimension  = errors.New("unknown invalidation dimension")
	ErrResolverFailure   = errors.New("source-of-truth resolution failed")
	ErrInternalServer    = errors.New("internal server error")
	ErrInvalidRequest    = errors.New("invalid request data")
)
