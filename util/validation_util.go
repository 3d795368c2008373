// engine/util/validation_util.go

package util

import (
	"fmt"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

func (v *ValidationUtil) ValidateCheckRequest(req model.CheckRequest) error {
	if req.PrincipalID == "" {
		return fmt.Errorf("principal id cannot be empty: %w", aegis_errors.ErrInvalidRequest)
	}
	if req.Permission == "" {
		return fmt.Errorf("permission cannot be empty: %w", aegis_errors.ErrInvalidRequest)
	}
	if req.Scope == "" {
		return fmt.Errorf("scope cannot be empty: %w", aegis_errors.ErrInvalidRequest)
	}
	return nil
}

func (v *ValidationUtil) ValidateBatchCheckRequest(req model.BatchCheckRequest) error {
	if len(req.PrincipalIDs) == 0 {
		return fmt.Errorf("batch must name at least one principal: %w", aegis_errors.ErrInvalidRequest)
	}
	if req.Permission == "" {
		return fmt.Errorf("permission cannot be empty: %w", aegis_errors.ErrInvalidRequest)
	}
	if req.Scope == "" {
		return fmt.Errorf("scope cannot be empty: %w", aegis_errors.ErrInvalidRequest)
	}
	return nil
}

func (v *ValidationUtil) ValidateDimensions(dims model.Dimensions) error {
	if len(dims.Pairs()) == 0 {
		return fmt.Errorf("invalidation must carry at least one dimension: %w", aegis_errors.ErrInvalidRequest)
	}
	return nil
}

func (v *ValidationUtil) ValidateCacheLevel(level model.CacheLevel) error {
	if !level.Valid() {
		return fmt.Errorf("cache level %q: %w", level, aegis_errors.ErrInvalidCacheLevel)
	}
	return nil
}
