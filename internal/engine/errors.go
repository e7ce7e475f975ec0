package engine

import (
	"github.com/roach88/roastery/internal/domain"
)

// classify passes domain errors through and reports anything else as
// STORAGE_UNAVAILABLE. Callers above the engine only see domain codes.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.CodeOf(err) != "" {
		return err
	}
	return domain.NewStorageUnavailable(op, err)
}

// IsRetryable reports whether err is a transient failure worth retrying.
// Only STORAGE_UNAVAILABLE qualifies; every other code is a definitive answer.
func IsRetryable(err error) bool {
	return domain.CodeOf(err) == domain.CodeStorageUnavailable
}
