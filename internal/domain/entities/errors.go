package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is.
var (
	ErrValidation           = errors.New("validation failed")
	ErrDuplicateAlias       = errors.New("alias already exists")
	ErrDuplicateAffiliation = errors.New("affiliation already exists")
	ErrNotFound             = errors.New("not found")
	ErrUnresolved           = errors.New("mention could not be resolved")
	ErrProviderRateLimited  = errors.New("provider rate limited")
	ErrProviderFailed       = errors.New("provider request failed")
	ErrProviderThrottled    = errors.New("provider call held back by local pacer")
	ErrStorageUnavailable   = errors.New("storage unavailable")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ProviderError wraps a failed call to an external lookup provider.
type ProviderError struct {
	Provider    string
	HTTPCode    int
	RateLimited bool
	Err         error
}

func (e *ProviderError) Error() string {
	if e.HTTPCode != 0 {
		return fmt.Sprintf("provider %s: http %d: %v", e.Provider, e.HTTPCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	if target == ErrProviderRateLimited {
		return e.RateLimited
	}
	return target == ErrProviderFailed
}
