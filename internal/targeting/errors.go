package targeting

import (
	"errors"
	"fmt"
)

// ErrInvalidDataFormat is matched by every scene validation failure.
var ErrInvalidDataFormat = errors.New("invalid data format")

// ValidationError describes why a scene payload was rejected.
type ValidationError struct {
	Reason string
	Err    error
}

func newValidationError(reason string, cause error) *ValidationError {
	return &ValidationError{Reason: reason, Err: cause}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrInvalidDataFormat, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidDataFormat, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInvalidDataFormat) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDataFormat
}

// AsValidationError returns err as a *ValidationError, wrapping it when needed.
func AsValidationError(err error) *ValidationError {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return newValidationError("malformed payload", err)
}
