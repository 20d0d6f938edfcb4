package errors

import (
	"context"
	"fmt"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewLockedEntityError creates the error returned when a tenant attempts to
// mutate an entity frozen by a privileged override. Raised locally, before
// any network call is attempted.
func NewLockedEntityError(id string) *AppError {
	return New(ErrCodeEntityLocked, "entity is locked by a platform override").
		WithContext("message_id", id).
		WithUserMessage("This message was locked by a platform administrator and can no longer be changed")
}

// NewMutationTimeoutError creates the error surfaced when a mutation call
// exceeded its hard timeout and the optimistic projection was rolled back.
func NewMutationTimeoutError(id string, err error) *AppError {
	return Wrap(err, ErrCodeMutationTimeout, "status update timed out").
		WithContext("message_id", id).
		WithUserMessage("The update took too long and was undone, please try again")
}

// NewMutationRejectedError creates the error surfaced when the server
// refused a mutation for business reasons.
func NewMutationRejectedError(id string, err error) *AppError {
	return Wrap(err, ErrCodeMutationRejected, "status update rejected by server").
		WithContext("message_id", id).
		WithUserMessage("The update was rejected and has been undone")
}

// NewChannelUnavailableError creates the non-fatal error raised when the
// push channel cannot be used. Callers fall back to polling on triggers.
func NewChannelUnavailableError(reason string) *AppError {
	return New(ErrCodeChannelUnavailable, "push channel unavailable").
		WithContext("reason", reason)
}

// NewRoomJoinError creates the error raised when a room subscription failed.
func NewRoomJoinError(room string, err error) *AppError {
	return Wrap(err, ErrCodeRoomJoinFailed, fmt.Sprintf("failed to join room %s", room)).
		WithContext("room", room)
}

// NewAPIError creates an error for query/mutation service calls. Server-side
// and throttling failures are retryable.
func NewAPIError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeFeedbackAPI, "feedback API call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == 429 || statusCode == 408 {
		appErr.Retryable = true
	}

	return appErr
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}

// IsMutationFailure reports whether err is one of the mutation outcomes that
// already triggered a rollback.
func IsMutationFailure(err error) bool {
	code := GetCode(err)
	return code == ErrCodeMutationTimeout || code == ErrCodeMutationRejected || code == ErrCodeEntityLocked
}

// WithContextFromRequest adds request context to an error
func WithContextFromRequest(err *AppError, ctx context.Context) *AppError {
	if err == nil || ctx == nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		err = err.WithContext("deadline", deadline)
	}
	return err
}
