package inspections

import "errors"

// Pipeline error taxonomy. Each value maps to exactly one HTTP status
// at the request boundary.
var (
	// ErrInvalidInput indicates a malformed or missing request payload.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPayloadTooLarge indicates the decoded image exceeds the size guard.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrQuotaExceeded indicates the caller's monthly inspection cap is reached.
	ErrQuotaExceeded = errors.New("monthly inspection quota exceeded")

	// ErrStorageUnavailable indicates the object store upload failed.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUpstreamUnavailable indicates the model provider could not be reached
	// or returned a generic error.
	ErrUpstreamUnavailable = errors.New("model provider unavailable")

	// ErrUpstreamAuthFailure indicates the model provider rejected our credentials.
	ErrUpstreamAuthFailure = errors.New("model provider authentication failed")

	// ErrInvalidModelOutput indicates the model responded but its payload
	// failed schema validation.
	ErrInvalidModelOutput = errors.New("invalid model output")

	// ErrForbidden indicates the caller does not own the resource or lacks the role.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)
