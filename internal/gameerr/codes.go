// Package gameerr provides the machine-readable error taxonomy for game
// operations. Every player-facing failure carries one of these codes so
// callers can react without parsing messages.
package gameerr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeNotFound indicates an unknown object, era, placement, or key.
	CodeNotFound Code = "NOT_FOUND"
	// CodeForbidden indicates the player has not discovered the object.
	CodeForbidden Code = "FORBIDDEN"
	// CodeInsufficientFunds indicates a balance below the required cost.
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	// CodeCapReached indicates the per-owner placement cap is exhausted.
	CodeCapReached Code = "CAP_REACHED"
	// CodeSpaceOccupied indicates the target footprint overlaps a placement.
	CodeSpaceOccupied Code = "SPACE_OCCUPIED"
	// CodeOutOfBounds indicates the target footprint leaves the canvas.
	CodeOutOfBounds Code = "OUT_OF_BOUNDS"
	// CodeAlreadyUnlocked indicates the era is already unlocked.
	CodeAlreadyUnlocked Code = "ALREADY_UNLOCKED"
	// CodeInvalidEra indicates an era name missing from the era table.
	CodeInvalidEra Code = "INVALID_ERA"
	// CodeEraMismatch indicates a cross-era crafting attempt.
	CodeEraMismatch Code = "ERA_MISMATCH"
	// CodeRateLimited indicates a rejected discovery quota check.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodeUpstreamGenerationFailed indicates the generation service errored.
	CodeUpstreamGenerationFailed Code = "UPSTREAM_GENERATION_FAILED"
	// CodeMalformedUpstreamResponse indicates an unparseable generation response.
	CodeMalformedUpstreamResponse Code = "MALFORMED_UPSTREAM_RESPONSE"
)

// Error is a domain error with a machine-readable code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a domain error wrapping an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}
