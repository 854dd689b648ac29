package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess     Code = 0
	CodeInternal    Code = 1
	CodeUsage       Code = 2
	CodeAuth        Code = 10
	CodeRateLimited Code = 11
	CodeUnavailable Code = 12
	CodeUnsupported Code = 13
	CodeStale       Code = 14
	CodeBlocked     Code = 16
	CodeConfig      Code = 17
	CodeValidation  Code = 18
	CodeSigner      Code = 19
	CodeSimulation  Code = 20
	CodeTimeout     Code = 21
)

// Kind groups codes into the categories actions report back to the agent.
type Kind string

const (
	KindConfiguration Kind = "configuration_error"
	KindValidation    Kind = "validation_error"
	KindAPI           Kind = "api_error"
	KindInternal      Kind = "internal_error"
)

// Error is a typed error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Configuration(message string) *Error { return New(CodeConfig, message) }

func Validation(message string) *Error { return New(CodeValidation, message) }

func API(message string, cause error) *Error { return Wrap(CodeUnavailable, message, cause) }

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if typed, ok := As(err); ok {
		return int(typed.Code)
	}
	return int(CodeInternal)
}

func KindOf(err error) Kind {
	typed, ok := As(err)
	if !ok {
		return KindInternal
	}
	switch typed.Code {
	case CodeConfig, CodeAuth, CodeSigner:
		return KindConfiguration
	case CodeUsage, CodeValidation:
		return KindValidation
	case CodeRateLimited, CodeUnavailable, CodeUnsupported, CodeStale, CodeSimulation, CodeTimeout:
		return KindAPI
	default:
		return KindInternal
	}
}

// TypeName is the envelope error type for a code.
func TypeName(code Code) string {
	switch code {
	case CodeUsage:
		return "usage_error"
	case CodeAuth:
		return "auth_error"
	case CodeRateLimited:
		return "rate_limited"
	case CodeUnavailable:
		return "unavailable"
	case CodeUnsupported:
		return "unsupported"
	case CodeStale:
		return "stale_data"
	case CodeBlocked:
		return "command_blocked"
	case CodeConfig:
		return "configuration_error"
	case CodeValidation:
		return "validation_error"
	case CodeSigner:
		return "signer_error"
	case CodeSimulation:
		return "simulation_failed"
	case CodeTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}
