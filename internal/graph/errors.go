package graph

import (
	"errors"

	"boomscore/identity/internal/service"
)

const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeConflict        = "CONFLICT"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL"
)

// codedError carries a machine-readable code into the response's extensions.
type codedError struct {
	message string
	code    string
}

func (e codedError) Error() string {
	return e.message
}

func (e codedError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

var errUnauthenticated = codedError{message: "authentication required", code: CodeUnauthenticated}

func (s *Server) toGraphError(err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return codedError{message: err.Error(), code: CodeBadUserInput}
	case errors.Is(err, service.ErrDuplicateEmail):
		return codedError{message: "email already registered", code: CodeConflict}
	case errors.Is(err, service.ErrDuplicateUsername):
		return codedError{message: "username already taken", code: CodeConflict}
	case errors.Is(err, service.ErrDuplicateAccount):
		return codedError{message: "account already exists", code: CodeConflict}
	case errors.Is(err, service.ErrInvalidCredentials):
		return codedError{message: "invalid email or password", code: CodeUnauthenticated}
	case errors.Is(err, service.ErrUnauthorized):
		return errUnauthenticated
	case errors.Is(err, service.ErrAccountInactive):
		return codedError{message: "account is not active", code: CodeUnauthenticated}
	case errors.Is(err, service.ErrDeviceBlocked):
		return codedError{message: "this device has been blocked", code: CodeForbidden}
	case errors.Is(err, service.ErrForbidden):
		return codedError{message: "forbidden", code: CodeForbidden}
	case errors.Is(err, service.ErrNotFound):
		return codedError{message: "not found", code: CodeNotFound}
	}
	s.log.Error().Err(err).Msg("graphql resolver failed")
	return codedError{message: "internal server error", code: CodeInternal}
}
