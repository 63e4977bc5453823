package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration    = "LOOP_CONFIGURATION"
	ErrorMissingParameter = "LOOP_MISSING_PARAMETER"
	ErrorBadInput         = "LOOP_BAD_INPUT"
	ErrorRemote           = "LOOP_REMOTE_ERROR"
	ErrorInvalidData      = "LOOP_INVALID_DATA"
	ErrorRegistration     = "LOOP_REGISTRATION_FAILED"
	ErrorExternalFailure  = "LOOP_EXTERNAL_FAILURE"
	ErrorUnauthorized     = "LOOP_UNAUTHORIZED"
	ErrorForbidden        = "LOOP_FORBIDDEN"
	ErrorNotFound         = "LOOP_NOT_FOUND"
	ErrorRateLimited      = "LOOP_RATE_LIMITED"
	ErrorInternal         = "LOOP_INTERNAL_ERROR"
)

// Errno values reported by the loop server in error bodies.
const (
	ErrnoInvalidToken    = 105
	ErrnoExpired         = 111
	ErrnoUserUnavailable = 122
	ErrnoRoomFull        = 202
)

// InvalidDataMessage is the message of every response shape error.
const InvalidDataMessage = "Invalid data received"

func configurationError(message string, field string) *goerrors.Error {
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: "invalid configuration",
	}).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorConfiguration)
}

// MissingParameterError reports a programmer contract violation: a required
// argument was not supplied. It is returned before any request is issued.
func MissingParameterError(operation string, parameter string) *goerrors.Error {
	message := "missing required parameter " + strings.TrimSpace(parameter)
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   parameter,
		Message: "is required",
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorMissingParameter).
		WithMetadata(map[string]any{"operation": strings.TrimSpace(operation)})
}

// RemoteError builds the error for a response with status >= 400.
func RemoteError(status int, message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, remoteCategory(status)).
		WithCode(status).
		WithTextCode(ErrorRemote)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// InvalidDataError builds the error for a body that does not match the
// expected shape.
func InvalidDataError(status int, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(InvalidDataMessage, goerrors.CategoryExternal).
		WithCode(status).
		WithTextCode(ErrorInvalidData)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func IsConfigurationError(err error) bool {
	return hasTextCode(err, ErrorConfiguration)
}

func IsMissingParameter(err error) bool {
	return hasTextCode(err, ErrorMissingParameter)
}

func IsInvalidData(err error) bool {
	return hasTextCode(err, ErrorInvalidData)
}

// HasErrno reports whether err is a remote error whose body carried errno.
func HasErrno(err error, errno int) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return false
	}
	switch value := rich.Metadata["errno"].(type) {
	case int:
		return value == errno
	case int64:
		return int(value) == errno
	case float64:
		return int(value) == errno
	default:
		return false
	}
}

func hasTextCode(err error, code string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return false
	}
	return rich.TextCode == code
}

func remoteCategory(status int) goerrors.Category {
	switch {
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case status == http.StatusForbidden:
		return goerrors.CategoryAuthz
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case status >= 500:
		return goerrors.CategoryExternal
	default:
		return goerrors.CategoryBadInput
	}
}

// MapError turns any error into a go-errors envelope with a loop text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "registration"):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryAuth, err.Error()).WithTextCode(ErrorRegistration))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryBadInput, err.Error()).WithTextCode(ErrorBadInput))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	if !strings.HasPrefix(mapped.TextCode, "LOOP_") {
		mapped.TextCode = defaultTextCode(mapped.Category)
		mapped.Message = err.Error()
	}
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth:
		return ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorExternalFailure
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
