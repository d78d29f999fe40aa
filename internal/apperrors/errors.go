package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION"
	CodeAuthorization Code = "AUTHORIZATION"
	CodePersistence   Code = "PERSISTENCE"
	CodeIdentity      Code = "IDENTITY"
	CodeNotFound      Code = "NOT_FOUND"
)

// Error is a failure reported to the originating session or HTTP caller.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Constructors
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) error {
	return New(CodeValidation, msg)
}

func Authorization(msg string) error {
	return New(CodeAuthorization, msg)
}

func Identity(msg string) error {
	return New(CodeIdentity, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Persistence(msg string, cause error) error {
	return Wrap(CodePersistence, msg, cause)
}

// CodeOf returns the code carried by err. Errors without one come from a
// store or driver and are reported as persistence failures.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodePersistence
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// PublicMessage is the text safe to show a client. Causes are never exposed.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// HTTPStatus maps an error to a response status code
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuthorization:
		return http.StatusForbidden
	case CodeIdentity:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrEmptyContent    = Validation("content must not be empty")
	ErrContentTooLong  = Validation("content is too long")
	ErrInvalidContent  = Validation("content contains invalid characters")
	ErrMissingProfile  = Validation("profile ids are required")
	ErrSelfMessage     = Validation("cannot send a message to yourself")
	ErrNotMatched      = Authorization("profiles are not matched")
	ErrNotJoined       = Identity("session has not joined")
	ErrProfileMismatch = Identity("profile does not belong to this session")
	ErrInvalidToken    = Identity("invalid token")
)
