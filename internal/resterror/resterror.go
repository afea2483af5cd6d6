package resterror

import (
	"net/http"

	"github.com/pkg/errors"
)

// Error codes rendered by the REST API.
const (
	CodeBadRequest     = "PGRST100"
	CodeUnknownTable   = "PGRST205"
	CodeUnknownColumn  = "PGRST204"
	CodeUnauthorized   = "PGRST301"
	CodeMissingScope   = "PGRST106"
	CodeEmptyBody      = "PGRST102"
	CodeInternalServer = "PGRST000"
)

// An Error represents the error document rendered by the REST API.
type Error struct {
	HTTPCode int     `json:"-"`
	Code     string  `json:"code"`
	Message  string  `json:"message"`
	Details  *string `json:"details"`
	Hint     *string `json:"hint"`
}

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	if rerr, ok := errors.Cause(err).(*Error); ok {
		return rerr.HTTPCode
	}
	return http.StatusInternalServerError
}

// New returns a new Error with the given message.
func New(code int, message string) *Error {
	return &Error{HTTPCode: code, Code: CodeBadRequest, Message: message}
}

// NewWithCode returns a new Error with the given status, code and message.
func NewWithCode(status int, code, message string) *Error {
	return &Error{HTTPCode: status, Code: code, Message: message}
}

// WithDetails sets the details of the error.
func (e *Error) WithDetails(details string) *Error {
	e.Details = &details
	return e
}

// WithHint sets the hint of the error.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = &hint
	return e
}

// Error implements error interface.
func (e *Error) Error() string {
	return e.Message
}
