package http

import (
	"fmt"
	"net/http"
)

// Error codes surfaced in the response envelope.
const (
	CodeBadRequest         = "ERR_BAD_REQUEST"
	CodeInvalidNumeric     = "ERR_INVALID_NUMERIC"
	CodeNotFound           = "ERR_NOT_FOUND"
	CodeTooManyRequests    = "ERR_TOO_MANY_REQUESTS"
	CodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
	CodeInternal           = "ERR_INTERNAL"
)

// AppError is an error that knows its HTTP status and envelope code.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithParam attaches a single detail to the error.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func BadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, "", message, http.StatusBadRequest)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// InvalidFieldError reports a single request field that failed validation.
func InvalidFieldError(code, field, message string) *AppError {
	return NewAppError(code, field, message, http.StatusBadRequest)
}

func NotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, "", message, http.StatusNotFound)
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError(CodeTooManyRequests, "", message, http.StatusTooManyRequests)
}

func ServiceUnavailableError(message string) *AppError {
	return NewAppError(CodeServiceUnavailable, "", message, http.StatusServiceUnavailable)
}

func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}

func InternalErrorf(format string, a ...interface{}) *AppError {
	return InternalError(fmt.Sprintf(format, a...))
}
