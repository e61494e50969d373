package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	CodeNotFound      = "NOT_FOUND"
	CodeValidation    = "VALIDATION_ERROR"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeMalformedDate = "MALFORMED_DATE"
	CodePastDate      = "PAST_DATE"
	CodeOutOfHours    = "OUT_OF_HOURS"
	CodeConflict      = "CONFLICT"
	CodeBusy          = "BUSY"
	CodeStorage       = "STORAGE_FAILURE"
	CodeInternal      = "INTERNAL_ERROR"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func MalformedDate(raw string) *AppError {
	return &AppError{
		Code:       CodeMalformedDate,
		Message:    "Appointment date matches none of the accepted formats",
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]any{
			"appointment_date": raw,
		},
	}
}

// PastDate reports a rejected past-dated booking. The current reference date is
// included so the caller can self-correct.
func PastDate(now time.Time) *AppError {
	return &AppError{
		Code:       CodePastDate,
		Message:    fmt.Sprintf("Appointment date is in the past, current date is %s", now.Format("2006-01-02 15:04")),
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]any{
			"current_date": now.Format("2006-01-02 15:04"),
		},
	}
}

func OutOfHours(startHour, endHour int) *AppError {
	return &AppError{
		Code:       CodeOutOfHours,
		Message:    fmt.Sprintf("Appointment time is outside working hours (%02d:00-%02d:00)", startHour, endHour),
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]any{
			"work_start_hour": startHour,
			"work_end_hour":   endHour,
		},
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// Busy signals that the slot serialization lock could not be acquired within
// the configured wait bound. Retryable by the caller.
func Busy(message string) *AppError {
	return &AppError{
		Code:       CodeBusy,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func Storage(message string, err error) *AppError {
	return &AppError{
		Code:       CodeStorage,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
