package errors

import "fmt"

type ErrorCode string

const (
	ErrInternalServer     ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrInvalidRequestData ErrorCode = "INVALID_REQUEST_DATA"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrAlreadyExists      ErrorCode = "ALREADY_EXISTS"

	// Scheduling error taxonomy.
	ErrSlotUnavailable ErrorCode = "SLOT_UNAVAILABLE"
	ErrSlotConflict    ErrorCode = "SLOT_CONFLICT"
	ErrProvider        ErrorCode = "PROVIDER_ERROR"
	ErrEventNotFound   ErrorCode = "EVENT_NOT_FOUND"
	ErrStorage         ErrorCode = "STORAGE_ERROR"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// CodeOf returns the AppError code carried by err, or ErrInternalServer
// when err is not an AppError.
func CodeOf(err error) ErrorCode {
	if ae, ok := err.(*AppError); ok && ae != nil {
		return ae.Code
	}
	return ErrInternalServer
}

// Is reports whether err is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	ae, ok := err.(*AppError)
	return ok && ae != nil && ae.Code == code
}
