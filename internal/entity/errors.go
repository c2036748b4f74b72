package entity

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindConflict     ErrorKind = "conflict"
	KindBusiness     ErrorKind = "business"
	KindNotFound     ErrorKind = "not_found"
	KindTransient    ErrorKind = "transient"
	KindUnauthorized ErrorKind = "unauthorized"
	KindInternal     ErrorKind = "internal"
)

// AppError is the error type returned by every service operation. Code is
// stable and machine readable; Message is meant for humans.
type AppError struct {
	Kind    ErrorKind         `json:"kind"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches on Code so that errors.Is works against the sentinels below
// even after WithMessage / WithField produced a copy.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) WithMessage(format string, args ...interface{}) *AppError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func (e *AppError) WithField(field, msg string) *AppError {
	cp := *e
	cp.Fields = make(map[string]string, len(e.Fields)+1)
	for k, v := range e.Fields {
		cp.Fields[k] = v
	}
	cp.Fields[field] = msg
	return &cp
}

func (e *AppError) Wrap(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

const (
	CodeValidation         = "TITHI_VALIDATION_ERROR"
	CodeSlotUnavailable    = "TITHI_BOOKING_SLOT_UNAVAILABLE"
	CodeInvalidTransition  = "TITHI_BOOKING_INVALID_TRANSITION"
	CodeNotReschedulable   = "TITHI_BOOKING_NOT_RESCHEDULABLE"
	CodePaymentRequired    = "TITHI_PAYMENT_REQUIRED"
	CodeHoldMismatch       = "TITHI_HOLD_MISMATCH"
	CodeResourceNotFound   = "TITHI_RESOURCE_NOT_FOUND"
	CodeBookingNotFound    = "TITHI_BOOKING_NOT_FOUND"
	CodeHoldNotFound       = "TITHI_HOLD_NOT_FOUND"
	CodeServiceNotFound    = "TITHI_SERVICE_NOT_FOUND"
	CodeCustomerNotFound   = "TITHI_CUSTOMER_NOT_FOUND"
	CodeScheduleNotFound   = "TITHI_SCHEDULE_NOT_FOUND"
	CodeDeadLetterNotFound = "TITHI_DEAD_LETTER_NOT_FOUND"
	CodeStorageTransient   = "TITHI_STORAGE_TRANSIENT"
	CodeUnauthorized       = "TITHI_AUTH_ERROR"
	CodeInternal           = "TITHI_INTERNAL_ERROR"
	CodeDuplicateClientID  = "TITHI_BOOKING_DUPLICATE_CLIENT_ID"
	CodeResourceInactive   = "TITHI_RESOURCE_INACTIVE"
	CodeServiceInactive    = "TITHI_SERVICE_INACTIVE"
)

var (
	// Validation
	ErrValidation = &AppError{Kind: KindValidation, Code: CodeValidation, Message: "validation failed"}

	// Conflicts and business rules
	ErrSlotUnavailable         = &AppError{Kind: KindConflict, Code: CodeSlotUnavailable, Message: "requested time slot is not available"}
	ErrInvalidTransition       = &AppError{Kind: KindBusiness, Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrBookingNotReschedulable = &AppError{Kind: KindBusiness, Code: CodeNotReschedulable, Message: "booking cannot be rescheduled in its current status"}
	ErrPaymentRequired         = &AppError{Kind: KindBusiness, Code: CodePaymentRequired, Message: "payment must be completed before confirmation"}
	ErrHoldMismatch            = &AppError{Kind: KindBusiness, Code: CodeHoldMismatch, Message: "hold does not cover the requested booking"}
	ErrResourceInactive        = &AppError{Kind: KindBusiness, Code: CodeResourceInactive, Message: "resource is not active"}
	ErrServiceInactive         = &AppError{Kind: KindBusiness, Code: CodeServiceInactive, Message: "service is not active"}

	// Not found
	ErrResourceNotFound   = &AppError{Kind: KindNotFound, Code: CodeResourceNotFound, Message: "resource not found"}
	ErrBookingNotFound    = &AppError{Kind: KindNotFound, Code: CodeBookingNotFound, Message: "booking not found"}
	ErrHoldNotFound       = &AppError{Kind: KindNotFound, Code: CodeHoldNotFound, Message: "hold not found or expired"}
	ErrServiceNotFound    = &AppError{Kind: KindNotFound, Code: CodeServiceNotFound, Message: "service not found"}
	ErrCustomerNotFound   = &AppError{Kind: KindNotFound, Code: CodeCustomerNotFound, Message: "customer not found"}
	ErrScheduleNotFound   = &AppError{Kind: KindNotFound, Code: CodeScheduleNotFound, Message: "work schedule not found"}
	ErrDeadLetterNotFound = &AppError{Kind: KindNotFound, Code: CodeDeadLetterNotFound, Message: "dead letter not found"}

	// Storage
	ErrStorageTransient  = &AppError{Kind: KindTransient, Code: CodeStorageTransient, Message: "storage temporarily unavailable, retry the operation"}
	// ErrDuplicateClientID is raised by repositories when the
	// (tenant_id, client_generated_id) unique index rejects an insert.
	ErrDuplicateClientID = &AppError{Kind: KindConflict, Code: CodeDuplicateClientID, Message: "booking with this client id already exists"}

	ErrUnauthorized = &AppError{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: "unauthorized"}
	ErrInternal     = &AppError{Kind: KindInternal, Code: CodeInternal, Message: "internal error"}
)

// KindOf returns the kind of the first AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// AsAppError converts err into an AppError, treating anything unknown as
// internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.Wrap(err)
}

// Transient wraps a storage failure that is safe to retry from the top.
func Transient(op string, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return ErrStorageTransient.WithMessage("%s failed, retry the operation", op).Wrap(err)
}

// ValidationError builds a validation error carrying per-field messages.
func ValidationError(fields map[string]string) *AppError {
	e := *ErrValidation
	e.Fields = fields
	return &e
}
