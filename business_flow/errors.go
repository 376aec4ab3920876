// Package businessflow contains the core business logic and use cases for the slot pool
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Allocation errors
	ErrPoolExhausted          = errors.New("no slot could be assigned")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrClientIDRequired       = errors.New("client ID is required")
	ErrSlotNotAvailable       = errors.New("slot is not available")
	ErrPoolGrowthLimitReached = errors.New("pool growth limit reached")
	ErrGrowthLockBusy         = errors.New("pool growth lock busy")

	// Slot update errors
	ErrInvalidPassword            = errors.New("invalid password")
	ErrEmptyPatch                 = errors.New("at least one field must be provided for update")
	ErrInvalidSlotStatus          = errors.New("invalid slot status")
	ErrInvalidPlanType            = errors.New("invalid plan type")
	ErrStatusTransitionNotAllowed = errors.New("status transition not allowed")

	// Lookup errors
	ErrSlotNotFound    = errors.New("slot not found")
	ErrAccountNotFound = errors.New("account not found")

	// Pagination errors
	ErrInvalidPage     = errors.New("invalid page")
	ErrInvalidPageSize = errors.New("invalid page size")
)

// errClaimConflict drives the claim retry loop and never leaves this package
var errClaimConflict = errors.New("slot claimed concurrently")

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsPoolExhausted(err error) bool {
	return errors.Is(err, ErrPoolExhausted)
}

func IsInvalidQuantity(err error) bool {
	return errors.Is(err, ErrInvalidQuantity)
}

func IsClientIDRequired(err error) bool {
	return errors.Is(err, ErrClientIDRequired)
}

func IsSlotNotAvailable(err error) bool {
	return errors.Is(err, ErrSlotNotAvailable)
}

func IsPoolGrowthLimitReached(err error) bool {
	return errors.Is(err, ErrPoolGrowthLimitReached)
}

func IsGrowthLockBusy(err error) bool {
	return errors.Is(err, ErrGrowthLockBusy)
}

func IsInvalidPassword(err error) bool {
	return errors.Is(err, ErrInvalidPassword)
}

func IsEmptyPatch(err error) bool {
	return errors.Is(err, ErrEmptyPatch)
}

func IsInvalidSlotStatus(err error) bool {
	return errors.Is(err, ErrInvalidSlotStatus)
}

func IsInvalidPlanType(err error) bool {
	return errors.Is(err, ErrInvalidPlanType)
}

func IsStatusTransitionNotAllowed(err error) bool {
	return errors.Is(err, ErrStatusTransitionNotAllowed)
}

func IsSlotNotFound(err error) bool {
	return errors.Is(err, ErrSlotNotFound)
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
