package services

import "errors"

// Sentinel errors returned by the booking/check-in core. Endpoint methods
// map these to HTTP statuses; callers compare with errors.Is.
var (
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrAlreadyBooked        = errors.New("user already has a booking for this event")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidToken         = errors.New("invalid token")
	ErrIllegalTransition    = errors.New("illegal state transition")
	ErrNotFound             = errors.New("record not found")
	ErrValidation           = errors.New("validation failed")
)
