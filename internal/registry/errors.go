package registry

import "errors"

// Error kinds surfaced by registry operations. Every operation fails before
// any state is mutated, so a returned error means nothing changed.
var (
	ErrUnauthorized      = errors.New("caller is not the coordinator")
	ErrValidation        = errors.New("invalid input")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidDisaster   = errors.New("disaster does not exist or is not active")
	ErrNotRegistered     = errors.New("worker is not registered")
	ErrNotAvailable      = errors.New("worker is currently assigned")
	ErrAlreadyAvailable  = errors.New("worker is not currently assigned")
	ErrAlreadyClosed     = errors.New("disaster is already closed")
	ErrInsufficientFunds = errors.New("allocation exceeds funds raised")
)
