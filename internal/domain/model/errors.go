package model

import "errors"

// Error kinds. Every failure returned by the ledger wraps exactly one of
// these so callers can branch with errors.Is.
var (
	// ErrValidation: the input is malformed or out of range.
	ErrValidation = errors.New("validation error")
	// ErrState: the entity is not in a state that permits the operation.
	ErrState = errors.New("state error")
	// ErrIntegrity: stored figures disagree with their derivation.
	ErrIntegrity = errors.New("integrity error")
	// ErrNotFound: the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPersistence: the store failed; the unit was rolled back and may be retried.
	ErrPersistence = errors.New("persistence error")
)
