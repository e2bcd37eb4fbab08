package model

import "fmt"

// Actor is the opaque id of the user an operation is attributed to. The
// ledger records it for audit and never interprets it.
type Actor string

// SystemActor attributes work done by background workers.
const SystemActor Actor = "system"

func (a Actor) String() string { return string(a) }

// Validate rejects an empty actor.
func (a Actor) Validate() error {
	if a == "" {
		return fmt.Errorf("%w: actor is required", ErrValidation)
	}
	return nil
}
