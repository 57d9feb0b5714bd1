package types

import "errors"

// Storage manager errors.
var (
	ErrNotRegistered  = errors.New("entity type not registered")
	ErrRegistryFrozen = errors.New("registry is frozen after table creation")
	ErrImmutable      = errors.New("entity type is immutable")
	ErrNotMember      = errors.New("entity is not a member of the list")
	ErrSessionDone    = errors.New("session already committed or rolled back")
	ErrSessionActive  = errors.New("another session is active")
	ErrStoreClosed    = errors.New("store is closed")
	ErrUnknownField   = errors.New("unknown field")
	ErrNoColumns      = errors.New("entity type has no columns")
)

// ErrContract is wrapped by every panic raised for a broken calling
// contract, such as assigning the wrong entity type to a relation.
var ErrContract = errors.New("contract violation")
