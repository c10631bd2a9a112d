package store

import "errors"

// Sentinel errors returned by Storage implementations. Callers match
// with errors.Is; the ledger never masks them, since the store's
// consistency checks are authoritative.
var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned on a unique-constraint violation,
	// e.g. creating a second tenant with the same phone number.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrReferentialIntegrity is returned when a delete would orphan
	// dependent records (payments under an invoice, invoices under a
	// contract). Dependents must be deleted first.
	ErrReferentialIntegrity = errors.New("dependent records exist")
)
