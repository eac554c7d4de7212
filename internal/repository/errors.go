// Package repository implements the MySQL persistence layer: the engine's
// store contract (consistent snapshots, atomic multi-domain commits, audit
// trail, side-effect queue), the loyalty ledger, and booking creation.
// Sentinel errors defined here let handlers distinguish failure scenarios
// without inspecting driver errors.
package repository

import "errors"

// ErrBookingNotFound is returned when no booking exists for the requested
// identifier.  Handlers should translate this into an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrFraudOperationNotFound is returned when a fraud operation identifier
// does not exist or does not belong to the named booking.
var ErrFraudOperationNotFound = errors.New("fraud operation not found")

// ErrAuditEntryNotFound is returned when no audit entry exists for the
// requested transition identifier.
var ErrAuditEntryNotFound = errors.New("audit entry not found")
