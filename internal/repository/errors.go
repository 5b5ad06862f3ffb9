// Package repository holds the persistence adapters of the checkout: the
// pending confirmation stores (Redis, with a Bolt file fallback) and the
// MySQL purchase ledger used for reconciliation.  The sentinel values below
// let higher layers tell "nothing stored" apart from storage failures.
package repository

import "errors"

// ErrAttendanceNotFound is returned when a protocol was never registered
// through this server or its entry has expired.
var ErrAttendanceNotFound = errors.New("attendance not found")

// ErrPurchaseNotFound is returned when no ledger row exists for a payment id.
var ErrPurchaseNotFound = errors.New("purchase not found")
