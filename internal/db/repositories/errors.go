package repositories

import "errors"

// Registry error kinds. The lifecycle service propagates these unchanged so
// callers can map them to HTTP statuses without string matching.
var (
	// ErrNotFound is returned when no registry row exists for the given name or email.
	ErrNotFound = errors.New("organization not found")

	// ErrDuplicateName is returned when an insert or rename collides with an
	// existing organization name (names are case-normalized before storage).
	ErrDuplicateName = errors.New("organization name already exists")

	// ErrDuplicateEmail is returned when an insert or email change collides
	// with an admin email anywhere in the registry. Emails are unique across
	// all organizations, not just within one.
	ErrDuplicateEmail = errors.New("admin email already registered")
)
