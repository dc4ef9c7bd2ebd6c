package orgs

import "errors"

// Error kinds owned by the lifecycle service. Registry and partition kinds
// (repositories.ErrNotFound, partition.ErrPartitionExists, …) pass through
// this package unchanged; compensation never rewrites an error's kind.
var (
	// ErrInvalidCredentials is returned by Login for an unknown email and for
	// a wrong password alike. The two cases are deliberately
	// indistinguishable, in kind and in message, to prevent account
	// enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnauthorized is returned by Delete when the bearer token is missing,
	// malformed, expired, signed with the wrong secret, or names a different
	// organization than the one being deleted.
	ErrUnauthorized = errors.New("unauthorized")
)
