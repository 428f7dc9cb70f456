package core

import "errors"

// The closed set of ledger error kinds. Callers classify failures with
// errors.Is; everything the service layer returns wraps one of these.
var (
	// ErrDuplicateClient is returned when creating or renaming a client
	// would collide with an existing formatted name or id.
	ErrDuplicateClient = errors.New("duplicate client")

	// ErrInvalidAmount is returned for amounts that are not parseable,
	// not positive where positivity is required, or that exceed the
	// client's current debt for a partial payment.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotFound is returned when an operation references an unknown
	// client id.
	ErrNotFound = errors.New("client not found")

	// ErrRemoteFailure is returned when a persistence call failed or
	// timed out. The operation has no local effect.
	ErrRemoteFailure = errors.New("remote store failure")

	// ErrParse is returned when a stored payload (bottles_owed) could
	// not be decoded. Loaders recover by substituting a zero mapping.
	ErrParse = errors.New("stored payload parse error")
)
