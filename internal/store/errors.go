package store

import "errors"

// Domain error taxonomy. Engine-level errors (timeouts, connection
// loss) are never wrapped into these; callers retry those with backoff.
var (
	// ErrDuplicateKey reports a uniqueness violation on messageUuid or
	// sessionId.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound reports a mutation or lookup targeting a document that
	// does not exist or has already been hard-expired.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedPattern reports a query whose filter combination has
	// no backing index. The planner rejects it instead of falling back
	// to a collection scan, so a missing index surfaces as a bug early.
	ErrUnsupportedPattern = errors.New("unsupported access pattern")

	// ErrExpiredResource reports a read against a message past its
	// self-destruct instant or view limit.
	ErrExpiredResource = errors.New("resource expired")
)
