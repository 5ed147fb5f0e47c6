package job

import "errors"

var (
	// ErrMissingURL is a caller error: rejected before any process is spawned.
	ErrMissingURL = errors.New("missing source url")

	// ErrToolUnavailable means the external binary could not be started at all.
	ErrToolUnavailable = errors.New("tool unavailable")

	// ErrToolFailed means the process ran but exited non-zero.
	ErrToolFailed = errors.New("tool failed")

	// ErrOutputMissing means the process reported success but the expected
	// output file never appeared.
	ErrOutputMissing = errors.New("completed but output missing")
)
