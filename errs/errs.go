// Package errs defines the error taxonomy shared by the sync engine:
// which failures abort startup, which kill a single stream, and which are
// retried on the next scheduled tick.
package errs

import "github.com/joomcode/errorx"

var (
	namespace = errorx.NewNamespace("sgfsync")

	// Config covers startup problems (missing token, unwritable store
	// path). The process must refuse to begin scheduling.
	Config = namespace.NewType("config")

	// Auth means the remote rejected the bearer token. Fatal for the
	// affected stream only; other streams keep running.
	Auth = namespace.NewType("auth")

	// Transient covers timeouts, connection resets and remote 5xx.
	// Recovered by waiting for the next scheduled tick.
	Transient = namespace.NewType("transient", errorx.Temporary())

	// Malformed marks a single undecodable record. The record is skipped
	// and logged; the page continues.
	Malformed = namespace.NewType("malformed")

	// Persistence marks a failed batch transaction. The page rolls back,
	// the checkpoint stays, and the cycle retries on the next tick.
	Persistence = namespace.NewType("persistence")
)

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return errorx.IsOfType(err, Auth) }

// IsTransient reports whether err should be retried on the next tick.
func IsTransient(err error) bool { return errorx.IsOfType(err, Transient) }

// IsMalformed reports whether err marks a single bad record.
func IsMalformed(err error) bool { return errorx.IsOfType(err, Malformed) }
