// Package repository defines error values that are reused across multiple
// repositories. These sentinel values allow higher layers such as handlers
// to distinguish between different failure scenarios without inspecting
// driver-specific errors. Not-found conditions are reported as
// sql.ErrNoRows so callers use a single check for "row absent".
package repository

import "errors"

// ErrAccountExists is returned when an insert would violate the uniqueness
// of username or email. The two cases are deliberately not distinguished so
// a caller cannot enumerate which field collided. Handlers translate this
// into an HTTP 409 response.
var ErrAccountExists = errors.New("username or email already exists")

// ErrResetInvalid is returned when a password-reset token is unknown,
// already used, or past its expiry. The three cases are indistinguishable
// on purpose. Handlers translate this into an HTTP 401 response.
var ErrResetInvalid = errors.New("reset token invalid or expired")
