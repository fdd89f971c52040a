// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver-specific errors. For example, ErrEmailExists maps to
// an HTTP 422 on registration, while ErrSessionNotFound covers both a
// missing row and an expired one; callers must not be able to tell the
// two apart.
package repository

import "errors"

// ErrEmailExists is returned when registration collides with an existing
// email, compared case-insensitively. Handlers translate this into a
// validation failure rather than a server error.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when no user matches the lookup. For
// credential checks handlers must collapse this with a password mismatch
// into one generic "invalid credentials" response.
var ErrUserNotFound = errors.New("user not found")

// ErrSessionNotFound is returned when a session row is absent or has aged
// past the configured TTL. Expired sessions are logically absent even
// before physical cleanup removes them.
var ErrSessionNotFound = errors.New("session not found")
