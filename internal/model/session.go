package model

import "time"

// Session models a row in the `sessions` table: a server-side, revocable
// proof of a prior successful authentication.  The row's existence is the
// sole server-side revocation mechanism: deleting it immediately kills
// refresh capability even though already issued tokens stay
// cryptographically valid until their own expiry.
//
// UserID is a plain foreign key, not an embedded User: the two records are
// persisted and reaped independently.
//
// Fields:
//  ID        – unguessable random identifier, exposed to clients only inside a cookie.
//  UserID    – owning user (sessions.user_id references users.id).
//  IPAddress – client address recorded at sign-in.
//  UserAgent – client user agent recorded at sign-in.
//  CreatedAt – timestamp of creation; age beyond the configured TTL makes the session logically absent.
//  UpdatedAt – touched on every successful token refresh.
type Session struct {
	ID        string    // sessions.id
	UserID    uint64    // sessions.user_id
	IPAddress string    // sessions.ip_address
	UserAgent string    // sessions.user_agent
	CreatedAt time.Time // sessions.created_at
	UpdatedAt time.Time // sessions.updated_at
}
