package model

import "time"

// Role is the closed set of authorization levels a user can hold.  Admin-only
// operations are gated through a single check on this value rather than
// scattered comparisons.
type Role string

const (
	RoleUser  Role = "user"  // default role assigned at registration
	RoleAdmin Role = "admin" // grants access to the /api/admin surface
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// User represents an identity record as stored in the `users` table.
// Email is unique case-insensitively and always persisted trimmed and
// lower-cased.  PasswordHash holds a bcrypt digest; the plaintext is never
// stored.  Role defaults to RoleUser and changes only through an explicit
// admin action.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, normalized email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – authorization level ("user" or "admin").
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
