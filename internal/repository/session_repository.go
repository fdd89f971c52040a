package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/accounts/internal/model"
)

// SessionRepo persists revocable sessions in the 'sessions' table.  The TTL
// is applied at read time: a row older than ttl is reported as absent even
// before the background sweep physically removes it.
type SessionRepo struct {
	DB  *sql.DB
	TTL time.Duration
	now func() time.Time // replaceable clock, used by tests
}

func NewSessionRepo(db *sql.DB, ttl time.Duration) *SessionRepo {
	return &SessionRepo{DB: db, TTL: ttl, now: time.Now}
}

// expired reports whether a session created at the given instant has
// outlived the ttl. A zero ttl disables the age check entirely.
func expired(createdAt time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.After(createdAt.Add(ttl))
}

// Create inserts a session with a random unguessable identifier and
// returns the stored record.
func (r *SessionRepo) Create(ctx context.Context, userID uint64, ip, userAgent string) (model.Session, error) {
	s := model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, ip_address, user_agent, created_at, updated_at) VALUES (?,?,?,?,?,?)",
		s.ID, s.UserID, s.IPAddress, s.UserAgent, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return model.Session{}, err
	}
	return s, nil
}

// GetByID returns a live session. Both a missing row and an expired one
// yield ErrSessionNotFound; callers cannot distinguish the two cases.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, ip_address, user_agent, created_at, updated_at FROM sessions WHERE id=? LIMIT 1",
		id).Scan(&s.ID, &s.UserID, &s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Session{}, ErrSessionNotFound
		}
		return model.Session{}, err
	}
	if expired(s.CreatedAt, r.TTL, r.now().UTC()) {
		return model.Session{}, ErrSessionNotFound
	}
	return s, nil
}

// Touch updates updated_at after a successful refresh.
func (r *SessionRepo) Touch(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET updated_at=NOW() WHERE id=?", id)
	return err
}

// Delete removes a session. Deleting an already absent session is a no-op,
// which makes sign-out idempotent.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE id=?", id)
	return err
}

// DeleteAllForUser revokes every session a user holds, e.g. when an admin
// forces a logout across devices.
func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE user_id=?", userID)
	return err
}

// DeleteExpired removes sessions created before the cutoff. It is safe to
// run concurrently and repeatedly; matching zero rows is not an error.
// Returns the number of rows removed for job logging.
func (r *SessionRepo) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE created_at < ?", olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
