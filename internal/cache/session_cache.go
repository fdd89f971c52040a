// Package cache provides a best-effort Redis read-through for session rows.
// MySQL stays the single source of truth: every entry here is deleted on any
// session mutation, and entries expire together with the session they mirror,
// so a cache hit can never outlive the row it was read from. When Redis is
// unavailable the cache degrades to a no-op and callers fall back to the
// database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/accounts/internal/model"
)

// SessionCache mirrors live session rows keyed by session id. A per-user set
// of cached ids supports bulk invalidation when an admin revokes every
// session a user holds.
type SessionCache struct {
	rdb *redis.Client
	ttl time.Duration // full session TTL; per-entry expiry uses the remaining portion
}

// NewSessionCache wraps the given client. A nil client yields a cache whose
// operations all no-op, so callers never need to branch.
func NewSessionCache(rdb *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{rdb: rdb, ttl: ttl}
}

type cachedSession struct {
	UserID    uint64    `json:"user_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func sessionKey(id string) string     { return fmt.Sprintf("session:%s", id) }
func userSetKey(userID uint64) string { return fmt.Sprintf("user_sessions:%d", userID) }

// Get returns a cached session and whether the lookup hit. Errors and
// corrupt entries are treated as misses.
func (c *SessionCache) Get(ctx context.Context, id string) (model.Session, bool) {
	if c == nil || c.rdb == nil {
		return model.Session{}, false
	}
	raw, err := c.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		return model.Session{}, false
	}
	var cs cachedSession
	if err := json.Unmarshal(raw, &cs); err != nil {
		return model.Session{}, false
	}
	return model.Session{
		ID:        id,
		UserID:    cs.UserID,
		IPAddress: cs.IPAddress,
		UserAgent: cs.UserAgent,
		CreatedAt: cs.CreatedAt,
		UpdatedAt: cs.UpdatedAt,
	}, true
}

// Set stores a session for its remaining lifetime and records the id in the
// owner's set. Failures are ignored; the database remains authoritative.
func (c *SessionCache) Set(ctx context.Context, s model.Session) {
	if c == nil || c.rdb == nil {
		return
	}
	remaining := time.Until(s.CreatedAt.Add(c.ttl))
	if remaining <= 0 {
		return
	}
	raw, err := json.Marshal(cachedSession{
		UserID:    s.UserID,
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	})
	if err != nil {
		return
	}
	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, sessionKey(s.ID), raw, remaining)
	pipe.SAdd(ctx, userSetKey(s.UserID), s.ID)
	pipe.Expire(ctx, userSetKey(s.UserID), c.ttl)
	_, _ = pipe.Exec(ctx)
}

// Delete drops one session entry, e.g. on sign-out or refresh-touch.
func (c *SessionCache) Delete(ctx context.Context, id string, userID uint64) {
	if c == nil || c.rdb == nil {
		return
	}
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, userSetKey(userID), id)
	_, _ = pipe.Exec(ctx)
}

// DeleteAllForUser drops every cached session the user holds, mirroring a
// bulk revocation in the database.
func (c *SessionCache) DeleteAllForUser(ctx context.Context, userID uint64) {
	if c == nil || c.rdb == nil {
		return
	}
	ids, err := c.rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		return
	}
	pipe := c.rdb.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, sessionKey(id))
	}
	pipe.Del(ctx, userSetKey(userID))
	_, _ = pipe.Exec(ctx)
}
