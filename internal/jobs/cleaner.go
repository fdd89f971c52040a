// Package jobs schedules the background maintenance work the auth core
// needs: sweeping expired session rows out of the database. Expired
// sessions are already treated as absent at read time, so the sweep is
// purely physical cleanup and is safe to run concurrently with live traffic
// and with other instances of itself.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ExpiredDeleter is the slice of the session repository the cleaner needs.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// Cleaner runs the hourly expired-session sweep.
type Cleaner struct {
	cron     *cron.Cron
	sessions ExpiredDeleter
	ttl      time.Duration
	log      zerolog.Logger
}

func NewCleaner(sessions ExpiredDeleter, ttl time.Duration, log zerolog.Logger) *Cleaner {
	return &Cleaner{
		cron:     cron.New(),
		sessions: sessions,
		ttl:      ttl,
		log:      log,
	}
}

// Start registers the hourly sweep and starts the scheduler. One sweep also
// runs immediately so a restart never leaves a backlog waiting for the next
// tick.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc("@hourly", c.sweep); err != nil {
		return err
	}
	c.cron.Start()
	go c.sweep()
	return nil
}

// Stop halts the scheduler and waits briefly for a running sweep to finish.
func (c *Cleaner) Stop() {
	ctx := c.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (c *Cleaner) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-c.ttl)
	n, err := c.sessions.DeleteExpired(ctx, cutoff)
	if err != nil {
		c.log.Error().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		c.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("expired sessions removed")
	}
}
