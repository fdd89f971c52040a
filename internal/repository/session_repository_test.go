package repository

import (
	"testing"
	"time"
)

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ttl := 168 * time.Hour

	cases := []struct {
		name      string
		createdAt time.Time
		ttl       time.Duration
		want      bool
	}{
		{"fresh", now.Add(-time.Hour), ttl, false},
		{"at the boundary", now.Add(-ttl), ttl, false},
		{"one second past", now.Add(-ttl - time.Second), ttl, true},
		{"long dead", now.Add(-30 * 24 * time.Hour), ttl, true},
		{"zero ttl never expires", now.Add(-30 * 24 * time.Hour), 0, false},
	}
	for _, tc := range cases {
		if got := expired(tc.createdAt, tc.ttl, now); got != tc.want {
			t.Errorf("%s: expired(created=%v, ttl=%v) = %v, want %v",
				tc.name, tc.createdAt, tc.ttl, got, tc.want)
		}
	}
}
