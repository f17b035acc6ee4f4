// Package ledger owns the persisted point balances and the append-only link
// log. It is the only component that mutates the users and links tables;
// handlers and sweeps go through the Store interface so tests can substitute
// the in-memory implementation.
package ledger

import (
	"context"
	"time"

	"linkdrop/internal/models"
)

type Store interface {
	// GetOrCreateUser returns the existing row for id, or creates one with
	// zero points, warned=false and last_active_at=now.
	GetOrCreateUser(ctx context.Context, id int64, displayNameHint string) (*models.User, error)

	// TouchActivity sets last_active_at=now and clears the warned flag.
	// Idempotent; a no-op error-wise if the user does not exist.
	TouchActivity(ctx context.Context, id int64) error

	// AdjustPoints adds delta (positive or negative) to the balance. The
	// resulting sign is not validated; negative balances are allowed.
	AdjustPoints(ctx context.Context, id int64, delta int64) error

	// MarkWarned records that an inactivity warning has been sent.
	MarkWarned(ctx context.Context, id int64) error

	// RecordLink appends a link row and returns it with id and timestamp.
	RecordLink(ctx context.Context, ownerID int64, url, title string) (*models.Link, error)

	// RecentLinks returns up to limit links, newest first.
	RecentLinks(ctx context.Context, limit int) ([]models.Link, error)

	CountUsers(ctx context.Context) (int64, error)
	CountLinks(ctx context.Context) (int64, error)

	// SumAllPoints totals every balance; an empty table sums to zero.
	SumAllPoints(ctx context.Context) (int64, error)

	// UsersInactiveSince returns users whose last activity is older than
	// threshold, optionally restricted to those not yet warned.
	UsersInactiveSince(ctx context.Context, threshold time.Duration, onlyUnwarned bool) ([]models.User, error)
}
