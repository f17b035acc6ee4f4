package models

import "time"

// User is one row of the points ledger. A row is created lazily on first
// contact and never deleted. Points may go negative; no floor is enforced.
type User struct {
	ID           int64     `json:"id"`
	DisplayName  *string   `json:"display_name,omitempty"`
	Points       int64     `json:"points"`
	LastActiveAt time.Time `json:"last_active_at"`
	Warned       bool      `json:"warned"`
	CreatedAt    time.Time `json:"created_at"`
}

// Link is one published link. Rows are append-only: created exactly once by a
// successful /droplink, never updated or deleted.
type Link struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats are the read-only aggregates behind /stats and the admin API.
type Stats struct {
	Users       int64 `json:"users"`
	Links       int64 `json:"links"`
	TotalPoints int64 `json:"total_points"`
}
