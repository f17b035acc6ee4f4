package ledger

import (
	"context"
	"fmt"
	"time"

	"linkdrop/internal/db"
	"linkdrop/internal/models"
)

// PG is the Postgres-backed Store.
type PG struct {
	db *db.DB
}

func NewPG(dbConn *db.DB) *PG {
	return &PG{db: dbConn}
}

func (s *PG) GetOrCreateUser(ctx context.Context, id int64, displayNameHint string) (*models.User, error) {
	var hint *string
	if displayNameHint != "" {
		hint = &displayNameHint
	}

	// single round trip: insert-if-absent, then read back either way.
	// COALESCE keeps an existing display name when the hint is empty.
	row := s.db.Pool.QueryRow(ctx,
		`INSERT INTO users (id, display_name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET display_name = COALESCE(EXCLUDED.display_name, users.display_name)
		 RETURNING id, display_name, points, last_active_at, warned, created_at`,
		id, hint,
	)

	var u models.User
	if err := row.Scan(&u.ID, &u.DisplayName, &u.Points, &u.LastActiveAt, &u.Warned, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("get or create user %d: %w", id, err)
	}
	return &u, nil
}

func (s *PG) TouchActivity(ctx context.Context, id int64) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE users SET last_active_at = NOW(), warned = FALSE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("touch activity %d: %w", id, err)
	}
	return nil
}

func (s *PG) AdjustPoints(ctx context.Context, id int64, delta int64) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE users SET points = points + $2 WHERE id = $1`,
		id, delta,
	)
	if err != nil {
		return fmt.Errorf("adjust points %d by %d: %w", id, delta, err)
	}
	return nil
}

func (s *PG) MarkWarned(ctx context.Context, id int64) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE users SET warned = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark warned %d: %w", id, err)
	}
	return nil
}

func (s *PG) RecordLink(ctx context.Context, ownerID int64, url, title string) (*models.Link, error) {
	row := s.db.Pool.QueryRow(ctx,
		`INSERT INTO links (owner_id, url, title) VALUES ($1, $2, $3)
		 RETURNING id, owner_id, url, title, created_at`,
		ownerID, url, title,
	)

	var l models.Link
	if err := row.Scan(&l.ID, &l.OwnerID, &l.URL, &l.Title, &l.CreatedAt); err != nil {
		return nil, fmt.Errorf("record link for %d: %w", ownerID, err)
	}
	return &l, nil
}

func (s *PG) RecentLinks(ctx context.Context, limit int) ([]models.Link, error) {
	if limit < 1 {
		return nil, nil
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, owner_id, url, title, created_at
		 FROM links
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent links: %w", err)
	}
	defer rows.Close()

	links := make([]models.Link, 0, limit)
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.URL, &l.Title, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("recent links scan: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *PG) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *PG) CountLinks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM links`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count links: %w", err)
	}
	return n, nil
}

func (s *PG) SumAllPoints(ctx context.Context) (int64, error) {
	var sum int64
	if err := s.db.Pool.QueryRow(ctx, `SELECT COALESCE(SUM(points), 0) FROM users`).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum all points: %w", err)
	}
	return sum, nil
}

func (s *PG) UsersInactiveSince(ctx context.Context, threshold time.Duration, onlyUnwarned bool) ([]models.User, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, display_name, points, last_active_at, warned, created_at
		 FROM users
		 WHERE last_active_at < NOW() - make_interval(secs => $1)
		   AND (NOT $2 OR warned = FALSE)
		 ORDER BY last_active_at ASC`,
		threshold.Seconds(), onlyUnwarned,
	)
	if err != nil {
		return nil, fmt.Errorf("users inactive since: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Points, &u.LastActiveAt, &u.Warned, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("users inactive since scan: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
