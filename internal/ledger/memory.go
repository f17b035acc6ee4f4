package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"linkdrop/internal/models"
)

// Mem is an in-memory Store. It backs handler and sweep tests, and is a
// drop-in stand-in when running without Postgres.
type Mem struct {
	mu     sync.Mutex
	users  map[int64]*models.User
	links  []models.Link
	nextID int64

	// Now is swappable so tests can control elapsed inactivity.
	Now func() time.Time
}

func NewMem() *Mem {
	return &Mem{
		users:  make(map[int64]*models.User),
		nextID: 1,
		Now:    time.Now,
	}
}

func (s *Mem) GetOrCreateUser(_ context.Context, id int64, displayNameHint string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		if displayNameHint != "" {
			hint := displayNameHint
			u.DisplayName = &hint
		}
		cp := *u
		return &cp, nil
	}

	now := s.Now()
	u := &models.User{
		ID:           id,
		Points:       0,
		LastActiveAt: now,
		Warned:       false,
		CreatedAt:    now,
	}
	if displayNameHint != "" {
		hint := displayNameHint
		u.DisplayName = &hint
	}
	s.users[id] = u

	cp := *u
	return &cp, nil
}

func (s *Mem) TouchActivity(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.LastActiveAt = s.Now()
		u.Warned = false
	}
	return nil
}

func (s *Mem) AdjustPoints(_ context.Context, id int64, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.Points += delta
	}
	return nil
}

func (s *Mem) MarkWarned(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.Warned = true
	}
	return nil
}

func (s *Mem) RecordLink(_ context.Context, ownerID int64, url, title string) (*models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := models.Link{
		ID:        s.nextID,
		OwnerID:   ownerID,
		URL:       url,
		Title:     title,
		CreatedAt: s.Now(),
	}
	s.nextID++
	s.links = append(s.links, l)

	cp := l
	return &cp, nil
}

func (s *Mem) RecentLinks(_ context.Context, limit int) ([]models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 {
		return nil, nil
	}

	out := make([]models.Link, len(s.links))
	copy(out, s.links)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Mem) CountUsers(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *Mem) CountLinks(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.links)), nil
}

func (s *Mem) SumAllPoints(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, u := range s.users {
		sum += u.Points
	}
	return sum, nil
}

func (s *Mem) UsersInactiveSince(_ context.Context, threshold time.Duration, onlyUnwarned bool) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.Now().Add(-threshold)

	var out []models.User
	for _, u := range s.users {
		if !u.LastActiveAt.Before(cutoff) {
			continue
		}
		if onlyUnwarned && u.Warned {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActiveAt.Before(out[j].LastActiveAt) })
	return out, nil
}

// SetUser overwrites a row directly; test helper.
func (s *Mem) SetUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[u.ID] = &cp
}

// GetUser reads a row directly; test helper.
func (s *Mem) GetUser(id int64) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return *u, true
	}
	return models.User{}, false
}
