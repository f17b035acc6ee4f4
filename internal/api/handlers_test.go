package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"linkdrop/internal/config"
	"linkdrop/internal/ledger"
	"linkdrop/internal/models"
)

func testServer(t *testing.T) (*Server, *ledger.Mem) {
	t.Helper()
	store := ledger.NewMem()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{AdminSecretKey: "sekret"}
	return NewServer(log, store, nil, cfg), store
}

func doRequest(s *Server, method, path, adminKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if adminKey != "" {
		req.Header.Set("X-Admin-Key", adminKey)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestStats_RequiresAdminKey(t *testing.T) {
	s, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/admin/stats", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/v1/admin/stats", "wrong")
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 with wrong key, got %d", w.Code)
	}
}

func TestStats_ReturnsAggregates(t *testing.T) {
	s, store := testServer(t)
	ctx := context.Background()

	if _, err := store.GetOrCreateUser(ctx, 1, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetOrCreateUser(ctx, 2, "b"); err != nil {
		t.Fatal(err)
	}
	if err := store.AdjustPoints(ctx, 1, 500); err != nil {
		t.Fatal(err)
	}
	if err := store.AdjustPoints(ctx, 2, -100); err != nil {
		t.Fatal(err)
	}
	if _, err := store.RecordLink(ctx, 1, "http://x", "t"); err != nil {
		t.Fatal(err)
	}

	w := doRequest(s, http.MethodGet, "/api/v1/admin/stats", "sekret")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var stats models.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if stats.Users != 2 || stats.Links != 1 || stats.TotalPoints != 400 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestRecentLinks(t *testing.T) {
	s, store := testServer(t)
	ctx := context.Background()

	if _, err := store.GetOrCreateUser(ctx, 1, ""); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.RecordLink(ctx, 1, "http://x", "t"); err != nil {
			t.Fatal(err)
		}
	}

	w := doRequest(s, http.MethodGet, "/api/v1/links/recent?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Links []models.Link `json:"links"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(body.Links) != 2 {
		t.Errorf("expected 2 links, got %d", len(body.Links))
	}
}

func TestRecentLinks_InvalidLimit(t *testing.T) {
	s, _ := testServer(t)

	for _, q := range []string{"limit=0", "limit=abc", "limit=999"} {
		w := doRequest(s, http.MethodGet, "/api/v1/links/recent?"+q, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestStats_UnconfiguredAdminKey(t *testing.T) {
	store := ledger.NewMem()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(log, store, nil, config.Config{})

	w := doRequest(s, http.MethodGet, "/api/v1/admin/stats", "anything")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when key unconfigured, got %d", w.Code)
	}
}
