package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	retry := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2.0}
	c := NewClientWithOptions(testLogger(), "123:TESTTOKEN", ClientOptions{
		BaseURL:     srv.URL,
		Retry:       &retry,
		SendPerSec:  1000,
		PollTimeout: time.Second,
	})
	return c, srv
}

func TestClient_SendMessage(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	if err := c.SendMessage(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/bot123:TESTTOKEN/sendMessage" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotBody.ChatID != 42 || gotBody.Text != "hello" {
		t.Errorf("unexpected body %+v", gotBody)
	}
	if gotBody.ParseMode != "HTML" {
		t.Errorf("expected HTML parse mode, got %q", gotBody.ParseMode)
	}
}

func TestClient_GetUpdatesAdvancesNothingByItself(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"chat":{"id":5},"from":{"id":7,"first_name":"Ann"},"text":"/start"}},
			{"update_id":11,"callback_query":{"id":"cb1","from":{"id":7},"data":"like_3"}}
		]}`))
	})

	updates, err := c.GetUpdates(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Message == nil || updates[0].Message.Text != "/start" {
		t.Errorf("unexpected first update: %+v", updates[0])
	}
	if updates[1].CallbackQuery == nil || updates[1].CallbackQuery.Data != "like_3" {
		t.Errorf("unexpected second update: %+v", updates[1])
	}
}

func TestClient_RetriesOn429(t *testing.T) {
	var calls int32

	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":0}}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	if err := c.SendMessage(context.Background(), 1, "x"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestClient_APIRejectionDoesNotRetry(t *testing.T) {
	var calls int32

	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	})

	err := c.SendMessage(context.Background(), 1, "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("expected API description in error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
}

func TestClient_BreakerOpensAfterRepeatedOutage(t *testing.T) {
	c, srv := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"ok":false,"error_code":500}`))
	})
	_ = srv

	// each invoke exhausts retries and records one breaker failure
	for i := 0; i < 5; i++ {
		if err := c.SendMessage(context.Background(), 1, "x"); err == nil {
			t.Fatal("expected error while server is down")
		}
	}

	if err := c.SendMessage(context.Background(), 1, "x"); err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestUser_DisplayName(t *testing.T) {
	tests := []struct {
		user *User
		want string
	}{
		{&User{FirstName: "Ann"}, "Ann"},
		{&User{FirstName: "Ann", LastName: "Lee"}, "Ann Lee"},
		{&User{Username: "ann_l"}, "ann_l"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := tt.user.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}
