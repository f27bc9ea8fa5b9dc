package chat

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/syntaxhq/syntax-chat/internal/api"
	"github.com/syntaxhq/syntax-chat/internal/auth"
	"github.com/syntaxhq/syntax-chat/internal/config"
	"github.com/syntaxhq/syntax-chat/internal/hub"
	"github.com/syntaxhq/syntax-chat/internal/log"
	"github.com/syntaxhq/syntax-chat/internal/server"
	"github.com/syntaxhq/syntax-chat/internal/store"
	"github.com/syntaxhq/syntax-chat/internal/store/sqlite"
)

// testBackend is a full in-process chat server: in-memory store, running
// hub, and the real HTTP/websocket surface behind an httptest listener.
type testBackend struct {
	t      *testing.T
	ts     *httptest.Server
	store  store.Store
	cancel context.CancelFunc
	closed bool
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	logger := log.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret: []byte("test-secret"),
		Issuer: "test",
		TTL:    time.Hour,
	})

	h := hub.NewHub(st, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	cfg := config.Default()
	srv := server.New(h, authService, st, &cfg, logger)
	ts := httptest.NewServer(srv.Handler)

	b := &testBackend{t: t, ts: ts, store: st, cancel: cancel}
	t.Cleanup(b.close)
	return b
}

func (b *testBackend) close() {
	if b.closed {
		return
	}
	b.closed = true
	b.ts.Close()
	b.cancel()
	b.store.Close()
}

// register creates a user and returns an API client holding that user's
// session cookie, plus the new user's id.
func (b *testBackend) register(t *testing.T, username string) (*api.Client, int64) {
	t.Helper()

	client, err := api.New(b.ts.URL)
	if err != nil {
		t.Fatalf("new api client: %v", err)
	}
	profile, err := client.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return client, profile.ID
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// holdsFor asserts cond stays true for the whole window. Used to check
// that something did NOT happen.
func holdsFor(t *testing.T, cond func() bool, window time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if !cond() {
			t.Fatalf("condition violated: %s", msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
