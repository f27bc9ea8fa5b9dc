package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/syntaxhq/syntax-chat/internal/auth"
	"github.com/syntaxhq/syntax-chat/internal/config"
	"github.com/syntaxhq/syntax-chat/internal/hub"
	"github.com/syntaxhq/syntax-chat/internal/log"
	"github.com/syntaxhq/syntax-chat/internal/store"
	"github.com/syntaxhq/syntax-chat/internal/store/sqlite"
)

type testServer struct {
	ts    *httptest.Server
	store store.Store
}

func newTestServer(t *testing.T) *testServer {
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
	srv := New(h, authService, st, &cfg, logger)
	ts := httptest.NewServer(srv.Handler)

	t.Cleanup(func() {
		ts.Close()
		cancel()
		st.Close()
	})
	return &testServer{ts: ts, store: st}
}

// sessionClient is an HTTP client that keeps the session cookie.
func (s *testServer) sessionClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

// register creates a user and returns an authenticated client and the
// user's id.
func (s *testServer) register(t *testing.T, username string) (*http.Client, int64) {
	t.Helper()

	client := s.sessionClient(t)
	resp := postJSON(t, client, s.ts.URL+"/auth/register/", map[string]string{
		"username": username,
		"password": "password123",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}

	var profile ProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	return client, profile.ID
}

func postJSON(t *testing.T, client *http.Client, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func getJSON(t *testing.T, client *http.Client, url string, out interface{}) int {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// seedUnread stores count unread messages from senderID in a room.
func seedUnread(t *testing.T, s *testServer, roomID, senderID int64, text string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		msg := &store.Message{RoomID: roomID, SenderID: senderID, Text: text}
		if err := s.store.SaveMessage(context.Background(), msg); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
