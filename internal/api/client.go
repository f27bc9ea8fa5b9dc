// Package api is the REST client for the chat backend. Authentication is
// cookie based: Login and Register capture the session cookie into the
// client's jar, and the same jar authenticates later REST calls and
// websocket dials.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("api: unexpected status %d", e.Status)
}

// Profile is the session user's identity.
type Profile struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	ProfilePhotoURL string `json:"profile_photo_url,omitempty"`
}

// CreateGroupParams describes a new group chat room.
type CreateGroupParams struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	MemberLimit int     `json:"member_limit,omitempty"`
	IsPrivate   bool    `json:"is_private,omitempty"`
	MemberIDs   []int64 `json:"member_ids"`
}

// CreateGroupResult carries the new group and room ids.
type CreateGroupResult struct {
	Message    string `json:"message"`
	GroupID    int64  `json:"group_id"`
	ChatroomID int64  `json:"chatroom_id"`
}

// Client talks to the chat backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the backend at baseURL. The cookie jar keeps
// the session across calls.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}, nil
}

// HTTPClient exposes the underlying client so websocket dials share the
// session cookies.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// SocketURL turns a server path into the matching ws:// or wss:// URL.
func (c *Client) SocketURL(path string) string {
	u := c.baseURL + path
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}

// Register creates an account and starts a session.
func (c *Client) Register(ctx context.Context, username, password string) (*Profile, error) {
	var out Profile
	err := c.post(ctx, "/auth/register/", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and starts a session.
func (c *Client) Login(ctx context.Context, username, password string) (*Profile, error) {
	var out Profile
	err := c.post(ctx, "/auth/login/", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile fetches the session user. This is how clients resolve their own
// user id before opening room sockets.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.get(ctx, "/profile/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListChatRooms fetches the caller's room directory. The result order is
// server defined; callers sort locally.
func (c *Client) ListChatRooms(ctx context.Context, out interface{}) error {
	return c.get(ctx, "/chat/chatroomlist/", out)
}

// CreateOrGetRoom resolves the canonical direct room with userID.
func (c *Client) CreateOrGetRoom(ctx context.Context, userID int64) (int64, error) {
	var out struct {
		RoomID int64 `json:"room_id"`
	}
	err := c.post(ctx, "/chat/create-or-get-room/", map[string]int64{"user_id": userID}, &out)
	if err != nil {
		return 0, err
	}
	return out.RoomID, nil
}

// MarkAsRead acknowledges every message in a room for the caller.
func (c *Client) MarkAsRead(ctx context.Context, roomID int64) error {
	return c.post(ctx, "/chat/mark-as-read/", map[string]int64{"chatroom_id": roomID}, nil)
}

// CreateGroup creates a group chat room.
func (c *Client) CreateGroup(ctx context.Context, params CreateGroupParams) (*CreateGroupResult, error) {
	var out CreateGroupResult
	if err := c.post(ctx, "/chat/create-group/", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if ue, ok := err.(*url.Error); ok {
			err = ue.Err
		}
		return fmt.Errorf("api: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}
