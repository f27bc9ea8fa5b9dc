package chat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/syntaxhq/syntax-chat/internal/api"
)

// SessionState is the lifecycle state of a chat session.
type SessionState int32

const (
	SessionIdle SessionState = iota
	SessionResolving
	SessionConnecting
	SessionLive
	SessionClosed
	SessionError
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionResolving:
		return "resolving"
	case SessionConnecting:
		return "connecting"
	case SessionLive:
		return "live"
	case SessionClosed:
		return "closed"
	case SessionError:
		return "error"
	default:
		return "unknown"
	}
}

// Session orchestrates one user's chat state: it resolves the user's own
// id once, keeps at most one room channel open, and reconciles read
// state when a room goes live. Opening a new room always closes the
// previous channel first.
type Session struct {
	client *api.Client
	dir    *Directory
	log    *zerolog.Logger

	userID atomic.Int64
	state  atomic.Int32

	mu      sync.Mutex
	channel *Channel
	lastErr error
}

// NewSession builds an idle session on top of an authenticated API
// client.
func NewSession(client *api.Client, dir *Directory, logger *zerolog.Logger) *Session {
	return &Session{
		client: client,
		dir:    dir,
		log:    logger,
	}
}

// Start resolves the session user's identity. It must succeed before any
// room can be opened; without it Send has no sender id.
func (s *Session) Start(ctx context.Context) error {
	profile, err := s.client.Profile(ctx)
	if err != nil {
		s.fail(fmt.Errorf("chat: resolve profile: %w", err))
		return s.Err()
	}
	s.userID.Store(profile.ID)
	s.state.Store(int32(SessionIdle))
	s.log.Debug().Int64("user_id", profile.ID).Msg("session started")
	return nil
}

// UserID returns the resolved session user id, zero before Start.
func (s *Session) UserID() int64 {
	return s.userID.Load()
}

// State returns the session lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Channel returns the currently open room channel, nil when none.
func (s *Session) Channel() *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Err returns the error that moved the session into its error state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// OpenDirect opens the canonical direct room with another user, creating
// it on first contact. Repeat calls with the same user land in the same
// room.
func (s *Session) OpenDirect(ctx context.Context, otherUserID int64) (*Channel, error) {
	if s.UserID() == 0 {
		return nil, ErrNoSession
	}
	s.closeChannel()

	s.state.Store(int32(SessionResolving))
	roomID, err := s.client.CreateOrGetRoom(ctx, otherUserID)
	if err != nil {
		s.fail(fmt.Errorf("chat: resolve direct room with user %d: %w", otherUserID, err))
		return nil, s.Err()
	}

	return s.openRoom(ctx, roomID)
}

// OpenGroup opens a group room the user is already a member of.
func (s *Session) OpenGroup(ctx context.Context, roomID int64) (*Channel, error) {
	if s.UserID() == 0 {
		return nil, ErrNoSession
	}
	s.closeChannel()
	return s.openRoom(ctx, roomID)
}

func (s *Session) openRoom(ctx context.Context, roomID int64) (*Channel, error) {
	s.state.Store(int32(SessionConnecting))

	ch := NewChannel(s.client, roomID, s.UserID(), s.log)
	if err := ch.Open(ctx); err != nil {
		s.fail(err)
		return nil, s.Err()
	}

	s.mu.Lock()
	s.channel = ch
	s.lastErr = nil
	s.mu.Unlock()
	s.state.Store(int32(SessionLive))

	s.reconcileRead(ctx, roomID)
	return ch, nil
}

// reconcileRead acknowledges the room's messages now that the user is
// looking at them, then re-pulls the directory so its unread counts
// agree with the server.
func (s *Session) reconcileRead(ctx context.Context, roomID int64) {
	if err := s.client.MarkAsRead(ctx, roomID); err != nil {
		s.log.Warn().Err(err).Int64("room_id", roomID).Msg("mark as read failed")
		return
	}
	s.dir.ClearHighlight(roomID)
	s.dir.Refresh(ctx)
}

func (s *Session) closeChannel() {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.state.Store(int32(SessionError))
	s.log.Error().Err(err).Msg("session error")
}

// Close tears down the open channel and ends the session.
func (s *Session) Close() {
	s.closeChannel()
	s.state.Store(int32(SessionClosed))
}
