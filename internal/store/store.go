package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// User represents a platform user as the chat subsystem sees it.
type User struct {
	ID              int64
	Username        string
	PasswordHash    string
	ProfilePhotoURL string
	CreatedAt       time.Time
}

// Group holds the metadata of a group chat.
type Group struct {
	ID          int64
	Name        string
	Description string
	MemberLimit int
	IsPrivate   bool
	CreatorID   int64
	CreatedAt   time.Time
}

// Room is a chat room record. Direct rooms carry a DirectKey used for
// create-or-get deduplication; group rooms reference their Group.
type Room struct {
	ID        int64
	IsGroup   bool
	GroupID   *int64
	DirectKey *string
	CreatedAt time.Time
}

// Message is a persisted chat message. IsRead flips when the recipient
// marks the room as read; the sender's own messages never count as unread.
type Message struct {
	ID        int64
	RoomID    int64
	SenderID  int64
	Text      string
	IsRead    bool
	CreatedAt time.Time
}

// RoomListing is the joined projection served by the chatroomlist endpoint:
// the room plus the counterpart user (direct), group info (group), last
// message, and the caller's unread count.
type RoomListing struct {
	Room        Room
	Other       *User
	Group       *Group
	MemberCount int
	LastMessage *Message
	UnreadCount int
}

// DirectKey builds the canonical dedup key for a direct room between two
// users, independent of argument order.
func DirectKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%d", a, b)
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// RoomStore handles chat room persistence.
type RoomStore interface {
	// CreateOrGetDirectRoom returns the canonical direct room between two
	// users, creating it (with both memberships) on first contact.
	// Repeated calls for the same pair return the same room.
	CreateOrGetDirectRoom(ctx context.Context, userID, otherUserID int64) (*Room, bool, error)

	// CreateGroupRoom creates a group plus its chat room and memberships.
	// memberIDs must not include the creator; the creator always joins.
	CreateGroupRoom(ctx context.Context, g *Group, memberIDs []int64) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// IsMember checks whether a user belongs to a room.
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)

	// ListMemberIDs lists user IDs of a room's members.
	ListMemberIDs(ctx context.Context, roomID int64) ([]int64, error)

	// ListRoomsForUser builds the directory listing for a user.
	ListRoomsForUser(ctx context.Context, userID int64) ([]*RoomListing, error)
}

// MessageStore handles message persistence and read state.
type MessageStore interface {
	// SaveMessage persists a message and fills in its ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns a room's messages in send order.
	ListMessages(ctx context.Context, roomID int64) ([]*Message, error)

	// DeleteMessage removes a message if it belongs to senderID.
	DeleteMessage(ctx context.Context, id, senderID int64) error

	// MarkRead marks all messages in a room not sent by userID as read.
	// Idempotent.
	MarkRead(ctx context.Context, roomID, userID int64) error

	// UnreadCount counts unread messages in a room not sent by userID.
	UnreadCount(ctx context.Context, roomID, userID int64) (int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
