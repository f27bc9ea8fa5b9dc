package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/syntaxhq/syntax-chat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	username          TEXT NOT NULL UNIQUE,
	password_hash     TEXT NOT NULL,
	profile_photo_url TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chat_groups (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	member_limit INTEGER NOT NULL DEFAULT 10,
	is_private   BOOLEAN NOT NULL DEFAULT 0,
	creator_id   INTEGER NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (creator_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS chatrooms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	is_group   BOOLEAN NOT NULL DEFAULT 0,
	group_id   INTEGER,
	direct_key TEXT UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (group_id) REFERENCES chat_groups(id)
);

CREATE TABLE IF NOT EXISTS memberships (
	chatroom_id INTEGER NOT NULL,
	user_id     INTEGER NOT NULL,
	joined_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (chatroom_id, user_id),
	FOREIGN KEY (chatroom_id) REFERENCES chatrooms(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	chatroom_id INTEGER NOT NULL,
	sender_id   INTEGER NOT NULL,
	text        TEXT NOT NULL,
	is_read     BOOLEAN NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	FOREIGN KEY (chatroom_id) REFERENCES chatrooms(id),
	FOREIGN KEY (sender_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(chatroom_id, created_at);
CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships(user_id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests that want to seed data alongside the schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `INSERT INTO users (username, password_hash) VALUES (?, ?)`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT id, username, password_hash, profile_photo_url, created_at FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT id, username, password_hash, profile_photo_url, created_at FROM users WHERE username = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.ProfilePhotoURL, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// ==== RoomStore implementation ====

// CreateOrGetDirectRoom returns the canonical direct room for a user pair,
// creating it with both memberships on first contact.
func (s *SQLiteStore) CreateOrGetDirectRoom(ctx context.Context, userID, otherUserID int64) (*store.Room, bool, error) {
	key := store.DirectKey(userID, otherUserID)

	room, err := s.getRoomByDirectKey(ctx, key)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `INSERT INTO chatrooms (is_group, direct_key) VALUES (0, ?)`, key)
	if err != nil {
		// Lost a race to another create; the unique key guarantees a
		// single canonical room, so re-read it. The transaction must be
		// released first: with a single-connection pool a db-level read
		// would otherwise wait on our own tx forever.
		if strings.Contains(err.Error(), "UNIQUE") {
			tx.Rollback()
			room, getErr := s.getRoomByDirectKey(ctx, key)
			return room, false, getErr
		}
		return nil, false, fmt.Errorf("create direct room: %w", err)
	}

	roomID, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}

	for _, uid := range []int64{userID, otherUserID} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memberships (chatroom_id, user_id) VALUES (?, ?)`, roomID, uid); err != nil {
			return nil, false, fmt.Errorf("add member %d: %w", uid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	room, err = s.GetRoomByID(ctx, roomID)
	return room, true, err
}

// CreateGroupRoom creates a group, its chat room, and memberships.
func (s *SQLiteStore) CreateGroupRoom(ctx context.Context, g *store.Group, memberIDs []int64) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO chat_groups (name, description, member_limit, is_private, creator_id) VALUES (?, ?, ?, ?, ?)`,
		g.Name, g.Description, g.MemberLimit, g.IsPrivate, g.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	groupID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	g.ID = groupID

	result, err = tx.ExecContext(ctx, `INSERT INTO chatrooms (is_group, group_id) VALUES (1, ?)`, groupID)
	if err != nil {
		return nil, fmt.Errorf("create group room: %w", err)
	}
	roomID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	members := append([]int64{g.CreatorID}, memberIDs...)
	for _, uid := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO memberships (chatroom_id, user_id) VALUES (?, ?)`, roomID, uid); err != nil {
			return nil, fmt.Errorf("add member %d: %w", uid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetRoomByID(ctx, roomID)
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	query := `SELECT id, is_group, group_id, direct_key, created_at FROM chatrooms WHERE id = ?`
	return s.scanRoom(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStore) getRoomByDirectKey(ctx context.Context, key string) (*store.Room, error) {
	query := `SELECT id, is_group, group_id, direct_key, created_at FROM chatrooms WHERE direct_key = ?`
	return s.scanRoom(s.db.QueryRowContext(ctx, query, key))
}

func (s *SQLiteStore) scanRoom(row *sql.Row) (*store.Room, error) {
	var r store.Room
	err := row.Scan(&r.ID, &r.IsGroup, &r.GroupID, &r.DirectKey, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan room: %w", err)
	}
	return &r, nil
}

// IsMember checks whether a user belongs to a room.
func (s *SQLiteStore) IsMember(ctx context.Context, userID, roomID int64) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM memberships WHERE chatroom_id = ? AND user_id = ?`
	if err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return n > 0, nil
}

// ListMemberIDs lists user IDs of a room's members.
func (s *SQLiteStore) ListMemberIDs(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM memberships WHERE chatroom_id = ? ORDER BY user_id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRoomsForUser builds the directory listing for a user.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID int64) ([]*store.RoomListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.is_group, c.group_id, c.direct_key, c.created_at
		FROM chatrooms c
		JOIN memberships m ON m.chatroom_id = c.id
		WHERE m.user_id = ?
		ORDER BY c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var listings []*store.RoomListing
	for rows.Next() {
		var r store.Room
		if err := rows.Scan(&r.ID, &r.IsGroup, &r.GroupID, &r.DirectKey, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		listings = append(listings, &store.RoomListing{Room: r})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, l := range listings {
		if err := s.fillListing(ctx, l, userID); err != nil {
			return nil, err
		}
	}
	return listings, nil
}

func (s *SQLiteStore) fillListing(ctx context.Context, l *store.RoomListing, userID int64) error {
	roomID := l.Room.ID

	if l.Room.IsGroup {
		if l.Room.GroupID != nil {
			g, err := s.getGroup(ctx, *l.Room.GroupID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			l.Group = g
		}
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM memberships WHERE chatroom_id = ?`, roomID).Scan(&l.MemberCount); err != nil {
			return fmt.Errorf("member count: %w", err)
		}
	} else {
		other, err := s.otherParticipant(ctx, roomID, userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		l.Other = other
	}

	last, err := s.lastMessage(ctx, roomID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	l.LastMessage = last

	unread, err := s.UnreadCount(ctx, roomID, userID)
	if err != nil {
		return err
	}
	l.UnreadCount = unread
	return nil
}

func (s *SQLiteStore) getGroup(ctx context.Context, id int64) (*store.Group, error) {
	var g store.Group
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, member_limit, is_private, creator_id, created_at
		 FROM chat_groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.Description, &g.MemberLimit, &g.IsPrivate, &g.CreatorID, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan group: %w", err)
	}
	return &g, nil
}

func (s *SQLiteStore) otherParticipant(ctx context.Context, roomID, userID int64) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.password_hash, u.profile_photo_url, u.created_at
		FROM users u
		JOIN memberships m ON m.user_id = u.id
		WHERE m.chatroom_id = ? AND u.id != ?
		LIMIT 1`, roomID, userID)
	return s.scanUser(row)
}

func (s *SQLiteStore) lastMessage(ctx context.Context, roomID int64) (*store.Message, error) {
	var m store.Message
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chatroom_id, sender_id, text, is_read, created_at
		FROM messages WHERE chatroom_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, roomID).
		Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Text, &m.IsRead, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &m, nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in its ID and CreatedAt.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (chatroom_id, sender_id, text, is_read, created_at) VALUES (?, ?, ?, 0, ?)`,
		msg.RoomID, msg.SenderID, msg.Text, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// ListMessages returns a room's messages in send order.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID int64) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chatroom_id, sender_id, text, is_read, created_at
		FROM messages WHERE chatroom_id = ?
		ORDER BY created_at, id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*store.Message
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Text, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// DeleteMessage removes a message if it belongs to senderID.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id, senderID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE id = ? AND sender_id = ?`, id, senderID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkRead marks all messages in a room not sent by userID as read.
func (s *SQLiteStore) MarkRead(ctx context.Context, roomID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE chatroom_id = ? AND sender_id != ? AND is_read = 0`,
		roomID, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// UnreadCount counts unread messages in a room not sent by userID.
func (s *SQLiteStore) UnreadCount(ctx context.Context, roomID, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE chatroom_id = ? AND sender_id != ? AND is_read = 0`,
		roomID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}
