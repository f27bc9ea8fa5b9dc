package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/syntaxhq/syntax-chat/internal/api"
	"github.com/syntaxhq/syntax-chat/internal/proto"
)

// Directory is the client-side room list. It holds the last fetched
// snapshot, keeps it sorted by recency, and tracks per-room highlight
// state for rooms with activity the user has not looked at yet.
//
// The snapshot is replaced wholesale on every fetch; notifications only
// trigger a re-pull, they are never applied to it directly.
type Directory struct {
	client *api.Client
	log    *zerolog.Logger

	mu          sync.Mutex
	rooms       []proto.ChatRoom
	highlighted map[int64]struct{}
	listeners   []func()
	lastErr     error
}

// NewDirectory builds an empty directory backed by the given API client.
func NewDirectory(client *api.Client, logger *zerolog.Logger) *Directory {
	return &Directory{
		client:      client,
		log:         logger,
		highlighted: make(map[int64]struct{}),
	}
}

// Load fetches the room list and replaces the snapshot. A fetch failure
// keeps the previous snapshot and is returned to the caller.
func (d *Directory) Load(ctx context.Context) error {
	var rooms []proto.ChatRoom
	if err := d.client.ListChatRooms(ctx, &rooms); err != nil {
		d.mu.Lock()
		d.lastErr = err
		d.mu.Unlock()
		return err
	}
	d.replace(rooms)
	return nil
}

// Refresh re-pulls the room list in the background. Failures are logged
// and the stale snapshot stays visible; the next notification or
// activation retries anyway.
func (d *Directory) Refresh(ctx context.Context) {
	if err := d.Load(ctx); err != nil {
		d.log.Warn().Err(err).Msg("room list refresh failed")
	}
}

func (d *Directory) replace(rooms []proto.ChatRoom) {
	sortRooms(rooms)

	d.mu.Lock()
	d.rooms = rooms
	d.lastErr = nil
	listeners := make([]func(), len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Rooms returns the current snapshot, most recent activity first.
func (d *Directory) Rooms() []proto.ChatRoom {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]proto.ChatRoom, len(d.rooms))
	copy(out, d.rooms)
	return out
}

// Direct returns direct rooms whose other user's name contains filter,
// case insensitively. An empty filter matches everything.
func (d *Directory) Direct(filter string) []proto.ChatRoom {
	filter = strings.ToLower(filter)
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []proto.ChatRoom
	for _, room := range d.rooms {
		if room.IsGroup || room.OtherUser == nil {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(room.OtherUser.Username), filter) {
			continue
		}
		out = append(out, room)
	}
	return out
}

// Groups returns group rooms whose name contains filter, case
// insensitively. An empty filter matches everything.
func (d *Directory) Groups(filter string) []proto.ChatRoom {
	filter = strings.ToLower(filter)
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []proto.ChatRoom
	for _, room := range d.rooms {
		if !room.IsGroup {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(room.GroupName), filter) {
			continue
		}
		out = append(out, room)
	}
	return out
}

// Highlight marks a room as having unseen activity.
func (d *Directory) Highlight(roomID int64) {
	d.mu.Lock()
	d.highlighted[roomID] = struct{}{}
	d.mu.Unlock()
}

// ClearHighlight removes the unseen-activity mark from a room.
func (d *Directory) ClearHighlight(roomID int64) {
	d.mu.Lock()
	delete(d.highlighted, roomID)
	d.mu.Unlock()
}

// Highlighted reports whether a room has unseen activity.
func (d *Directory) Highlighted(roomID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.highlighted[roomID]
	return ok
}

// OnChange registers a callback invoked after every snapshot replacement.
// Callbacks run on the refreshing goroutine and must not block.
func (d *Directory) OnChange(fn func()) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// Err returns the error of the last failed fetch, cleared by the next
// successful one.
func (d *Directory) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// sortRooms orders by last message time, newest first. Rooms with no
// messages, or with timestamps that do not parse, sort last.
func sortRooms(rooms []proto.ChatRoom) {
	type key struct {
		t  time.Time
		ok bool
	}
	keys := make(map[int64]key, len(rooms))
	for _, room := range rooms {
		if room.LastMessageTime == nil {
			continue
		}
		t, ok := proto.ParseTimestamp(*room.LastMessageTime)
		keys[room.ID] = key{t: t, ok: ok}
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := keys[rooms[i].ID], keys[rooms[j].ID]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false
		}
		return a.t.After(b.t)
	})
}
