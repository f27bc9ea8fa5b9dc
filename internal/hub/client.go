package hub

// eventBuffer is the per-connection event queue size. Slow consumers past
// this are dropped rather than blocking the hub.
const eventBuffer = 16

// RoomClient is one websocket connection scoped to a single chat room.
type RoomClient struct {
	ID     string
	UserID int64
	RoomID int64
	Events chan *Event
}

// NewRoomClient constructs a room client with an initialized event queue.
func NewRoomClient(id string, userID, roomID int64) *RoomClient {
	return &RoomClient{
		ID:     id,
		UserID: userID,
		RoomID: roomID,
		Events: make(chan *Event, eventBuffer),
	}
}

// NotifyClient is one session-wide notification socket for a user. A user
// may hold several (multiple tabs); each gets its own queue.
type NotifyClient struct {
	ID     string
	UserID int64
	Events chan *Event
}

// NewNotifyClient constructs a notification client.
func NewNotifyClient(id string, userID int64) *NotifyClient {
	return &NotifyClient{
		ID:     id,
		UserID: userID,
		Events: make(chan *Event, eventBuffer),
	}
}
