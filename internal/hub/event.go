package hub

import "time"

// EventKind describes what the hub is telling a connection.
type EventKind int

const (
	// EventMessage delivers a chat message to room connections.
	EventMessage EventKind = iota
	// EventTyping relays a typing signal to room connections.
	EventTyping
	// EventDelete tells room connections a message was removed.
	EventDelete
	// EventError reports a room-level error back to the origin connection.
	EventError
	// EventNotifyMessage tells a user's notification sockets that a room
	// they belong to received a message.
	EventNotifyMessage
	// EventNotifyGroup tells a user's notification sockets they were added
	// to a new group.
	EventNotifyGroup
)

// Event is sent to connections to describe what happened.
type Event struct {
	Kind      EventKind
	RoomID    int64
	SenderID  int64
	MessageID int64
	Text      string
	Timestamp time.Time
	IsTyping  bool
	GroupName string
	Err       *Error
}
