package proto

// UserMini is the compact user representation embedded in room listings.
type UserMini struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	ProfilePhotoURL string `json:"profile_photo_url,omitempty"`
}

// ChatRoom is one entry of the room directory listing.
// OtherUser is set only for direct rooms; the group fields only for group
// rooms. LastMessage and LastMessageTime are null for rooms with no
// messages yet.
type ChatRoom struct {
	ID              int64     `json:"id"`
	IsGroup         bool      `json:"is_group"`
	OtherUser       *UserMini `json:"other_user,omitempty"`
	GroupName       string    `json:"group_name,omitempty"`
	Description     string    `json:"description,omitempty"`
	MemberCount     int       `json:"member_count,omitempty"`
	IsPrivate       bool      `json:"is_private,omitempty"`
	LastMessage     *string   `json:"last_message"`
	LastMessageTime *string   `json:"last_message_time"`
	UnreadCount     int       `json:"unread_count"`
}

// Room socket control frame types.
const (
	FrameTypeTyping = "typing"
	FrameTypeDelete = "delete"
)

// RoomFrame is a server frame on a room socket. A frame with Error set is
// a channel-level error notice; Type selects typing/delete control frames;
// everything else is a chat message.
type RoomFrame struct {
	Error     string `json:"error,omitempty"`
	Type      string `json:"type,omitempty"`
	Message   string `json:"message,omitempty"`
	SenderID  int64  `json:"sender_id,omitempty"`
	MessageID int64  `json:"message_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
}

// RoomSend is a client frame on a room socket. Message send carries
// Message+SenderID; Typing non-nil marks a typing signal; DeleteID asks to
// delete one of the sender's own messages.
type RoomSend struct {
	Message  string `json:"message,omitempty"`
	SenderID int64  `json:"sender_id"`
	Typing   *bool  `json:"typing,omitempty"`
	DeleteID int64  `json:"delete_id,omitempty"`
}

// Notification event types delivered on the per-user notification socket.
const (
	NotificationNewMessage = "new_message"
	NotificationNewGroup   = "new_group"
)

// Notification is a frame on the notification socket. It is advisory: the
// client re-pulls the room directory rather than applying it directly.
type Notification struct {
	Type       string `json:"type"`
	ChatroomID int64  `json:"chatroom_id,omitempty"`
	SenderID   int64  `json:"sender_id,omitempty"`
	Message    string `json:"message,omitempty"`
	GroupName  string `json:"group_name,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
}
