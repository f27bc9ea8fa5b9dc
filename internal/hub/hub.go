package hub

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/syntaxhq/syntax-chat/internal/log"
	"github.com/syntaxhq/syntax-chat/internal/store"
)

type commandKind int

const (
	cmdRegisterRoom commandKind = iota
	cmdUnregisterRoom
	cmdRegisterNotify
	cmdUnregisterNotify
	cmdMessage
	cmdTyping
	cmdDelete
	cmdAnnounceGroup
)

type command struct {
	kind      commandKind
	room      *RoomClient
	notify    *NotifyClient
	roomID    int64
	senderID  int64
	messageID int64
	text      string
	typing    bool
	groupName string
	memberIDs []int64
	done      chan struct{}
}

// Hub routes chat traffic: per-room broadcast plus per-user notification
// fan-out. All registry state is owned by the Run goroutine; the exported
// methods only enqueue commands.
type Hub struct {
	store    store.Store // nil means no persistence (tests)
	logger   *zerolog.Logger
	commands chan command

	// Owned by Run.
	rooms map[int64]map[*RoomClient]struct{}
	users map[int64]map[*NotifyClient]struct{}
}

// NewHub creates a hub. The store may be nil, in which case messages are
// fanned out without being persisted.
func NewHub(st store.Store, logger *zerolog.Logger) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	return &Hub{
		store:    st,
		logger:   logger,
		commands: make(chan command, 64),
		rooms:    make(map[int64]map[*RoomClient]struct{}),
		users:    make(map[int64]map[*NotifyClient]struct{}),
	}
}

// Run processes commands until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.commands:
			h.handle(ctx, cmd)
		}
	}
}

// RegisterRoomClient subscribes a connection to its room's traffic. It
// returns once the hub has applied the registration, so a history
// snapshot taken afterwards cannot miss a later broadcast.
func (h *Hub) RegisterRoomClient(rc *RoomClient) {
	done := make(chan struct{})
	h.commands <- command{kind: cmdRegisterRoom, room: rc, done: done}
	<-done
}

// UnregisterRoomClient removes a room connection.
func (h *Hub) UnregisterRoomClient(rc *RoomClient) {
	h.commands <- command{kind: cmdUnregisterRoom, room: rc}
}

// RegisterNotifyClient subscribes a user's notification socket. Returns
// once the registration is applied.
func (h *Hub) RegisterNotifyClient(nc *NotifyClient) {
	done := make(chan struct{})
	h.commands <- command{kind: cmdRegisterNotify, notify: nc, done: done}
	<-done
}

// UnregisterNotifyClient removes a notification socket.
func (h *Hub) UnregisterNotifyClient(nc *NotifyClient) {
	h.commands <- command{kind: cmdUnregisterNotify, notify: nc}
}

// SendMessage persists and fans out a chat message from rc's connection.
func (h *Hub) SendMessage(rc *RoomClient, senderID int64, text string) {
	h.commands <- command{kind: cmdMessage, room: rc, roomID: rc.RoomID, senderID: senderID, text: text}
}

// SendTyping relays a typing signal to rc's room.
func (h *Hub) SendTyping(rc *RoomClient, senderID int64, typing bool) {
	h.commands <- command{kind: cmdTyping, room: rc, roomID: rc.RoomID, senderID: senderID, typing: typing}
}

// DeleteMessage removes one of the sender's own messages from rc's room.
func (h *Hub) DeleteMessage(rc *RoomClient, senderID, messageID int64) {
	h.commands <- command{kind: cmdDelete, room: rc, roomID: rc.RoomID, senderID: senderID, messageID: messageID}
}

// AnnounceGroup tells each member's notification sockets about a newly
// created group room.
func (h *Hub) AnnounceGroup(roomID int64, groupName string, memberIDs []int64) {
	h.commands <- command{kind: cmdAnnounceGroup, roomID: roomID, groupName: groupName, memberIDs: memberIDs}
}

func (h *Hub) handle(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdRegisterRoom:
		clients, ok := h.rooms[cmd.room.RoomID]
		if !ok {
			clients = make(map[*RoomClient]struct{})
			h.rooms[cmd.room.RoomID] = clients
		}
		clients[cmd.room] = struct{}{}
	case cmdUnregisterRoom:
		if clients, ok := h.rooms[cmd.room.RoomID]; ok {
			delete(clients, cmd.room)
			if len(clients) == 0 {
				delete(h.rooms, cmd.room.RoomID)
			}
		}
	case cmdRegisterNotify:
		clients, ok := h.users[cmd.notify.UserID]
		if !ok {
			clients = make(map[*NotifyClient]struct{})
			h.users[cmd.notify.UserID] = clients
		}
		clients[cmd.notify] = struct{}{}
	case cmdUnregisterNotify:
		if clients, ok := h.users[cmd.notify.UserID]; ok {
			delete(clients, cmd.notify)
			if len(clients) == 0 {
				delete(h.users, cmd.notify.UserID)
			}
		}
	case cmdMessage:
		h.handleMessage(ctx, cmd)
	case cmdTyping:
		h.broadcast(cmd.roomID, &Event{
			Kind:     EventTyping,
			RoomID:   cmd.roomID,
			SenderID: cmd.senderID,
			IsTyping: cmd.typing,
		})
	case cmdDelete:
		h.handleDelete(ctx, cmd)
	case cmdAnnounceGroup:
		ts := time.Now().UTC()
		for _, uid := range cmd.memberIDs {
			h.notifyUser(uid, &Event{
				Kind:      EventNotifyGroup,
				RoomID:    cmd.roomID,
				GroupName: cmd.groupName,
				Timestamp: ts,
			})
		}
	}

	if cmd.done != nil {
		close(cmd.done)
	}
}

func (h *Hub) handleMessage(ctx context.Context, cmd command) {
	text := strings.TrimSpace(cmd.text)
	if text == "" {
		h.sendTo(cmd.room, errorEvent(ErrCodeMessageRequired, "Message is required"))
		return
	}
	if cmd.senderID == 0 {
		h.sendTo(cmd.room, errorEvent(ErrCodeSenderRequired, "Sender ID is required"))
		return
	}

	msg := store.Message{
		RoomID:    cmd.roomID,
		SenderID:  cmd.senderID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	var memberIDs []int64
	if h.store != nil {
		if _, err := h.store.GetRoomByID(ctx, cmd.roomID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				h.sendTo(cmd.room, errorEvent(ErrCodeRoomNotFound, "Chat room not found"))
				return
			}
			h.logger.Error().Err(err).Int64("room_id", cmd.roomID).Msg("lookup room")
			h.sendTo(cmd.room, errorEvent(ErrCodePersistFailed, "Failed to save message"))
			return
		}
		if err := h.store.SaveMessage(ctx, &msg); err != nil {
			h.logger.Error().Err(err).Int64("room_id", cmd.roomID).Msg("save message")
			h.sendTo(cmd.room, errorEvent(ErrCodePersistFailed, "Failed to save message"))
			return
		}
		ids, err := h.store.ListMemberIDs(ctx, cmd.roomID)
		if err != nil {
			h.logger.Warn().Err(err).Int64("room_id", cmd.roomID).Msg("list members for notify")
		}
		memberIDs = ids
	} else {
		// Without a store the participants are whoever is connected.
		for rc := range h.rooms[cmd.roomID] {
			memberIDs = append(memberIDs, rc.UserID)
		}
	}

	h.broadcast(cmd.roomID, &Event{
		Kind:      EventMessage,
		RoomID:    cmd.roomID,
		SenderID:  cmd.senderID,
		MessageID: msg.ID,
		Text:      text,
		Timestamp: msg.CreatedAt,
	})

	for _, uid := range memberIDs {
		if uid == cmd.senderID {
			continue
		}
		h.notifyUser(uid, &Event{
			Kind:      EventNotifyMessage,
			RoomID:    cmd.roomID,
			SenderID:  cmd.senderID,
			Text:      text,
			Timestamp: msg.CreatedAt,
		})
	}
}

func (h *Hub) handleDelete(ctx context.Context, cmd command) {
	if h.store != nil {
		if err := h.store.DeleteMessage(ctx, cmd.messageID, cmd.senderID); err != nil {
			h.sendTo(cmd.room, errorEvent(ErrCodeDeleteFailed, "Cannot delete this message"))
			return
		}
	}
	h.broadcast(cmd.roomID, &Event{
		Kind:      EventDelete,
		RoomID:    cmd.roomID,
		SenderID:  cmd.senderID,
		MessageID: cmd.messageID,
	})
}

func (h *Hub) broadcast(roomID int64, ev *Event) {
	for rc := range h.rooms[roomID] {
		h.sendTo(rc, ev)
	}
}

func (h *Hub) notifyUser(userID int64, ev *Event) {
	for nc := range h.users[userID] {
		select {
		case nc.Events <- ev:
		default:
			h.logger.Warn().Int64("user_id", userID).Msg("dropping event for slow notify client")
		}
	}
}

func (h *Hub) sendTo(rc *RoomClient, ev *Event) {
	if rc == nil {
		return
	}
	select {
	case rc.Events <- ev:
	default:
		h.logger.Warn().Str("client_id", rc.ID).Msg("dropping event for slow room client")
	}
}

func errorEvent(code, msg string) *Event {
	return &Event{Kind: EventError, Err: hubError(code, msg)}
}
