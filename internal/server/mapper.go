package server

import (
	"github.com/syntaxhq/syntax-chat/internal/hub"
	"github.com/syntaxhq/syntax-chat/internal/proto"
	"github.com/syntaxhq/syntax-chat/internal/store"
)

func chatRoomsFromListings(listings []*store.RoomListing) []proto.ChatRoom {
	rooms := make([]proto.ChatRoom, 0, len(listings))
	for _, l := range listings {
		rooms = append(rooms, chatRoomFromListing(l))
	}
	return rooms
}

func chatRoomFromListing(l *store.RoomListing) proto.ChatRoom {
	room := proto.ChatRoom{
		ID:          l.Room.ID,
		IsGroup:     l.Room.IsGroup,
		UnreadCount: l.UnreadCount,
	}

	if l.Other != nil {
		room.OtherUser = &proto.UserMini{
			ID:              l.Other.ID,
			Username:        l.Other.Username,
			ProfilePhotoURL: l.Other.ProfilePhotoURL,
		}
	}
	if l.Group != nil {
		room.GroupName = l.Group.Name
		room.Description = l.Group.Description
		room.IsPrivate = l.Group.IsPrivate
		room.MemberCount = l.MemberCount
	}
	if l.LastMessage != nil {
		text := l.LastMessage.Text
		ts := proto.FormatTimestamp(l.LastMessage.CreatedAt)
		room.LastMessage = &text
		room.LastMessageTime = &ts
	}
	return room
}

func messageFrame(msg *store.Message) proto.RoomFrame {
	return proto.RoomFrame{
		Message:   msg.Text,
		SenderID:  msg.SenderID,
		MessageID: msg.ID,
		Timestamp: proto.FormatTimestamp(msg.CreatedAt),
	}
}

// frameFromEvent maps a hub event to its room socket frame. Returns false
// for event kinds that never appear on room sockets.
func frameFromEvent(ev *hub.Event) (proto.RoomFrame, bool) {
	switch ev.Kind {
	case hub.EventMessage:
		return proto.RoomFrame{
			Message:   ev.Text,
			SenderID:  ev.SenderID,
			MessageID: ev.MessageID,
			Timestamp: proto.FormatTimestamp(ev.Timestamp),
		}, true
	case hub.EventTyping:
		return proto.RoomFrame{
			Type:     proto.FrameTypeTyping,
			SenderID: ev.SenderID,
			IsTyping: ev.IsTyping,
		}, true
	case hub.EventDelete:
		return proto.RoomFrame{
			Type:      proto.FrameTypeDelete,
			MessageID: ev.MessageID,
		}, true
	case hub.EventError:
		msg := "internal error"
		if ev.Err != nil {
			msg = ev.Err.Message
		}
		return proto.RoomFrame{Error: msg}, true
	default:
		return proto.RoomFrame{}, false
	}
}

// notificationFromEvent maps a hub event to its notification socket frame.
func notificationFromEvent(ev *hub.Event) (proto.Notification, bool) {
	switch ev.Kind {
	case hub.EventNotifyMessage:
		return proto.Notification{
			Type:       proto.NotificationNewMessage,
			ChatroomID: ev.RoomID,
			SenderID:   ev.SenderID,
			Message:    ev.Text,
			Timestamp:  proto.FormatTimestamp(ev.Timestamp),
		}, true
	case hub.EventNotifyGroup:
		return proto.Notification{
			Type:       proto.NotificationNewGroup,
			ChatroomID: ev.RoomID,
			GroupName:  ev.GroupName,
			Timestamp:  proto.FormatTimestamp(ev.Timestamp),
		}, true
	default:
		return proto.Notification{}, false
	}
}
