package server

import (
	"net/http"
	"testing"

	"github.com/syntaxhq/syntax-chat/internal/proto"
)

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	client, id := s.register(t, "alice")
	if id == 0 {
		t.Fatalf("expected a user id")
	}

	// The register response left a session cookie behind.
	var profile ProfileResponse
	if status := getJSON(t, client, s.ts.URL+"/profile/", &profile); status != http.StatusOK {
		t.Fatalf("profile status %d", status)
	}
	if profile.ID != id || profile.Username != "alice" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	// Duplicate username is rejected.
	resp := postJSON(t, client, s.ts.URL+"/auth/register/", map[string]string{
		"username": "alice", "password": "password123",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status %d, want 409", resp.StatusCode)
	}

	// Fresh client, wrong password.
	other := s.sessionClient(t)
	resp = postJSON(t, other, s.ts.URL+"/auth/login/", map[string]string{
		"username": "alice", "password": "wrong",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status %d, want 401", resp.StatusCode)
	}

	resp = postJSON(t, other, s.ts.URL+"/auth/login/", map[string]string{
		"username": "alice", "password": "password123",
	})
	var logged ProfileResponse
	decodeJSON(t, resp, &logged)
	if resp.StatusCode != http.StatusOK || logged.ID != id {
		t.Fatalf("login status %d profile %+v", resp.StatusCode, logged)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	client := s.sessionClient(t)

	for _, url := range []string{
		s.ts.URL + "/profile/",
		s.ts.URL + "/chat/chatroomlist/",
	} {
		if status := getJSON(t, client, url, nil); status != http.StatusUnauthorized {
			t.Fatalf("GET %s without session: status %d, want 401", url, status)
		}
	}
	resp := postJSON(t, client, s.ts.URL+"/chat/mark-as-read/", map[string]int64{"chatroom_id": 1})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("mark-as-read without session: status %d, want 401", resp.StatusCode)
	}
}

func TestCreateOrGetRoomIdempotent(t *testing.T) {
	s := newTestServer(t)

	alice, _ := s.register(t, "alice")
	_, bobID := s.register(t, "bob")

	resp := postJSON(t, alice, s.ts.URL+"/chat/create-or-get-room/", map[string]int64{"user_id": bobID})
	var first CreateOrGetRoomResponse
	decodeJSON(t, resp, &first)
	if resp.StatusCode != http.StatusOK || first.RoomID == 0 {
		t.Fatalf("first resolve: status %d, room %d", resp.StatusCode, first.RoomID)
	}

	resp = postJSON(t, alice, s.ts.URL+"/chat/create-or-get-room/", map[string]int64{"user_id": bobID})
	var second CreateOrGetRoomResponse
	decodeJSON(t, resp, &second)
	if second.RoomID != first.RoomID {
		t.Fatalf("repeat resolve produced a new room: %d vs %d", second.RoomID, first.RoomID)
	}

	// Unknown target user.
	resp = postJSON(t, alice, s.ts.URL+"/chat/create-or-get-room/", map[string]int64{"user_id": 9999})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown user: status %d, want 404", resp.StatusCode)
	}
}

func TestChatRoomListShape(t *testing.T) {
	s := newTestServer(t)

	alice, _ := s.register(t, "alice")
	_, bobID := s.register(t, "bob")

	resp := postJSON(t, alice, s.ts.URL+"/chat/create-or-get-room/", map[string]int64{"user_id": bobID})
	var room CreateOrGetRoomResponse
	decodeJSON(t, resp, &room)

	var rooms []proto.ChatRoom
	if status := getJSON(t, alice, s.ts.URL+"/chat/chatroomlist/", &rooms); status != http.StatusOK {
		t.Fatalf("list status %d", status)
	}
	if len(rooms) != 1 {
		t.Fatalf("expected 1 room, got %d", len(rooms))
	}
	got := rooms[0]
	if got.ID != room.RoomID || got.IsGroup {
		t.Fatalf("unexpected room: %+v", got)
	}
	if got.OtherUser == nil || got.OtherUser.Username != "bob" {
		t.Fatalf("direct room must carry the other user: %+v", got.OtherUser)
	}
	if got.LastMessage != nil || got.LastMessageTime != nil {
		t.Fatalf("empty room must have null last message fields")
	}
	if got.UnreadCount != 0 {
		t.Fatalf("unread count %d, want 0", got.UnreadCount)
	}
}

func TestMarkAsRead(t *testing.T) {
	s := newTestServer(t)

	alice, _ := s.register(t, "alice")
	_, bobID := s.register(t, "bob")

	resp := postJSON(t, alice, s.ts.URL+"/chat/create-or-get-room/", map[string]int64{"user_id": bobID})
	var room CreateOrGetRoomResponse
	decodeJSON(t, resp, &room)

	seedUnread(t, s, room.RoomID, bobID, "hi", 2)

	var rooms []proto.ChatRoom
	getJSON(t, alice, s.ts.URL+"/chat/chatroomlist/", &rooms)
	if rooms[0].UnreadCount != 2 {
		t.Fatalf("unread before: %d, want 2", rooms[0].UnreadCount)
	}

	resp = postJSON(t, alice, s.ts.URL+"/chat/mark-as-read/", map[string]int64{"chatroom_id": room.RoomID})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark-as-read status %d", resp.StatusCode)
	}

	getJSON(t, alice, s.ts.URL+"/chat/chatroomlist/", &rooms)
	if rooms[0].UnreadCount != 0 {
		t.Fatalf("unread after: %d, want 0", rooms[0].UnreadCount)
	}

	// Repeat acknowledgement is a no-op, not an error.
	resp = postJSON(t, alice, s.ts.URL+"/chat/mark-as-read/", map[string]int64{"chatroom_id": room.RoomID})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat mark-as-read status %d", resp.StatusCode)
	}
}

func TestMarkAsReadRequiresMembership(t *testing.T) {
	s := newTestServer(t)

	alice, _ := s.register(t, "alice")
	_, bobID := s.register(t, "bob")
	mallory, _ := s.register(t, "mallory")

	resp := postJSON(t, alice, s.ts.URL+"/chat/create-or-get-room/", map[string]int64{"user_id": bobID})
	var room CreateOrGetRoomResponse
	decodeJSON(t, resp, &room)

	seedUnread(t, s, room.RoomID, bobID, "private", 1)

	// An outsider cannot touch the room's read state.
	resp = postJSON(t, mallory, s.ts.URL+"/chat/mark-as-read/", map[string]int64{"chatroom_id": room.RoomID})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider mark-as-read status %d, want 403", resp.StatusCode)
	}

	var rooms []proto.ChatRoom
	getJSON(t, alice, s.ts.URL+"/chat/chatroomlist/", &rooms)
	if rooms[0].UnreadCount != 1 {
		t.Fatalf("outsider changed unread count: %d, want 1", rooms[0].UnreadCount)
	}
}

func TestCreateGroupValidation(t *testing.T) {
	s := newTestServer(t)

	alice, _ := s.register(t, "alice")
	_, bobID := s.register(t, "bob")
	_, carolID := s.register(t, "carol")

	// Name is required.
	resp := postJSON(t, alice, s.ts.URL+"/chat/create-group/", CreateGroupRequest{
		MemberIDs: []int64{bobID},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("nameless group: status %d, want 400", resp.StatusCode)
	}

	// Member limit counts the creator.
	resp = postJSON(t, alice, s.ts.URL+"/chat/create-group/", CreateGroupRequest{
		Name:        "tiny",
		MemberLimit: 2,
		MemberIDs:   []int64{bobID, carolID},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("over-limit group: status %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, alice, s.ts.URL+"/chat/create-group/", CreateGroupRequest{
		Name:        "weekend crew",
		Description: "plans",
		MemberIDs:   []int64{bobID, carolID},
	})
	var created CreateGroupResponse
	decodeJSON(t, resp, &created)
	if resp.StatusCode != http.StatusCreated || created.ChatroomID == 0 {
		t.Fatalf("create group: status %d, response %+v", resp.StatusCode, created)
	}

	// Every member sees the group in their directory.
	var rooms []proto.ChatRoom
	getJSON(t, alice, s.ts.URL+"/chat/chatroomlist/", &rooms)
	if len(rooms) != 1 || !rooms[0].IsGroup || rooms[0].GroupName != "weekend crew" {
		t.Fatalf("creator's directory: %+v", rooms)
	}
	if rooms[0].MemberCount != 3 {
		t.Fatalf("member count %d, want 3", rooms[0].MemberCount)
	}
}
