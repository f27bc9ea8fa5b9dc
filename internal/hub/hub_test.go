package hub

import (
	"context"
	"testing"
	"time"
)

func TestHubBroadcastsToRoomAndNotifiesOthers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	h := NewHub(nil, nil) // no store needed for fan-out behavior
	go h.Run(ctx)

	alice := NewRoomClient("conn-a", 1, 42)
	bob := NewRoomClient("conn-b", 2, 42)
	bobNotify := NewNotifyClient("notify-b", 2)

	h.RegisterRoomClient(alice)
	h.RegisterRoomClient(bob)
	h.RegisterNotifyClient(bobNotify)

	h.SendMessage(alice, 1, "hi")

	// Both room connections see the message, in-room order is authoritative.
	for _, rc := range []*RoomClient{alice, bob} {
		ev := mustEvent(t, rc.Events, EventMessage)
		if ev.Text != "hi" || ev.SenderID != 1 || ev.RoomID != 42 {
			t.Fatalf("unexpected message event: %+v", ev)
		}
	}

	// Bob's notification socket hears about it; the sender's would not.
	notice := mustEvent(t, bobNotify.Events, EventNotifyMessage)
	if notice.RoomID != 42 || notice.SenderID != 1 {
		t.Fatalf("unexpected notify event: %+v", notice)
	}
}

func TestHubSenderNotificationSocketStaysQuiet(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	h := NewHub(nil, nil)
	go h.Run(ctx)

	alice := NewRoomClient("conn-a", 1, 42)
	aliceNotify := NewNotifyClient("notify-a", 1)

	h.RegisterRoomClient(alice)
	h.RegisterNotifyClient(aliceNotify)

	h.SendMessage(alice, 1, "talking to myself")

	mustEvent(t, alice.Events, EventMessage)
	mustNoEvent(t, aliceNotify.Events, 100*time.Millisecond)
}

func TestHubEmptyMessageProducesError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	h := NewHub(nil, nil)
	go h.Run(ctx)

	alice := NewRoomClient("conn-a", 1, 42)
	h.RegisterRoomClient(alice)

	h.SendMessage(alice, 1, "   ")

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Err == nil || ev.Err.Code != ErrCodeMessageRequired {
		t.Fatalf("expected message_required error, got %+v", ev)
	}
}

func TestHubMissingSenderProducesError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	h := NewHub(nil, nil)
	go h.Run(ctx)

	alice := NewRoomClient("conn-a", 1, 42)
	h.RegisterRoomClient(alice)

	h.SendMessage(alice, 0, "hello")

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Err == nil || ev.Err.Code != ErrCodeSenderRequired {
		t.Fatalf("expected sender_required error, got %+v", ev)
	}
}

func TestHubTypingRelayedToRoom(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	h := NewHub(nil, nil)
	go h.Run(ctx)

	alice := NewRoomClient("conn-a", 1, 42)
	bob := NewRoomClient("conn-b", 2, 42)
	h.RegisterRoomClient(alice)
	h.RegisterRoomClient(bob)

	h.SendTyping(alice, 1, true)

	ev := mustEvent(t, bob.Events, EventTyping)
	if !ev.IsTyping || ev.SenderID != 1 {
		t.Fatalf("unexpected typing event: %+v", ev)
	}
}

func TestHubGroupAnnouncementReachesMembers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	h := NewHub(nil, nil)
	go h.Run(ctx)

	bobNotify := NewNotifyClient("notify-b", 2)
	carolNotify := NewNotifyClient("notify-c", 3)
	h.RegisterNotifyClient(bobNotify)
	h.RegisterNotifyClient(carolNotify)

	h.AnnounceGroup(77, "gophers", []int64{2, 3})

	for _, nc := range []*NotifyClient{bobNotify, carolNotify} {
		ev := mustEvent(t, nc.Events, EventNotifyGroup)
		if ev.RoomID != 77 || ev.GroupName != "gophers" {
			t.Fatalf("unexpected group event: %+v", ev)
		}
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	h := NewHub(nil, nil)
	go h.Run(ctx)

	alice := NewRoomClient("conn-a", 1, 42)
	bob := NewRoomClient("conn-b", 2, 42)
	h.RegisterRoomClient(alice)
	h.RegisterRoomClient(bob)

	h.UnregisterRoomClient(bob)
	h.SendMessage(alice, 1, "anyone there?")

	mustEvent(t, alice.Events, EventMessage)
	mustNoEvent(t, bob.Events, 100*time.Millisecond)
}
