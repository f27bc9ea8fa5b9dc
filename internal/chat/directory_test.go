package chat

import (
	"context"
	"testing"
	"time"

	"github.com/syntaxhq/syntax-chat/internal/api"
	"github.com/syntaxhq/syntax-chat/internal/log"
	"github.com/syntaxhq/syntax-chat/internal/store"
)

func TestDirectoryLoadSortsByRecency(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	alice, _ := b.register(t, "alice")
	_, bobID := b.register(t, "bob")
	_, carolID := b.register(t, "carol")
	_, daveID := b.register(t, "dave")

	bobRoom, err := alice.CreateOrGetRoom(ctx, bobID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	carolRoom, err := alice.CreateOrGetRoom(ctx, carolID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	daveRoom, err := alice.CreateOrGetRoom(ctx, daveID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	// Carol's room has the newest message, Bob's an older one, Dave's none.
	now := time.Now().UTC()
	seedMessage(t, b.store, bobRoom, bobID, "old", now.Add(-time.Hour))
	seedMessage(t, b.store, carolRoom, carolID, "new", now)

	dir := NewDirectory(alice, log.Nop())
	if err := dir.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	rooms := dir.Rooms()
	if len(rooms) != 3 {
		t.Fatalf("expected 3 rooms, got %d", len(rooms))
	}
	if rooms[0].ID != carolRoom || rooms[1].ID != bobRoom || rooms[2].ID != daveRoom {
		t.Fatalf("unexpected order: %d, %d, %d", rooms[0].ID, rooms[1].ID, rooms[2].ID)
	}
	if rooms[2].LastMessage != nil {
		t.Fatalf("empty room should have null last message")
	}
}

func TestDirectoryFilters(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	alice, _ := b.register(t, "alice")
	_, bobID := b.register(t, "bob")
	_, carolID := b.register(t, "carol")

	if _, err := alice.CreateOrGetRoom(ctx, bobID); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := alice.CreateOrGetRoom(ctx, carolID); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := alice.CreateGroup(ctx, api.CreateGroupParams{
		Name:      "Go Study Group",
		MemberIDs: []int64{bobID},
	}); err != nil {
		t.Fatalf("create group: %v", err)
	}

	dir := NewDirectory(alice, log.Nop())
	if err := dir.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := dir.Direct(""); len(got) != 2 {
		t.Fatalf("expected 2 direct rooms, got %d", len(got))
	}
	got := dir.Direct("BO")
	if len(got) != 1 || got[0].OtherUser.Username != "bob" {
		t.Fatalf("filter should match bob case-insensitively, got %v", got)
	}
	if got := dir.Direct("zzz"); len(got) != 0 {
		t.Fatalf("expected no match, got %d", len(got))
	}

	groups := dir.Groups("study")
	if len(groups) != 1 || groups[0].GroupName != "Go Study Group" {
		t.Fatalf("group filter failed: %v", groups)
	}
	if got := dir.Groups("xyz"); len(got) != 0 {
		t.Fatalf("expected no group match, got %d", len(got))
	}
}

func TestDirectoryFetchFailureKeepsSnapshot(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	alice, _ := b.register(t, "alice")
	_, bobID := b.register(t, "bob")
	if _, err := alice.CreateOrGetRoom(ctx, bobID); err != nil {
		t.Fatalf("create room: %v", err)
	}

	dir := NewDirectory(alice, log.Nop())
	if err := dir.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(dir.Rooms()) != 1 {
		t.Fatalf("expected 1 room")
	}

	b.close()

	if err := dir.Load(ctx); err == nil {
		t.Fatalf("expected load error after server shutdown")
	}
	if dir.Err() == nil {
		t.Fatalf("expected recorded error")
	}
	if len(dir.Rooms()) != 1 {
		t.Fatalf("stale snapshot should survive a failed fetch")
	}

	// Refresh swallows the same failure.
	dir.Refresh(ctx)
	if len(dir.Rooms()) != 1 {
		t.Fatalf("refresh must not clear the snapshot on failure")
	}
}

func TestDirectoryHighlight(t *testing.T) {
	dir := NewDirectory(nil, log.Nop())

	if dir.Highlighted(7) {
		t.Fatalf("room should start unhighlighted")
	}
	dir.Highlight(7)
	if !dir.Highlighted(7) {
		t.Fatalf("room should be highlighted")
	}
	dir.Highlight(7) // idempotent
	dir.ClearHighlight(7)
	if dir.Highlighted(7) {
		t.Fatalf("highlight should be cleared")
	}
	dir.ClearHighlight(7) // clearing twice is fine
}

func TestDirectoryOnChange(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	alice, _ := b.register(t, "alice")

	dir := NewDirectory(alice, log.Nop())
	calls := 0
	dir.OnChange(func() { calls++ })

	if err := dir.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 change callback, got %d", calls)
	}
}

func seedMessage(t *testing.T, st store.Store, roomID, senderID int64, text string, at time.Time) {
	t.Helper()
	msg := &store.Message{RoomID: roomID, SenderID: senderID, Text: text, CreatedAt: at}
	if err := st.SaveMessage(context.Background(), msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}
}
