package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestActiveRoomIndexRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	idx := NewActiveRoomIndex(newClient(mr), time.Minute)
	ctx := context.Background()

	if _, ok, err := idx.ActiveRoom(ctx, "quiz-1"); err != nil || ok {
		t.Fatalf("expected no active room, got ok=%v err=%v", ok, err)
	}

	if err := idx.MarkActive(ctx, "quiz-1", "room-42"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	roomID, ok, err := idx.ActiveRoom(ctx, "quiz-1")
	if err != nil || !ok || roomID != "room-42" {
		t.Fatalf("expected room-42, got %q ok=%v err=%v", roomID, ok, err)
	}
	if got, _ := mr.Get("room:active:quiz-1"); got != "room-42" {
		t.Fatalf("unexpected key value %q", got)
	}

	if err := idx.ClearActive(ctx, "quiz-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := idx.ActiveRoom(ctx, "quiz-1"); ok {
		t.Fatalf("expected cleared index")
	}
}

func TestActiveRoomIndexExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	idx := NewActiveRoomIndex(newClient(mr), time.Second)
	ctx := context.Background()

	if err := idx.MarkActive(ctx, "quiz-1", "room-42"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, ok, _ := idx.ActiveRoom(ctx, "quiz-1"); ok {
		t.Fatalf("expected marker to expire")
	}
}
