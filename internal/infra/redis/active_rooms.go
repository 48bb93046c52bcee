package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveRoomIndex marks which quiz currently has a live room
// (SET room:active:{quizID} -> roomID). Best-effort liveness signal; the
// supervisor's in-memory routing table stays authoritative. With a TTL it
// also self-heals after a crashed instance.
type ActiveRoomIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func NewActiveRoomIndex(client *redis.Client, ttl time.Duration) *ActiveRoomIndex {
	return &ActiveRoomIndex{client: client, ttl: ttl}
}

func (i *ActiveRoomIndex) MarkActive(ctx context.Context, quizID, roomID string) error {
	return i.client.Set(ctx, i.key(quizID), roomID, i.ttl).Err()
}

func (i *ActiveRoomIndex) ClearActive(ctx context.Context, quizID string) error {
	return i.client.Del(ctx, i.key(quizID)).Err()
}

// ActiveRoom reports the marked room for a quiz, if any.
func (i *ActiveRoomIndex) ActiveRoom(ctx context.Context, quizID string) (string, bool, error) {
	roomID, err := i.client.Get(ctx, i.key(quizID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return roomID, true, nil
}

func (i *ActiveRoomIndex) key(quizID string) string {
	return "room:active:" + quizID
}
