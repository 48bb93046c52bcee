package app

import (
	"context"

	"quizroom-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// RoomStore is the persistence port for structural room state. Every
// structural mutation (join/leave/ready/promote) is written through before
// the in-memory view changes; per-question answer data is only persisted
// as final scores at game end.
type RoomStore interface {
	NextSessionNumber(ctx context.Context, quizID string) (int64, error)
	CreateRoom(ctx context.Context, room domain.RoomRecord) error
	UpdateRoomPhase(ctx context.Context, roomID string, phase domain.Phase) error
	AddParticipant(ctx context.Context, roomID string, p domain.Participant) error
	RemoveParticipant(ctx context.Context, roomID, userID string) error
	SetReady(ctx context.Context, roomID, userID string, ready bool) error
	SetAdmin(ctx context.Context, roomID, userID string, admin bool) error
	SaveScores(ctx context.Context, roomID string, scores map[string]int) error
}

// RewardNotifier delivers the final leaderboard to the external reward
// service. Best-effort: failures are broadcast but never block game end.
type RewardNotifier interface {
	DistributeRewards(ctx context.Context, roomID string, sessionNumber int64, leaderboard domain.Leaderboard) (details string, err error)
}

// ActiveRoomIndex marks which quiz currently has a live room. Best-effort
// liveness signal; the supervisor's in-memory routing table stays
// authoritative.
type ActiveRoomIndex interface {
	MarkActive(ctx context.Context, quizID, roomID string) error
	ClearActive(ctx context.Context, quizID string) error
}
