package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quizroom-service/internal/domain"
)

type roomRow struct {
	bun.BaseModel `bun:"table:rooms"`

	ID            string    `bun:"id,pk"`
	QuizID        string    `bun:"quiz_id"`
	SessionNumber int64     `bun:"session_number"`
	Status        string    `bun:"status"`
	CreatedAt     time.Time `bun:"created_at"`
}

type participantRow struct {
	bun.BaseModel `bun:"table:participants"`

	RoomID      string    `bun:"room_id,pk"`
	UserID      string    `bun:"user_id,pk"`
	DisplayName string    `bun:"display_name"`
	Ready       bool      `bun:"ready"`
	IsAdmin     bool      `bun:"is_admin"`
	IsCreator   bool      `bun:"is_creator"`
	JoinedAt    time.Time `bun:"joined_at"`
	Score       int       `bun:"score"`
}

// RoomStore persists room and participant structural state in Postgres.
// It is the write-through target for every structural room mutation.
type RoomStore struct {
	db *bun.DB
}

func NewRoomStore(db *bun.DB) *RoomStore {
	return &RoomStore{db: db}
}

func (s *RoomStore) NextSessionNumber(ctx context.Context, quizID string) (int64, error) {
	var next int64
	err := s.db.NewSelect().
		Model((*roomRow)(nil)).
		ColumnExpr("COALESCE(MAX(session_number), 0) + 1").
		Where("quiz_id = ?", quizID).
		Scan(ctx, &next)
	if err != nil {
		return 0, fmt.Errorf("next session number: %w", err)
	}
	return next, nil
}

func (s *RoomStore) CreateRoom(ctx context.Context, room domain.RoomRecord) error {
	row := &roomRow{
		ID:            room.ID,
		QuizID:        room.QuizID,
		SessionNumber: room.SessionNumber,
		Status:        string(room.Phase),
		CreatedAt:     room.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (s *RoomStore) UpdateRoomPhase(ctx context.Context, roomID string, phase domain.Phase) error {
	_, err := s.db.NewUpdate().
		Model((*roomRow)(nil)).
		Set("status = ?", string(phase)).
		Where("id = ?", roomID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update room phase: %w", err)
	}
	return nil
}

func (s *RoomStore) AddParticipant(ctx context.Context, roomID string, p domain.Participant) error {
	row := &participantRow{
		RoomID:      roomID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Ready:       p.Ready,
		IsAdmin:     p.Admin,
		IsCreator:   p.Creator,
		JoinedAt:    p.JoinedAt,
		Score:       p.Score,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

func (s *RoomStore) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	_, err := s.db.NewDelete().
		Model((*participantRow)(nil)).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return nil
}

func (s *RoomStore) SetReady(ctx context.Context, roomID, userID string, ready bool) error {
	return s.setParticipantFlag(ctx, roomID, userID, "ready", ready)
}

func (s *RoomStore) SetAdmin(ctx context.Context, roomID, userID string, admin bool) error {
	return s.setParticipantFlag(ctx, roomID, userID, "is_admin", admin)
}

func (s *RoomStore) setParticipantFlag(ctx context.Context, roomID, userID, column string, value bool) error {
	res, err := s.db.NewUpdate().
		Model((*participantRow)(nil)).
		Set(column+" = ?", value).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

// SaveScores writes the final per-participant totals in one transaction.
// Scores are only flushed here, at game end; per-question answer data is
// never persisted.
func (s *RoomStore) SaveScores(ctx context.Context, roomID string, scores map[string]int) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for userID, score := range scores {
			if _, err := tx.NewUpdate().
				Model((*participantRow)(nil)).
				Set("score = ?", score).
				Where("room_id = ? AND user_id = ?", roomID, userID).
				Exec(ctx); err != nil {
				return fmt.Errorf("save score for %s: %w", userID, err)
			}
		}
		return nil
	})
}
