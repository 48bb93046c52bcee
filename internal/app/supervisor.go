package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/domain"
)

// Supervisor is the connection registry: it owns the top-level routing
// table from quiz target to its single active room, creating rooms on
// demand with fresh session numbers. This map is the only shared mutable
// state across rooms; everything below it is actor-confined.
type Supervisor struct {
	quizzes QuizRepository
	store   RoomStore
	opts    Options

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewSupervisor(quizzes QuizRepository, store RoomStore, opts Options) *Supervisor {
	return &Supervisor{
		quizzes: quizzes,
		store:   store,
		opts:    opts.withDefaults(),
		rooms:   make(map[string]*Room),
	}
}

// Handle represents one registered connection: a (room, wallet) pair.
// Its methods deliver the client's actions into the room actor and block
// until acknowledged, so a connection's actions are processed in order.
type Handle struct {
	room   *Room
	UserID string
}

// Join validates the wallet identity, routes to the active room for the
// target quiz (creating one when none is active), and registers the
// connection. The identity check happens before any room mutation.
func (s *Supervisor) Join(ctx context.Context, targetID, walletAddress, displayName string, conn Conn) (*Handle, error) {
	wallet, err := domain.NormalizeWallet(walletAddress)
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = domain.ShortWallet(wallet)
	}

	room, err := s.activeRoom(ctx, targetID)
	if err != nil {
		return nil, err
	}

	p := domain.Participant{
		UserID:      wallet,
		DisplayName: displayName,
		JoinedAt:    s.opts.Clock.Now(),
	}
	var joinErr error
	if err := room.do(func() { joinErr = room.join(p, conn) }); err != nil {
		return nil, err
	}
	if joinErr != nil {
		return nil, joinErr
	}
	return &Handle{room: room, UserID: wallet}, nil
}

// activeRoom returns the quiz's active room, creating and persisting a
// new one when none exists. At most one room per (quiz, session) is ever
// active: creation happens under the registry lock.
func (s *Supervisor) activeRoom(ctx context.Context, targetID string) (*Room, error) {
	s.mu.RLock()
	room := s.rooms[targetID]
	s.mu.RUnlock()
	if room != nil {
		return room, nil
	}

	quiz, err := s.quizzes.GetQuiz(ctx, targetID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if room := s.rooms[targetID]; room != nil {
		return room, nil
	}

	session, err := s.store.NextSessionNumber(ctx, targetID)
	if err != nil {
		return nil, err
	}
	roomID := uuid.NewString()
	record := domain.RoomRecord{
		ID:            roomID,
		QuizID:        targetID,
		SessionNumber: session,
		Phase:         domain.PhaseWaiting,
		CreatedAt:     s.opts.Clock.Now(),
	}
	if err := s.store.CreateRoom(ctx, record); err != nil {
		return nil, err
	}

	room = newRoom(roomID, quiz, session, s.store, s.opts, s.detach)
	s.rooms[targetID] = room

	if s.opts.Index != nil {
		if err := s.opts.Index.MarkActive(ctx, targetID, roomID); err != nil {
			log.Warn().Err(err).Str("quiz_id", targetID).Msg("active-room marker failed")
		}
	}
	log.Info().Str("room_id", roomID).Str("quiz_id", targetID).Int64("session", session).Msg("room created")
	return room, nil
}

// detach drops a finished room from the routing table so the next join
// creates a fresh session. Called from the room actor at finish time.
func (s *Supervisor) detach(r *Room) {
	s.mu.Lock()
	if current, ok := s.rooms[r.QuizID]; ok && current == r {
		delete(s.rooms, r.QuizID)
	}
	s.mu.Unlock()

	if s.opts.Index != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.StoreTimeout)
		defer cancel()
		if err := s.opts.Index.ClearActive(ctx, r.QuizID); err != nil {
			log.Warn().Err(err).Str("quiz_id", r.QuizID).Msg("active-room clear failed")
		}
	}
}

// RoomCount reports how many rooms are live, for health reporting.
func (s *Supervisor) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// RoomID identifies the room this connection is registered in.
func (h *Handle) RoomID() string { return h.room.ID }

// SessionNumber identifies the room's session.
func (h *Handle) SessionNumber() int64 { return h.room.SessionNumber }

// Leave unregisters the connection's participant. Idempotent.
func (h *Handle) Leave() {
	_ = h.room.do(func() { h.room.leave(h.UserID) })
}

// ToggleReady flips the ready flag and reports the room's new ready and
// total participant counts.
func (h *Handle) ToggleReady() (readyCount, total int, err error) {
	err = h.call(func() error {
		var actErr error
		readyCount, total, actErr = h.room.toggleReady(h.UserID)
		return actErr
	})
	return readyCount, total, err
}

// StartGame is the admin action moving the room into countdown.
func (h *Handle) StartGame(countdownSec int) error {
	return h.call(func() error { return h.room.startGame(h.UserID, countdownSec) })
}

// SubmitAnswer records an answer for the open question.
func (h *Handle) SubmitAnswer(questionID, optionID string, timeRemaining float64) error {
	return h.call(func() error {
		return h.room.submitAnswer(h.UserID, questionID, optionID, timeRemaining)
	})
}

// SkipQuestion is the admin action cutting the open question short.
func (h *Handle) SkipQuestion() error {
	return h.call(func() error { return h.room.skipQuestion(h.UserID) })
}

// SendMessage broadcasts an admin message; valid in any phase.
func (h *Handle) SendMessage(text string) error {
	return h.call(func() error { return h.room.sendMessage(h.UserID, text) })
}

// PromoteAdmin grants another participant the admin flag.
func (h *Handle) PromoteAdmin(targetUserID string) error {
	return h.call(func() error { return h.room.promoteAdmin(h.UserID, targetUserID) })
}

// Kick removes another participant from the room.
func (h *Handle) Kick(targetUserID string) error {
	return h.call(func() error { return h.room.kick(h.UserID, targetUserID) })
}

func (h *Handle) call(fn func() error) error {
	var actErr error
	if err := h.room.do(func() { actErr = fn() }); err != nil {
		return err
	}
	return actErr
}
