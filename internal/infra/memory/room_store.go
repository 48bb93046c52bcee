package memory

import (
	"context"
	"sync"

	"quizroom-service/internal/domain"
)

// RoomStore is the in-memory implementation of app.RoomStore, used when
// no Postgres URL is configured and as the fixture for unit tests.
type RoomStore struct {
	mu           sync.Mutex
	rooms        map[string]domain.RoomRecord
	participants map[string]map[string]domain.Participant
	scores       map[string]map[string]int
	sessions     map[string]int64
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:        make(map[string]domain.RoomRecord),
		participants: make(map[string]map[string]domain.Participant),
		scores:       make(map[string]map[string]int),
		sessions:     make(map[string]int64),
	}
}

func (s *RoomStore) NextSessionNumber(_ context.Context, quizID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[quizID]++
	return s.sessions[quizID], nil
}

func (s *RoomStore) CreateRoom(_ context.Context, room domain.RoomRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
	s.participants[room.ID] = make(map[string]domain.Participant)
	return nil
}

func (s *RoomStore) UpdateRoomPhase(_ context.Context, roomID string, phase domain.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomClosed
	}
	room.Phase = phase
	s.rooms[roomID] = room
	return nil
}

func (s *RoomStore) AddParticipant(_ context.Context, roomID string, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.participants[roomID]
	if !ok {
		return domain.ErrRoomClosed
	}
	members[p.UserID] = p
	return nil
}

func (s *RoomStore) RemoveParticipant(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if members, ok := s.participants[roomID]; ok {
		delete(members, userID)
	}
	return nil
}

func (s *RoomStore) SetReady(_ context.Context, roomID, userID string, ready bool) error {
	return s.mutateParticipant(roomID, userID, func(p *domain.Participant) { p.Ready = ready })
}

func (s *RoomStore) SetAdmin(_ context.Context, roomID, userID string, admin bool) error {
	return s.mutateParticipant(roomID, userID, func(p *domain.Participant) { p.Admin = admin })
}

func (s *RoomStore) SaveScores(_ context.Context, roomID string, scores map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[string]int, len(scores))
	for userID, score := range scores {
		saved[userID] = score
	}
	s.scores[roomID] = saved
	return nil
}

func (s *RoomStore) mutateParticipant(roomID, userID string, fn func(*domain.Participant)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.participants[roomID]
	if !ok {
		return domain.ErrRoomClosed
	}
	p, ok := members[userID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	fn(&p)
	members[userID] = p
	return nil
}

// Room returns the stored record, for tests.
func (s *RoomStore) Room(roomID string) (domain.RoomRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

// Scores returns the persisted final scores for a room, for tests.
func (s *RoomStore) Scores(roomID string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[roomID]
}

// ParticipantCount reports the stored participant count for a room.
func (s *RoomStore) ParticipantCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants[roomID])
}
