package app

import (
	"time"

	"quizroom-service/internal/domain"
)

// Event is the typed envelope sent to clients over the transport.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Conn is one client's outbound channel. Send must not block the room
// actor; Close tears the transport connection down.
type Conn interface {
	Send(ev Event)
	Close()
}

// Event types broadcast to a room unless noted.
const (
	EventParticipantJoined = "participantJoined"
	EventParticipantLeft   = "participantLeft"
	EventRoomStatsUpdate   = "roomStatsUpdate"
	EventGameStarting      = "gameStarting"
	EventCountdownUpdate   = "countdownUpdate"
	EventQuestionStart     = "questionStart"
	EventQuestionTime      = "questionTimeUpdate"
	EventAnswerReveal      = "answerReveal"
	EventLeaderboardUpdate = "leaderboardUpdate"
	EventGameEnd           = "gameEnd"
	EventRewards           = "rewardsDistributed"
	EventAdminMessage      = "adminMessageReceived"

	// Originator-only events.
	EventAnswerResult = "answerResult"
	EventError        = "error"
)

type joinedPayload struct {
	Identity  string    `json:"identity"`
	Timestamp time.Time `json:"timestamp"`
}

type leftPayload struct {
	ParticipantID string `json:"participantId"`
}

type statsParticipant struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Ready       bool   `json:"ready"`
	Admin       bool   `json:"admin"`
	Score       int    `json:"score"`
}

type roomStatsPayload struct {
	Current      int                `json:"current"`
	Max          int                `json:"max"`
	Min          int                `json:"min"`
	ReadyCount   int                `json:"readyCount"`
	IsStarted    bool               `json:"isStarted"`
	IsWaiting    bool               `json:"isWaiting"`
	Participants []statsParticipant `json:"participants"`
}

type gameStartingPayload struct {
	CountdownSeconds int `json:"countdownSeconds"`
}

type countdownPayload struct {
	Remaining int `json:"remaining"`
}

// questionOption deliberately omits the correctness flag while the
// question is open.
type questionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionStartPayload struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	TimeLimit int              `json:"timeLimit"`
	Options   []questionOption `json:"options"`
}

type questionTimePayload struct {
	Remaining int `json:"remaining"`
}

type gameEndPayload struct {
	FinalLeaderboard domain.Leaderboard `json:"finalLeaderboard"`
}

type rewardsPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type adminMessagePayload struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type answerResultPayload struct {
	QuestionID string `json:"questionId"`
	Accepted   bool   `json:"accepted"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ErrorEvent builds the per-connection rejection event the transport
// sends when a client action fails.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Payload: errorPayload{Message: err.Error()}}
}
