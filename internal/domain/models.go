package domain

import "time"

// Phase is the lifecycle state of a room. Finished is terminal; a new
// session always gets a new room.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseCountdown Phase = "countdown"
	PhasePlaying   Phase = "playing"
	PhaseFinished  Phase = "finished"
)

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
// Points defaults to DefaultBasePoints if zero.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []Option `json:"options"`
	TimeLimitSec int      `json:"timeLimitSec"`
	Points       int      `json:"points"`
	Ordinal      int      `json:"ordinal"`
}

// Quiz is a quiz definition plus the room parameters derived from it.
type Quiz struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	MaxPlayers     int        `json:"maxPlayers"`
	MinPlayers     int        `json:"minPlayers"`
	CountdownSec   int        `json:"countdownSec"`
	RewardsEnabled bool       `json:"rewardsEnabled"`
	Questions      []Question `json:"questions"`
}

// Participant is one user's membership in a room.
type Participant struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Ready       bool      `json:"ready"`
	Admin       bool      `json:"admin"`
	Creator     bool      `json:"creator"`
	JoinedAt    time.Time `json:"joinedAt"`
	Score       int       `json:"score"`
}

// RoomRecord is the persistence-facing view of a room.
type RoomRecord struct {
	ID            string
	QuizID        string
	SessionNumber int64
	Phase         Phase
	CreatedAt     time.Time
}

// Submission is one accepted answer within a question window.
type Submission struct {
	UserID        string
	OptionID      string
	TimeRemaining float64
	Correct       bool
	Points        int
}

// RevealEntry summarizes one participant's outcome for a closed question.
type RevealEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsCorrect   bool   `json:"isCorrect"`
	Points      int    `json:"points"`
}

// Reveal is the broadcast payload built when a question window closes.
type Reveal struct {
	QuestionID      string        `json:"questionId"`
	CorrectOptionID string        `json:"correctOptionId"`
	CorrectAnswer   string        `json:"correctAnswer"`
	Entries         []RevealEntry `json:"perParticipant"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant's score.
type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"name"`
	Score       int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for a room session.
type Leaderboard struct {
	RoomID        string             `json:"roomId"`
	SessionNumber int64              `json:"sessionNumber"`
	Entries       []LeaderboardEntry `json:"entries"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// CorrectOption returns the question's correct option, or nil when the
// definition has none flagged.
func (q Question) CorrectOption() *Option {
	for i := range q.Options {
		if q.Options[i].Correct {
			return &q.Options[i]
		}
	}
	return nil
}
