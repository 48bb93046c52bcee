package app

import (
	"sort"

	"quizroom-service/internal/domain"
)

// Ledger collects answer submissions for the room's open question and
// accumulates per-participant running totals across the session. It holds
// no locks: all access is confined to the owning room's actor goroutine.
type Ledger struct {
	open       bool
	question   domain.Question
	submission map[string]domain.Submission
	order      []string
	totals     map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{totals: make(map[string]int)}
}

// OpenQuestion resets the submission window for the given question.
func (l *Ledger) OpenQuestion(q domain.Question) {
	l.open = true
	l.question = q
	l.submission = make(map[string]domain.Submission)
	l.order = l.order[:0]
}

// Submit records one answer for the open question. The first accepted
// submission per participant wins; later ones are rejected without
// touching scores.
func (l *Ledger) Submit(questionID, userID, optionID string, timeRemaining float64) (domain.Submission, error) {
	if questionID != l.question.ID || l.question.ID == "" {
		return domain.Submission{}, domain.ErrQuestionNotFound
	}
	if !l.open {
		return domain.Submission{}, domain.ErrLateSubmission
	}
	if _, dup := l.submission[userID]; dup {
		return domain.Submission{}, domain.ErrDuplicateSubmission
	}

	var chosen *domain.Option
	for i := range l.question.Options {
		if l.question.Options[i].ID == optionID {
			chosen = &l.question.Options[i]
			break
		}
	}
	if chosen == nil {
		return domain.Submission{}, domain.ErrOptionNotFound
	}

	sub := domain.Submission{
		UserID:        userID,
		OptionID:      optionID,
		TimeRemaining: timeRemaining,
		Correct:       chosen.Correct,
	}
	if chosen.Correct {
		sub.Points = domain.ScorePoints(l.question.Points, l.question.TimeLimitSec, timeRemaining)
	}
	l.submission[userID] = sub
	l.order = append(l.order, userID)
	return sub, nil
}

// WindowOpen reports whether a submission window is currently accepting
// answers.
func (l *Ledger) WindowOpen() bool {
	return l.open
}

// CloseQuestion ends the submission window, folds the accepted submissions
// into the running totals, and returns the reveal data in submission order.
// Closing an already-closed window is rejected so a submission can never
// fold into the totals twice.
func (l *Ledger) CloseQuestion(questionID string, displayName func(userID string) string) (domain.Reveal, error) {
	if questionID != l.question.ID || l.question.ID == "" {
		return domain.Reveal{}, domain.ErrQuestionNotFound
	}
	if !l.open {
		return domain.Reveal{}, domain.ErrInvalidTransition
	}
	l.open = false

	reveal := domain.Reveal{
		QuestionID: questionID,
		Entries:    make([]domain.RevealEntry, 0, len(l.order)),
	}
	if correct := l.question.CorrectOption(); correct != nil {
		reveal.CorrectOptionID = correct.ID
		reveal.CorrectAnswer = correct.Text
	}
	for _, userID := range l.order {
		sub := l.submission[userID]
		l.totals[userID] += sub.Points
		reveal.Entries = append(reveal.Entries, domain.RevealEntry{
			UserID:      userID,
			DisplayName: displayName(userID),
			IsCorrect:   sub.Correct,
			Points:      sub.Points,
		})
	}
	return reveal, nil
}

// Total returns a participant's accumulated score.
func (l *Ledger) Total(userID string) int {
	return l.totals[userID]
}

// Totals returns a copy of the running totals, for persistence at game end.
func (l *Ledger) Totals() map[string]int {
	out := make(map[string]int, len(l.totals))
	for userID, total := range l.totals {
		out[userID] = total
	}
	return out
}

// Leaderboard ranks the given participants by accumulated score, ties
// broken by earliest join time so ordering stays deterministic.
func (l *Ledger) Leaderboard(participants []domain.Participant) []domain.LeaderboardEntry {
	ranked := make([]domain.Participant, len(participants))
	copy(ranked, participants)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := l.totals[ranked[i].UserID], l.totals[ranked[j].UserID]
		if si != sj {
			return si > sj
		}
		return ranked[i].JoinedAt.Before(ranked[j].JoinedAt)
	})

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for _, p := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       l.totals[p.UserID],
		})
	}
	return entries
}
