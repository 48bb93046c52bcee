package app

import (
	"context"
	"sort"
	"time"

	"quizroom-service/internal/domain"
)

// State machine: Waiting -> Countdown -> Playing(i) -> Finished. Finished
// is terminal; a new session requires a new room. All methods in this
// file run on the room's actor goroutine.

// startGame validates the admin action and begins the countdown.
func (r *Room) startGame(userID string, countdownSec int) error {
	if err := r.requireAdmin(userID); err != nil {
		return err
	}
	if r.phase != domain.PhaseWaiting {
		return domain.ErrInvalidTransition
	}
	if len(r.participants) < r.quiz.MinPlayers {
		return domain.ErrInsufficientParticipants
	}

	if countdownSec <= 0 {
		countdownSec = r.quiz.CountdownSec
	}
	if countdownSec <= 0 {
		countdownSec = r.opts.DefaultCountdownSec
	}

	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.store.UpdateRoomPhase(ctx, r.ID, domain.PhaseCountdown); err != nil {
		return err
	}

	r.phase = domain.PhaseCountdown
	r.log.Info().Int("countdown_sec", countdownSec).Msg("game starting")
	r.broadcast(Event{Type: EventGameStarting, Payload: gameStartingPayload{CountdownSeconds: countdownSec}})
	r.broadcastStats()

	return r.clock.Start(countdownSec,
		func(remaining int) {
			r.broadcast(Event{Type: EventCountdownUpdate, Payload: countdownPayload{Remaining: remaining}})
		},
		r.beginPlay,
	)
}

// beginPlay runs when the countdown completes: the question set was
// loaded once at room creation and is immutable from here on.
func (r *Room) beginPlay() {
	sort.SliceStable(r.quiz.Questions, func(i, j int) bool {
		return r.quiz.Questions[i].Ordinal < r.quiz.Questions[j].Ordinal
	})
	if len(r.quiz.Questions) == 0 {
		r.log.Warn().Msg("quiz has no questions, finishing immediately")
		r.finish(false)
		return
	}

	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.store.UpdateRoomPhase(ctx, r.ID, domain.PhasePlaying); err != nil {
		r.log.Error().Err(err).Msg("playing phase write-through failed")
	}

	r.phase = domain.PhasePlaying
	r.questionIdx = 0
	r.openQuestion(0)
}

func (r *Room) openQuestion(idx int) {
	q := r.quiz.Questions[idx]
	r.ledger.OpenQuestion(q)
	r.log.Info().Str("question_id", q.ID).Int("index", idx).Msg("question opened")

	opts := make([]questionOption, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, questionOption{ID: o.ID, Text: o.Text})
	}
	r.broadcast(Event{Type: EventQuestionStart, Payload: questionStartPayload{
		ID:        q.ID,
		Text:      q.Prompt,
		TimeLimit: q.TimeLimitSec,
		Options:   opts,
	}})

	if err := r.clock.Start(q.TimeLimitSec,
		func(remaining int) {
			r.broadcast(Event{Type: EventQuestionTime, Payload: questionTimePayload{Remaining: remaining}})
		},
		func() { r.closeQuestion(idx) },
	); err != nil {
		// Unreachable while the orchestrator sequences timers correctly.
		r.log.Error().Err(err).Msg("question timer start failed")
	}
}

// submitAnswer records one answer inside the open window. The accept/
// reject acknowledgement goes only to the originator; correctness stays
// hidden until the reveal.
func (r *Room) submitAnswer(userID, questionID, optionID string, timeRemaining float64) error {
	if r.phase != domain.PhasePlaying {
		return domain.ErrLateSubmission
	}
	if _, ok := r.participants[userID]; !ok {
		return domain.ErrParticipantNotFound
	}
	if _, err := r.ledger.Submit(questionID, userID, optionID, timeRemaining); err != nil {
		return err
	}
	r.sendTo(userID, Event{Type: EventAnswerResult, Payload: answerResultPayload{
		QuestionID: questionID,
		Accepted:   true,
	}})
	return nil
}

// skipQuestion is the admin's early cut: cancel the timer and close the
// window immediately. During the reveal-display delay the window is
// already closed and the skip is rejected, otherwise cancelling the
// pending reveal-delay timer would re-close the question.
func (r *Room) skipQuestion(userID string) error {
	if err := r.requireAdmin(userID); err != nil {
		return err
	}
	if r.phase != domain.PhasePlaying || !r.ledger.WindowOpen() {
		return domain.ErrInvalidTransition
	}
	r.clock.Cancel()
	r.closeQuestion(r.questionIdx)
	return nil
}

// closeQuestion reveals the answers, updates the leaderboard, and after
// the reveal-display delay advances to the next question or finishes.
func (r *Room) closeQuestion(idx int) {
	q := r.quiz.Questions[idx]
	reveal, err := r.ledger.CloseQuestion(q.ID, r.displayName)
	if err != nil {
		r.log.Error().Err(err).Str("question_id", q.ID).Msg("close question")
		return
	}

	for _, p := range r.participants {
		p.Score = r.ledger.Total(p.UserID)
	}

	r.broadcast(Event{Type: EventAnswerReveal, Payload: reveal})
	r.broadcast(Event{Type: EventLeaderboardUpdate, Payload: r.leaderboard()})

	if err := r.clock.Start(r.opts.RevealDelaySec, nil, func() {
		if idx+1 < len(r.quiz.Questions) {
			r.questionIdx = idx + 1
			r.openQuestion(r.questionIdx)
		} else {
			r.finish(false)
		}
	}); err != nil {
		r.log.Error().Err(err).Msg("reveal delay start failed")
	}
}

func (r *Room) leaderboard() domain.Leaderboard {
	return domain.Leaderboard{
		RoomID:        r.ID,
		SessionNumber: r.SessionNumber,
		Entries:       r.ledger.Leaderboard(r.snapshotParticipants()),
		UpdatedAt:     r.opts.Clock.Now(),
	}
}

// finish ends the session. With forced=true (room emptied mid-game) any
// in-flight timer is discarded and reward distribution is skipped.
func (r *Room) finish(forced bool) {
	if r.phase == domain.PhaseFinished {
		return
	}
	r.clock.Cancel()
	r.phase = domain.PhaseFinished

	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.store.UpdateRoomPhase(ctx, r.ID, domain.PhaseFinished); err != nil {
		r.log.Error().Err(err).Msg("finished phase write-through failed")
	}
	if totals := r.ledger.Totals(); len(totals) > 0 {
		if err := r.store.SaveScores(ctx, r.ID, totals); err != nil {
			r.log.Error().Err(err).Msg("final score persistence failed")
		}
	}

	if r.onClose != nil {
		r.onClose(r)
	}

	final := r.leaderboard()
	r.log.Info().Bool("forced", forced).Int("participants", len(final.Entries)).Msg("game finished")
	r.broadcast(Event{Type: EventGameEnd, Payload: gameEndPayload{FinalLeaderboard: final}})

	if forced || !r.quiz.RewardsEnabled || r.opts.Rewards == nil || len(final.Entries) == 0 {
		return
	}
	// Reward distribution leaves the serialization point: the game is
	// already Finished and a slow reward service must not delay anything.
	go r.distributeRewards(final)
}

func (r *Room) forceFinish() {
	r.finish(true)
}

func (r *Room) distributeRewards(final domain.Leaderboard) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payload := rewardsPayload{Success: true, Message: "rewards distributed"}
	details, err := r.opts.Rewards.DistributeRewards(ctx, r.ID, r.SessionNumber, final)
	if err != nil {
		r.log.Error().Err(err).Msg("reward distribution failed")
		payload = rewardsPayload{Success: false, Message: err.Error()}
	} else {
		payload.Details = details
	}
	r.post(func() {
		r.broadcast(Event{Type: EventRewards, Payload: payload})
	})
}
