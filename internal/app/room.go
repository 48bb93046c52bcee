package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/domain"
)

// Options tunes room behavior and wires optional collaborators.
type Options struct {
	// DefaultCountdownSec is used when neither the quiz nor the admin's
	// start action specifies a countdown.
	DefaultCountdownSec int
	// RevealDelaySec is how long the reveal stays on screen before the
	// next question opens.
	RevealDelaySec int
	// StoreTimeout bounds each write-through to the persistent store.
	StoreTimeout time.Duration
	// Clock drives all timers; nil means the real clock.
	Clock clockwork.Clock
	// Rewards is invoked at game end when the quiz has rewards enabled.
	// Nil skips distribution.
	Rewards RewardNotifier
	// Index is the best-effort active-room liveness marker. Optional.
	Index ActiveRoomIndex
}

func (o Options) withDefaults() Options {
	if o.DefaultCountdownSec <= 0 {
		o.DefaultCountdownSec = 5
	}
	if o.RevealDelaySec < 0 {
		o.RevealDelaySec = 0
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Room owns all mutable state for one live quiz session. Every mutation,
// timer tick, and broadcast runs on the room's single actor goroutine;
// nothing outside touches the state directly, which is what keeps
// simultaneous joins, submissions, and ticks from racing.
type Room struct {
	ID            string
	QuizID        string
	SessionNumber int64

	quiz        domain.Quiz
	phase       domain.Phase
	questionIdx int

	participants map[string]*domain.Participant
	conns        map[string]Conn

	ledger *Ledger
	clock  *gameClock

	store   RoomStore
	opts    Options
	onClose func(r *Room)

	cmds     chan func()
	done     chan struct{}
	stopOnce sync.Once

	log zerolog.Logger
}

func newRoom(id string, quiz domain.Quiz, session int64, store RoomStore, opts Options, onClose func(*Room)) *Room {
	r := &Room{
		ID:            id,
		QuizID:        quiz.ID,
		SessionNumber: session,
		quiz:          quiz,
		phase:         domain.PhaseWaiting,
		participants:  make(map[string]*domain.Participant),
		conns:         make(map[string]Conn),
		ledger:        NewLedger(),
		store:         store,
		opts:          opts,
		onClose:       onClose,
		cmds:          make(chan func(), 64),
		done:          make(chan struct{}),
		log:           log.With().Str("room_id", id).Str("quiz_id", quiz.ID).Int64("session", session).Logger(),
	}
	r.clock = newGameClock(opts.Clock, r.post)
	go r.run()
	return r
}

func (r *Room) run() {
	for {
		select {
		case fn := <-r.cmds:
			fn()
		case <-r.done:
			return
		}
	}
}

// post enqueues fn onto the actor. Used by timer goroutines and the
// reward callback; returns false once the room has stopped.
func (r *Room) post(fn func()) bool {
	select {
	case r.cmds <- fn:
		return true
	case <-r.done:
		return false
	}
}

// do runs fn on the actor and waits for it to complete.
func (r *Room) do(fn func()) error {
	ran := make(chan struct{})
	if !r.post(func() {
		fn()
		close(ran)
	}) {
		return domain.ErrRoomClosed
	}
	select {
	case <-ran:
		return nil
	case <-r.done:
		return domain.ErrRoomClosed
	}
}

func (r *Room) stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// storeCtx bounds one write-through operation.
func (r *Room) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.opts.StoreTimeout)
}

// join admits a participant. The first participant becomes the room
// creator and initial admin. Write-through precedes the in-memory change;
// a store failure leaves the room untouched.
func (r *Room) join(p domain.Participant, conn Conn) error {
	if r.phase != domain.PhaseWaiting {
		return domain.ErrInvalidTransition
	}
	if _, exists := r.participants[p.UserID]; exists {
		return domain.ErrAlreadyJoined
	}
	if r.quiz.MaxPlayers > 0 && len(r.participants) >= r.quiz.MaxPlayers {
		return domain.ErrRoomFull
	}
	if len(r.participants) == 0 {
		p.Creator = true
		p.Admin = true
	}

	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.store.AddParticipant(ctx, r.ID, p); err != nil {
		return err
	}

	r.participants[p.UserID] = &p
	r.conns[p.UserID] = conn
	r.log.Info().Str("user_id", p.UserID).Bool("admin", p.Admin).Msg("participant joined")

	r.broadcast(Event{Type: EventParticipantJoined, Payload: joinedPayload{
		Identity:  p.UserID,
		Timestamp: p.JoinedAt,
	}})
	r.broadcastStats()
	return nil
}

// leave removes a participant. Idempotent: a participant already removed
// is a no-op. Emptying the room force-finishes it, even mid-game.
func (r *Room) leave(userID string) {
	p, ok := r.participants[userID]
	if !ok {
		return
	}

	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.store.RemoveParticipant(ctx, r.ID, userID); err != nil {
		// Removal proceeds in memory regardless: the connection is gone
		// and a ghost participant would wedge the room.
		r.log.Error().Err(err).Str("user_id", userID).Msg("participant removal write-through failed")
	}

	delete(r.participants, userID)
	delete(r.conns, userID)
	r.log.Info().Str("user_id", p.UserID).Msg("participant left")

	r.broadcast(Event{Type: EventParticipantLeft, Payload: leftPayload{ParticipantID: userID}})
	r.broadcastStats()

	if len(r.participants) == 0 {
		if r.phase != domain.PhaseFinished {
			r.forceFinish()
		}
		r.stop()
	}
}

// toggleReady flips the participant's ready flag and reports the new
// ready/total aggregate.
func (r *Room) toggleReady(userID string) (readyCount, total int, err error) {
	if r.phase != domain.PhaseWaiting {
		return 0, 0, domain.ErrInvalidTransition
	}
	p, ok := r.participants[userID]
	if !ok {
		return 0, 0, domain.ErrParticipantNotFound
	}

	next := !p.Ready
	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.store.SetReady(ctx, r.ID, userID, next); err != nil {
		return 0, 0, err
	}

	p.Ready = next
	for _, q := range r.participants {
		if q.Ready {
			readyCount++
		}
	}
	r.broadcastStats()
	return readyCount, len(r.participants), nil
}

// promoteAdmin grants the target participant the admin flag.
func (r *Room) promoteAdmin(byUserID, targetUserID string) error {
	if err := r.requireAdmin(byUserID); err != nil {
		return err
	}
	target, ok := r.participants[targetUserID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if target.Admin {
		return nil
	}

	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.store.SetAdmin(ctx, r.ID, targetUserID, true); err != nil {
		return err
	}

	target.Admin = true
	r.log.Info().Str("user_id", targetUserID).Str("by", byUserID).Msg("admin promoted")
	r.broadcastStats()
	return nil
}

// kick removes the target participant and closes their connection.
func (r *Room) kick(byUserID, targetUserID string) error {
	if err := r.requireAdmin(byUserID); err != nil {
		return err
	}
	if _, ok := r.participants[targetUserID]; !ok {
		return domain.ErrParticipantNotFound
	}
	conn := r.conns[targetUserID]
	r.leave(targetUserID)
	if conn != nil {
		conn.Close()
	}
	return nil
}

// sendMessage broadcasts an admin chat message to the room. Allowed in
// any phase.
func (r *Room) sendMessage(byUserID, text string) error {
	if err := r.requireAdmin(byUserID); err != nil {
		return err
	}
	r.broadcast(Event{Type: EventAdminMessage, Payload: adminMessagePayload{
		Message:   text,
		Timestamp: r.opts.Clock.Now(),
	}})
	return nil
}

func (r *Room) requireAdmin(userID string) error {
	p, ok := r.participants[userID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if !p.Admin {
		return domain.ErrNotAdmin
	}
	return nil
}

func (r *Room) displayName(userID string) string {
	if p, ok := r.participants[userID]; ok {
		return p.DisplayName
	}
	return domain.ShortWallet(userID)
}

// snapshotParticipants returns the participant list ordered by join time.
// The copies are safe to hand to broadcasts.
func (r *Room) snapshotParticipants() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

func (r *Room) broadcastStats() {
	parts := r.snapshotParticipants()
	stats := roomStatsPayload{
		Current:      len(parts),
		Max:          r.quiz.MaxPlayers,
		Min:          r.quiz.MinPlayers,
		IsStarted:    r.phase == domain.PhaseCountdown || r.phase == domain.PhasePlaying,
		IsWaiting:    r.phase == domain.PhaseWaiting,
		Participants: make([]statsParticipant, 0, len(parts)),
	}
	for _, p := range parts {
		if p.Ready {
			stats.ReadyCount++
		}
		stats.Participants = append(stats.Participants, statsParticipant{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Ready:       p.Ready,
			Admin:       p.Admin,
			Score:       r.ledger.Total(p.UserID),
		})
	}
	r.broadcast(Event{Type: EventRoomStatsUpdate, Payload: stats})
}

func (r *Room) broadcast(ev Event) {
	for _, conn := range r.conns {
		conn.Send(ev)
	}
}

func (r *Room) sendTo(userID string, ev Event) {
	if conn, ok := r.conns[userID]; ok {
		conn.Send(ev)
	}
}
