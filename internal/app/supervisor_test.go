package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
)

var (
	walletAlice = "0x" + strings.Repeat("aa", 20)
	walletBob   = "0x" + strings.Repeat("bb", 20)
	walletCarol = "0x" + strings.Repeat("cc", 20)
)

type fakeConn struct {
	mu     sync.Mutex
	closed bool
	ch     chan Event
}

func newFakeConn() *fakeConn {
	return &fakeConn{ch: make(chan Event, 256)}
}

func (c *fakeConn) Send(ev Event) {
	select {
	case c.ch <- ev:
	default:
	}
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// waitFor drains events until one of the wanted type arrives.
func (c *fakeConn) waitFor(t *testing.T, typ string) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

type fakeRewards struct {
	mu    sync.Mutex
	calls int
	last  domain.Leaderboard
}

func (f *fakeRewards) DistributeRewards(_ context.Context, _ string, _ int64, lb domain.Leaderboard) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = lb
	return "2 winners paid", nil
}

func (f *fakeRewards) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testQuiz() domain.Quiz {
	return domain.Quiz{
		ID:             "quiz-1",
		Title:          "Test quiz",
		MaxPlayers:     2,
		MinPlayers:     2,
		CountdownSec:   2,
		RewardsEnabled: true,
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "First question",
				Options: []domain.Option{
					{ID: "o1", Text: "Wrong", Correct: false},
					{ID: "o2", Text: "Right", Correct: true},
				},
				TimeLimitSec: 2,
				Points:       100,
				Ordinal:      1,
			},
			{
				ID:     "q2",
				Prompt: "Second question",
				Options: []domain.Option{
					{ID: "o1", Text: "Right", Correct: true},
					{ID: "o2", Text: "Wrong", Correct: false},
				},
				TimeLimitSec: 2,
				Points:       100,
				Ordinal:      2,
			},
		},
	}
}

func newTestSupervisor(fc clockwork.Clock, store *memory.RoomStore, rewards RewardNotifier, quiz domain.Quiz) *Supervisor {
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{quiz.ID: quiz}), 5*time.Minute)
	return NewSupervisor(repo, store, Options{
		Clock:          fc,
		RevealDelaySec: 0,
		Rewards:        rewards,
	})
}

func TestJoinValidation(t *testing.T) {
	ctx := context.Background()
	sup := newTestSupervisor(clockwork.NewFakeClock(), memory.NewRoomStore(), nil, testQuiz())

	if _, err := sup.Join(ctx, "quiz-1", "not-a-wallet", "", newFakeConn()); err != domain.ErrInvalidIdentity {
		t.Fatalf("expected identity rejection, got %v", err)
	}
	if sup.RoomCount() != 0 {
		t.Fatalf("rejected identity must not create a room")
	}

	if _, err := sup.Join(ctx, "quiz-missing", walletAlice, "", newFakeConn()); err != domain.ErrQuizNotFound {
		t.Fatalf("expected quiz not found, got %v", err)
	}

	if _, err := sup.Join(ctx, "quiz-1", walletAlice, "Alice", newFakeConn()); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := sup.Join(ctx, "quiz-1", walletAlice, "Alice2", newFakeConn()); err != domain.ErrAlreadyJoined {
		t.Fatalf("expected duplicate wallet rejection, got %v", err)
	}

	if _, err := sup.Join(ctx, "quiz-1", walletBob, "Bob", newFakeConn()); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if _, err := sup.Join(ctx, "quiz-1", walletCarol, "Carol", newFakeConn()); err != domain.ErrRoomFull {
		t.Fatalf("expected room full, got %v", err)
	}
}

func TestStartGameGuards(t *testing.T) {
	ctx := context.Background()
	sup := newTestSupervisor(clockwork.NewFakeClock(), memory.NewRoomStore(), nil, testQuiz())

	alice, err := sup.Join(ctx, "quiz-1", walletAlice, "Alice", newFakeConn())
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	// Quorum is 2, only 1 present.
	if err := alice.StartGame(2); err != domain.ErrInsufficientParticipants {
		t.Fatalf("expected quorum rejection, got %v", err)
	}

	bob, err := sup.Join(ctx, "quiz-1", walletBob, "Bob", newFakeConn())
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}

	// Bob is not an admin.
	if err := bob.StartGame(2); err != domain.ErrNotAdmin {
		t.Fatalf("expected admin rejection, got %v", err)
	}
	if err := bob.SkipQuestion(); err != domain.ErrNotAdmin {
		t.Fatalf("expected admin rejection for skip, got %v", err)
	}
	if err := bob.SendMessage("hi"); err != domain.ErrNotAdmin {
		t.Fatalf("expected admin rejection for message, got %v", err)
	}

	if err := alice.StartGame(2); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Already in countdown.
	if err := alice.StartGame(2); err != domain.ErrInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestFullGameFlow(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := memory.NewRoomStore()
	rewards := &fakeRewards{}
	sup := newTestSupervisor(fc, store, rewards, testQuiz())

	connA, connB := newFakeConn(), newFakeConn()
	alice, err := sup.Join(ctx, "quiz-1", walletAlice, "Alice", connA)
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	bob, err := sup.Join(ctx, "quiz-1", walletBob, "Bob", connB)
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}
	roomID := alice.RoomID()

	if ready, total, err := alice.ToggleReady(); err != nil || ready != 1 || total != 2 {
		t.Fatalf("ready alice: got %d/%d, %v", ready, total, err)
	}
	if ready, total, err := bob.ToggleReady(); err != nil || ready != 2 || total != 2 {
		t.Fatalf("ready bob: got %d/%d, %v", ready, total, err)
	}

	if err := alice.StartGame(2); err != nil {
		t.Fatalf("start: %v", err)
	}
	connB.waitFor(t, EventGameStarting)

	// Countdown: 1, then 0, then the first question opens.
	fc.BlockUntil(1)
	fc.Advance(time.Second)
	if ev := connB.waitFor(t, EventCountdownUpdate); ev.Payload.(countdownPayload).Remaining != 1 {
		t.Fatalf("expected remaining 1, got %+v", ev.Payload)
	}
	fc.Advance(time.Second)
	connB.waitFor(t, EventCountdownUpdate)
	q1 := connB.waitFor(t, EventQuestionStart)
	if q1.Payload.(questionStartPayload).ID != "q1" {
		t.Fatalf("expected q1 first, got %+v", q1.Payload)
	}

	// Alice answers instantly and correctly; Bob stays silent.
	if err := alice.SubmitAnswer("q1", "o2", 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ev := connA.waitFor(t, EventAnswerResult); !ev.Payload.(answerResultPayload).Accepted {
		t.Fatalf("expected accepted ack, got %+v", ev.Payload)
	}
	if err := alice.SubmitAnswer("q1", "o1", 1); err != domain.ErrDuplicateSubmission {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	// Natural expiry of the 2s question window.
	fc.BlockUntil(1)
	fc.Advance(time.Second)
	connB.waitFor(t, EventQuestionTime)
	fc.Advance(time.Second)
	reveal := connB.waitFor(t, EventAnswerReveal)
	rp := reveal.Payload.(domain.Reveal)
	if rp.QuestionID != "q1" || rp.CorrectAnswer != "Right" {
		t.Fatalf("unexpected reveal: %+v", rp)
	}
	if len(rp.Entries) != 1 || rp.Entries[0].Points != 100 {
		t.Fatalf("expected alice's full-score entry, got %+v", rp.Entries)
	}

	lb := connB.waitFor(t, EventLeaderboardUpdate).Payload.(domain.Leaderboard)
	if lb.Entries[0].UserID != walletAlice || lb.Entries[0].Score != 100 {
		t.Fatalf("expected alice leading with 100, got %+v", lb.Entries)
	}
	if lb.Entries[1].UserID != walletBob || lb.Entries[1].Score != 0 {
		t.Fatalf("expected bob at 0, got %+v", lb.Entries)
	}

	// Second question: bob answers halfway, alice answers wrong, admin skips.
	q2 := connB.waitFor(t, EventQuestionStart)
	if q2.Payload.(questionStartPayload).ID != "q2" {
		t.Fatalf("expected q2, got %+v", q2.Payload)
	}
	if err := bob.SubmitAnswer("q2", "o1", 1); err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	if err := alice.SubmitAnswer("q2", "o2", 2); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if err := alice.SkipQuestion(); err != nil {
		t.Fatalf("skip: %v", err)
	}

	end := connB.waitFor(t, EventGameEnd).Payload.(gameEndPayload)
	final := end.FinalLeaderboard.Entries
	// Bob: round(100 * (1 - 0.25)) = 75 on q2. Alice keeps her 100.
	if final[0].UserID != walletAlice || final[0].Score != 100 {
		t.Fatalf("expected alice winning with 100, got %+v", final)
	}
	if final[1].UserID != walletBob || final[1].Score != 75 {
		t.Fatalf("expected bob at 75, got %+v", final)
	}

	rewardsEv := connB.waitFor(t, EventRewards).Payload.(rewardsPayload)
	if !rewardsEv.Success || rewardsEv.Details != "2 winners paid" {
		t.Fatalf("expected successful rewards broadcast, got %+v", rewardsEv)
	}
	if rewards.callCount() != 1 {
		t.Fatalf("expected exactly one reward call, got %d", rewards.callCount())
	}

	// Finished state: persisted scores, detached routing, terminal phase.
	if scores := store.Scores(roomID); scores[walletAlice] != 100 || scores[walletBob] != 75 {
		t.Fatalf("persisted scores wrong: %+v", scores)
	}
	if room, ok := store.Room(roomID); !ok || room.Phase != domain.PhaseFinished {
		t.Fatalf("expected finished room record, got %+v", room)
	}
	if sup.RoomCount() != 0 {
		t.Fatalf("finished room should be detached from routing")
	}

	// Locked state machine: late actions bounce off the terminal phase.
	if err := alice.SubmitAnswer("q2", "o1", 1); err != domain.ErrLateSubmission {
		t.Fatalf("expected late rejection after game end, got %v", err)
	}
}

func TestSkipDuringRevealDelayRejected(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := memory.NewRoomStore()
	quiz := testQuiz()
	quiz.MinPlayers = 1
	quiz.Questions = quiz.Questions[:1]
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{quiz.ID: quiz}), 5*time.Minute)
	sup := NewSupervisor(repo, store, Options{Clock: fc, RevealDelaySec: 1})

	conn := newFakeConn()
	alice, err := sup.Join(ctx, "quiz-1", walletAlice, "Alice", conn)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	roomID := alice.RoomID()

	if err := alice.StartGame(1); err != nil {
		t.Fatalf("start: %v", err)
	}
	fc.BlockUntil(1)
	fc.Advance(time.Second)
	conn.waitFor(t, EventQuestionStart)

	if err := alice.SubmitAnswer("q1", "o2", 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := alice.SkipQuestion(); err != nil {
		t.Fatalf("skip: %v", err)
	}
	lb := conn.waitFor(t, EventLeaderboardUpdate).Payload.(domain.Leaderboard)
	if lb.Entries[0].Score != 100 {
		t.Fatalf("expected 100 after reveal, got %+v", lb.Entries)
	}

	// The window is closed while the reveal is on screen; another skip
	// must bounce instead of re-folding the submissions into the totals.
	if err := alice.SkipQuestion(); err != domain.ErrInvalidTransition {
		t.Fatalf("expected skip rejection during reveal delay, got %v", err)
	}

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	end := conn.waitFor(t, EventGameEnd).Payload.(gameEndPayload)
	if got := end.FinalLeaderboard.Entries[0].Score; got != 100 {
		t.Fatalf("score double-counted: expected 100 at game end, got %d", got)
	}
	if scores := store.Scores(roomID); scores[walletAlice] != 100 {
		t.Fatalf("persisted score wrong: %+v", scores)
	}
}

func TestForceFinishOnLastDisconnect(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := memory.NewRoomStore()
	rewards := &fakeRewards{}
	quiz := testQuiz()
	quiz.MinPlayers = 1
	sup := newTestSupervisor(fc, store, rewards, quiz)

	conn := newFakeConn()
	alice, err := sup.Join(ctx, "quiz-1", walletAlice, "Alice", conn)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	roomID := alice.RoomID()

	if err := alice.StartGame(1); err != nil {
		t.Fatalf("start: %v", err)
	}
	fc.BlockUntil(1)
	fc.Advance(time.Second)
	conn.waitFor(t, EventQuestionStart)

	// Last participant leaves mid-game: immediate force-finish.
	alice.Leave()

	if room, ok := store.Room(roomID); !ok || room.Phase != domain.PhaseFinished {
		t.Fatalf("expected forced finish, got %+v", room)
	}
	if sup.RoomCount() != 0 {
		t.Fatalf("forced-finished room should be detached")
	}
	if rewards.callCount() != 0 {
		t.Fatalf("force-finish must skip reward distribution")
	}

	// The discarded question timer stays dead.
	fc.Advance(10 * time.Second)
	select {
	case ev := <-conn.ch:
		if ev.Type == EventQuestionTime {
			t.Fatalf("tick emitted after force-finish")
		}
	case <-time.After(100 * time.Millisecond):
	}

	// A new join targets a fresh room with the next session number.
	bob, err := sup.Join(ctx, "quiz-1", walletBob, "Bob", newFakeConn())
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if bob.RoomID() == roomID {
		t.Fatalf("finished room must never be reused")
	}
	if bob.SessionNumber() != alice.SessionNumber()+1 {
		t.Fatalf("expected next session number, got %d after %d", bob.SessionNumber(), alice.SessionNumber())
	}
}

func TestPromoteAndKick(t *testing.T) {
	ctx := context.Background()
	sup := newTestSupervisor(clockwork.NewFakeClock(), memory.NewRoomStore(), nil, testQuiz())

	alice, err := sup.Join(ctx, "quiz-1", walletAlice, "Alice", newFakeConn())
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	bobConn := newFakeConn()
	bob, err := sup.Join(ctx, "quiz-1", walletBob, "Bob", bobConn)
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}

	if err := bob.PromoteAdmin(walletAlice); err != domain.ErrNotAdmin {
		t.Fatalf("expected admin rejection, got %v", err)
	}
	if err := alice.PromoteAdmin(walletBob); err != nil {
		t.Fatalf("promote: %v", err)
	}
	// Promoted admins hold the full action set.
	if err := bob.SendMessage("now an admin"); err != nil {
		t.Fatalf("message from promoted admin: %v", err)
	}

	if err := alice.Kick(walletBob); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if !bobConn.isClosed() {
		t.Fatalf("kicked participant's connection should be closed")
	}
	// Unregistering an already-removed participant is a no-op.
	bob.Leave()
}
