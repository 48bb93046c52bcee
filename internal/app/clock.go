package app

import (
	"time"

	"github.com/jonboulle/clockwork"

	"quizroom-service/internal/domain"
)

// gameClock drives the room's countdown, question, and reveal-delay
// timers. At most one run is active per room; the orchestrator sequences
// them, never the clock. Start and Cancel must only be called from the
// room's actor goroutine; ticks and completion are delivered back onto
// that same goroutine through exec, so they can never race with state
// mutations.
type gameClock struct {
	clock clockwork.Clock
	exec  func(fn func()) bool
	run   *clockRun
}

type clockRun struct {
	stop chan struct{}
}

func newGameClock(clock clockwork.Clock, exec func(fn func()) bool) *gameClock {
	return &gameClock{clock: clock, exec: exec}
}

// Start begins a timer of the given whole seconds. onTick receives the
// remaining seconds once per second down to zero inclusive; onDone fires
// after the final tick. A zero or negative duration completes immediately
// (still on the actor goroutine).
func (g *gameClock) Start(seconds int, onTick func(remaining int), onDone func()) error {
	if g.run != nil {
		return domain.ErrTimerActive
	}
	if seconds <= 0 {
		// Caller is already on the actor goroutine.
		onDone()
		return nil
	}
	run := &clockRun{stop: make(chan struct{})}
	g.run = run

	ticker := g.clock.NewTicker(time.Second)
	go func() {
		defer ticker.Stop()
		remaining := seconds
		for {
			select {
			case <-ticker.Chan():
				remaining--
				r := remaining
				g.exec(func() {
					// A cancelled run's stale tick must never fire.
					if g.run != run {
						return
					}
					if onTick != nil {
						onTick(r)
					}
					if r <= 0 {
						g.run = nil
						onDone()
					}
				})
				if remaining <= 0 {
					return
				}
			case <-run.stop:
				return
			}
		}
	}()
	return nil
}

// Cancel stops the active run, if any. Synchronous with respect to the
// actor: any tick already queued behind this call sees a replaced run and
// is discarded.
func (g *gameClock) Cancel() {
	if g.run == nil {
		return
	}
	close(g.run.stop)
	g.run = nil
}

// Active reports whether a timer run is in flight.
func (g *gameClock) Active() bool {
	return g.run != nil
}
