package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/flowpilot/pkg/services"
)

// DefaultAutosaveDelay is the idle time after the last edit before the graph is saved.
const DefaultAutosaveDelay = 3 * time.Second

var (
	// ErrSaveSuperseded is returned to a save that was cancelled by a newer one.
	ErrSaveSuperseded = errors.New("save superseded by a newer save")

	// ErrSessionClosed is returned by saves requested after the autosaver was stopped.
	ErrSessionClosed = errors.New("editor session closed")
)

// SaveFunc persists the current state. It must capture the state when called, not earlier.
type SaveFunc func(ctx context.Context) (*services.SaveResult, error)

// Autosaver debounces saves. Every Schedule call restarts the idle timer, so only the most recent
// state is written. Saves never interleave: a new save cancels the one in flight and runs after it.
type Autosaver struct {
	delay  time.Duration
	save   SaveFunc
	logger *slog.Logger

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	cancel     context.CancelFunc
	lastErr    error
	lastResult *services.SaveResult
	stopped    bool

	persistMu sync.Mutex
}

// NewAutosaver returns an Autosaver that calls save after delay of inactivity.
func NewAutosaver(delay time.Duration, save SaveFunc, logger *slog.Logger) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}

	return &Autosaver{
		delay:  delay,
		save:   save,
		logger: logger,
	}
}

// Schedule (re)starts the idle timer. A pending save is rescheduled, never queued. It does
// nothing once the autosaver is stopped.
func (a *Autosaver) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}

	a.stopTimer()
	generation := a.generation

	a.timer = time.AfterFunc(a.delay, func() {
		_, _ = a.run(context.Background(), generation)
	})
}

// Pending reports whether a save is scheduled.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.timer != nil
}

// SaveNow cancels any pending timer and saves immediately.
func (a *Autosaver) SaveNow(ctx context.Context) (*services.SaveResult, error) {
	a.mu.Lock()
	a.stopTimer()
	a.mu.Unlock()

	return a.run(ctx, 0)
}

// Flush saves only if a save is pending.
func (a *Autosaver) Flush(ctx context.Context) (*services.SaveResult, error) {
	if !a.Pending() {
		return nil, nil
	}

	return a.SaveNow(ctx)
}

// Stop cancels the pending timer and the save in flight, then waits for that save to return.
// No save starts after Stop.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	a.stopTimer()
	a.stopped = true

	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()

	a.persistMu.Lock()
	defer a.persistMu.Unlock()
}

// stopTimer must be called with mu held. Bumping the generation turns a timer that already
// fired into a no-op.
func (a *Autosaver) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}

	a.generation++
}

// LastError returns the error of the most recent completed save, nil after a success.
func (a *Autosaver) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lastErr
}

// LastResult returns the result of the most recent successful save.
func (a *Autosaver) LastResult() *services.SaveResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lastResult
}

// run saves now. A non-zero generation marks a timer save, dropped when the timer was reset
// or stopped after it fired.
func (a *Autosaver) run(ctx context.Context, generation uint64) (*services.SaveResult, error) {
	a.mu.Lock()
	if generation != 0 {
		if a.generation != generation {
			a.mu.Unlock()

			return nil, nil
		}

		a.timer = nil
	}

	if a.stopped {
		a.mu.Unlock()

		return nil, ErrSessionClosed
	}

	if a.cancel != nil {
		a.cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	defer cancel()

	a.persistMu.Lock()
	defer a.persistMu.Unlock()

	if ctx.Err() != nil {
		a.mu.Lock()
		stopped := a.stopped
		a.mu.Unlock()

		if stopped {
			return nil, ErrSessionClosed
		}

		return nil, ErrSaveSuperseded
	}

	result, err := a.save(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil, ErrSaveSuperseded
	}

	a.mu.Lock()
	a.lastErr = err

	if err == nil {
		a.lastResult = result
	}
	a.mu.Unlock()

	if err != nil {
		// The in-memory graph is left as is; the next edit schedules another attempt.
		a.logger.ErrorContext(ctx, "Failed to save workflow", "error", err)

		return nil, err
	}

	a.logger.DebugContext(ctx, "Workflow saved", "workflow_id", result.ID, "version", result.Version)

	return result, nil
}
