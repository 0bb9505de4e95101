// Package session drives the user-visible discovery state. It reconciles
// engine completion with the perceived-loading-time contract: a found result
// is never shown before the minimum search duration has elapsed, and a run
// that outlives the maximum duration is presented as timed out even if the
// engine later completes.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/geekdaily/escape-the-algo/internal/discovery"
	"github.com/geekdaily/escape-the-algo/internal/history"
	"github.com/geekdaily/escape-the-algo/internal/models"
	"github.com/geekdaily/escape-the-algo/pkg/logger"
)

// Phase is the user-visible discovery phase.
type Phase string

// Phases of the presentation state machine. Idle is the pre-first-run state;
// every other phase is reachable only as documented: searching leads to one
// of the four terminal phases, and any terminal phase leads back to
// searching via a new run.
const (
	PhaseIdle      Phase = "idle"
	PhaseSearching Phase = "searching"
	PhaseFound     Phase = "found"
	PhaseExhausted Phase = "exhausted"
	PhaseTimedOut  Phase = "timed-out"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseFound, PhaseExhausted, PhaseTimedOut, PhaseFailed:
		return true
	}
	return false
}

// State is a snapshot of the machine.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type State struct {
	Phase     Phase         `json:"phase"`
	RunID     uint64        `json:"run_id"`
	Video     *models.Video `json:"video,omitempty"`
	Message   string        `json:"message,omitempty"`
	StartedAt time.Time     `json:"started_at,omitzero"`
}

// Errors returned by Wait.
var (
	ErrUnknownRun = errors.New("unknown discovery run")
	ErrSuperseded = errors.New("discovery run superseded by a newer run")
)

// TerminalFunc observes each run that reaches a terminal phase. Used to wire
// metrics and outcome publishing without coupling the machine to them.
type TerminalFunc func(state State, outcome discovery.Outcome, elapsed time.Duration)

// runHandle delivers exactly one terminal event per run to waiters. Both
// resolution paths funnel through once: a handle already resolved with a
// final state ignores a later supersession attempt, and vice versa.
type runHandle struct {
	once       sync.Once
	done       chan struct{}
	final      State
	superseded bool
}

func (h *runHandle) resolve(final State) {
	h.once.Do(func() {
		h.final = final
		close(h.done)
	})
}

func (h *runHandle) resolveSuperseded() {
	h.once.Do(func() {
		h.superseded = true
		close(h.done)
	})
}

// Controller owns the single presentation session for this server process,
// modelling one browser profile. Starting a run supersedes any in-flight
// run: the superseded run's eventual result is discarded and never touches
// the history store or visible state.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Controller struct {
	engine      *discovery.Engine
	store       history.Store
	minDuration time.Duration
	maxDuration time.Duration
	onTerminal  TerminalFunc

	mu      sync.Mutex
	runSeq  uint64
	cancel  context.CancelFunc
	state   State
	handles map[uint64]*runHandle
}

// NewController wires the machine to an engine and a history store.
func NewController(engine *discovery.Engine, store history.Store, minDuration, maxDuration time.Duration) *Controller {
	return &Controller{
		engine:      engine,
		store:       store,
		minDuration: minDuration,
		maxDuration: maxDuration,
		state:       State{Phase: PhaseIdle},
		handles:     make(map[uint64]*runHandle),
	}
}

// SetTerminalHook registers fn to be called after each terminal transition.
// Must be called before the first Start.
func (c *Controller) SetTerminalHook(fn TerminalFunc) {
	c.onTerminal = fn
}

// Start begins a new discovery run near loc, superseding any run in flight.
// extraExcluded is merged into the history snapshot so a just-dismissed
// video cannot be re-selected. Returns the new run's identifier.
func (c *Controller) Start(loc models.GeoLocation, extraExcluded []string) uint64 {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.runSeq++
	run := c.runSeq

	// Drop stale handles; waiters of a run that never reached a terminal
	// phase learn it was superseded.
	for id, h := range c.handles {
		h.resolveSuperseded()
		delete(c.handles, id)
	}
	handle := &runHandle{done: make(chan struct{})}
	c.handles[run] = handle

	started := time.Now()
	c.state = State{Phase: PhaseSearching, RunID: run, StartedAt: started}
	c.mu.Unlock()

	logger.Log.Info("discovery run started",
		zap.Uint64("runId", run),
		zap.Float64("latitude", loc.Latitude),
		zap.Float64("longitude", loc.Longitude),
		zap.Int("extraExcluded", len(extraExcluded)),
	)

	go c.execute(ctx, cancel, run, started, loc, extraExcluded)
	return run
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until the given run reaches a terminal phase, the run is
// superseded, or ctx is done.
func (c *Controller) Wait(ctx context.Context, runID uint64) (State, error) {
	c.mu.Lock()
	handle, ok := c.handles[runID]
	c.mu.Unlock()
	if !ok {
		return State{}, ErrUnknownRun
	}

	select {
	case <-ctx.Done():
		return State{}, ctx.Err()
	case <-handle.done:
	}
	if handle.superseded {
		return State{}, ErrSuperseded
	}
	return handle.final, nil
}

// MarkPlayed promotes a video's history status from offered to played. It is
// a separate signal with no state-machine transition.
func (c *Controller) MarkPlayed(ctx context.Context, videoID string) {
	c.store.UpdateStatus(ctx, videoID, models.WatchStatusPlayed)
}

// execute runs one discovery run to its terminal phase. All timers are
// scoped to this run; cancel is deferred so a finished run releases the
// engine goroutine even when it is still mid-schedule.
func (c *Controller) execute(ctx context.Context, cancel context.CancelFunc, run uint64, started time.Time, loc models.GeoLocation, extraExcluded []string) {
	defer cancel()

	// Exclusion set: history snapshot taken once at run start, plus caller
	// extras. Owned by this run; never shared.
	excluded := c.store.ExcludedIDs(ctx)
	for _, id := range extraExcluded {
		excluded[id] = struct{}{}
	}

	outcomeCh := make(chan discovery.Outcome, 1)
	go func() {
		outcomeCh <- c.engine.Discover(ctx, loc, excluded)
	}()

	timeout := time.NewTimer(c.maxDuration)
	defer timeout.Stop()

	var outcome discovery.Outcome
	select {
	case <-ctx.Done():
		return
	case <-timeout.C:
		c.finish(ctx, run, State{Phase: PhaseTimedOut, RunID: run}, discovery.Outcome{}, started)
		return
	case outcome = <-outcomeCh:
	}

	final := State{RunID: run}
	switch outcome.Kind {
	case discovery.OutcomeFound:
		// The engine may finish well before the minimum perceived-search
		// duration; the visible transition waits, the result does not.
		if remaining := c.minDuration - time.Since(started); remaining > 0 {
			gate := time.NewTimer(remaining)
			defer gate.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timeout.C:
				c.finish(ctx, run, State{Phase: PhaseTimedOut, RunID: run}, discovery.Outcome{}, started)
				return
			case <-gate.C:
			}
		}
		final.Phase = PhaseFound
		final.Video = outcome.Video
	case discovery.OutcomeExhausted:
		final.Phase = PhaseExhausted
	default:
		final.Phase = PhaseFailed
		if outcome.Err != nil {
			final.Message = outcome.Err.Error()
		}
	}

	c.finish(ctx, run, final, outcome, started)
}

// finish applies a terminal transition if and only if the run is still the
// current one and has not already reached a terminal phase. Stale
// completions are fully inert.
func (c *Controller) finish(ctx context.Context, run uint64, final State, outcome discovery.Outcome, started time.Time) {
	c.mu.Lock()
	if run != c.runSeq || c.state.Phase.Terminal() {
		c.mu.Unlock()
		logger.Log.Debug("discarding stale run result",
			zap.Uint64("runId", run),
			zap.String("phase", string(final.Phase)),
		)
		return
	}

	// The history write happens at transition time, under the same lock
	// that guards supersession, so a superseded run can never record.
	if final.Phase == PhaseFound && final.Video != nil {
		c.store.RecordOrUpdate(ctx, *final.Video, models.WatchStatusOffered)
	}

	final.StartedAt = c.state.StartedAt
	c.state = final

	// Resolve while still holding the lock so a concurrent Start cannot
	// supersede a handle whose terminal state is already committed.
	if handle := c.handles[run]; handle != nil {
		handle.resolve(final)
	}
	c.mu.Unlock()

	elapsed := time.Since(started)
	logger.Log.Info("discovery run finished",
		zap.Uint64("runId", run),
		zap.String("phase", string(final.Phase)),
		zap.Duration("elapsed", elapsed),
	)

	if c.onTerminal != nil {
		c.onTerminal(final, outcome, elapsed)
	}
}
