// Package orchestrator drives one extraction from submission to a ready artifact:
// submit, wait out the first window, then poll on a fixed interval until the batch is done.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/entity"
)

const (
	DefaultInitialDelay = 15 * time.Second
	DefaultPollInterval = 5 * time.Second
)

type State string

const (
	StateIdle                State = "idle"
	StateSubmitting          State = "submitting"
	StateAwaitingFirstWindow State = "awaiting_first_window"
	StatePolling             State = "polling"
	StateReady               State = "ready"
	StateError               State = "error"
)

// ErrBusy is returned by Run while another run of the same Loop is in flight.
var ErrBusy = errors.New("an extraction is already in progress")

// Snapshot is the client-visible job state. Only fields meaningful for State are set.
type Snapshot struct {
	State      State
	LocationID string
	BatchID    string
	Status     string // last upstream status
	Polls      int
	Artifact   entity.Artifact
	Message    string // set in StateError
}

// SleepFunc waits d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

type LoopOption func(*Loop)

func WithDelays(initial, interval time.Duration) LoopOption {
	return func(l *Loop) {
		if initial >= 0 {
			l.initialDelay = initial
		}
		if interval > 0 {
			l.pollInterval = interval
		}
	}
}

func WithSleep(fn SleepFunc) LoopOption {
	return func(l *Loop) {
		if fn != nil {
			l.sleep = fn
		}
	}
}

// WithTransition registers fn to receive every state change, in order.
func WithTransition(fn func(Snapshot)) LoopOption {
	return func(l *Loop) { l.onTransition = fn }
}

func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop is a single-job state machine. It is safe to call State and Reset from any goroutine.
type Loop struct {
	api          API
	initialDelay time.Duration
	pollInterval time.Duration
	sleep        SleepFunc
	onTransition func(Snapshot)
	logger       *slog.Logger

	mu     sync.Mutex
	snap   Snapshot
	gen    uint64 // bumped on every run start and reset; stale runs stop publishing
	cancel context.CancelFunc
}

func NewLoop(api API, opts ...LoopOption) *Loop {
	l := &Loop{
		api:          api,
		initialDelay: DefaultInitialDelay,
		pollInterval: DefaultPollInterval,
		sleep:        sleepContext,
		logger:       slog.Default(),
		snap:         Snapshot{State: StateIdle},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// State returns the current snapshot.
func (l *Loop) State() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Reset returns the loop to Idle and abandons any in-flight run locally. The upstream
// batch keeps running and its artifact stays retrievable by name.
func (l *Loop) Reset() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
	l.snap = Snapshot{State: StateIdle}
	snap := l.snap
	l.mu.Unlock()
	l.notify(snap)
}

// Run drives locationID to a ready artifact. It retries "not finished yet" forever and
// stops at the first failure, leaving the loop in StateError until Reset or the next Run.
// Cancelling ctx resets the loop to Idle and returns ctx.Err().
func (l *Loop) Run(ctx context.Context, locationID string) (entity.Artifact, error) {
	l.mu.Lock()
	switch l.snap.State {
	case StateIdle, StateReady, StateError:
	default:
		l.mu.Unlock()
		return entity.Artifact{}, ErrBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.gen++
	gen := l.gen
	l.cancel = cancel
	l.mu.Unlock()

	log := l.logger.With("location_id", locationID)

	l.publish(gen, Snapshot{State: StateSubmitting, LocationID: locationID})
	sub, err := l.api.Submit(runCtx, locationID)
	if err != nil {
		return entity.Artifact{}, l.fail(runCtx, gen, log, Snapshot{LocationID: locationID}, err)
	}
	snap := Snapshot{State: StateAwaitingFirstWindow, LocationID: locationID, BatchID: sub.BatchID}
	l.publish(gen, snap)
	log = log.With("batch_id", sub.BatchID)
	log.Info("orchestrator.submitted", "first_poll_in", l.initialDelay.String())

	delay := l.initialDelay
	for {
		if err := l.sleep(runCtx, delay); err != nil {
			return entity.Artifact{}, l.abandon(ctx, gen, log)
		}
		delay = l.pollInterval

		snap.State = StatePolling
		l.publish(gen, snap)
		res, err := l.api.Results(runCtx, sub.BatchID)
		snap.Polls++
		if err != nil {
			return entity.Artifact{}, l.fail(runCtx, gen, log, snap, err)
		}
		snap.Status = res.Status
		if res.Ready {
			snap.State = StateReady
			snap.Artifact = res.Artifact
			l.publish(gen, snap)
			log.Info("orchestrator.ready", "file", res.Artifact.FileName, "reviews", res.Artifact.ReviewCount, "polls", snap.Polls)
			return res.Artifact, nil
		}
		l.publish(gen, snap)
		log.Debug("orchestrator.pending", "status", res.Status, "polls", snap.Polls)
	}
}

func (l *Loop) fail(runCtx context.Context, gen uint64, log *slog.Logger, snap Snapshot, err error) error {
	if runCtx.Err() != nil {
		return l.abandon(runCtx, gen, log)
	}
	snap.State = StateError
	snap.Message = common.Message(err)
	l.publish(gen, snap)
	log.Warn("orchestrator.failed", "error", err)
	return err
}

// abandon handles cancellation. A cancelled parent context resets the loop; a Reset
// already did.
func (l *Loop) abandon(ctx context.Context, gen uint64, log *slog.Logger) error {
	l.mu.Lock()
	if l.gen == gen {
		l.gen++
		l.cancel = nil
		l.snap = Snapshot{State: StateIdle}
		snap := l.snap
		l.mu.Unlock()
		l.notify(snap)
	} else {
		l.mu.Unlock()
	}
	log.Info("orchestrator.cancelled")
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}

func (l *Loop) publish(gen uint64, snap Snapshot) {
	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		return
	}
	l.snap = snap
	if snap.State == StateReady || snap.State == StateError {
		l.cancel = nil
	}
	l.mu.Unlock()
	l.notify(snap)
}

func (l *Loop) notify(snap Snapshot) {
	if l.onTransition != nil {
		l.onTransition(snap)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
