package relay

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/cry-relay/internal/command"
	domain "github.com/oshokin/cry-relay/internal/domain/episode"
	"github.com/oshokin/cry-relay/internal/logger"
	"github.com/oshokin/cry-relay/internal/notify"
	repo "github.com/oshokin/cry-relay/internal/repository/episode"
	"github.com/oshokin/cry-relay/internal/telemetry"
)

// job is one queued intent with the context it was emitted under.
type job struct {
	ctx    context.Context //nolint:containedctx // Carries request-scoped logger fields to the worker.
	intent domain.Intent
}

// Executor performs log and notify intents on a single worker goroutine,
// in the order they were dispatched. Failures are logged and counted; they
// never reach the detector.
type Executor struct {
	// queue buffers intents between Dispatch and the worker.
	queue chan job
	// store receives episode records.
	store repo.Store
	// notifier receives operator messages.
	notifier notify.Notifier
	// location formats timestamps.
	location *time.Location
	// recorder counts executed and dropped intents.
	recorder *telemetry.Recorder
	// drainTimeout bounds the shutdown drain.
	drainTimeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// DefaultDrainTimeout is the shutdown grace period when no option overrides it.
const DefaultDrainTimeout = 5 * time.Second

// WithDrainTimeout sets how long queued intents may keep running once Run's
// context is done. Intents still queued after that are dropped.
func WithDrainTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		if timeout > 0 {
			e.drainTimeout = timeout
		}
	}
}

// NewExecutor returns an executor buffering up to queueSize intents.
func NewExecutor(
	store repo.Store,
	notifier notify.Notifier,
	recorder *telemetry.Recorder,
	location *time.Location,
	queueSize int,
	opts ...ExecutorOption,
) *Executor {
	if store == nil {
		store = repo.Nop{}
	}

	if notifier == nil {
		notifier = notify.Nop{}
	}

	if recorder == nil {
		recorder = telemetry.NewRecorder(nil)
	}

	if location == nil {
		location = time.Local
	}

	e := &Executor{
		queue:        make(chan job, queueSize),
		store:        store,
		notifier:     notifier,
		location:     location,
		recorder:     recorder,
		drainTimeout: DefaultDrainTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

var _ Dispatcher = (*Executor)(nil)

// Dispatch enqueues intents without blocking. Intents that do not fit are dropped.
func (e *Executor) Dispatch(ctx context.Context, intents ...domain.Intent) {
	// The request that emitted the intent may finish before the worker gets to it.
	detached := context.WithoutCancel(ctx)

	for _, intent := range intents {
		select {
		case e.queue <- job{ctx: detached, intent: intent}:
		default:
			e.recorder.RecordDropped(ctx, intent.Kind.String())
			logger.WarnKV(ctx, "Intent queue full, dropping intent", "kind", intent.Kind.String())
		}
	}
}

// Run executes queued intents until ctx is done, then drains what is left
// within the drain timeout.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drain()

			return
		case j := <-e.queue:
			e.execute(j.ctx, j.intent)
		}
	}
}

// drain executes the intents already queued until the queue is empty or the
// drain timeout passes. The intent in flight at the deadline is canceled and
// the rest are dropped.
func (e *Executor) drain() {
	deadline := time.Now().Add(e.drainTimeout)

	for {
		select {
		case j := <-e.queue:
			if !time.Now().Before(deadline) {
				e.recorder.RecordDropped(j.ctx, j.intent.Kind.String())
				logger.WarnKV(j.ctx, "Shutdown grace period over, dropping intent", "kind", j.intent.Kind.String())

				continue
			}

			ctx, cancel := context.WithDeadline(j.ctx, deadline)
			e.execute(ctx, j.intent)
			cancel()
		default:
			return
		}
	}
}

// execute performs one intent.
func (e *Executor) execute(ctx context.Context, intent domain.Intent) {
	ctx = logger.WithKV(ctx, "intent", intent.Kind.String())

	var err error

	switch intent.Kind {
	case domain.IntentLogEpisode:
		record := domain.NewRecord(intent.At, e.location)

		err = e.store.Append(ctx, record)
		if errors.Is(err, repo.ErrStoreDisabled) {
			return
		}

		if err == nil {
			logger.InfoKV(ctx, "Episode logged", "date", record.Date, "time", record.Time)
		}
	case domain.IntentNotify:
		err = e.notifier.Send(ctx, notify.Message{
			Text:    formatNotification(intent, e.location),
			Actions: command.Actions(),
		})
	default:
		logger.WarnKV(ctx, "Unknown intent kind", "kind", int(intent.Kind))

		return
	}

	e.recorder.RecordIntent(ctx, intent.Kind.String(), err)

	if err != nil {
		logger.ErrorKV(ctx, "Intent failed", "error", err)
	}
}
