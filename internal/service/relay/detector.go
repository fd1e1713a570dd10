package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oshokin/cry-relay/internal/clock"
	domain "github.com/oshokin/cry-relay/internal/domain/episode"
	"github.com/oshokin/cry-relay/internal/logger"
	repo "github.com/oshokin/cry-relay/internal/repository/episode"
	"github.com/oshokin/cry-relay/internal/telemetry"
)

// Dispatcher accepts intents for execution outside the detector lock.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents ...domain.Intent)
}

// Detector serializes every trigger and command against one episode state.
// No I/O happens while its lock is held.
type Detector struct {
	// state is the episode bookkeeping, guarded by mu.
	state domain.State
	// timings are the detector windows.
	timings domain.Timings
	// dispatcher executes emitted intents.
	dispatcher Dispatcher
	// store answers the read-only commands.
	store repo.Store
	// clock supplies "now" for commands.
	clock clock.Clock
	// location is the zone used for "today".
	location *time.Location
	// recorder counts outcomes and commands.
	recorder *telemetry.Recorder
	// mu protects state.
	mu sync.Mutex
}

// DetectorOptions are the collaborators of a Detector.
type DetectorOptions struct {
	Timings    domain.Timings
	Dispatcher Dispatcher
	Store      repo.Store
	Clock      clock.Clock
	Location   *time.Location
	Recorder   *telemetry.Recorder
}

// NewDetector returns a disabled, idle detector.
func NewDetector(opts DetectorOptions) *Detector {
	d := &Detector{
		timings:    opts.Timings,
		dispatcher: opts.Dispatcher,
		store:      opts.Store,
		clock:      opts.Clock,
		location:   opts.Location,
		recorder:   opts.Recorder,
	}

	if d.store == nil {
		d.store = repo.Nop{}
	}

	if d.clock == nil {
		d.clock = clock.System{}
	}

	if d.location == nil {
		d.location = time.Local
	}

	if d.recorder == nil {
		d.recorder = telemetry.NewRecorder(nil)
	}

	return d
}

// OnTrigger applies one sensor event at now and dispatches the resulting intents.
func (d *Detector) OnTrigger(ctx context.Context, now time.Time) domain.Outcome {
	d.mu.Lock()
	decision := d.state.Trigger(now, d.timings)
	d.mu.Unlock()

	d.recorder.RecordTrigger(ctx, decision.Outcome.Kind.String())
	logger.DebugKV(ctx, "Trigger processed",
		"outcome", decision.Outcome.Kind.String(),
		"notified", decision.Outcome.Notified,
		"acked", decision.Outcome.Acknowledged,
	)

	if len(decision.Intents) > 0 && d.dispatcher != nil {
		d.dispatcher.Dispatch(ctx, decision.Intents...)
	}

	return decision.Outcome
}

// OnCommand executes an operator command, dispatches the reply to the
// operator channel and returns its text.
func (d *Detector) OnCommand(ctx context.Context, cmd domain.Command) string {
	now := d.clock.Now()
	reply := d.execute(ctx, cmd, now)

	d.recorder.RecordCommand(ctx, cmd.String())
	logger.InfoKV(ctx, "Operator command handled", "command", cmd.String())

	if d.dispatcher != nil {
		d.dispatcher.Dispatch(ctx, domain.Intent{
			Kind:   domain.IntentNotify,
			Reason: domain.NotifyReply,
			At:     now,
			Text:   reply,
		})
	}

	return reply
}

// execute performs cmd and renders the reply.
func (d *Detector) execute(ctx context.Context, cmd domain.Command, now time.Time) string {
	switch cmd {
	case domain.CommandEnable:
		d.withState(func(s *domain.State) { s.Enable() })

		return replyEnabled
	case domain.CommandDisable:
		d.withState(func(s *domain.State) { s.Disable() })

		return replyDisabled
	case domain.CommandAcknowledge:
		d.withState(func(s *domain.State) { s.Acknowledge() })

		return replyAcknowledged
	case domain.CommandStatus:
		return formatStatus(d.Snapshot(), now, d.timings, d.location)
	case domain.CommandToday:
		date, records, err := d.Today(ctx)

		return formatToday(date, records, err)
	case domain.CommandLast:
		record, ok, err := d.store.Last(ctx)
		if err != nil && !errors.Is(err, repo.ErrStoreDisabled) {
			logger.ErrorKV(ctx, "Failed to read the last episode", "error", err)
		}

		return formatLast(record, ok, err)
	default:
		return formatHelp()
	}
}

// withState runs fn under the detector lock.
func (d *Detector) withState(fn func(s *domain.State)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn(&d.state)
}

// Snapshot returns a copy of the current state.
func (d *Detector) Snapshot() *domain.State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state.Clone()
}

// Enabled reports whether triggers are acted upon.
func (d *Detector) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state.Enabled
}

// Today returns the current local date and its episode records.
func (d *Detector) Today(ctx context.Context) (string, []domain.Record, error) {
	date := domain.LocalDate(d.clock.Now(), d.location)

	records, err := d.store.ByDate(ctx, date)
	if err != nil && !errors.Is(err, repo.ErrStoreDisabled) {
		logger.ErrorKV(ctx, "Failed to read today's episodes", "date", date, "error", err)
	}

	return date, records, err
}
