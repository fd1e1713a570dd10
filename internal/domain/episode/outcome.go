package episode

import "time"

// OutcomeKind classifies what a trigger did.
type OutcomeKind int

const (
	// OutcomeSuppressed means the system is disabled and the trigger was ignored.
	OutcomeSuppressed OutcomeKind = iota
	// OutcomeDeduped means the trigger arrived inside the minimum alert gap.
	OutcomeDeduped
	// OutcomeNewEpisode means the trigger started a new episode.
	OutcomeNewEpisode
	// OutcomeContinuation means the trigger belongs to the active episode.
	OutcomeContinuation
)

// String returns a stable name used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeDeduped:
		return "deduped"
	case OutcomeNewEpisode:
		return "new_episode"
	case OutcomeContinuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// ReasonDisabled is the suppression reason reported while the system is disabled.
const ReasonDisabled = "system disabled"

// Outcome is the result of one trigger.
type Outcome struct {
	// Kind tells which branch the trigger took.
	Kind OutcomeKind
	// Reason explains a suppression.
	Reason string
	// Notified is true when a notify intent was emitted.
	Notified bool
	// Acknowledged is true when the continuation was silenced by the operator.
	Acknowledged bool
}

// IntentKind tells the executor which side effect to perform.
type IntentKind int

const (
	// IntentLogEpisode asks for an episode record to be appended.
	IntentLogEpisode IntentKind = iota
	// IntentNotify asks for a message to the operator.
	IntentNotify
)

// String returns a stable name used in logs and metrics.
func (k IntentKind) String() string {
	switch k {
	case IntentLogEpisode:
		return "log_episode"
	case IntentNotify:
		return "notify"
	default:
		return "unknown"
	}
}

// NotifyReason tells the executor how to word a notification.
type NotifyReason int

const (
	// NotifyNewEpisode announces the start of an episode.
	NotifyNewEpisode NotifyReason = iota
	// NotifyReminder repeats the alert inside the burst window.
	NotifyReminder
	// NotifyReply carries a command reply in Text.
	NotifyReply
)

// Intent is a side effect requested by the detector.
type Intent struct {
	// Kind selects the side effect.
	Kind IntentKind
	// Reason words a notification. Unused for IntentLogEpisode.
	Reason NotifyReason
	// At is the trigger time that produced the intent.
	At time.Time
	// EpisodeStart is when the current episode began.
	EpisodeStart time.Time
	// Text is the reply body for NotifyReply.
	Text string
}

// Decision is everything a single trigger produced.
type Decision struct {
	Outcome Outcome
	Intents []Intent
}
