package episode

import "time"

// Timings are the three independent windows of the detector plus the
// reminder cadence.
type Timings struct {
	// MinAlertGap rejects bounce: triggers closer than this to the last accepted one.
	MinAlertGap time.Duration
	// QuietReset is the silence after which the next trigger starts a new episode.
	QuietReset time.Duration
	// BurstWindow is how long after an episode start reminders may be sent.
	BurstWindow time.Duration
	// BurstNotifyInterval is the minimum spacing between notifications in the burst.
	BurstNotifyInterval time.Duration
}

// State is the detector bookkeeping. The zero value is a disabled, idle system.
// Zero times mean "unset".
type State struct {
	// Enabled arms the detector. Never persisted.
	Enabled bool
	// LastAlertAt is the most recent accepted trigger, used only for the gap filter.
	LastAlertAt time.Time
	// LastSeenAt is the most recent accepted trigger of the current episode.
	LastSeenAt time.Time
	// EpisodeStartedAt is the first trigger of the current episode.
	EpisodeStartedAt time.Time
	// BurstEndAt closes the reminder window of the current episode.
	BurstEndAt time.Time
	// LastNotifyAt is the last notification of the current episode.
	LastNotifyAt time.Time
	// Acknowledged silences the current episode.
	Acknowledged bool
}

// Trigger applies one cry event at now and returns the outcome together with
// the intents to execute. Intents are returned in execution order.
func (s *State) Trigger(now time.Time, t Timings) Decision {
	if !s.Enabled {
		return Decision{Outcome: Outcome{Kind: OutcomeSuppressed, Reason: ReasonDisabled}}
	}

	// A duplicate leaves LastAlertAt alone so the gap cannot slide forward on noise.
	if !s.LastAlertAt.IsZero() && now.Sub(s.LastAlertAt) < t.MinAlertGap {
		return Decision{Outcome: Outcome{Kind: OutcomeDeduped}}
	}

	s.LastAlertAt = now

	if s.LastSeenAt.IsZero() || now.Sub(s.LastSeenAt) >= t.QuietReset {
		return s.startEpisode(now, t)
	}

	s.LastSeenAt = now

	if s.Acknowledged {
		return Decision{Outcome: Outcome{Kind: OutcomeContinuation, Acknowledged: true}}
	}

	inBurst := !now.After(s.BurstEndAt)
	intervalElapsed := s.LastNotifyAt.IsZero() || now.Sub(s.LastNotifyAt) >= t.BurstNotifyInterval

	if !inBurst || !intervalElapsed {
		return Decision{Outcome: Outcome{Kind: OutcomeContinuation}}
	}

	s.LastNotifyAt = now

	return Decision{
		Outcome: Outcome{Kind: OutcomeContinuation, Notified: true},
		Intents: []Intent{{
			Kind:         IntentNotify,
			Reason:       NotifyReminder,
			At:           now,
			EpisodeStart: s.EpisodeStartedAt,
		}},
	}
}

// startEpisode resets the per-episode fields and emits the single log intent
// and the opening notification.
func (s *State) startEpisode(now time.Time, t Timings) Decision {
	s.Acknowledged = false
	s.EpisodeStartedAt = now
	s.BurstEndAt = now.Add(t.BurstWindow)
	s.LastNotifyAt = now
	s.LastSeenAt = now

	return Decision{
		Outcome: Outcome{Kind: OutcomeNewEpisode, Notified: true},
		Intents: []Intent{
			{Kind: IntentLogEpisode, At: now, EpisodeStart: now},
			{Kind: IntentNotify, Reason: NotifyNewEpisode, At: now, EpisodeStart: now},
		},
	}
}

// Enable arms the detector. Repeating it has no further effect.
func (s *State) Enable() {
	s.Enabled = true
}

// Disable disarms the detector. Episode bookkeeping is kept, so re-enabling
// during an episode resumes it.
func (s *State) Disable() {
	s.Enabled = false
}

// Acknowledge silences the current episode. Harmless when idle: the flag is
// cleared when the next episode starts.
func (s *State) Acknowledge() {
	s.Acknowledged = true
}

// Active reports whether an episode is still open at now, that is, whether a
// trigger at now would continue it rather than start a new one.
func (s *State) Active(now time.Time, t Timings) bool {
	return !s.LastSeenAt.IsZero() && now.Sub(s.LastSeenAt) < t.QuietReset
}

// Clone returns a copy of the state.
func (s *State) Clone() *State {
	cloned := *s

	return &cloned
}
