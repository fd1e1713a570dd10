package relay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/cry-relay/internal/command"
	domain "github.com/oshokin/cry-relay/internal/domain/episode"
	repo "github.com/oshokin/cry-relay/internal/repository/episode"
)

const (
	replyEnabled      = "🟢 Alerting enabled."
	replyDisabled     = "🔴 Alerting disabled."
	replyAcknowledged = "🤫 Acknowledged. No more alerts for this episode."
	replyStoreOff     = "⚠️ Episode log is not configured."
	replyStoreFailed  = "⚠️ Could not read the episode log, try again later."
	replyNoneToday    = "📅 No crying episodes today yet."
	replyNoRecords    = "🕒 No crying episodes recorded yet."

	// alertLayout is the timestamp format of episode alerts.
	alertLayout = "15:04:05 02/01/2006"
)

// formatNotification renders a NewEpisode or Reminder intent.
func formatNotification(intent domain.Intent, loc *time.Location) string {
	switch intent.Reason {
	case domain.NotifyNewEpisode:
		return fmt.Sprintf("🚨 Baby started crying!\n🕒 %s", intent.At.In(loc).Format(alertLayout))
	case domain.NotifyReminder:
		return fmt.Sprintf("🔔 Baby is still crying (since %s).\nTap \"%s\" to silence this episode.",
			intent.EpisodeStart.In(loc).Format(domain.TimeLayout), command.LabelAcknowledge)
	default:
		return intent.Text
	}
}

// formatStatus renders the armed state and the current episode.
func formatStatus(s *domain.State, now time.Time, t domain.Timings, loc *time.Location) string {
	var b strings.Builder

	if s.Enabled {
		b.WriteString("🟢 Alerting is ON.")
	} else {
		b.WriteString("🔴 Alerting is OFF.")
	}

	b.WriteByte('\n')

	if !s.Active(now, t) {
		b.WriteString("No active episode.")

		return b.String()
	}

	b.WriteString("Episode in progress since ")
	b.WriteString(s.EpisodeStartedAt.In(loc).Format(domain.TimeLayout))

	if s.Acknowledged {
		b.WriteString(" (acknowledged)")
	}

	b.WriteByte('.')

	return b.String()
}

// formatToday renders the 1-indexed list of today's episodes.
func formatToday(date string, records []domain.Record, err error) string {
	if reply, failed := storeFailure(err); failed {
		return reply
	}

	if len(records) == 0 {
		return replyNoneToday
	}

	var b strings.Builder

	fmt.Fprintf(&b, "📅 Crying episodes on %s: %d", date, len(records))

	for i, r := range records {
		fmt.Fprintf(&b, "\n%d. %s", i+1, r.Time)
	}

	return b.String()
}

// formatLast renders the most recent episode.
func formatLast(record domain.Record, ok bool, err error) string {
	if reply, failed := storeFailure(err); failed {
		return reply
	}

	if !ok {
		return replyNoRecords
	}

	return fmt.Sprintf("🕒 Last crying episode: %s at %s", record.Date, record.Time)
}

// storeFailure maps a store read error to a reply.
func storeFailure(err error) (string, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, repo.ErrStoreDisabled):
		return replyStoreOff, true
	default:
		return replyStoreFailed, true
	}
}

// formatHelp renders the command list.
func formatHelp() string {
	return "🤖 Unknown command.\n" + command.Help()
}
