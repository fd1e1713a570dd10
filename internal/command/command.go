// Package command maps operator chat text to detector commands.
//
// Matching is case-sensitive against a fixed synonym table: each command has
// one or more slash forms and the label of its quick-reply button.
package command

import (
	"strings"

	"github.com/oshokin/cry-relay/internal/domain/episode"
)

// Button labels shown on the operator keyboard. Pressing a button sends its label as text.
const (
	LabelEnable      = "🟢 Enable"
	LabelDisable     = "🔴 Disable"
	LabelStatus      = "ℹ️ Status"
	LabelToday       = "📅 Today"
	LabelLast        = "🕒 Last"
	LabelAcknowledge = "🤫 Acknowledge"
)

// entry is one row of the synonym table.
type entry struct {
	// command is the detector command the row maps to.
	command episode.Command
	// label is the quick-reply button text.
	label string
	// slashes are the accepted slash forms.
	slashes []string
}

// table lists commands in keyboard order.
//
//nolint:gochecknoglobals // Fixed lookup table.
var table = []entry{
	{episode.CommandEnable, LabelEnable, []string{"/enable", "/on"}},
	{episode.CommandDisable, LabelDisable, []string{"/disable", "/off"}},
	{episode.CommandStatus, LabelStatus, []string{"/status"}},
	{episode.CommandToday, LabelToday, []string{"/today"}},
	{episode.CommandLast, LabelLast, []string{"/last"}},
	{episode.CommandAcknowledge, LabelAcknowledge, []string{"/ack", "/acknowledge"}},
}

// synonyms indexes table by every accepted text.
//
//nolint:gochecknoglobals // Built once from table.
var synonyms = buildSynonyms()

func buildSynonyms() map[string]episode.Command {
	m := make(map[string]episode.Command, len(table)*3)

	for _, e := range table {
		m[e.label] = e.command

		for _, s := range e.slashes {
			m[s] = e.command
		}
	}

	return m
}

// Parse returns the command text stands for, or CommandUnknown.
// Surrounding whitespace and a "@botname" suffix on slash forms are ignored.
func Parse(text string) episode.Command {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "/") {
		if at := strings.IndexByte(text, '@'); at > 0 {
			text = text[:at]
		}
	}

	if c, ok := synonyms[text]; ok {
		return c
	}

	return episode.CommandUnknown
}

// Actions returns the quick-reply button labels in keyboard order.
func Actions() []string {
	labels := make([]string, 0, len(table))
	for _, e := range table {
		labels = append(labels, e.label)
	}

	return labels
}

// Help renders the list of recognized commands.
func Help() string {
	var b strings.Builder

	b.WriteString("Available commands:\n")

	for _, e := range table {
		b.WriteString(strings.Join(e.slashes, ", "))
		b.WriteString(" (")
		b.WriteString(e.label)
		b.WriteString("): ")
		b.WriteString(describe(e.command))
		b.WriteByte('\n')
	}

	return strings.TrimRight(b.String(), "\n")
}

func describe(c episode.Command) string {
	switch c {
	case episode.CommandEnable:
		return "start alerting"
	case episode.CommandDisable:
		return "stop alerting"
	case episode.CommandStatus:
		return "show whether alerting is on"
	case episode.CommandToday:
		return "list today's episodes"
	case episode.CommandLast:
		return "show the latest episode"
	case episode.CommandAcknowledge:
		return "silence the current episode"
	default:
		return ""
	}
}
