package episode

// Command is an operator instruction.
type Command int

const (
	// CommandUnknown is any text that matched no command.
	CommandUnknown Command = iota
	// CommandEnable arms the detector.
	CommandEnable
	// CommandDisable disarms the detector.
	CommandDisable
	// CommandStatus reports whether the detector is armed.
	CommandStatus
	// CommandToday lists the episodes of the current local date.
	CommandToday
	// CommandLast shows the most recent episode.
	CommandLast
	// CommandAcknowledge silences the current episode.
	CommandAcknowledge
)

// String returns a stable name used in logs and metrics.
func (c Command) String() string {
	switch c {
	case CommandEnable:
		return "enable"
	case CommandDisable:
		return "disable"
	case CommandStatus:
		return "status"
	case CommandToday:
		return "today"
	case CommandLast:
		return "last"
	case CommandAcknowledge:
		return "acknowledge"
	default:
		return "unknown"
	}
}
