package episode

import "time"

const (
	// DateLayout formats Record.Date.
	DateLayout = "2006-01-02"
	// TimeLayout formats Record.Time.
	TimeLayout = "15:04:05"
)

// Record is the durable trace of one episode, written once when it starts.
type Record struct {
	// Date is the local calendar date of the episode start.
	Date string
	// Time is the local wall-clock time of the episode start.
	Time string
	// At is the absolute start instant, used for ordering.
	At time.Time
}

// NewRecord stamps at in loc.
func NewRecord(at time.Time, loc *time.Location) Record {
	local := at.In(loc)

	return Record{
		Date: local.Format(DateLayout),
		Time: local.Format(TimeLayout),
		At:   at,
	}
}

// LocalDate returns the calendar date of t in loc, formatted like Record.Date.
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}
