package counter

import (
	"fmt"
	"time"
)

// Direction is the direction an object crossed the counting line in
type Direction int

const (
	// Entry is a crossing from above the line (smaller y) to on or below it
	Entry Direction = iota + 1
	// Exit is a crossing from below the line (larger y) to on or above it
	Exit
)

// TimeLayout is the layout used for event timestamps in logs and storage
const TimeLayout = "2006-01-02 15:04:05"

// String returns the lower case name of the direction as used in storage
// and reports
func (d Direction) String() string {
	switch d {
	case Entry:
		return "entry"
	case Exit:
		return "exit"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// verb returns the past tense description used in log records
func (d Direction) verb() string {
	if d == Exit {
		return "exited"
	}
	return "entered"
}

// Event is a single line crossing.  At most one Event is produced per track
// for each uninterrupted period it is tracked
type Event struct {
	Kind    Direction
	TrackID int64
	Time    time.Time
}

// String renders the event as a human readable log record, for example
// "2025-06-01 14:03:22: ID 7 entered"
func (e Event) String() string {
	return fmt.Sprintf("%s: ID %d %s", e.Time.Format(TimeLayout), e.TrackID,
		e.Kind.verb())
}
