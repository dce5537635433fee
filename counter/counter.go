// Package counter counts tracked objects crossing a horizontal line and
// classifies each crossing as an entry or exit by its direction of travel.
package counter

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/swdee/go-footfall/tracker"
)

// Totals are the running crossing counts
type Totals struct {
	Entries int `json:"total_entries"`
	Exits   int `json:"total_exits"`
}

// Option configures a Counter
type Option func(*Counter)

// WithLogger sets the logger crossings are reported to
func WithLogger(log zerolog.Logger) Option {
	return func(c *Counter) {
		c.log = log
	}
}

// WithClock sets the function used to timestamp events
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		c.now = now
	}
}

// Counter detects tracks crossing the row LineY.  A track moving from above
// the line to on or below it is an entry, a track moving from below the line
// to on or above it is an exit.  Each track is counted at most once while it
// remains continuously tracked, a track missing from a single frame loses
// its history and may be counted again.
//
// A Counter is not safe for concurrent use.
type Counter struct {
	lineY   int
	entries int
	exits   int
	// entryLog and exitLog hold events in the order they occurred
	entryLog []Event
	exitLog  []Event
	// histories of center y samples per live track
	histories map[int64]*history
	// counted holds tracks that have crossed during their current lifetime
	counted map[int64]struct{}
	now     func() time.Time
	log     zerolog.Logger
}

// New returns a Counter for the horizontal line at row lineY
func New(lineY int, opts ...Option) *Counter {

	c := &Counter{
		lineY:     lineY,
		histories: make(map[int64]*history),
		counted:   make(map[int64]struct{}),
		now:       time.Now,
		log:       zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Update processes the tracked objects of a single frame and returns the
// crossings that occurred on this frame in observation order.  Tracks not
// present in objs are forgotten.
func (c *Counter) Update(objs []tracker.Observation) []Event {

	var events []Event

	present := make(map[int64]struct{}, len(objs))

	for _, obj := range objs {

		present[obj.ID] = struct{}{}

		h, ok := c.histories[obj.ID]

		if !ok {
			h = &history{}
			c.histories[obj.ID] = h
		}

		h.push(obj.Center.Y)

		if !h.full() {
			continue
		}

		if _, done := c.counted[obj.ID]; done {
			continue
		}

		prev, cur := h.oldest(), h.newest()

		var kind Direction

		switch {
		case prev < c.lineY && cur >= c.lineY:
			kind = Entry
		case prev > c.lineY && cur <= c.lineY:
			kind = Exit
		default:
			continue
		}

		ev := Event{Kind: kind, TrackID: obj.ID, Time: c.now()}
		c.record(ev)
		events = append(events, ev)
	}

	// drop tracks lost this frame
	for id := range c.histories {
		if _, ok := present[id]; !ok {
			delete(c.histories, id)
			delete(c.counted, id)

			c.log.Debug().Int64("track_id", id).Msg("track history cleared")
		}
	}

	return events
}

// record applies a crossing to the totals and logs
func (c *Counter) record(ev Event) {

	c.counted[ev.TrackID] = struct{}{}

	switch ev.Kind {
	case Entry:
		c.entries++
		c.entryLog = append(c.entryLog, ev)
	case Exit:
		c.exits++
		c.exitLog = append(c.exitLog, ev)
	}

	c.log.Info().Int64("track_id", ev.TrackID).Str("event", ev.Kind.String()).
		Int("entries", c.entries).Int("exits", c.exits).Msg(ev.String())
}

// LineY returns the row of the counting line
func (c *Counter) LineY() int {
	return c.lineY
}

// Entries returns the total number of entries
func (c *Counter) Entries() int {
	return c.entries
}

// Exits returns the total number of exits
func (c *Counter) Exits() int {
	return c.exits
}

// Summary returns the running totals
func (c *Counter) Summary() Totals {
	return Totals{Entries: c.entries, Exits: c.exits}
}

// EntryLog returns a copy of the entry events in the order they occurred
func (c *Counter) EntryLog() []Event {
	return append([]Event(nil), c.entryLog...)
}

// ExitLog returns a copy of the exit events in the order they occurred
func (c *Counter) ExitLog() []Event {
	return append([]Event(nil), c.exitLog...)
}

// Events returns all entry and exit events merged in time order
func (c *Counter) Events() []Event {

	out := make([]Event, 0, len(c.entryLog)+len(c.exitLog))
	out = append(out, c.entryLog...)
	out = append(out, c.exitLog...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})

	return out
}

// Tracked returns the number of tracks with a live history
func (c *Counter) Tracked() int {
	return len(c.histories)
}
