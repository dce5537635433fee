// Package report writes the artifacts of a finished counting session, a
// JSON summary, a CSV event log, the heatmap image, a timeline chart and an
// HTML dashboard.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/swdee/go-footfall/counter"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// FileTimeLayout is the timestamp layout used in artifact file names
const FileTimeLayout = "2006-01-02_15-04-05"

// ErrHeatmapWrite is returned when the heatmap image could not be encoded
var ErrHeatmapWrite = errors.New("failed to write heatmap image")

// Summary is the input to a report
type Summary struct {
	// Time is the time the report was generated
	Time        time.Time
	SessionUUID uuid.UUID
	Video       string
	Totals      counter.Totals
	Entries     []counter.Event
	Exits       []counter.Event
	// Heatmap is an optional BGR image written alongside the report
	Heatmap *gocv.Mat
}

// events returns entries and exits merged in time order
func (s Summary) events() []counter.Event {

	all := make([]counter.Event, 0, len(s.Entries)+len(s.Exits))
	all = append(all, s.Entries...)
	all = append(all, s.Exits...)

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Time.Before(all[j].Time)
	})

	return all
}

// Artifacts are the paths of the files written for a report.  Paths are
// empty for artifacts that were not produced.
type Artifacts struct {
	JSON     string
	CSV      string
	Heatmap  string
	Timeline string
	HTML     string
}

// Option configures a Generator
type Option func(*Generator)

// WithLogger sets the logger used by the Generator
func WithLogger(log zerolog.Logger) Option {
	return func(g *Generator) {
		g.log = log
	}
}

// Generator writes reports into a folder
type Generator struct {
	dir string
	log zerolog.Logger
}

// NewGenerator returns a Generator writing to dir, creating it if needed
func NewGenerator(dir string, opts ...Option) (*Generator, error) {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating report folder: %w", err)
	}

	g := &Generator{
		dir: dir,
		log: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Dir returns the folder reports are written to
func (g *Generator) Dir() string {
	return g.dir
}

// Generate writes all artifacts for the summary.  The CSV log and timeline
// chart are only written when there is at least one event, the heatmap only
// when one is supplied.
func (g *Generator) Generate(s Summary) (Artifacts, error) {

	var art Artifacts

	if s.Time.IsZero() {
		s.Time = time.Now()
	}

	ts := s.Time.Format(FileTimeLayout)
	events := s.events()

	art.JSON = filepath.Join(g.dir, "report_"+ts+".json")

	if err := writeJSON(art.JSON, s, events); err != nil {
		return art, err
	}

	if len(events) > 0 {
		art.CSV = filepath.Join(g.dir, "report_"+ts+".csv")

		if err := writeCSV(art.CSV, events); err != nil {
			return art, err
		}

		art.Timeline = filepath.Join(g.dir, "timeline_"+ts+".png")

		if err := writeTimeline(art.Timeline, events); err != nil {
			return art, err
		}
	}

	if s.Heatmap != nil && !s.Heatmap.Empty() {
		art.Heatmap = filepath.Join(g.dir, "heatmap_"+ts+".png")

		if ok := gocv.IMWrite(art.Heatmap, *s.Heatmap); !ok {
			return art, fmt.Errorf("%w: %s", ErrHeatmapWrite, art.Heatmap)
		}
	}

	art.HTML = filepath.Join(g.dir, "report_"+ts+".html")

	if err := writeDashboard(art.HTML, s, events); err != nil {
		return art, err
	}

	g.log.Info().Str("dir", g.dir).Int("events", len(events)).
		Msg("report generated")

	return art, nil
}

// document is the JSON report layout
type document struct {
	ReportTime  string         `json:"report_time"`
	SessionUUID string         `json:"session_uuid,omitempty"`
	Video       string         `json:"video,omitempty"`
	Summary     counter.Totals `json:"summary"`
	Logs        logs           `json:"logs"`
	Stats       stats          `json:"stats"`
}

type logs struct {
	Entries []string `json:"entries"`
	Exits   []string `json:"exits"`
}

type stats struct {
	EventsPerMinuteMean   float64 `json:"events_per_minute_mean"`
	EventsPerMinuteStdDev float64 `json:"events_per_minute_stddev"`
}

func writeJSON(path string, s Summary, events []counter.Event) error {

	doc := document{
		ReportTime: s.Time.Format(counter.TimeLayout),
		Video:      s.Video,
		Summary:    s.Totals,
		Logs: logs{
			Entries: eventStrings(s.Entries),
			Exits:   eventStrings(s.Exits),
		},
	}

	if s.SessionUUID != uuid.Nil {
		doc.SessionUUID = s.SessionUUID.String()
	}

	doc.Stats.EventsPerMinuteMean, doc.Stats.EventsPerMinuteStdDev =
		perMinuteStats(events)

	data, err := json.MarshalIndent(doc, "", "    ")

	if err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}

	return nil
}

// eventStrings returns the log records of events, never nil
func eventStrings(events []counter.Event) []string {

	out := make([]string, 0, len(events))

	for _, ev := range events {
		out = append(out, ev.String())
	}

	return out
}

func writeCSV(path string, events []counter.Event) error {

	f, err := os.Create(path)

	if err != nil {
		return fmt.Errorf("error creating event log: %w", err)
	}

	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write([]string{"timestamp", "track_id", "event", "type"}); err != nil {
		return fmt.Errorf("error writing event log: %w", err)
	}

	for _, ev := range events {
		rec := []string{
			ev.Time.Format(counter.TimeLayout),
			strconv.FormatInt(ev.TrackID, 10),
			ev.String(),
			ev.Kind.String(),
		}

		if err := w.Write(rec); err != nil {
			return fmt.Errorf("error writing event log: %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("error writing event log: %w", err)
	}

	return f.Close()
}

// minuteBuckets counts events per wall clock minute from the minute of the
// first event through the minute of the last, including empty minutes
func minuteBuckets(events []counter.Event, kind counter.Direction) (start time.Time,
	counts []float64) {

	if len(events) == 0 {
		return time.Time{}, nil
	}

	start = events[0].Time.Truncate(time.Minute)
	end := events[len(events)-1].Time.Truncate(time.Minute)
	counts = make([]float64, int(end.Sub(start)/time.Minute)+1)

	for _, ev := range events {
		if kind != 0 && ev.Kind != kind {
			continue
		}
		counts[int(ev.Time.Truncate(time.Minute).Sub(start)/time.Minute)]++
	}

	return start, counts
}

// perMinuteStats returns the mean and sample standard deviation of the
// number of events per minute
func perMinuteStats(events []counter.Event) (mean, stddev float64) {

	_, counts := minuteBuckets(events, 0)

	if len(counts) == 0 {
		return 0, 0
	}

	mean = stat.Mean(counts, nil)

	if len(counts) > 1 {
		stddev = stat.StdDev(counts, nil)
	}

	return mean, stddev
}
