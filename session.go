package footfall

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/swdee/go-footfall/counter"
	"github.com/swdee/go-footfall/density"
	"github.com/swdee/go-footfall/render"
	"github.com/swdee/go-footfall/tracker"
	"gocv.io/x/gocv"
)

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionLogger sets the logger passed to the Session's components
func WithSessionLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

// WithSink sends every crossing event to sink under the given session ID
func WithSink(sink EventSink, sessionID int64) SessionOption {
	return func(s *Session) {
		s.sink = sink
		s.sessionID = sessionID
	}
}

// WithClock sets the function used to timestamp crossing events
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// Session holds the crossing counter and density accumulator for a single
// video.  Both are fed from the same tracked object list on every frame.
//
// A Session is not safe for concurrent use.
type Session struct {
	cfg       Config
	counter   *counter.Counter
	density   *density.Accumulator
	frames    int
	sink      EventSink
	sessionID int64
	now       func() time.Time
	log       zerolog.Logger
}

// NewSession returns a Session for frames of the given size
func NewSession(cfg Config, width, height int, opts ...SessionOption) (*Session, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.ValidateFrame(height); err != nil {
		return nil, err
	}

	s := &Session{
		cfg: cfg,
		now: time.Now,
		log: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	acc, err := density.New(width, height, cfg.KernelSize, cfg.Percentile,
		density.WithLogger(s.log))

	if err != nil {
		return nil, fmt.Errorf("error creating density accumulator: %w", err)
	}

	s.density = acc
	s.counter = counter.New(cfg.LineY, counter.WithLogger(s.log),
		counter.WithClock(s.now))

	s.log.Info().Int("width", width).Int("height", height).Int("line_y", cfg.LineY).
		Msg("session started")

	return s, nil
}

// Observe records the tracked objects of one frame.  Their centers are added
// to the density grid and the list is passed to the counter.  Any crossings
// are then sent to the sink, the in memory state is updated even when the
// sink returns an error.
func (s *Session) Observe(ctx context.Context, objs []tracker.Observation) ([]counter.Event, error) {

	s.frames++

	s.density.AddPointsWithIntensity(tracker.Centers(objs), s.cfg.Intensity)
	events := s.counter.Update(objs)

	if s.sink == nil {
		return events, nil
	}

	for _, ev := range events {
		if err := s.sink.LogEvent(ctx, s.sessionID, ev); err != nil {
			return events, fmt.Errorf("error logging %s of track %d: %w",
				ev.Kind, ev.TrackID, err)
		}
	}

	return events, nil
}

// Config returns the session parameters
func (s *Session) Config() Config {
	return s.cfg
}

// Frames returns the number of frames observed
func (s *Session) Frames() int {
	return s.frames
}

// Counter returns the crossing counter
func (s *Session) Counter() *counter.Counter {
	return s.counter
}

// Density returns the density accumulator
func (s *Session) Density() *density.Accumulator {
	return s.density
}

// Heatmap renders the current density grid.  The caller must close the
// returned Mat when err is nil.
func (s *Session) Heatmap() (gocv.Mat, error) {
	return s.density.Render()
}

// Composite renders the heatmap blended over background, normally the first
// frame of the video.  The caller must close the returned Mat when err is
// nil.
func (s *Session) Composite(background gocv.Mat) (gocv.Mat, error) {

	heat, err := s.Heatmap()

	if err != nil {
		return gocv.Mat{}, fmt.Errorf("error rendering heatmap: %w", err)
	}

	defer heat.Close()

	return render.Blend(background, heat, s.cfg.OverlayAlpha, s.cfg.HeatmapBeta,
		s.cfg.Title)
}

// Close releases the density grid
func (s *Session) Close() error {

	s.log.Info().Int("frames", s.frames).Int("entries", s.counter.Entries()).
		Int("exits", s.counter.Exits()).Msg("session closed")

	return s.density.Close()
}
