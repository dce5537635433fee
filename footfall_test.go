package footfall

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-footfall/counter"
	"github.com/swdee/go-footfall/detect"
	"github.com/swdee/go-footfall/tracker"
	"gocv.io/x/gocv"
)

const (
	frameWidth  = 120
	frameHeight = 100
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LineY = 50
	cfg.KernelSize = 11
	return cfg
}

var clockBase = time.Date(2025, 6, 1, 14, 0, 0, 0, time.Local)

func fixedClock() time.Time {
	return clockBase
}

// person returns an observation with its center at x, y
func person(id int64, x, y int) tracker.Observation {
	return tracker.NewObservation(id,
		tracker.NewRect(float64(x-10), float64(y-20), 20, 40), 0, 0.9)
}

// frameSource yields n grey frames
type frameSource struct {
	n, read int
}

func (f *frameSource) Read(img *gocv.Mat) bool {

	if f.read >= f.n {
		return false
	}

	f.read++

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 100, 100, 0),
		frameHeight, frameWidth, gocv.MatTypeCV8UC3)
	defer frame.Close()

	frame.CopyTo(img)

	return true
}

// scriptEngine returns one scripted observation list per frame
type scriptEngine struct {
	frames [][]tracker.Observation
	calls  int
	err    error
}

func (e *scriptEngine) Process(gocv.Mat) ([]tracker.Observation, error) {

	if e.err != nil {
		return nil, e.err
	}

	e.calls++

	if e.calls > len(e.frames) {
		return nil, nil
	}

	return e.frames[e.calls-1], nil
}

type recordingSink struct {
	sessions []int64
	events   []counter.Event
	err      error
}

func (s *recordingSink) LogEvent(_ context.Context, sessionID int64, ev counter.Event) error {

	if s.err != nil {
		return s.err
	}

	s.sessions = append(s.sessions, sessionID)
	s.events = append(s.events, ev)

	return nil
}

func TestConfigValidate(t *testing.T) {

	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"default", func(*Config) {}, true},
		{"negative line", func(c *Config) { c.LineY = -1 }, false},
		{"even kernel", func(c *Config) { c.KernelSize = 60 }, false},
		{"zero kernel", func(c *Config) { c.KernelSize = 0 }, false},
		{"percentile above 100", func(c *Config) { c.Percentile = 100.5 }, false},
		{"percentile below 0", func(c *Config) { c.Percentile = -1 }, false},
		{"percentile 100", func(c *Config) { c.Percentile = 100 }, true},
		{"zero intensity", func(c *Config) { c.Intensity = 0 }, false},
		{"negative alpha", func(c *Config) { c.OverlayAlpha = -0.1 }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()

			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrConfig)
			}
		})
	}
}

func TestNewSessionLineOutsideFrame(t *testing.T) {
	cfg := testConfig()
	cfg.LineY = frameHeight

	_, err := NewSession(cfg, frameWidth, frameHeight)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestSessionObserve(t *testing.T) {
	sink := &recordingSink{}

	sess, err := NewSession(testConfig(), frameWidth, frameHeight,
		WithSink(sink, 42), WithClock(fixedClock))
	require.NoError(t, err)
	defer sess.Close()

	ctx := context.Background()

	events, err := sess.Observe(ctx, []tracker.Observation{person(1, 60, 40)})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = sess.Observe(ctx, []tracker.Observation{person(1, 60, 55)})
	require.NoError(t, err)

	want := counter.Event{Kind: counter.Entry, TrackID: 1, Time: clockBase}

	assert.Equal(t, []counter.Event{want}, events)
	assert.Equal(t, []counter.Event{want}, sink.events)
	assert.Equal(t, []int64{42}, sink.sessions)

	assert.Equal(t, 2, sess.Frames())
	assert.Equal(t, 1, sess.Counter().Entries())
	assert.InDelta(t, 2*float64(testConfig().Intensity), sess.Density().Total(), 1e-6)
	assert.Equal(t, testConfig().Intensity, sess.Density().At(60, 40))
}

func TestSessionSinkError(t *testing.T) {
	sinkErr := errors.New("disk full")
	sink := &recordingSink{err: sinkErr}

	sess, err := NewSession(testConfig(), frameWidth, frameHeight, WithSink(sink, 1))
	require.NoError(t, err)
	defer sess.Close()

	ctx := context.Background()

	_, err = sess.Observe(ctx, []tracker.Observation{person(3, 60, 70)})
	require.NoError(t, err)

	events, err := sess.Observe(ctx, []tracker.Observation{person(3, 60, 45)})
	assert.ErrorIs(t, err, sinkErr)
	assert.Len(t, events, 1)

	// in memory state is kept
	assert.Equal(t, 1, sess.Counter().Exits())
}

func TestSessionComposite(t *testing.T) {
	sess, err := NewSession(testConfig(), frameWidth, frameHeight)
	require.NoError(t, err)
	defer sess.Close()

	bg := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 100, 100, 0),
		frameHeight, frameWidth, gocv.MatTypeCV8UC3)
	defer bg.Close()

	out, err := sess.Composite(bg)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, frameHeight, out.Rows())
	assert.Equal(t, frameWidth, out.Cols())

	// an empty heatmap leaves the weighted background
	px := out.GetVecbAt(frameHeight-1, frameWidth-1)
	assert.Equal(t, uint8(20), px[0])

	small := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer small.Close()

	_, err = sess.Composite(small)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	sess, err := NewSession(testConfig(), frameWidth, frameHeight)
	require.NoError(t, err)
	defer sess.Close()

	eng := &scriptEngine{frames: [][]tracker.Observation{
		{person(1, 60, 30), person(2, 30, 80)},
		{person(1, 60, 52), person(2, 30, 60)},
		{person(1, 60, 70), person(2, 30, 40)},
	}}

	var progress []Progress
	hooked := 0

	stats, err := Run(context.Background(), &frameSource{n: 3}, eng, sess,
		WithProgress(3, func(p Progress) { progress = append(progress, p) }),
		WithFrameHook(func(frame *gocv.Mat, objs []tracker.Observation,
			events []counter.Event) {
			hooked++
			assert.Equal(t, frameWidth, frame.Cols())
			assert.Len(t, objs, 2)
		}))
	require.NoError(t, err)

	assert.Equal(t, RunStats{Frames: 3, Entries: 1, Exits: 1}, stats)
	assert.Equal(t, 3, hooked)
	assert.Equal(t, []Progress{
		{Frame: 1, Total: 3},
		{Frame: 2, Total: 3, Entries: 1},
		{Frame: 3, Total: 3, Entries: 1, Exits: 1},
	}, progress)
}

func TestRunCancel(t *testing.T) {
	sess, err := NewSession(testConfig(), frameWidth, frameHeight)
	require.NoError(t, err)
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := &scriptEngine{frames: [][]tracker.Observation{{person(1, 60, 30)}}}

	stats, err := Run(ctx, &frameSource{n: 10}, eng, sess,
		WithProgress(0, func(Progress) { cancel() }))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stats.Frames)
	assert.Equal(t, 1, sess.Frames())
	assert.Equal(t, 1, sess.Counter().Tracked())
}

func TestRunEngineError(t *testing.T) {
	sess, err := NewSession(testConfig(), frameWidth, frameHeight)
	require.NoError(t, err)
	defer sess.Close()

	engErr := errors.New("inference failed")

	_, err = Run(context.Background(), &frameSource{n: 2},
		&scriptEngine{err: engErr}, sess)

	assert.ErrorIs(t, err, engErr)
	assert.Contains(t, err.Error(), "frame 1")
}

// classDetector returns the same detections for every frame
type classDetector struct {
	dets []detect.Detection
}

func (d *classDetector) Detect(gocv.Mat) ([]detect.Detection, error) {
	return d.dets, nil
}

func (d *classDetector) Close() error {
	return nil
}

func TestTrackingEngine(t *testing.T) {
	det := &classDetector{dets: []detect.Detection{
		{Box: image.Rect(10, 10, 30, 50), Class: 0, Score: 0.9, ID: 1},
		{Box: image.Rect(70, 10, 90, 50), Class: 2, Score: 0.9, ID: 2},
	}}

	eng := NewTrackingEngine(det, tracker.New(tracker.DefaultParams(30)), 0)

	img := gocv.NewMatWithSize(frameHeight, frameWidth, gocv.MatTypeCV8UC3)
	defer img.Close()

	objs, err := eng.Process(img)
	require.NoError(t, err)
	require.Len(t, objs, 1)

	assert.Equal(t, int64(1), objs[0].ID)
	assert.Equal(t, image.Pt(20, 30), objs[0].Center)

	eng.Reset()
	assert.Equal(t, 0, eng.Tracker.FrameID())

	// no class filter keeps everything
	eng.Classes = nil

	objs, err = eng.Process(img)
	require.NoError(t, err)
	assert.Len(t, objs, 2)
}
