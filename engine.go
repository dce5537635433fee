package footfall

import (
	"context"
	"fmt"

	"github.com/swdee/go-footfall/counter"
	"github.com/swdee/go-footfall/detect"
	"github.com/swdee/go-footfall/tracker"
	"gocv.io/x/gocv"
)

// FrameSource provides video frames in order
type FrameSource interface {
	// Read decodes the next frame into img, returning false when no more
	// frames are available
	Read(img *gocv.Mat) bool
}

// Engine turns a video frame into the tracked objects visible in it
type Engine interface {
	Process(frame gocv.Mat) ([]tracker.Observation, error)
}

// EventSink receives crossing events as they occur
type EventSink interface {
	LogEvent(ctx context.Context, sessionID int64, ev counter.Event) error
}

// TrackingEngine is an Engine that runs a Detector on each frame and passes
// the detections of the allowed classes to a Tracker
type TrackingEngine struct {
	Detector detect.Detector
	Tracker  *tracker.Tracker
	// Classes are the detector class indexes kept for tracking, all classes
	// are kept when empty
	Classes []int
}

// NewTrackingEngine returns a TrackingEngine keeping only the given classes
func NewTrackingEngine(det detect.Detector, trk *tracker.Tracker,
	classes ...int) *TrackingEngine {
	return &TrackingEngine{
		Detector: det,
		Tracker:  trk,
		Classes:  classes,
	}
}

// Process detects and tracks the objects in frame
func (e *TrackingEngine) Process(frame gocv.Mat) ([]tracker.Observation, error) {

	dets, err := e.Detector.Detect(frame)

	if err != nil {
		return nil, fmt.Errorf("error detecting objects: %w", err)
	}

	objs, err := e.Tracker.Update(detect.ToObjects(e.filter(dets)))

	if err != nil {
		return nil, fmt.Errorf("error tracking objects: %w", err)
	}

	return objs, nil
}

// Reset clears the tracker state, used when a looping source restarts
func (e *TrackingEngine) Reset() {
	e.Tracker.Reset()
}

// filter returns the detections whose class is allowed
func (e *TrackingEngine) filter(dets []detect.Detection) []detect.Detection {

	if len(e.Classes) == 0 {
		return dets
	}

	out := dets[:0:0]

	for _, d := range dets {
		for _, c := range e.Classes {
			if d.Class == c {
				out = append(out, d)
				break
			}
		}
	}

	return out
}
