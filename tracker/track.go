package tracker

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// TrackState represents the state of a track
type TrackState int

const (
	// Tracked means the object was matched recently and is being tracked
	Tracked TrackState = 1
	// Lost means the object has not been matched for one or more frames
	Lost TrackState = 2
	// Removed means the track has been lost for too long and is discarded
	Removed TrackState = 3
)

// track holds the Kalman state and bookkeeping for a single object
type track struct {
	kf   *KalmanFilter
	mean *mat.VecDense
	cov  *mat.SymDense
	// rect is the current estimated bounding box
	rect  Rect
	state TrackState
	// activated is set once a track has been confirmed by a second match,
	// or immediately for tracks created on the first frame
	activated   bool
	score       float32
	label       int
	id          int64
	detectionID int64
	// frameID is the last frame the track was matched on
	frameID      int
	startFrameID int
}

// newTrack creates an unactivated track for a detection
func newTrack(kf *KalmanFilter, obj Object) *track {
	return &track{
		kf:          kf,
		rect:        obj.Rect,
		score:       obj.Prob,
		label:       obj.Label,
		detectionID: obj.DetectionID,
	}
}

// activate starts the Kalman state for the track and assigns its ID
func (t *track) activate(frameID int, id int64) {

	t.mean, t.cov = t.kf.Initiate(t.rect.Xywh())
	t.updateRect()

	t.state = Tracked
	t.activated = frameID == 1
	t.id = id
	t.frameID = frameID
	t.startFrameID = frameID
}

// predict advances the track state by one frame
func (t *track) predict() {

	if t.state != Tracked {
		// stop height growth of lost tracks
		t.mean.SetVec(7, 0)
	}

	t.kf.Predict(t.mean, t.cov)
	t.updateRect()
}

// update corrects the track with a matched detection
func (t *track) update(obj Object, frameID int) error {

	if err := t.kf.Update(t.mean, t.cov, obj.Rect.Xywh()); err != nil {
		return fmt.Errorf("error updating track %d: %w", t.id, err)
	}

	t.updateRect()

	t.state = Tracked
	t.activated = true
	t.score = obj.Prob
	t.label = obj.Label
	t.detectionID = obj.DetectionID
	t.frameID = frameID

	return nil
}

// updateRect derives the bounding box from the state mean
func (t *track) updateRect() {
	t.rect = rectFromXywh(t.mean.AtVec(0), t.mean.AtVec(1),
		t.mean.AtVec(2), t.mean.AtVec(3))
}

// observation returns the track as an Observation
func (t *track) observation() Observation {
	return NewObservation(t.id, t.rect, t.label, t.score)
}
