package tracker

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Params defines the thresholds used by the Tracker
type Params struct {
	// TrackThresh splits detections into high and low confidence groups
	TrackThresh float32
	// NewTrackThresh is the minimum confidence for a detection to start
	// a new track
	NewTrackThresh float32
	// MatchThresh is the maximum IoU distance (1 - IoU) allowed when
	// associating high confidence detections
	MatchThresh float64
	// LowMatchThresh is the maximum IoU distance when associating low
	// confidence detections
	LowMatchThresh float64
	// UnconfirmedMatchThresh is the maximum IoU distance when confirming
	// tracks that have only been seen once
	UnconfirmedMatchThresh float64
	// MaxLost is the number of frames a track can go unmatched before it
	// is removed
	MaxLost int
}

// DefaultParams returns the tracking thresholds for a video of the given
// frame rate with a track buffer of 30 frames at 30 FPS
func DefaultParams(frameRate int) Params {

	if frameRate <= 0 {
		frameRate = 30
	}

	return Params{
		TrackThresh:            0.5,
		NewTrackThresh:         0.6,
		MatchThresh:            0.8,
		LowMatchThresh:         0.5,
		UnconfirmedMatchThresh: 0.7,
		MaxLost:                int(float64(frameRate) / 30.0 * 30),
	}
}

// Option configures a Tracker
type Option func(*Tracker)

// WithLogger sets the logger the Tracker reports track lifecycle to
func WithLogger(log zerolog.Logger) Option {
	return func(t *Tracker) {
		t.log = log
	}
}

// Tracker is a ByteTrack style multi object tracker.  Detections are
// associated with tracks by IoU in two stages, high confidence detections
// first then low confidence ones, with track positions predicted between
// frames by a Kalman filter.
type Tracker struct {
	params Params
	kf     *KalmanFilter
	// frameID is the current frame number, starting at 1
	frameID int
	// idCount is the last track ID handed out
	idCount int64
	// tracked holds tracks in the Tracked state, both activated and
	// unconfirmed
	tracked []*track
	// lost holds tracks in the Lost state
	lost []*track
	log  zerolog.Logger
}

// New returns a Tracker using the given params
func New(p Params, opts ...Option) *Tracker {

	t := &Tracker{
		params: p,
		kf:     NewKalmanFilter(1.0/20, 1.0/160),
		log:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Reset clears all tracks and restarts track IDs from 1
func (t *Tracker) Reset() {
	t.frameID = 0
	t.idCount = 0
	t.tracked = nil
	t.lost = nil
}

// FrameID returns the number of frames processed since the last Reset
func (t *Tracker) FrameID() int {
	return t.frameID
}

// Update associates the detections of a new frame with existing tracks and
// returns the activated tracks matched on this frame
func (t *Tracker) Update(objects []Object) ([]Observation, error) {

	t.frameID++

	// split detections by confidence
	var highDets, lowDets []Object

	for _, obj := range objects {
		if obj.Prob >= t.params.TrackThresh {
			highDets = append(highDets, obj)
		} else {
			lowDets = append(lowDets, obj)
		}
	}

	var unconfirmed, pool []*track

	for _, trk := range t.tracked {
		if trk.activated {
			pool = append(pool, trk)
		} else {
			unconfirmed = append(unconfirmed, trk)
		}
	}

	pool = append(pool, t.lost...)

	for _, trk := range pool {
		trk.predict()
	}

	// first association with high confidence detections
	matches, unmatchedTracks, unmatchedDets, err := linearAssignment(
		iouDistance(pool, highDets), len(pool), len(highDets), t.params.MatchThresh)

	if err != nil {
		return nil, fmt.Errorf("first association: %w", err)
	}

	for _, m := range matches {
		if err := pool[m[0]].update(highDets[m[1]], t.frameID); err != nil {
			return nil, fmt.Errorf("first association: %w", err)
		}
	}

	var remainTracks []*track

	for _, idx := range unmatchedTracks {
		if pool[idx].state == Tracked {
			remainTracks = append(remainTracks, pool[idx])
		}
	}

	remainDets := make([]Object, 0, len(unmatchedDets))

	for _, idx := range unmatchedDets {
		remainDets = append(remainDets, highDets[idx])
	}

	// second association of the leftover tracked tracks with low
	// confidence detections
	matches, unmatchedTracks, _, err = linearAssignment(
		iouDistance(remainTracks, lowDets), len(remainTracks), len(lowDets),
		t.params.LowMatchThresh)

	if err != nil {
		return nil, fmt.Errorf("second association: %w", err)
	}

	for _, m := range matches {
		if err := remainTracks[m[0]].update(lowDets[m[1]], t.frameID); err != nil {
			return nil, fmt.Errorf("second association: %w", err)
		}
	}

	for _, idx := range unmatchedTracks {
		remainTracks[idx].state = Lost
	}

	// confirm tracks seen once on the previous frame
	matches, unmatchedTracks, unmatchedDets, err = linearAssignment(
		iouDistance(unconfirmed, remainDets), len(unconfirmed), len(remainDets),
		t.params.UnconfirmedMatchThresh)

	if err != nil {
		return nil, fmt.Errorf("confirming track: %w", err)
	}

	for _, m := range matches {
		if err := unconfirmed[m[0]].update(remainDets[m[1]], t.frameID); err != nil {
			return nil, fmt.Errorf("confirming track: %w", err)
		}
	}

	for _, idx := range unmatchedTracks {
		unconfirmed[idx].state = Removed
	}

	// start new tracks
	for _, idx := range unmatchedDets {

		obj := remainDets[idx]

		if obj.Prob < t.params.NewTrackThresh {
			continue
		}

		t.idCount++
		trk := newTrack(t.kf, obj)
		trk.activate(t.frameID, t.idCount)
		unconfirmed = append(unconfirmed, trk)

		t.log.Debug().Int64("track_id", trk.id).Int("frame", t.frameID).
			Msg("track started")
	}

	// expire tracks lost for too long
	for _, trk := range pool {
		if trk.state == Lost && t.frameID-trk.frameID > t.params.MaxLost {
			trk.state = Removed

			t.log.Debug().Int64("track_id", trk.id).Int("frame", t.frameID).
				Msg("track removed")
		}
	}

	// rebuild the track lists keeping the original ordering of pool,
	// followed by new and unconfirmed tracks
	t.tracked = t.tracked[:0:0]
	t.lost = t.lost[:0:0]

	for _, trk := range append(pool, unconfirmed...) {
		switch trk.state {
		case Tracked:
			t.tracked = append(t.tracked, trk)
		case Lost:
			t.lost = append(t.lost, trk)
		}
	}

	t.tracked, t.lost = removeDuplicates(t.tracked, t.lost)

	var out []Observation

	for _, trk := range t.tracked {
		if trk.activated && trk.frameID == t.frameID {
			out = append(out, trk.observation())
		}
	}

	// output in track ID order so results are stable between frames
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// iouDistance returns the 1 - IoU cost of each track against each detection
func iouDistance(tracks []*track, objs []Object) [][]float64 {

	cost := make([][]float64, len(tracks))

	for i, trk := range tracks {
		cost[i] = make([]float64, len(objs))

		for j, obj := range objs {
			cost[i][j] = 1 - trk.rect.IoU(obj.Rect)
		}
	}

	return cost
}

// duplicateDist is the IoU distance below which a tracked and a lost track
// are considered the same object
const duplicateDist = 0.15

// removeDuplicates drops one of each tracked and lost track pair covering
// the same object, keeping the track that has existed longer
func removeDuplicates(tracked, lost []*track) ([]*track, []*track) {

	dropTracked := make([]bool, len(tracked))
	dropLost := make([]bool, len(lost))

	for i, a := range tracked {
		for j, b := range lost {

			if 1-a.rect.IoU(b.rect) >= duplicateDist {
				continue
			}

			if a.frameID-a.startFrameID > b.frameID-b.startFrameID {
				dropLost[j] = true
			} else {
				dropTracked[i] = true
			}
		}
	}

	keep := func(tracks []*track, drop []bool) []*track {
		out := make([]*track, 0, len(tracks))
		for i, trk := range tracks {
			if !drop[i] {
				out = append(out, trk)
			}
		}
		return out
	}

	return keep(tracked, dropTracked), keep(lost, dropLost)
}
