package tracker

import "image"

// Object represents a detection handed to the Tracker
type Object struct {
	// Rect is the bounding box of the detected object
	Rect Rect
	// Label is the class label of the object detected
	Label int
	// Prob is the confidence/probability of the object detected
	Prob float32
	// DetectionID is the ID the detector gave this object, used to match the
	// input detection with the tracked result
	DetectionID int64
}

// NewObject is a constructor function for the Object struct
func NewObject(rect Rect, label int, prob float32, detectionID int64) Object {
	return Object{
		Rect:        rect,
		Label:       label,
		Prob:        prob,
		DetectionID: detectionID,
	}
}

// Observation is a tracked object visible in the current frame.  It is the
// contract between the tracker and the analytics that consume its output.
type Observation struct {
	// ID is the track identity.  It is stable for the lifetime of a track
	// but may be reused after the subject has left
	ID int64
	// Box is the bounding box of the tracked object, used for drawing
	Box image.Rectangle
	// Center is the integer pixel center of Box
	Center image.Point
	// Label is the class label of the object
	Label int
	// Score is the detection confidence of the last matched detection
	Score float32
}

// NewObservation returns an Observation for the given rect, with the center
// point calculated from the floating point box corners
func NewObservation(id int64, rect Rect, label int, score float32) Observation {
	return Observation{
		ID:     id,
		Box:    rect.Image(),
		Center: rect.Center(),
		Label:  label,
		Score:  score,
	}
}

// Centers returns the center points of the given observations in order
func Centers(objs []Observation) []image.Point {

	points := make([]image.Point, 0, len(objs))

	for _, obj := range objs {
		points = append(points, obj.Center)
	}

	return points
}
