package tracker

import (
	"image"
	"sync"
)

// Trail keeps a capped history of center points per track ID used for
// drawing the path an object has taken
type Trail struct {
	// size is the maximum number of most recent points to keep per track
	size int
	// history of tracked points
	history map[int64][]image.Point
	sync.Mutex
}

// NewTrail returns a new trail history instance.  Size specifies the
// maximum length of the trail kept per track
func NewTrail(size int) *Trail {
	return &Trail{
		size:    size,
		history: make(map[int64][]image.Point),
	}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int64][]image.Point)
}

// Add appends the center point of each observation to its track history
func (t *Trail) Add(objs []Observation) {
	t.Lock()
	defer t.Unlock()

	for _, obj := range objs {

		points := append(t.history[obj.ID], obj.Center)

		// drop oldest point once history is exceeded
		if len(points) > t.size {
			points = points[len(points)-t.size:]
		}

		t.history[obj.ID] = points
	}
}

// Points gets a copy of the point history for a specific track id
func (t *Trail) Points(id int64) []image.Point {
	t.Lock()
	defer t.Unlock()

	points, ok := t.history[id]

	if !ok {
		return nil
	}

	out := make([]image.Point, len(points))
	copy(out, points)

	return out
}

// Prune removes the history of every track not in the live observations
func (t *Trail) Prune(live []Observation) {
	t.Lock()
	defer t.Unlock()

	keep := make(map[int64]struct{}, len(live))

	for _, obj := range live {
		keep[obj.ID] = struct{}{}
	}

	for id := range t.history {
		if _, ok := keep[id]; !ok {
			delete(t.history, id)
		}
	}
}

// Len returns the number of tracks with history
func (t *Trail) Len() int {
	t.Lock()
	defer t.Unlock()

	return len(t.history)
}
