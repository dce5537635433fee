package detect

import "github.com/swdee/go-footfall/tracker"

// ToObjects converts detection results into tracker objects
func ToObjects(dets []Detection) []tracker.Object {

	objs := make([]tracker.Object, 0, len(dets))

	for _, det := range dets {
		objs = append(objs, tracker.NewObject(tracker.RectFromImage(det.Box),
			det.Class, det.Score, det.ID))
	}

	return objs
}
