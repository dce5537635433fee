// Package detect locates people in video frames with a YOLOv8 object
// detection model run through the OpenCV DNN module.
package detect

import (
	"errors"
	"image"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// ErrEmptyModel is returned when a model file could not be loaded
var ErrEmptyModel = errors.New("model is empty")

// Detection is a single object found in a frame
type Detection struct {
	// Box is the bounding box in source image coordinates
	Box image.Rectangle
	// Class is the line number in the labels file of the object class
	Class int
	// Score is the confidence of the detection
	Score float32
	// ID is a unique ID assigned to the detection
	ID int64
}

// Detector finds objects in an image
type Detector interface {
	Detect(img gocv.Mat) ([]Detection, error)
	Close() error
}

// idGenerator hands out incrementing detection IDs
type idGenerator struct {
	id atomic.Int64
}

// next returns the next ID, starting at 1
func (g *idGenerator) next() int64 {
	return g.id.Add(1)
}
