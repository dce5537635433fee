package tracker

import (
	"image"
	"math"
)

// Rect represents a floating point rectangle in top-left, bottom-right
// corner format
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// NewRect creates a new Rect from a top-left corner and dimensions
func NewRect(x, y, width, height float64) Rect {
	return Rect{X1: x, Y1: y, X2: x + width, Y2: y + height}
}

// RectFromImage converts an image.Rectangle to a Rect
func RectFromImage(r image.Rectangle) Rect {
	return Rect{
		X1: float64(r.Min.X),
		Y1: float64(r.Min.Y),
		X2: float64(r.Max.X),
		Y2: float64(r.Max.Y),
	}
}

// rectFromXywh creates a Rect from center x, center y, width, height format
func rectFromXywh(cx, cy, w, h float64) Rect {
	return Rect{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2}
}

// Width returns the width of the rectangle
func (r Rect) Width() float64 {
	return r.X2 - r.X1
}

// Height returns the height of the rectangle
func (r Rect) Height() float64 {
	return r.Y2 - r.Y1
}

// Xywh returns the rectangle as center x, center y, width, height
func (r Rect) Xywh() [4]float64 {
	return [4]float64{
		r.X1 + r.Width()/2,
		r.Y1 + r.Height()/2,
		r.Width(),
		r.Height(),
	}
}

// Center returns the integer center point of the rectangle.  The corners are
// averaged before truncation so the result matches the tracker output used
// for counting and heatmaps.
func (r Rect) Center() image.Point {
	return image.Pt(int((r.X1+r.X2)/2), int((r.Y1+r.Y2)/2))
}

// Image returns the rectangle as an integer image.Rectangle
func (r Rect) Image() image.Rectangle {
	return image.Rect(int(r.X1), int(r.Y1), int(r.X2), int(r.Y2))
}

// IoU calculates the Intersection over Union with another rectangle using
// inclusive pixel dimensions
func (r Rect) IoU(other Rect) float64 {

	iw := math.Min(r.X2, other.X2) - math.Max(r.X1, other.X1) + 1

	if iw <= 0 {
		return 0
	}

	ih := math.Min(r.Y2, other.Y2) - math.Max(r.Y1, other.Y1) + 1

	if ih <= 0 {
		return 0
	}

	areaA := (r.Width() + 1) * (r.Height() + 1)
	areaB := (other.Width() + 1) * (other.Height() + 1)
	ua := areaA + areaB - iw*ih

	if ua <= 0 {
		return 0
	}

	return iw * ih / ua
}
