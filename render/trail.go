package render

import (
	"image/color"

	"github.com/swdee/go-footfall/tracker"
	"gocv.io/x/gocv"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	// LineSame defines if the color of the trail line should be the same
	// color as that of the bounding box, otherwise LineColor is used
	LineSame      bool
	LineColor     color.RGBA
	LineThickness int
	// CircleSame defines if the color of the midpoint circle should be the
	// same color as that of the bounding box, otherwise CircleColor is used
	CircleSame   bool
	CircleColor  color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineSame:      false,
		LineColor:     Yellow,
		LineThickness: 1,
		CircleSame:    true,
		CircleColor:   Pink,
		CircleRadius:  3,
	}
}

// Trail draws the path each tracked object has taken
func Trail(img *gocv.Mat, objs []tracker.Observation, trail *tracker.Trail,
	style TrailStyle) {

	for _, obj := range objs {

		objClr := colorFor(obj.ID)
		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		points := trail.Points(obj.ID)

		if len(points) < 2 {
			continue
		}

		for i := 1; i < len(points); i++ {
			gocv.Line(img, points[i-1], points[i], lineClr, style.LineThickness)
		}

		// center point of the current box
		gocv.Circle(img, points[len(points)-1], style.CircleRadius, circleClr, -1)
	}
}
