package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-footfall/tracker"
	"gocv.io/x/gocv"
)

// boxLabel holds the precalculated placement of a box label
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// ObservationBoxes renders bounding boxes labelled with the class name and
// track ID around each tracked object
func ObservationBoxes(img *gocv.Mat, objs []tracker.Observation,
	classNames []string, font Font, lineThickness int) {

	labels := make([]boxLabel, 0, len(objs))

	for _, obj := range objs {

		useClr := colorFor(obj.ID)
		box := obj.Box

		gocv.Rectangle(img, box, useClr, lineThickness)

		name := "unknown"

		if obj.Label >= 0 && obj.Label < len(classNames) {
			name = classNames[obj.Label]
		}

		text := fmt.Sprintf("%s %d", name, obj.ID)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		pad := font.Padding
		var centerX int

		switch font.Alignment {
		case AlignCenter:
			centerX = (box.Min.X + box.Max.X) / 2
		case AlignRight:
			centerX = box.Max.X - textSize.X/2 - pad.Right + lineThickness/2
		default:
			centerX = box.Min.X + textSize.X/2 + pad.Left - lineThickness/2
		}

		labels = append(labels, boxLabel{
			rect: image.Rect(centerX-textSize.X/2-pad.Left,
				box.Min.Y-textSize.Y-pad.Top-pad.Bottom,
				centerX+textSize.X/2+pad.Right, box.Min.Y),
			clr:     useClr,
			text:    text,
			textPos: image.Pt(centerX-textSize.X/2, box.Min.Y-pad.Bottom),
		})
	}

	// labels are drawn last so boxes never overlap them
	for _, l := range labels {
		gocv.Rectangle(img, l.rect, l.clr, -1)

		gocv.PutTextWithParams(img, l.text, l.textPos, font.Face, font.Scale,
			font.Color, font.Thickness, font.LineType, false)
	}
}
