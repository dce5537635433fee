// Package render draws the counting line, counters, tracked objects and
// heatmap overlays onto video frames.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

var (
	// ErrSizeMismatch is returned when blended images differ in size
	ErrSizeMismatch = errors.New("image sizes do not match")

	entriesPos = image.Pt(50, 80)
	exitsPos   = image.Pt(50, 140)
	titlePos   = image.Pt(10, 40)
)

// CountingLine draws the horizontal counting line across the full width
// of the image at row y
func CountingLine(img *gocv.Mat, y int, clr color.RGBA, thickness int) {
	gocv.Line(img, image.Pt(0, y), image.Pt(img.Cols(), y), clr, thickness)
}

// Counters draws the running entry total in green and exit total in red
// in the top left of the image
func Counters(img *gocv.Mat, entries, exits int) {

	font := CounterFont()

	gocv.PutTextWithParams(img, fmt.Sprintf("Entries: %d", entries), entriesPos,
		font.Face, font.Scale, Green, font.Thickness, font.LineType, false)

	gocv.PutTextWithParams(img, fmt.Sprintf("Exits: %d", exits), exitsPos,
		font.Face, font.Scale, Red, font.Thickness, font.LineType, false)
}

// Blend overlays the heatmap on the background as
// background*alpha + heatmap*beta and writes title in the top left when not
// empty.  Both images must be the same size and type.  The caller must
// close the returned Mat when err is nil.
func Blend(background, heatmap gocv.Mat, alpha, beta float64,
	title string) (gocv.Mat, error) {

	if background.Rows() != heatmap.Rows() || background.Cols() != heatmap.Cols() ||
		background.Type() != heatmap.Type() {
		return gocv.Mat{}, fmt.Errorf("%w: background %dx%d, heatmap %dx%d",
			ErrSizeMismatch, background.Cols(), background.Rows(),
			heatmap.Cols(), heatmap.Rows())
	}

	out := gocv.NewMat()
	gocv.AddWeighted(background, alpha, heatmap, beta, 0, &out)

	if title != "" {
		font := TitleFont()
		gocv.PutTextWithParams(&out, title, titlePos, font.Face, font.Scale,
			font.Color, font.Thickness, font.LineType, false)
	}

	return out, nil
}

// Thumbnail scales img down to maxWidth preserving its aspect ratio.
// Images already narrower than maxWidth are returned unchanged.
func Thumbnail(img image.Image, maxWidth int) image.Image {

	b := img.Bounds()

	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}

	height := b.Dy() * maxWidth / b.Dx()

	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	return dst
}
