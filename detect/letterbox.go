package detect

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// PadColor is the grey used for letterbox padding by YOLO models
var PadColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Letterbox scales an image to the model input size preserving its aspect
// ratio, padding the remaining border evenly on both sides
type Letterbox struct {
	srcWidth, srcHeight   int
	destWidth, destHeight int
	// tempMat holds the scaled image before padding
	tempMat gocv.Mat
	xPad    int
	yPad    int
	scale   float32
	resizeW int
	resizeH int
}

// NewLetterbox returns a Letterbox for scaling source images to the
// destination size
func NewLetterbox(srcWidth, srcHeight, destWidth, destHeight int) *Letterbox {

	l := &Letterbox{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		tempMat:    gocv.NewMat(),
	}

	l.resizeW = destWidth
	l.resizeH = destHeight

	scaleW := float32(destWidth) / float32(srcWidth)
	scaleH := float32(destHeight) / float32(srcHeight)
	l.scale = scaleH

	if scaleW < scaleH {
		l.scale = scaleW
		l.resizeH = int(float32(srcHeight) * l.scale)
	} else {
		l.resizeW = int(float32(srcWidth) * l.scale)
	}

	l.yPad = (destHeight - l.resizeH) / 2
	l.xPad = (destWidth - l.resizeW) / 2

	return l
}

// Resize writes the letterboxed src into dest
func (l *Letterbox) Resize(src gocv.Mat, dest *gocv.Mat, pad color.RGBA) {

	gocv.Resize(src, &l.tempMat, image.Pt(l.resizeW, l.resizeH),
		0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(l.tempMat, dest, l.yPad, l.destHeight-l.resizeH-l.yPad,
		l.xPad, l.destWidth-l.resizeW-l.xPad, gocv.BorderConstant, pad)
}

// ToSource maps a point in letterboxed coordinates back to the source image
// clamping it to the source bounds
func (l *Letterbox) ToSource(x, y float32) image.Point {

	sx := (x - float32(l.xPad)) / l.scale
	sy := (y - float32(l.yPad)) / l.scale

	return image.Pt(
		int(clamp(sx, 0, float32(l.srcWidth))),
		int(clamp(sy, 0, float32(l.srcHeight))),
	)
}

// Matches reports whether the letterbox was built for the given source size
func (l *Letterbox) Matches(srcWidth, srcHeight int) bool {
	return l.srcWidth == srcWidth && l.srcHeight == srcHeight
}

// ScaleFactor returns the scale factor from source to destination
func (l *Letterbox) ScaleFactor() float32 {
	return l.scale
}

// XPad returns the x padding
func (l *Letterbox) XPad() int {
	return l.xPad
}

// YPad returns the y padding
func (l *Letterbox) YPad() int {
	return l.yPad
}

// Close frees memory allocated during resizing
func (l *Letterbox) Close() error {
	return l.tempMat.Close()
}

// clamp restricts val to the range min to max
func clamp(val, min, max float32) float32 {

	if val < min {
		return min
	}

	if val > max {
		return max
	}

	return val
}
