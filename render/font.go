package render

import (
	"image/color"

	"gocv.io/x/gocv"
)

// Alignment is the horizontal placement of a label against its box
type Alignment int

const (
	AlignLeft Alignment = iota + 1
	AlignCenter
	AlignRight
)

// Padding is the space in pixels around label text
type Padding struct {
	Left, Right, Top, Bottom int
}

// Font defines the parameters for drawing text with GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding is only used for box labels
	Padding   Padding
	Alignment Alignment
}

// DefaultFont returns the font used for box labels
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		Padding:   Padding{Left: 4, Right: 4, Top: 4, Bottom: 6},
		Alignment: AlignLeft,
	}
}

// CounterFont returns the font used for the entry and exit counters, the
// color is set per counter
func CounterFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     1.5,
		Thickness: 3,
		LineType:  gocv.LineAA,
	}
}

// TitleFont returns the font used for heatmap titles
func TitleFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     1,
		Color:     White,
		Thickness: 2,
		LineType:  gocv.LineAA,
	}
}
