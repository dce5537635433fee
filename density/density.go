// Package density accumulates the positions of tracked objects over a video
// into a per pixel grid and renders it as a color heatmap.
package density

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

const (
	// DefaultKernelSize is the default Gaussian blur kernel size
	DefaultKernelSize = 51
	// DefaultPercentile is the default clipping percentile
	DefaultPercentile = 99
	// DefaultIntensity is the amount added to a cell per point
	DefaultIntensity float32 = 15
)

var (
	// ErrDimensions is returned when the grid width or height is not positive
	ErrDimensions = errors.New("grid dimensions must be positive")
	// ErrKernelSize is returned when the blur kernel size is not a positive
	// odd number
	ErrKernelSize = errors.New("kernel size must be a positive odd number")
)

// Option configures an Accumulator
type Option func(*Accumulator)

// WithLogger sets the logger used by the Accumulator
func WithLogger(log zerolog.Logger) Option {
	return func(a *Accumulator) {
		a.log = log
	}
}

// Accumulator is a float32 grid the size of a video frame that points are
// added to on every frame.  The grid is only ever added to, rendering it
// does not modify its contents.
//
// An Accumulator is not safe for concurrent use.
type Accumulator struct {
	width, height int
	kernelSize    int
	percentile    float64
	// grid is a single channel CV_32F Mat of height rows and width columns
	grid  gocv.Mat
	total float64
	log   zerolog.Logger
}

// New returns an Accumulator for frames of the given size.  The kernel size
// must be positive and odd.  The percentile is normally in the range 90 to
// 100, values outside [0,100] clip at the nearest bound.
func New(width, height, kernelSize int, percentile float64,
	opts ...Option) (*Accumulator, error) {

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrDimensions, width, height)
	}

	if kernelSize <= 0 || kernelSize%2 == 0 {
		return nil, fmt.Errorf("%w: got %d", ErrKernelSize, kernelSize)
	}

	a := &Accumulator{
		width:      width,
		height:     height,
		kernelSize: kernelSize,
		percentile: percentile,
		grid: gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
			height, width, gocv.MatTypeCV32F),
		log: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// AddPoints adds DefaultIntensity to the cell of each point
func (a *Accumulator) AddPoints(points []image.Point) {
	a.AddPointsWithIntensity(points, DefaultIntensity)
}

// AddPointsWithIntensity adds intensity to the cell of each point.  Points
// outside of the grid are ignored.
func (a *Accumulator) AddPointsWithIntensity(points []image.Point, intensity float32) {

	for _, p := range points {

		if p.X < 0 || p.X >= a.width || p.Y < 0 || p.Y >= a.height {
			continue
		}

		a.grid.SetFloatAt(p.Y, p.X, a.grid.GetFloatAt(p.Y, p.X)+intensity)
		a.total += float64(intensity)
	}
}

// At returns the accumulated value of the cell at x, y, or zero when out of
// bounds
func (a *Accumulator) At(x, y int) float32 {

	if x < 0 || x >= a.width || y < 0 || y >= a.height {
		return 0
	}

	return a.grid.GetFloatAt(y, x)
}

// Total returns the sum of all intensity ever added to the grid
func (a *Accumulator) Total() float64 {
	return a.total
}

// Width returns the grid width
func (a *Accumulator) Width() int {
	return a.width
}

// Height returns the grid height
func (a *Accumulator) Height() int {
	return a.height
}

// KernelSize returns the blur kernel size
func (a *Accumulator) KernelSize() int {
	return a.kernelSize
}

// Percentile returns the clipping percentile
func (a *Accumulator) Percentile() float64 {
	return a.percentile
}

// Intensity returns the blurred and contrast clipped grid as a single
// channel CV_8U Mat.  Values at or above the clipping percentile of the
// non zero blurred cells map to 255.  When nothing has been accumulated an
// all zero Mat is returned.  The caller must close the returned Mat, which
// is only allocated when err is nil.
func (a *Accumulator) Intensity() (gocv.Mat, error) {

	gray, ok, err := a.intensity()

	if err != nil {
		return gocv.Mat{}, err
	}

	if !ok {
		return a.blank(gocv.MatTypeCV8U), nil
	}

	return gray, nil
}

// Render returns the heatmap as a three channel BGR CV_8UC3 Mat using the
// JET color map, or a black image when nothing has been accumulated.  The
// caller must close the returned Mat, which is only allocated when err is
// nil.
func (a *Accumulator) Render() (gocv.Mat, error) {

	gray, ok, err := a.intensity()

	if err != nil {
		return gocv.Mat{}, err
	}

	if !ok {
		return a.blank(gocv.MatTypeCV8UC3), nil
	}

	defer gray.Close()

	color := gocv.NewMat()
	gocv.ApplyColorMap(gray, &color, gocv.ColormapJet)

	return color, nil
}

// intensity runs the blur, clip and rescale steps.  gray is only allocated
// when ok is true, ok is false when the grid holds nothing to render
func (a *Accumulator) intensity() (gray gocv.Mat, ok bool, err error) {

	blurred := gocv.NewMat()
	defer blurred.Close()

	gocv.GaussianBlur(a.grid, &blurred, image.Pt(a.kernelSize, a.kernelSize),
		0, 0, gocv.BorderDefault)

	if blurred.Empty() {
		return gocv.Mat{}, false, errors.New("gaussian blur produced an empty result")
	}

	_, maxVal, _, _ := gocv.MinMaxLoc(blurred)

	if maxVal <= 0 {
		return gocv.Mat{}, false, nil
	}

	data, err := blurred.DataPtrFloat32()

	if err != nil {
		return gocv.Mat{}, false, fmt.Errorf("error reading blurred grid: %w", err)
	}

	thresh := Percentile(positive(data), a.percentile)

	if thresh <= 0 {
		return gocv.Mat{}, false, nil
	}

	a.log.Debug().Float32("max", maxVal).Float64("threshold", thresh).
		Float64("percentile", a.percentile).Msg("heatmap clipping threshold")

	clipped := gocv.NewMat()
	defer clipped.Close()

	gocv.Threshold(blurred, &clipped, float32(thresh), 0, gocv.ThresholdTrunc)

	// rescale [0,thresh] to [0,255], negative rounding noise saturates to 0
	gray = gocv.NewMat()
	clipped.ConvertToWithParams(&gray, gocv.MatTypeCV8U, float32(255/thresh), 0)

	return gray, true, nil
}

// Close releases the grid
func (a *Accumulator) Close() error {
	return a.grid.Close()
}

// blank returns an all zero Mat the size of the grid
func (a *Accumulator) blank(mt gocv.MatType) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		a.height, a.width, mt)
}

// positive returns the strictly positive values of data
func positive(data []float32) []float64 {

	var out []float64

	for _, v := range data {
		if v > 0 {
			out = append(out, float64(v))
		}
	}

	return out
}

// Percentile returns the p-th percentile of values using linear
// interpolation between the closest ranks.  Returns 0 for no values.  p
// below 0 gives the minimum and above 100 the maximum.
func Percentile(values []float64, p float64) float64 {

	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	p = math.Max(0, math.Min(100, p))

	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))

	if lo == hi {
		return sorted[lo]
	}

	frac := pos - float64(lo)

	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
