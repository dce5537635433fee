package density

import (
	"bytes"
	"errors"
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

const (
	testWidth  = 100
	testHeight = 80
	testKernel = 11
)

func newTestAccumulator(t *testing.T, percentile float64) *Accumulator {
	t.Helper()

	a, err := New(testWidth, testHeight, testKernel, percentile)

	if err != nil {
		t.Fatalf("failed to create accumulator: %v", err)
	}

	t.Cleanup(func() { a.Close() })

	return a
}

// matBytes returns the pixel data of a Mat and closes it
func matBytes(t *testing.T, m gocv.Mat, err error) []byte {
	t.Helper()

	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	defer m.Close()

	return m.ToBytes()
}

func TestNewErrors(t *testing.T) {

	tests := []struct {
		name          string
		width, height int
		kernel        int
		want          error
	}{
		{"zero width", 0, 10, 51, ErrDimensions},
		{"negative height", 10, -1, 51, ErrDimensions},
		{"even kernel", 10, 10, 50, ErrKernelSize},
		{"zero kernel", 10, 10, 0, ErrKernelSize},
		{"negative kernel", 10, 10, -3, ErrKernelSize},
	}

	for _, tc := range tests {
		_, err := New(tc.width, tc.height, tc.kernel, DefaultPercentile)

		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestRenderEmpty(t *testing.T) {

	a := newTestAccumulator(t, DefaultPercentile)

	img, err := a.Render()

	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	defer img.Close()

	if img.Rows() != testHeight || img.Cols() != testWidth ||
		img.Type() != gocv.MatTypeCV8UC3 {
		t.Fatalf("expected %dx%d CV_8UC3, got %dx%d type %v", testWidth,
			testHeight, img.Cols(), img.Rows(), img.Type())
	}

	if !bytes.Equal(img.ToBytes(), make([]byte, testWidth*testHeight*3)) {
		t.Errorf("expected black image")
	}
}

func TestRenderColormap(t *testing.T) {

	a := newTestAccumulator(t, 100)
	a.AddPoints([]image.Point{{50, 40}})

	img, err := a.Render()

	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	defer img.Close()

	if img.Rows() != testHeight || img.Cols() != testWidth ||
		img.Type() != gocv.MatTypeCV8UC3 {
		t.Fatalf("expected %dx%d CV_8UC3, got %dx%d type %v", testWidth,
			testHeight, img.Cols(), img.Rows(), img.Type())
	}

	// BGR order, the saturated peak is dark red
	peak := img.GetVecbAt(40, 50)

	if peak[2] < 100 || peak[0] > 20 {
		t.Errorf("expected hot peak with high red and low blue, got %v", peak)
	}

	// outside the kernel support the background is dark blue
	bg := img.GetVecbAt(0, 0)

	if bg[0] < 120 || bg[0] > 135 || bg[1] != 0 || bg[2] != 0 {
		t.Errorf("expected cool background near (128,0,0), got %v", bg)
	}
}

func TestPercentileOutOfRange(t *testing.T) {

	render := func(p float64) []byte {
		a := newTestAccumulator(t, p)
		for i := 0; i < 20; i++ {
			a.AddPoints([]image.Point{{20, 20}})
		}
		a.AddPoints([]image.Point{{70, 60}})
		m, err := a.Render()
		return matBytes(t, m, err)
	}

	if !bytes.Equal(render(150), render(100)) {
		t.Errorf("expected percentile above 100 to render as 100")
	}

	if !bytes.Equal(render(-10), render(0)) {
		t.Errorf("expected percentile below 0 to render as 0")
	}
}

func TestOutOfBoundsIgnored(t *testing.T) {

	a := newTestAccumulator(t, DefaultPercentile)

	a.AddPoints([]image.Point{
		{-1, 10}, {10, -1}, {testWidth, 10}, {10, testHeight}, {500, 500},
	})

	if a.Total() != 0 {
		t.Errorf("expected total 0, got %v", a.Total())
	}

	m, err := a.Render()
	got := matBytes(t, m, err)

	if !bytes.Equal(got, make([]byte, testWidth*testHeight*3)) {
		t.Errorf("expected black image")
	}

	// edges are inside the grid
	a.AddPoints([]image.Point{{0, 0}, {testWidth - 1, testHeight - 1}})

	if a.At(0, 0) != DefaultIntensity || a.At(testWidth-1, testHeight-1) != DefaultIntensity {
		t.Errorf("expected edge cells to accumulate")
	}
}

func TestInterleavingInvariance(t *testing.T) {

	frames := [][]image.Point{
		{{10, 10}, {20, 30}},
		{{10, 10}},
		{{50, 40}, {20, 30}, {90, 70}},
	}

	byFrame := newTestAccumulator(t, DefaultPercentile)

	for _, pts := range frames {
		byFrame.AddPoints(pts)
	}

	// same multiset of points in one call, reversed
	var all []image.Point

	for i := len(frames) - 1; i >= 0; i-- {
		for j := len(frames[i]) - 1; j >= 0; j-- {
			all = append(all, frames[i][j])
		}
	}

	oneCall := newTestAccumulator(t, DefaultPercentile)
	oneCall.AddPoints(all)

	for y := 0; y < testHeight; y++ {
		for x := 0; x < testWidth; x++ {
			if byFrame.At(x, y) != oneCall.At(x, y) {
				t.Fatalf("cell %d,%d differs: %v != %v", x, y, byFrame.At(x, y),
					oneCall.At(x, y))
			}
		}
	}

	if byFrame.Total() != oneCall.Total() {
		t.Errorf("totals differ: %v != %v", byFrame.Total(), oneCall.Total())
	}

	m1, err1 := byFrame.Render()
	got1 := matBytes(t, m1, err1)
	m2, err2 := oneCall.Render()
	got2 := matBytes(t, m2, err2)

	if !bytes.Equal(got1, got2) {
		t.Errorf("rendered heatmaps differ")
	}
}

func TestTotalMonotonic(t *testing.T) {

	a := newTestAccumulator(t, DefaultPercentile)

	last := a.Total()

	for i := 0; i < 10; i++ {
		a.AddPoints([]image.Point{{i * 5, i * 3}, {-5, 0}})

		if a.Total() < last {
			t.Fatalf("total decreased from %v to %v", last, a.Total())
		}

		last = a.Total()
	}

	a.AddPointsWithIntensity([]image.Point{{1, 1}}, 2.5)

	if want := 10*float64(DefaultIntensity) + 2.5; math.Abs(a.Total()-want) > 1e-9 {
		t.Errorf("expected total %v, got %v", want, a.Total())
	}
}

func TestRenderIsReadOnly(t *testing.T) {

	a := newTestAccumulator(t, DefaultPercentile)
	a.AddPoints([]image.Point{{30, 30}, {31, 30}, {60, 50}})

	total := a.Total()
	cell := a.At(30, 30)

	m1, err1 := a.Render()
	first := matBytes(t, m1, err1)
	m2, err2 := a.Render()
	second := matBytes(t, m2, err2)

	if !bytes.Equal(first, second) {
		t.Errorf("repeated renders differ")
	}

	if a.Total() != total || a.At(30, 30) != cell {
		t.Errorf("render modified the grid")
	}
}

func TestIntensityRange(t *testing.T) {

	// clip at the peak so only the point itself saturates
	a := newTestAccumulator(t, 100)
	a.AddPoints([]image.Point{{40, 40}})

	gray, err := a.Intensity()

	if err != nil {
		t.Fatalf("intensity failed: %v", err)
	}

	defer gray.Close()

	if gray.Type() != gocv.MatTypeCV8U || gray.Channels() != 1 {
		t.Fatalf("expected single channel CV_8U, got type %v", gray.Type())
	}

	minVal, maxVal, _, maxLoc := gocv.MinMaxLoc(gray)

	if maxVal != 255 || minVal != 0 {
		t.Errorf("expected range 0..255, got %v..%v", minVal, maxVal)
	}

	if maxLoc != image.Pt(40, 40) {
		t.Errorf("expected peak at 40,40, got %v", maxLoc)
	}
}

func TestPercentileMonotonicity(t *testing.T) {

	dense := image.Pt(20, 20)
	sparse := image.Pt(70, 60)

	fill := func(a *Accumulator) {
		for i := 0; i < 50; i++ {
			a.AddPoints([]image.Point{dense})
		}
		a.AddPoints([]image.Point{sparse})
	}

	high := newTestAccumulator(t, 99)
	low := newTestAccumulator(t, 50)

	fill(high)
	fill(low)

	highGray, err := high.Intensity()

	if err != nil {
		t.Fatalf("intensity failed: %v", err)
	}

	defer highGray.Close()

	lowGray, err := low.Intensity()

	if err != nil {
		t.Fatalf("intensity failed: %v", err)
	}

	defer lowGray.Close()

	h := highGray.GetUCharAt(sparse.Y, sparse.X)
	l := lowGray.GetUCharAt(sparse.Y, sparse.X)

	// a lower percentile clips earlier so sparse cells get more brightness
	if l <= h {
		t.Errorf("expected sparse cell brighter at lower percentile, got %d <= %d", l, h)
	}

	if lowGray.GetUCharAt(dense.Y, dense.X) != 255 || highGray.GetUCharAt(dense.Y, dense.X) != 255 {
		t.Errorf("expected dense cell saturated at both percentiles")
	}
}

func TestPercentile(t *testing.T) {

	var hundred []float64

	for i := 1; i <= 100; i++ {
		hundred = append(hundred, float64(i))
	}

	tests := []struct {
		values []float64
		p      float64
		want   float64
	}{
		{nil, 99, 0},
		{[]float64{5}, 99, 5},
		{[]float64{4, 1, 3, 2}, 50, 2.5},
		{[]float64{4, 1, 3, 2}, 0, 1},
		{[]float64{4, 1, 3, 2}, 100, 4},
		{hundred, 99, 99.01},
		{hundred, 150, 100},
		{hundred, -5, 1},
	}

	for _, tc := range tests {
		if got := Percentile(tc.values, tc.p); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("percentile %v of %v: expected %v, got %v", tc.p, tc.values,
				tc.want, got)
		}
	}
}
