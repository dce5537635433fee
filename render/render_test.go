package render

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/swdee/go-footfall/tracker"
	"gocv.io/x/gocv"
)

func TestThumbnail(t *testing.T) {

	src := image.NewRGBA(image.Rect(0, 0, 400, 200))

	thumb := Thumbnail(src, 100)

	if got := thumb.Bounds(); got != image.Rect(0, 0, 100, 50) {
		t.Errorf("expected 100x50 thumbnail, got %v", got)
	}

	if Thumbnail(src, 800) != image.Image(src) {
		t.Errorf("expected narrow image returned unchanged")
	}

	if Thumbnail(src, 0) != image.Image(src) {
		t.Errorf("expected zero width to return image unchanged")
	}
}

func TestBlendSizeMismatch(t *testing.T) {

	a := gocv.NewMatWithSize(10, 20, gocv.MatTypeCV8UC3)
	defer a.Close()

	b := gocv.NewMatWithSize(20, 10, gocv.MatTypeCV8UC3)
	defer b.Close()

	_, err := Blend(a, b, 0.2, 0.8, "")

	if !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("expected size mismatch error, got %v", err)
	}
}

func TestBlend(t *testing.T) {

	bg := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 100, 100, 0), 60, 80,
		gocv.MatTypeCV8UC3)
	defer bg.Close()

	heat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 0, 50, 0), 60, 80,
		gocv.MatTypeCV8UC3)
	defer heat.Close()

	out, err := Blend(bg, heat, 0.2, 0.8, "")

	if err != nil {
		t.Fatalf("blend failed: %v", err)
	}

	defer out.Close()

	v := out.GetVecbAt(30, 40)

	if v[0] != 180 || v[1] != 20 || v[2] != 60 {
		t.Errorf("expected pixel 180,20,60, got %v", v)
	}
}

func TestCountingLine(t *testing.T) {

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 100, 200,
		gocv.MatTypeCV8UC3)
	defer img.Close()

	CountingLine(&img, 50, color.RGBA{R: 255, G: 255, B: 0, A: 255}, 1)

	// BGR order
	for _, x := range []int{0, 100, 199} {
		v := img.GetVecbAt(50, x)

		if v[0] != 0 || v[1] != 255 || v[2] != 255 {
			t.Errorf("expected yellow at %d,50, got %v", x, v)
		}
	}

	if v := img.GetVecbAt(10, 100); v[0] != 0 || v[1] != 0 || v[2] != 0 {
		t.Errorf("expected black off the line, got %v", v)
	}
}

func TestObservationBoxesAndTrail(t *testing.T) {

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 200, 200,
		gocv.MatTypeCV8UC3)
	defer img.Close()

	objs := []tracker.Observation{
		{ID: 1, Box: image.Rect(50, 60, 100, 150), Center: image.Pt(75, 105)},
		{ID: 2, Box: image.Rect(120, 60, 160, 150), Center: image.Pt(140, 105), Label: 9},
	}

	trail := tracker.NewTrail(10)
	trail.Add(objs)
	trail.Add(objs)

	ObservationBoxes(&img, objs, []string{"person"}, DefaultFont(), 2)
	Trail(&img, objs, trail, DefaultTrailStyle())
	Counters(&img, 3, 4)

	gray := gocv.NewMat()
	defer gray.Close()

	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	if gocv.CountNonZero(gray) == 0 {
		t.Errorf("expected annotations to be drawn")
	}
}

func TestColorFor(t *testing.T) {

	if colorFor(1) != colorFor(int64(1+len(classColors))) {
		t.Errorf("expected palette to wrap")
	}

	if colorFor(-3) != colorFor(3) {
		t.Errorf("expected negative ids to map into the palette")
	}
}
