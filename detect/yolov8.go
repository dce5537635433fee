package detect

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// YOLOv8Params defines the parameters used to run a YOLOv8 model and post
// process its output
type YOLOv8Params struct {
	// InputWidth and InputHeight are the model input tensor dimensions
	InputWidth  int
	InputHeight int
	// BoxThreshold is the minimum class score required for a box to be kept
	BoxThreshold float32
	// NMSThreshold is the maximum IoU allowed between two boxes of the same
	// class for both to be kept
	NMSThreshold float32
	// ObjectClassNum is the number of classes the model was trained with
	ObjectClassNum int
	// MaxObjectNumber is the maximum number of detections returned per image
	MaxObjectNumber int
}

// YOLOv8COCOParams returns parameters for a model trained on the COCO
// dataset featuring:
// - Input Size: 640x640
// - Object Classes: 80
// - Box Threshold: 0.25
// - NMS Threshold: 0.45
// - Maximum Object Number: 100
func YOLOv8COCOParams() YOLOv8Params {
	return YOLOv8Params{
		InputWidth:      640,
		InputHeight:     640,
		BoxThreshold:    0.25,
		NMSThreshold:    0.45,
		ObjectClassNum:  80,
		MaxObjectNumber: 100,
	}
}

// YOLOv8Option configures a YOLOv8 detector
type YOLOv8Option func(*YOLOv8)

// WithLogger sets the logger used by the detector
func WithLogger(log zerolog.Logger) YOLOv8Option {
	return func(y *YOLOv8) {
		y.log = log
	}
}

// YOLOv8 is a Detector running an ONNX exported YOLOv8 model
type YOLOv8 struct {
	Params YOLOv8Params
	net    gocv.Net
	// letterbox is rebuilt when the source frame size changes
	letterbox *Letterbox
	// resized holds the letterboxed input image
	resized gocv.Mat
	idGen   idGenerator
	log     zerolog.Logger
}

// NewYOLOv8 loads the ONNX model file and returns a detector
func NewYOLOv8(modelFile string, p YOLOv8Params, opts ...YOLOv8Option) (*YOLOv8, error) {

	net := gocv.ReadNetFromONNX(modelFile)

	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("%w: %s", ErrEmptyModel, modelFile)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	y := &YOLOv8{
		Params:  p,
		net:     net,
		resized: gocv.NewMat(),
		log:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(y)
	}

	y.log.Info().Str("model", modelFile).Int("classes", p.ObjectClassNum).
		Msg("loaded detection model")

	return y, nil
}

// Detect runs the model on img and returns the detected objects in img
// coordinates
func (y *YOLOv8) Detect(img gocv.Mat) ([]Detection, error) {

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	if y.letterbox == nil || !y.letterbox.Matches(img.Cols(), img.Rows()) {

		if y.letterbox != nil {
			y.letterbox.Close()
		}

		y.letterbox = NewLetterbox(img.Cols(), img.Rows(), y.Params.InputWidth,
			y.Params.InputHeight)
	}

	y.letterbox.Resize(img, &y.resized, PadColor)

	blob := gocv.BlobFromImage(y.resized, 1.0/255.0,
		image.Pt(y.Params.InputWidth, y.Params.InputHeight),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")

	out := y.net.Forward("")
	defer out.Close()

	sizes := out.Size()

	if len(sizes) != 3 || sizes[1] != 4+y.Params.ObjectClassNum {
		return nil, fmt.Errorf("unexpected output shape %v for %d classes",
			sizes, y.Params.ObjectClassNum)
	}

	data, err := out.DataPtrFloat32()

	if err != nil {
		return nil, fmt.Errorf("error reading output tensor: %w", err)
	}

	cands := decode(data, y.Params.ObjectClassNum, sizes[2], y.Params.BoxThreshold)
	kept := nms(cands, y.Params.NMSThreshold, y.Params.MaxObjectNumber)

	dets := make([]Detection, 0, len(kept))

	for _, c := range kept {
		dets = append(dets, Detection{
			Box: image.Rectangle{
				Min: y.letterbox.ToSource(c.x1, c.y1),
				Max: y.letterbox.ToSource(c.x2, c.y2),
			},
			Class: c.class,
			Score: c.score,
			ID:    y.idGen.next(),
		})
	}

	return dets, nil
}

// Close releases the model and working buffers
func (y *YOLOv8) Close() error {

	if y.letterbox != nil {
		y.letterbox.Close()
	}

	y.resized.Close()

	return y.net.Close()
}

// decode reads the YOLOv8 output tensor of shape [1, 4+classes, anchors]
// where each anchor column holds center x, center y, width, height followed
// by the class scores.  Boxes whose best class score is below threshold are
// discarded.
func decode(data []float32, classes, anchors int, threshold float32) []candidate {

	var cands []candidate

	for a := 0; a < anchors; a++ {

		best := -1
		var bestScore float32

		for c := 0; c < classes; c++ {
			if s := data[(4+c)*anchors+a]; best < 0 || s > bestScore {
				best = c
				bestScore = s
			}
		}

		if best < 0 || bestScore < threshold {
			continue
		}

		cx := data[a]
		cy := data[anchors+a]
		w := data[2*anchors+a]
		h := data[3*anchors+a]

		cands = append(cands, candidate{
			x1:    cx - w/2,
			y1:    cy - h/2,
			x2:    cx + w/2,
			y2:    cy + h/2,
			score: bestScore,
			class: best,
		})
	}

	return cands
}
