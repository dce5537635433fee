// Package video reads frames from a video file, stream URL or camera device.
package video

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

var (
	// ErrOpen is returned when the capture could not be opened
	ErrOpen = errors.New("video source could not be opened")
	// ErrNoFrame is returned when no frame could be read from the source
	ErrNoFrame = errors.New("no frame could be read")
	// ErrNotRunning is returned when an operation needs a started source
	ErrNotRunning = errors.New("video source is not running")
)

// Option configures a Source
type Option func(*Source)

// WithLogger sets the logger used by the Source
func WithLogger(log zerolog.Logger) Option {
	return func(s *Source) {
		s.log = log
	}
}

// Source manages the capture of frames from a video file or camera.  A uri
// that is an integer opens the camera device of that index.
type Source struct {
	uri     string
	capture *gocv.VideoCapture
	log     zerolog.Logger
}

// NewSource returns a stopped Source for the given uri
func NewSource(uri string, opts ...Option) *Source {

	s := &Source{
		uri: uri,
		log: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// URI returns the uri the source reads from
func (s *Source) URI() string {
	return s.uri
}

// Start opens the capture
func (s *Source) Start() error {

	if s.capture != nil {
		return nil
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)

	if device, convErr := strconv.Atoi(s.uri); convErr == nil {
		capture, err = gocv.VideoCaptureDevice(device)
	} else {
		capture, err = gocv.VideoCaptureFile(s.uri)
	}

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpen, s.uri, err)
	}

	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: %s", ErrOpen, s.uri)
	}

	s.capture = capture

	s.log.Info().Str("source", s.uri).Msg("video stream started")

	return nil
}

// Read reads the next frame into img.  It returns false when the source is
// not running, the end of the stream was reached or the frame was empty.
func (s *Source) Read(img *gocv.Mat) bool {

	if s.capture == nil {
		return false
	}

	if ok := s.capture.Read(img); !ok {
		return false
	}

	return !img.Empty()
}

// Stop releases the capture
func (s *Source) Stop() error {

	if s.capture == nil {
		return nil
	}

	err := s.capture.Close()
	s.capture = nil

	s.log.Info().Str("source", s.uri).Msg("video stream stopped")

	if err != nil {
		return fmt.Errorf("error closing capture: %w", err)
	}

	return nil
}

// Restart stops and starts the capture, rewinding files to the first frame
func (s *Source) Restart() error {

	if err := s.Stop(); err != nil {
		return err
	}

	return s.Start()
}

// Running reports whether the capture is open
func (s *Source) Running() bool {
	return s.capture != nil
}

// FrameCount returns the number of frames in the video, or 0 when unknown
// such as for cameras
func (s *Source) FrameCount() int {

	if s.capture == nil {
		return 0
	}

	n := int(s.capture.Get(gocv.VideoCaptureFrameCount))

	if n < 0 {
		return 0
	}

	return n
}

// FPS returns the frame rate reported by the capture
func (s *Source) FPS() float64 {

	if s.capture == nil {
		return 0
	}

	return s.capture.Get(gocv.VideoCaptureFPS)
}

// FirstFrame reads the first frame of the video and restarts the capture so the
// next Read returns the first frame again.  The source is started if it was
// not already.  The caller must close the returned Mat when err is nil.
func (s *Source) FirstFrame() (gocv.Mat, error) {

	if err := s.Start(); err != nil {
		return gocv.Mat{}, err
	}

	frame := gocv.NewMat()
	defer frame.Close()

	if !s.Read(&frame) {
		s.Stop()
		return gocv.Mat{}, fmt.Errorf("%w: %s", ErrNoFrame, s.uri)
	}

	first := frame.Clone()

	if err := s.Restart(); err != nil {
		first.Close()
		return gocv.Mat{}, fmt.Errorf("error restarting after reading first frame: %w", err)
	}

	s.log.Debug().Int("width", first.Cols()).Int("height", first.Rows()).
		Msg("read first frame")

	return first, nil
}
