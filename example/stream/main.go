/*
Example program that streams a looping video to the browser annotated with
the counting line, running totals and tracked people, and serves the live
heatmap and totals of the most recent viewer.
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/swdee/go-footfall"
	"github.com/swdee/go-footfall/counter"
	"github.com/swdee/go-footfall/detect"
	"github.com/swdee/go-footfall/render"
	"github.com/swdee/go-footfall/tracker"
	"github.com/swdee/go-footfall/video"
	"gocv.io/x/gocv"
)

var (
	// FPS is the number of FPS to simulate
	FPS         = 30
	FPSinterval = time.Duration(float64(time.Second) / float64(FPS))
)

// poolDetector borrows a detector from the pool for each frame so viewers
// can run detection in parallel
type poolDetector struct {
	pool *detect.Pool
}

func (p *poolDetector) Detect(img gocv.Mat) ([]detect.Detection, error) {
	det := p.pool.Get()
	defer p.pool.Return(det)

	return det.Detect(img)
}

func (p *poolDetector) Close() error {
	return nil
}

// viewer is the counting state of one connected client
type viewer struct {
	sync.Mutex
	sess *footfall.Session
}

// Demo defines the struct for running the streaming demo
type Demo struct {
	// vidBuffer buffers the video frames into memory
	vidBuffer []gocv.Mat
	// pool of detectors to perform inference in parallel
	pool *detect.Pool
	// labels are the COCO labels the model was trained on
	labels []string
	// classes restricts counting to these label indexes
	classes []int
	cfg     footfall.Config
	log     zerolog.Logger
	// mu guards latest, the viewer served by /heatmap and /stats
	mu     sync.Mutex
	latest *viewer
}

// NewDemo returns an instance of Demo, a streaming HTTP server showing
// video with people counting
func NewDemo(vidFile, modelFile, labelFile string, poolSize int,
	cfg footfall.Config, log zerolog.Logger) (*Demo, error) {

	d := &Demo{
		cfg: cfg,
		log: log,
	}

	err := d.bufferVideo(vidFile)

	if err != nil {
		return nil, fmt.Errorf("error buffering video: %w", err)
	}

	if err := cfg.ValidateFrame(d.vidBuffer[0].Rows()); err != nil {
		return nil, err
	}

	d.pool, err = detect.NewPool(poolSize, func() (detect.Detector, error) {
		return detect.NewYOLOv8(modelFile, detect.YOLOv8COCOParams(),
			detect.WithLogger(log))
	})

	if err != nil {
		return nil, fmt.Errorf("error creating detector pool: %w", err)
	}

	d.labels, err = detect.LoadLabels(labelFile)

	if err != nil {
		return nil, fmt.Errorf("error loading model labels: %w", err)
	}

	return d, nil
}

// LimitObjects limits counting to the labels provided, eg: limit to just
// "person".  Provide a comma delimited list of labels to restrict to.
func (d *Demo) LimitObjects(lim string) {

	var names []string

	for _, word := range strings.Split(lim, ",") {
		trimmed := strings.TrimSpace(word)

		if idx := detect.LabelIndex(d.labels, trimmed); idx >= 0 {
			d.classes = append(d.classes, idx)
			names = append(names, trimmed)
		}
	}

	d.log.Info().Strs("labels", names).Msg("Limiting counting to labels")
}

// bufferVideo reads in the video frames and saves them to a buffer
func (d *Demo) bufferVideo(vidFile string) error {

	src := video.NewSource(vidFile, video.WithLogger(d.log))

	if err := src.Start(); err != nil {
		return err
	}

	defer src.Stop()

	for {
		img := gocv.NewMat()

		if ok := src.Read(&img); !ok {
			img.Close()
			break
		}

		d.vidBuffer = append(d.vidBuffer, img)
	}

	if len(d.vidBuffer) == 0 {
		return video.ErrNoFrame
	}

	d.log.Info().Int("frames", len(d.vidBuffer)).Msg("Video buffered")

	return nil
}

// Stream is the HTTP handler function used to stream video frames to browser
func (d *Demo) Stream(w http.ResponseWriter, r *http.Request) {

	d.log.Info().Str("remote", r.RemoteAddr).Msg("New client connection established")

	sess, err := footfall.NewSession(d.cfg, d.vidBuffer[0].Cols(),
		d.vidBuffer[0].Rows(), footfall.WithSessionLogger(d.log))

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	view := &viewer{sess: sess}

	d.mu.Lock()
	d.latest = view
	d.mu.Unlock()

	defer func() {
		view.Lock()
		sess.Close()
		view.sess = nil
		view.Unlock()
	}()

	// each client has its own tracker as it keeps a record of past
	// detections
	eng := footfall.NewTrackingEngine(&poolDetector{pool: d.pool},
		tracker.New(tracker.DefaultParams(FPS)), d.classes...)

	trail := tracker.NewTrail(90)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	resImg := gocv.NewMat()
	defer resImg.Close()

	ticker := time.NewTicker(FPSinterval)
	defer ticker.Stop()

	frameNum := -1

	for {
		select {
		case <-r.Context().Done():
			d.log.Info().Str("remote", r.RemoteAddr).Msg("Client disconnected")
			return

		// simulate reading 30FPS web camera
		case <-ticker.C:

			frameNum++
			if frameNum > len(d.vidBuffer)-1 {
				// last frame reached so loop back to start of video
				frameNum = 0
				eng.Reset()
				trail.Reset()
			}

			buf, err := d.processFrame(r.Context(), d.vidBuffer[frameNum], &resImg,
				eng, view, trail)

			if err != nil {
				d.log.Warn().Err(err).Int("frame", frameNum).Msg("Error processing frame")
				continue
			}

			w.Write([]byte("--frame\r\n"))
			w.Write([]byte("Content-Type: image/jpeg\r\n\r\n"))
			w.Write(buf.GetBytes())
			w.Write([]byte("\r\n"))

			buf.Close()

			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// processFrame detects, tracks and counts the people in img then returns the
// annotated frame encoded as a JPG
func (d *Demo) processFrame(ctx context.Context, img gocv.Mat, resImg *gocv.Mat,
	eng *footfall.TrackingEngine, view *viewer,
	trail *tracker.Trail) (*gocv.NativeByteBuffer, error) {

	objs, err := eng.Process(img)

	if err != nil {
		return nil, err
	}

	view.Lock()
	_, err = view.sess.Observe(ctx, objs)
	cnt := view.sess.Counter().Summary()
	view.Unlock()

	if err != nil {
		return nil, err
	}

	trail.Add(objs)
	trail.Prune(objs)

	img.CopyTo(resImg)

	render.CountingLine(resImg, d.cfg.LineY, render.Yellow, 2)
	render.ObservationBoxes(resImg, objs, d.labels, render.DefaultFont(), 1)
	render.Trail(resImg, objs, trail, render.DefaultTrailStyle())
	render.Counters(resImg, cnt.Entries, cnt.Exits)

	return gocv.IMEncode(".jpg", *resImg)
}

// Heatmap is the HTTP handler serving the latest viewer's heatmap as a PNG.
// The w query parameter scales the image down to that width.
func (d *Demo) Heatmap(w http.ResponseWriter, r *http.Request) {

	maxWidth := 0

	if q := r.URL.Query().Get("w"); q != "" {
		v, err := strconv.Atoi(q)

		if err != nil || v <= 0 {
			http.Error(w, "invalid width", http.StatusBadRequest)
			return
		}

		maxWidth = v
	}

	img, err := d.heatmapImage()

	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/png")

	if err := png.Encode(w, render.Thumbnail(img, maxWidth)); err != nil {
		d.log.Warn().Err(err).Msg("Error encoding heatmap")
	}
}

// heatmapImage renders the latest viewer's heatmap
func (d *Demo) heatmapImage() (image.Image, error) {

	d.mu.Lock()
	view := d.latest
	d.mu.Unlock()

	if view == nil {
		return nil, fmt.Errorf("no active stream")
	}

	view.Lock()
	defer view.Unlock()

	if view.sess == nil {
		return nil, fmt.Errorf("no active stream")
	}

	heat, err := view.sess.Heatmap()

	if err != nil {
		return nil, err
	}

	defer heat.Close()

	return heat.ToImage()
}

// stats is the /stats response
type stats struct {
	counter.Totals
	Frames int `json:"frames"`
	LineY  int `json:"line_y"`
}

// Stats is the HTTP handler serving the latest viewer's totals as JSON
func (d *Demo) Stats(w http.ResponseWriter, r *http.Request) {

	res := stats{LineY: d.cfg.LineY}

	d.mu.Lock()
	view := d.latest
	d.mu.Unlock()

	if view != nil {
		view.Lock()
		if view.sess != nil {
			res.Totals = view.sess.Counter().Summary()
			res.Frames = view.sess.Frames()
		}
		view.Unlock()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func main() {

	// read in cli flags
	modelFile := flag.String("m", "../data/yolov8n.onnx", "YOLOv8 ONNX model file")
	vidFile := flag.String("v", "../data/footfall.mp4", "Video file to loop")
	labelFile := flag.String("l", "../data/coco_80_labels_list.txt", "Text file containing model labels")
	httpAddr := flag.String("a", "localhost:8080", "HTTP Address to run server on, format address:port")
	poolSize := flag.Int("s", 3, "Size of detector pool")
	limitLabels := flag.String("x", "person", "Comma delimited list of labels to count")
	lineY := flag.Int("y", 450, "Row of the horizontal counting line in pixels")
	kernelSize := flag.Int("k", 61, "Heatmap Gaussian blur kernel size, must be odd")
	percentile := flag.Float64("p", 98, "Heatmap clipping percentile")

	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
		With().Timestamp().Logger()

	cfg := footfall.DefaultConfig()
	cfg.LineY = *lineY
	cfg.KernelSize = *kernelSize
	cfg.Percentile = *percentile

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid parameters")
	}

	demo, err := NewDemo(*vidFile, *modelFile, *labelFile, *poolSize, cfg, log)

	if err != nil {
		log.Fatal().Err(err).Msg("Error creating demo")
	}

	defer demo.pool.Close()

	if *limitLabels != "" {
		demo.LimitObjects(*limitLabels)
	}

	http.HandleFunc("/stream", demo.Stream)
	http.HandleFunc("/heatmap", demo.Heatmap)
	http.HandleFunc("/stats", demo.Stats)

	// start http server
	log.Info().Msgf("Open browser and view video at http://%s/stream", *httpAddr)

	if err := http.ListenAndServe(*httpAddr, nil); err != nil {
		log.Fatal().Err(err).Msg("HTTP server failed")
	}
}
