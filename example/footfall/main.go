/*
Example program that counts people crossing a horizontal line in a video file
or camera feed, builds a heatmap of where they walked, saves the session to a
SQLite database and writes the reports.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/swdee/go-footfall"
	"github.com/swdee/go-footfall/detect"
	"github.com/swdee/go-footfall/report"
	"github.com/swdee/go-footfall/store"
	"github.com/swdee/go-footfall/tracker"
	"github.com/swdee/go-footfall/video"
)

func main() {

	// read in cli flags
	vidFile := flag.String("v", "../data/footfall.mp4", "Video file or camera device number to analyse")
	modelFile := flag.String("m", "../data/yolov8n.onnx", "YOLOv8 ONNX model file")
	labelFile := flag.String("l", "../data/coco_80_labels_list.txt", "Text file containing model labels")
	lineY := flag.Int("y", 450, "Row of the horizontal counting line in pixels")
	kernelSize := flag.Int("k", 61, "Heatmap Gaussian blur kernel size, must be odd")
	percentile := flag.Float64("p", 98, "Heatmap clipping percentile")
	dbFile := flag.String("db", "data/footfall.db", "SQLite database file")
	reportDir := flag.String("o", "reports", "Folder to write reports to")
	limitLabels := flag.String("x", "person", "Comma delimited list of labels to count")
	logLevel := flag.String("log-level", "info", "Log level [debug|info|warn|error]")
	logFile := flag.String("log-file", "", "Also append logs to this file")

	flag.Parse()

	log, closeLog, err := newLogger(*logLevel, *logFile)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	defer closeLog()

	cfg := footfall.DefaultConfig()
	cfg.LineY = *lineY
	cfg.KernelSize = *kernelSize
	cfg.Percentile = *percentile

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid parameters")
	}

	if err := run(log, cfg, *vidFile, *modelFile, *labelFile, *limitLabels,
		*dbFile, *reportDir); err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}
}

// newLogger returns a console logger at the named level, tee'd to file when
// one is given
func newLogger(level, file string) (zerolog.Logger, func(), error) {

	lvl, err := zerolog.ParseLevel(level)

	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}
	closer := func() {}

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return zerolog.Nop(), nil, err
		}

		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)

		if err != nil {
			return zerolog.Nop(), nil, err
		}

		w = zerolog.MultiLevelWriter(w, f)
		closer = func() { f.Close() }
	}

	log := zerolog.New(w).Level(lvl).With().Timestamp().Logger()

	return log, closer, nil
}

// classIndexes returns the label index of each comma delimited name
func classIndexes(labels []string, names string, log zerolog.Logger) []int {

	var classes []int

	for _, name := range strings.Split(names, ",") {

		name = strings.TrimSpace(name)

		if name == "" {
			continue
		}

		idx := detect.LabelIndex(labels, name)

		if idx < 0 {
			log.Warn().Str("label", name).Msg("Label not found in labels file")
			continue
		}

		classes = append(classes, idx)
	}

	return classes
}

func run(log zerolog.Logger, cfg footfall.Config, vidFile, modelFile,
	labelFile, limitLabels, dbFile, reportDir string) error {

	src := video.NewSource(vidFile, video.WithLogger(log))

	// the first frame sizes the density grid and is the heatmap background
	first, err := src.FirstFrame()

	if err != nil {
		return fmt.Errorf("error reading video: %w", err)
	}

	defer first.Close()
	defer src.Stop()

	if err := cfg.ValidateFrame(first.Rows()); err != nil {
		return err
	}

	log.Info().Str("video", vidFile).Int("width", first.Cols()).
		Int("height", first.Rows()).Float64("fps", src.FPS()).
		Int("frames", src.FrameCount()).Msg("Video opened")

	labels, err := detect.LoadLabels(labelFile)

	if err != nil {
		return fmt.Errorf("error loading model labels: %w", err)
	}

	det, err := detect.NewYOLOv8(modelFile, detect.YOLOv8COCOParams(),
		detect.WithLogger(log))

	if err != nil {
		return fmt.Errorf("error loading model: %w", err)
	}

	defer det.Close()

	classes := classIndexes(labels, limitLabels, log)

	eng := footfall.NewTrackingEngine(det,
		tracker.New(tracker.DefaultParams(int(src.FPS())), tracker.WithLogger(log)),
		classes...)

	db, err := store.Open(dbFile, store.WithLogger(log))

	if err != nil {
		return err
	}

	defer db.Close()

	// context is cancelled on interrupt, the partial results are still saved
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	rec, err := db.CreateSession(ctx, filepath.Base(vidFile), cfg.LineY)

	if err != nil {
		return err
	}

	sess, err := footfall.NewSession(cfg, first.Cols(), first.Rows(),
		footfall.WithSessionLogger(log), footfall.WithSink(db, rec.ID))

	if err != nil {
		return err
	}

	defer sess.Close()

	start := time.Now()

	stats, err := footfall.Run(ctx, src, eng, sess,
		footfall.WithProgress(src.FrameCount(), func(p footfall.Progress) {
			if p.Frame%100 != 0 {
				return
			}
			log.Info().Int("frame", p.Frame).Int("total", p.Total).
				Int("entries", p.Entries).Int("exits", p.Exits).Msg("Progress")
		}))

	if err != nil && ctx.Err() == nil {
		return err
	}

	if ctx.Err() != nil {
		log.Warn().Int("frame", stats.Frames).Msg("Interrupted, saving partial results")
	}

	// database writes after an interrupt use a fresh context
	if err := db.EndSession(context.Background(), rec.ID); err != nil {
		return err
	}

	heat, err := sess.Composite(first)

	if err != nil {
		return err
	}

	defer heat.Close()

	gen, err := report.NewGenerator(reportDir, report.WithLogger(log))

	if err != nil {
		return err
	}

	cnt := sess.Counter()

	art, err := gen.Generate(report.Summary{
		Time:        time.Now(),
		SessionUUID: rec.UUID,
		Video:       rec.VideoName,
		Totals:      cnt.Summary(),
		Entries:     cnt.EntryLog(),
		Exits:       cnt.ExitLog(),
		Heatmap:     &heat,
	})

	if err != nil {
		return fmt.Errorf("error writing reports: %w", err)
	}

	log.Info().Str("json", art.JSON).Str("csv", art.CSV).Str("heatmap", art.Heatmap).
		Str("timeline", art.Timeline).Str("html", art.HTML).Msg("Reports written")

	fmt.Printf("Frames: %d, Time: %s\n", stats.Frames, time.Since(start).Round(time.Millisecond))
	fmt.Printf("Total Entries: %d\n", cnt.Entries())
	fmt.Printf("Total Exits: %d\n", cnt.Exits())

	return nil
}
