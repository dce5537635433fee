package footfall

import (
	"context"
	"fmt"

	"github.com/swdee/go-footfall/counter"
	"github.com/swdee/go-footfall/tracker"
	"gocv.io/x/gocv"
)

// Progress is reported after each frame is processed
type Progress struct {
	// Frame is the number of frames processed so far
	Frame int
	// Total is the number of frames in the source, or zero when unknown
	Total   int
	Entries int
	Exits   int
}

// FrameHook is called with each processed frame, its tracked objects and
// the crossings that occurred on it.  The frame is only valid for the
// duration of the call.
type FrameHook func(frame *gocv.Mat, objs []tracker.Observation, events []counter.Event)

// RunStats summarise a completed run
type RunStats struct {
	Frames  int
	Entries int
	Exits   int
}

type runConfig struct {
	total    int
	progress func(Progress)
	hook     FrameHook
}

// RunOption configures Run
type RunOption func(*runConfig)

// WithProgress calls fn after every frame.  total is the expected number of
// frames passed through in Progress, use zero when unknown.
func WithProgress(total int, fn func(Progress)) RunOption {
	return func(c *runConfig) {
		c.total = total
		c.progress = fn
	}
}

// WithFrameHook calls hook after every frame is observed
func WithFrameHook(hook FrameHook) RunOption {
	return func(c *runConfig) {
		c.hook = hook
	}
}

// Run reads frames from src until it is exhausted or ctx is cancelled,
// passing each through eng and observing the result in sess.  On
// cancellation ctx.Err() is returned and sess holds everything observed so
// far.
func Run(ctx context.Context, src FrameSource, eng Engine, sess *Session,
	opts ...RunOption) (RunStats, error) {

	var rc runConfig

	for _, opt := range opts {
		opt(&rc)
	}

	img := gocv.NewMat()
	defer img.Close()

	var stats RunStats

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if !src.Read(&img) {
			break
		}

		if img.Empty() {
			continue
		}

		objs, err := eng.Process(img)

		if err != nil {
			return stats, fmt.Errorf("frame %d: %w", stats.Frames+1, err)
		}

		events, err := sess.Observe(ctx, objs)

		stats.Frames++
		stats.Entries = sess.Counter().Entries()
		stats.Exits = sess.Counter().Exits()

		if err != nil {
			return stats, fmt.Errorf("frame %d: %w", stats.Frames, err)
		}

		if rc.hook != nil {
			rc.hook(&img, objs, events)
		}

		if rc.progress != nil {
			rc.progress(Progress{
				Frame:   stats.Frames,
				Total:   rc.total,
				Entries: stats.Entries,
				Exits:   stats.Exits,
			})
		}
	}

	return stats, nil
}
