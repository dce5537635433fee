package footfall

import (
	"errors"
	"fmt"

	"github.com/swdee/go-footfall/density"
)

// ErrConfig is returned when a Config has an invalid value
var ErrConfig = errors.New("invalid config")

// Config defines the parameters of a counting session
type Config struct {
	// LineY is the row of the horizontal counting line in frame pixels
	LineY int
	// KernelSize is the Gaussian blur kernel size used when rendering the
	// heatmap, it must be a positive odd number
	KernelSize int
	// Percentile is the clipping percentile used when rendering the heatmap
	Percentile float64
	// Intensity is the amount added to the density grid per tracked center
	Intensity float32
	// OverlayAlpha is the weight of the background frame in the composite
	OverlayAlpha float64
	// HeatmapBeta is the weight of the heatmap in the composite
	HeatmapBeta float64
	// Title is drawn on the composite image when not empty
	Title string
}

// DefaultConfig returns the default session parameters
func DefaultConfig() Config {
	return Config{
		LineY:        450,
		KernelSize:   61,
		Percentile:   98,
		Intensity:    density.DefaultIntensity,
		OverlayAlpha: 0.2,
		HeatmapBeta:  0.8,
		Title:        "Movement Heatmap",
	}
}

// Validate checks the config values are usable
func (c Config) Validate() error {

	if c.LineY < 0 {
		return fmt.Errorf("%w: line row %d is negative", ErrConfig, c.LineY)
	}

	if c.KernelSize <= 0 || c.KernelSize%2 == 0 {
		return fmt.Errorf("%w: kernel size %d must be a positive odd number",
			ErrConfig, c.KernelSize)
	}

	if c.Percentile < 0 || c.Percentile > 100 {
		return fmt.Errorf("%w: percentile %g must be between 0 and 100",
			ErrConfig, c.Percentile)
	}

	if c.Intensity <= 0 {
		return fmt.Errorf("%w: intensity %g must be positive", ErrConfig, c.Intensity)
	}

	if c.OverlayAlpha < 0 || c.HeatmapBeta < 0 {
		return fmt.Errorf("%w: blend weights must not be negative", ErrConfig)
	}

	return nil
}

// ValidateFrame checks the counting line lies within a frame of the given
// height
func (c Config) ValidateFrame(height int) error {

	if c.LineY >= height {
		return fmt.Errorf("%w: line row %d outside frame height %d", ErrConfig,
			c.LineY, height)
	}

	return nil
}
