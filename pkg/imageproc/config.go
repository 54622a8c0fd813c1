// Package imageproc crops and rescales rgb8 images by a fixed rectangle and
// scale factor.
package imageproc

import (
	"errors"
	"fmt"
	"image"
)

// Rect is a pixel rectangle with its origin at the top-left corner.
type Rect struct {
	X      int `yaml:"x" json:"x"`
	Y      int `yaml:"y" json:"y"`
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Image returns the rectangle as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// String formats the rectangle as x,y widthxheight.
func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// Fits reports whether the rectangle lies inside a width x height image.
// The extents are compared against the remaining room so that huge
// offsets cannot overflow into a passing sum.
func (r Rect) Fits(width, height int) bool {
	if r.X < 0 || r.Y < 0 || r.Width < 0 || r.Height < 0 {
		return false
	}
	if r.X > width || r.Y > height {
		return false
	}
	return r.Width <= width-r.X && r.Height <= height-r.Y
}

// Interpolation names accepted by Config.
const (
	InterpNearest = "nearest"
	InterpLinear  = "linear"
	InterpArea    = "area"
	InterpCubic   = "cubic"
)

// MaxScale bounds Config.Scale.
const MaxScale = 8.0

// Config holds the crop and resize parameters.
type Config struct {
	// Crop is the region kept from every frame. The defaults strip the
	// sensor's dead columns.
	Crop Rect `yaml:"crop" json:"crop"`

	// Scale is applied after cropping.
	Scale float64 `yaml:"scale" json:"scale"`

	// Interpolation selects the resize filter.
	// Options: "nearest", "linear", "area", "cubic"
	Interpolation string `yaml:"interpolation" json:"interpolation"`
}

// DefaultConfig returns the crop used for the 1936x1216 sensor at full scale.
func DefaultConfig() Config {
	return Config{
		Crop:          Rect{X: 195, Y: 0, Width: 1546, Height: 1216},
		Scale:         1.0,
		Interpolation: InterpLinear,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Crop.X < 0 || c.Crop.Y < 0 {
		errs = append(errs, fmt.Errorf("crop origin must be non-negative, got %d,%d", c.Crop.X, c.Crop.Y))
	}
	if c.Crop.Width <= 0 || c.Crop.Height <= 0 {
		errs = append(errs, fmt.Errorf("crop size must be positive, got %dx%d", c.Crop.Width, c.Crop.Height))
	}
	if c.Scale <= 0 || c.Scale > MaxScale {
		errs = append(errs, fmt.Errorf("scale must be in (0, %g], got %g", MaxScale, c.Scale))
	}
	switch c.Interpolation {
	case InterpNearest, InterpLinear, InterpArea, InterpCubic:
	default:
		errs = append(errs, fmt.Errorf("unknown interpolation %q", c.Interpolation))
	}
	return errors.Join(errs...)
}
