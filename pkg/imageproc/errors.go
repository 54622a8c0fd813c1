package imageproc

import (
	"errors"
	"fmt"
)

var (
	// ErrCropOutOfBounds matches every *CropOutOfBoundsError.
	ErrCropOutOfBounds = errors.New("imageproc: crop rectangle out of bounds")

	// ErrUnsupportedEncoding is returned for images that are not rgb8.
	ErrUnsupportedEncoding = errors.New("imageproc: unsupported encoding")
)

// CropOutOfBoundsError reports a crop rectangle that does not fit the source.
type CropOutOfBoundsError struct {
	Crop         Rect
	SourceWidth  int
	SourceHeight int
}

// Error implements the error interface.
func (e *CropOutOfBoundsError) Error() string {
	return fmt.Sprintf("imageproc: crop %s exceeds %dx%d source", e.Crop, e.SourceWidth, e.SourceHeight)
}

// Is matches ErrCropOutOfBounds.
func (e *CropOutOfBoundsError) Is(target error) bool {
	return target == ErrCropOutOfBounds
}
