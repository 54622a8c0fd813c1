// Package convert copies leased camera frames into owned rgb8 images.
package convert

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-camera-bridge/pkg/acquisition"
	"github.com/teslashibe/go-camera-bridge/pkg/msgs"
)

var (
	// ErrUnsupportedFormat is returned for frames that are not 3-channel 8-bit.
	ErrUnsupportedFormat = errors.New("convert: unsupported pixel format")

	// ErrStrideMismatch is returned when rows are padded and padding is not allowed.
	ErrStrideMismatch = errors.New("convert: row stride does not match width*3")

	// ErrShortBuffer is returned when the frame buffer is smaller than stride*height.
	ErrShortBuffer = errors.New("convert: frame buffer too short")

	// ErrInvalidFrame is returned for frames with non-positive dimensions.
	ErrInvalidFrame = errors.New("convert: invalid frame geometry")
)

// Options controls conversion.
type Options struct {
	// AllowPadded compacts padded rows instead of failing with ErrStrideMismatch.
	AllowPadded bool
}

// Converter turns frames into images.
type Converter struct {
	opts Options
}

// New creates a converter.
func New(opts Options) *Converter {
	return &Converter{opts: opts}
}

// ToImage copies width*3*height bytes out of the frame. The result owns its
// buffer and stays valid after the frame's lease ends.
func (c *Converter) ToImage(frame *acquisition.Frame) (*msgs.Image, error) {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, ErrInvalidFrame
	}
	if frame.Format != acquisition.FormatRGB8 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, frame.Format)
	}

	buf, err := frame.Bytes()
	if err != nil {
		return nil, err
	}

	row := frame.Width * msgs.BytesPerPixelRGB8
	stride := frame.Stride
	if stride == 0 {
		stride = row
	}
	if stride < row {
		return nil, fmt.Errorf("%w: stride %d shorter than row of %d bytes", ErrStrideMismatch, stride, row)
	}
	if stride != row && !c.opts.AllowPadded {
		return nil, fmt.Errorf("%w: stride %d, width %d", ErrStrideMismatch, stride, frame.Width)
	}

	need := stride * frame.Height
	if len(buf) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(buf), need)
	}

	size := row * frame.Height
	data := make([]byte, size)
	if stride == row {
		copy(data, buf[:size])
	} else {
		for y := 0; y < frame.Height; y++ {
			copy(data[y*row:(y+1)*row], buf[y*stride:y*stride+row])
		}
	}

	return msgs.NewRGB8(frame.Width, frame.Height, data), nil
}
