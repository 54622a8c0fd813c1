package acquisition

import (
	"fmt"
	"sync/atomic"
	"time"
)

// PixelFormat describes the layout of a frame buffer.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	FormatRGB8
	FormatBGR8
	FormatMono8
)

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatRGB8:
		return "rgb8"
	case FormatBGR8:
		return "bgr8"
	case FormatMono8:
		return "mono8"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// BytesPerPixel returns the pixel size, or 0 when unknown.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGB8, FormatBGR8:
		return 3
	case FormatMono8:
		return 1
	default:
		return 0
	}
}

// Lease marks how long a frame's buffer may be read. The session that
// handed out the frame releases it on the next wait or on stop.
type Lease struct {
	released atomic.Bool
}

// Release ends the lease. Safe to call more than once.
func (l *Lease) Release() {
	l.released.Store(true)
}

// Released reports whether the lease has ended.
func (l *Lease) Released() bool {
	return l.released.Load()
}

// Frame is a borrowed view of one acquisition result. Width, Height, Stride
// and Format stay valid forever; the pixel bytes only while the lease lasts.
type Frame struct {
	Width  int
	Height int
	Stride int // row increment in bytes
	Format PixelFormat

	// Seq counts frames delivered by the session, starting at 1.
	Seq uint64

	// Arrived is when the session received the frame. It is not published.
	Arrived time.Time

	buf   []byte
	lease *Lease
}

// NewFrame wraps buf in a frame and returns the lease controlling it.
func NewFrame(buf []byte, width, height, stride int, format PixelFormat, seq uint64) (*Frame, *Lease) {
	lease := &Lease{}
	return &Frame{
		Width:   width,
		Height:  height,
		Stride:  stride,
		Format:  format,
		Seq:     seq,
		Arrived: time.Now(),
		buf:     buf,
		lease:   lease,
	}, lease
}

// Bytes returns the borrowed buffer. The slice must not be retained past
// the next WaitForFrame call; copy what you need.
func (f *Frame) Bytes() ([]byte, error) {
	if f.lease == nil || f.lease.Released() {
		return nil, ErrFrameReleased
	}
	return f.buf, nil
}

// Released reports whether the buffer may no longer be read.
func (f *Frame) Released() bool {
	return f.lease == nil || f.lease.Released()
}
