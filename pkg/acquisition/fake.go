package acquisition

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// FakeConfig configures a FakeDevice.
type FakeConfig struct {
	Width  int
	Height int

	// Stride is the row increment in bytes. Anything shorter than a row,
	// including zero, means width*bpp.
	Stride int

	// Format defaults to FormatRGB8.
	Format PixelFormat

	// FPS paces reads. Zero delivers frames as fast as they are read.
	FPS int

	// FailAfter makes the read following the first FailAfter frames report
	// StatusDeviceLost. Zero never fails.
	FailAfter int

	// Stall makes every read block until the device is interrupted.
	Stall bool

	// StartErr is returned from Start when set.
	StartErr error
}

// DefaultFakeConfig returns a 1936x1216 rgb8 device.
func DefaultFakeConfig() FakeConfig {
	return FakeConfig{
		Width:  1936,
		Height: 1216,
		Format: FormatRGB8,
	}
}

// FakeDevice generates a deterministic test pattern: pixel (x, y) of frame
// n is (x mod 256, y mod 256, n mod 256).
type FakeDevice struct {
	cfg    FakeConfig
	logger *slog.Logger

	mu        sync.Mutex
	started   bool
	interrupt chan struct{}

	reads  atomic.Int64
	frames atomic.Int64
	closes atomic.Int64
	last   time.Time
}

// NewFakeDevice creates a fake device.
func NewFakeDevice(cfg FakeConfig, logger *slog.Logger) *FakeDevice {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Format == FormatUnknown {
		cfg.Format = FormatRGB8
	}
	if row := cfg.Width * cfg.Format.BytesPerPixel(); cfg.Stride < row {
		cfg.Stride = row
	}
	return &FakeDevice{
		cfg:       cfg,
		logger:    logger,
		interrupt: make(chan struct{}),
	}
}

// newFakeDeviceFromDescriptor parses fake://?width=W&height=H&fps=N&fail_after=K&stall=true.
func newFakeDeviceFromDescriptor(descriptor string, logger *slog.Logger) (Device, error) {
	u, err := url.Parse(descriptor)
	if err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}

	cfg := DefaultFakeConfig()
	q := u.Query()

	ints := []struct {
		key string
		dst *int
	}{
		{"width", &cfg.Width},
		{"height", &cfg.Height},
		{"stride", &cfg.Stride},
		{"fps", &cfg.FPS},
		{"fail_after", &cfg.FailAfter},
	}
	for _, p := range ints {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s %q", p.key, v)
		}
		*p.dst = n
	}

	if v := q.Get("stall"); v != "" {
		cfg.Stall, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid stall %q", v)
		}
	}

	switch q.Get("format") {
	case "", "rgb8":
		cfg.Format = FormatRGB8
	case "bgr8":
		cfg.Format = FormatBGR8
	case "mono8":
		cfg.Format = FormatMono8
	default:
		return nil, fmt.Errorf("unsupported format %q", q.Get("format"))
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", cfg.Width, cfg.Height)
	}
	if row := cfg.Width * cfg.Format.BytesPerPixel(); cfg.Stride != 0 && cfg.Stride < row {
		return nil, fmt.Errorf("stride %d shorter than a %d byte row", cfg.Stride, row)
	}

	return NewFakeDevice(cfg, logger), nil
}

// Size returns the configured dimensions.
func (d *FakeDevice) Size() (int, int) {
	return d.cfg.Width, d.cfg.Height
}

// Start begins streaming.
func (d *FakeDevice) Start() error {
	if d.cfg.StartErr != nil {
		return d.cfg.StartErr
	}
	d.mu.Lock()
	d.started = true
	d.mu.Unlock()
	return nil
}

var errFakeInterrupted = errors.New("fake device interrupted")

// Read returns the next pattern frame.
func (d *FakeDevice) Read() (RawFrame, error) {
	d.reads.Add(1)

	d.mu.Lock()
	started := d.started
	interrupt := d.interrupt
	d.mu.Unlock()

	if !started {
		return RawFrame{}, &AcquisitionError{Status: StatusAbort, Err: errors.New("fake device not started")}
	}

	if d.cfg.Stall {
		<-interrupt
		return RawFrame{}, errFakeInterrupted
	}

	if d.cfg.FailAfter > 0 && d.frames.Load() >= int64(d.cfg.FailAfter) {
		return RawFrame{}, &AcquisitionError{Status: StatusDeviceLost}
	}

	if d.cfg.FPS > 0 {
		period := time.Second / time.Duration(d.cfg.FPS)
		if wait := period - time.Since(d.last); wait > 0 {
			select {
			case <-time.After(wait):
			case <-interrupt:
				return RawFrame{}, errFakeInterrupted
			}
		}
		d.last = time.Now()
	}

	n := d.frames.Add(1)
	return RawFrame{
		Data:   d.pattern(byte(n)),
		Width:  d.cfg.Width,
		Height: d.cfg.Height,
		Stride: d.cfg.Stride,
		Format: d.cfg.Format,
	}, nil
}

func (d *FakeDevice) pattern(n byte) []byte {
	bpp := d.cfg.Format.BytesPerPixel()
	buf := make([]byte, d.cfg.Stride*d.cfg.Height)
	for y := 0; y < d.cfg.Height; y++ {
		row := buf[y*d.cfg.Stride:]
		for x := 0; x < d.cfg.Width; x++ {
			px := row[x*bpp : x*bpp+bpp]
			px[0] = byte(x)
			if bpp == 3 {
				px[1] = byte(y)
				px[2] = n
			}
		}
	}
	return buf
}

// Interrupt unblocks reads that are stalled or pacing.
func (d *FakeDevice) Interrupt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.interrupt:
	default:
		close(d.interrupt)
	}
}

// Close interrupts pending reads and marks the device closed.
func (d *FakeDevice) Close() error {
	d.Interrupt()
	d.closes.Add(1)
	return nil
}

// Reads returns how many reads were attempted.
func (d *FakeDevice) Reads() int64 { return d.reads.Load() }

// Frames returns how many frames were delivered.
func (d *FakeDevice) Frames() int64 { return d.frames.Load() }

// Closes returns how many times Close was called.
func (d *FakeDevice) Closes() int64 { return d.closes.Load() }
