package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-camera-bridge/pkg/acquisition"
	"github.com/teslashibe/go-camera-bridge/pkg/calibration"
	"github.com/teslashibe/go-camera-bridge/pkg/msgs"
)

// ErrAlreadyRan is returned when Run is called twice.
var ErrAlreadyRan = errors.New("bridge: already ran")

// Camera is the acquisition session the loop drives.
type Camera interface {
	Start(ctx context.Context) error
	WaitForFrame(ctx context.Context, timeout time.Duration) (*acquisition.Frame, error)
	Stop() error
	Size() (width, height int)
}

// Converter copies a leased frame into an owned image.
type Converter interface {
	ToImage(frame *acquisition.Frame) (*msgs.Image, error)
}

// Processor crops and scales images.
type Processor interface {
	CheckBounds(width, height int) error
	Process(img *msgs.Image) (*msgs.Image, error)
}

// CalibrationSource supplies the record attached to each camera info.
type CalibrationSource interface {
	Calibration() calibration.Record
}

// Publisher assigns headers and sends messages.
type Publisher interface {
	NewHeader(frameID string) msgs.Header
	PublishImage(img *msgs.Image) error
	PublishCameraInfo(info *msgs.CameraInfo) error
}

// Deps are the components the loop wires together.
type Deps struct {
	Camera      Camera
	Converter   Converter
	Processor   Processor
	Calibration CalibrationSource
	Publisher   Publisher
}

func (d *Deps) validate() error {
	switch {
	case d.Camera == nil:
		return errors.New("camera is required")
	case d.Converter == nil:
		return errors.New("converter is required")
	case d.Processor == nil:
		return errors.New("processor is required")
	case d.Calibration == nil:
		return errors.New("calibration source is required")
	case d.Publisher == nil:
		return errors.New("publisher is required")
	}
	return nil
}

// Event describes one published image and camera info pair.
type Event struct {
	Header     msgs.Header   `json:"header"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Calibrated bool          `json:"calibrated"`
	Latency    time.Duration `json:"latency"`
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Running         bool          `json:"running"`
	FramesAcquired  int64         `json:"frames_acquired"`
	FramesPublished int64         `json:"frames_published"`
	PublishErrors   int64         `json:"publish_errors"`
	TimeoutsRetried int64         `json:"timeouts_retried"`
	LastHeader      msgs.Header   `json:"last_header"`
	LastWidth       int           `json:"last_width"`
	LastHeight      int           `json:"last_height"`
	StartedAt       time.Time     `json:"started_at"`
	Uptime          time.Duration `json:"uptime"`
}

// Bridge is the publisher loop.
type Bridge struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	ran     atomic.Bool
	running atomic.Bool

	framesAcquired  atomic.Int64
	framesPublished atomic.Int64
	publishErrors   atomic.Int64
	timeoutsRetried atomic.Int64

	mu          sync.RWMutex
	startedAt   time.Time
	last        Event
	onPublished func(Event)
}

// New creates a bridge.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid deps: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}, nil
}

// OnPublished registers fn to run after every published pair. It runs on
// the loop goroutine and must not block.
func (b *Bridge) OnPublished(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPublished = fn
}

// Run starts the camera and publishes until ctx is cancelled (returns nil)
// or a fatal error occurs. The camera is stopped exactly once on return.
func (b *Bridge) Run(ctx context.Context) (err error) {
	if !b.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRan
	}

	b.mu.Lock()
	b.startedAt = time.Now()
	b.mu.Unlock()
	b.running.Store(true)

	defer func() {
		b.running.Store(false)
		if stopErr := b.deps.Camera.Stop(); stopErr != nil {
			b.logger.Warn("camera stop failed", "error", stopErr)
		}
		b.logger.Info("bridge stopped",
			"frames_acquired", b.framesAcquired.Load(),
			"frames_published", b.framesPublished.Load(),
			"publish_errors", b.publishErrors.Load(),
		)
	}()

	if err := b.deps.Camera.Start(ctx); err != nil {
		return err
	}

	w, h := b.deps.Camera.Size()
	if err := b.deps.Processor.CheckBounds(w, h); err != nil {
		return fmt.Errorf("startup check: %w", err)
	}

	b.logger.Info("bridge running",
		"source_width", w,
		"source_height", h,
		"frame_id", b.cfg.FrameID,
		"wait_timeout", b.cfg.WaitTimeout,
	)

	timeouts := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := b.deps.Camera.WaitForFrame(ctx, b.cfg.WaitTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, acquisition.ErrTimeout) && timeouts < b.cfg.TimeoutRetries {
				timeouts++
				b.timeoutsRetried.Add(1)
				backoff := b.cfg.RetryBackoff * time.Duration(timeouts)
				b.logger.Warn("frame wait timed out, retrying",
					"attempt", timeouts,
					"max_retries", b.cfg.TimeoutRetries,
					"retry_in", backoff,
				)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoff):
				}
				continue
			}
			return fmt.Errorf("wait for frame: %w", err)
		}
		timeouts = 0
		b.framesAcquired.Add(1)

		if err := b.step(frame); err != nil {
			return err
		}
	}
}

// step handles one frame. Only conversion and processing errors are
// returned; publish failures are counted and the frame is dropped.
func (b *Bridge) step(frame *acquisition.Frame) error {
	img, err := b.deps.Converter.ToImage(frame)
	if err != nil {
		return fmt.Errorf("convert frame %d: %w", frame.Seq, err)
	}

	out, err := b.deps.Processor.Process(img)
	if err != nil {
		return fmt.Errorf("process frame %d: %w", frame.Seq, err)
	}

	header := b.deps.Publisher.NewHeader(b.cfg.FrameID)
	out.Header = header

	rec := b.deps.Calibration.Calibration()
	info := rec.Info
	info.Header = header
	info.Width = out.Width
	info.Height = out.Height

	if err := b.deps.Publisher.PublishImage(out); err != nil {
		b.publishErrors.Add(1)
		b.logger.Warn("image publish failed, skipping camera info", "frame_seq", header.Seq, "error", err)
		return nil
	}
	if err := b.deps.Publisher.PublishCameraInfo(&info); err != nil {
		b.publishErrors.Add(1)
		b.logger.Warn("camera info publish failed", "frame_seq", header.Seq, "error", err)
		return nil
	}
	b.framesPublished.Add(1)

	ev := Event{
		Header:     header,
		Width:      out.Width,
		Height:     out.Height,
		Calibrated: rec.Calibrated,
		Latency:    time.Since(frame.Arrived),
	}

	b.mu.Lock()
	b.last = ev
	fn := b.onPublished
	b.mu.Unlock()

	b.logger.Debug("frame published", "frame_seq", header.Seq, "width", out.Width, "height", out.Height)
	if fn != nil {
		fn(ev)
	}
	return nil
}

// Stats returns a snapshot of the loop counters.
func (b *Bridge) Stats() Stats {
	b.mu.RLock()
	startedAt := b.startedAt
	last := b.last
	b.mu.RUnlock()

	s := Stats{
		Running:         b.running.Load(),
		FramesAcquired:  b.framesAcquired.Load(),
		FramesPublished: b.framesPublished.Load(),
		PublishErrors:   b.publishErrors.Load(),
		TimeoutsRetried: b.timeoutsRetried.Load(),
		LastHeader:      last.Header,
		LastWidth:       last.Width,
		LastHeight:      last.Height,
		StartedAt:       startedAt,
	}
	if !startedAt.IsZero() {
		s.Uptime = time.Since(startedAt)
	}
	return s
}
