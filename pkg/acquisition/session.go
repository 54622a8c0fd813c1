package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultStopGrace is how long Stop waits for a pending read to return
// before closing the device in the background.
const DefaultStopGrace = 2 * time.Second

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStopGrace overrides DefaultStopGrace.
func WithStopGrace(d time.Duration) Option {
	return func(s *Session) {
		s.stopGrace = d
	}
}

type readResult struct {
	frame RawFrame
	err   error
}

// pendingRead is one in-flight device read. done closes after the result
// is buffered, so Stop can wait for the read without consuming it.
type pendingRead struct {
	result chan readResult
	done   chan struct{}
}

// Session owns a device and hands out one frame at a time. Each frame's
// buffer is leased until the next WaitForFrame or Stop.
type Session struct {
	dev        Device
	descriptor string
	logger     *slog.Logger
	stopGrace  time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	seq     uint64
	lease   *Lease
	pending *pendingRead

	stopCh   chan struct{}
	stopOnce sync.Once
	stopErr  error
}

func newSession(opts ...Option) *Session {
	s := &Session{
		logger:    slog.Default(),
		stopGrace: DefaultStopGrace,
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession wraps an already open device.
func NewSession(dev Device, opts ...Option) *Session {
	s := newSession(opts...)
	s.dev = dev
	return s
}

// Descriptor returns the string the device was opened with.
func (s *Session) Descriptor() string {
	return s.descriptor
}

// Size returns the device frame dimensions.
func (s *Session) Size() (width, height int) {
	return s.dev.Size()
}

// Start begins streaming.
func (s *Session) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamStartFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("%w: %w", ErrStreamStartFailed, ErrStopped)
	}
	if s.started {
		return nil
	}

	if err := s.dev.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamStartFailed, err)
	}
	s.started = true

	s.logger.Debug("camera stream started", "device", s.descriptor)
	return nil
}

// WaitForFrame blocks until the next frame, the timeout, ctx cancellation
// or Stop. The previous frame's lease ends on entry.
//
// A timeout returns an *AcquisitionError with StatusTimeout. The read it
// gave up on stays pending and is picked up by the next call.
func (s *Session) WaitForFrame(ctx context.Context, timeout time.Duration) (*Frame, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	if !s.started {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	if s.lease != nil {
		s.lease.Release()
		s.lease = nil
	}
	pending := s.pending
	if pending == nil {
		pending = &pendingRead{
			result: make(chan readResult, 1),
			done:   make(chan struct{}),
		}
		s.pending = pending
		go s.read(pending)
	}
	s.mu.Unlock()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case res := <-pending.result:
		return s.deliver(res)
	case <-timer:
		return nil, &AcquisitionError{Status: StatusTimeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stopCh:
		return nil, &AcquisitionError{Status: StatusAbort, Err: ErrStopped}
	}
}

func (s *Session) read(p *pendingRead) {
	frame, err := s.dev.Read()
	p.result <- readResult{frame: frame, err: err}
	close(p.done)
}

func (s *Session) deliver(res readResult) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil

	if res.err != nil {
		var acqErr *AcquisitionError
		if errors.As(res.err, &acqErr) {
			return nil, res.err
		}
		if s.stopped {
			return nil, &AcquisitionError{Status: StatusAbort, Err: res.err}
		}
		return nil, &AcquisitionError{Status: StatusDeviceLost, Err: res.err}
	}
	if s.stopped {
		return nil, &AcquisitionError{Status: StatusAbort, Err: ErrStopped}
	}

	s.seq++
	frame, lease := NewFrame(res.frame.Data, res.frame.Width, res.frame.Height, res.frame.Stride, res.frame.Format, s.seq)
	s.lease = lease
	return frame, nil
}

// Stop ends any outstanding lease and releases the device. Only the first
// call does any work; later calls return the first call's result.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)

		s.mu.Lock()
		s.stopped = true
		if s.lease != nil {
			s.lease.Release()
			s.lease = nil
		}
		pending := s.pending
		frames := s.seq
		s.mu.Unlock()

		s.stopErr = s.closeDevice(pending)
		s.logger.Debug("camera stopped", "device", s.descriptor, "frames", frames)
	})
	return s.stopErr
}

// closeDevice closes the device once no read is in flight. A read that does
// not return within the grace period is left to finish in the background.
func (s *Session) closeDevice(pending *pendingRead) error {
	if pending == nil {
		return s.dev.Close()
	}

	if in, ok := s.dev.(Interrupter); ok {
		in.Interrupt()
	}

	select {
	case <-pending.done:
		return s.dev.Close()
	case <-time.After(s.stopGrace):
		s.logger.Warn("camera read still pending at stop, closing in background", "device", s.descriptor)
		go func() {
			<-pending.done
			if err := s.dev.Close(); err != nil {
				s.logger.Warn("background camera close failed", "device", s.descriptor, "error", err)
			}
		}()
		return nil
	}
}
