package acquisition

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func startedSession(t *testing.T, cfg FakeConfig) (*Session, *FakeDevice) {
	t.Helper()
	dev := NewFakeDevice(cfg, nil)
	s := NewSession(dev, WithStopGrace(time.Second))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s, dev
}

func TestOpen_Fake(t *testing.T) {
	s, err := Open("fake://?width=4&height=2")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Stop()

	w, h := s.Size()
	if w != 4 || h != 2 {
		t.Errorf("Size: expected 4x2, got %dx%d", w, h)
	}
	if s.Descriptor() != "fake://?width=4&height=2" {
		t.Errorf("Descriptor: got %q", s.Descriptor())
	}
}

func TestOpen_BadDescriptor(t *testing.T) {
	tests := []string{
		"fake://?width=abc",
		"fake://?width=0",
		"fake://?stall=maybe",
		"fake://?format=yuv422",
		"fake://?width=4&height=2&stride=6",
		"fake://?width=4&height=2&format=mono8&stride=3",
	}

	for _, desc := range tests {
		t.Run(desc, func(t *testing.T) {
			_, err := Open(desc)
			if !errors.Is(err, ErrDeviceOpenFailed) {
				t.Errorf("Expected ErrDeviceOpenFailed, got %v", err)
			}
		})
	}
}

func TestFakeDevice_ShortStrideUsesRowWidth(t *testing.T) {
	s, _ := startedSession(t, FakeConfig{Width: 4, Height: 2, Stride: 6})

	frame, err := s.WaitForFrame(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("WaitForFrame failed: %v", err)
	}
	if frame.Stride != 12 {
		t.Errorf("Expected stride 12, got %d", frame.Stride)
	}
	data, err := frame.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if len(data) != 24 {
		t.Errorf("Expected 24 bytes, got %d", len(data))
	}
}

func TestOpen_PaddedStride(t *testing.T) {
	s, err := Open("fake://?width=4&height=2&stride=16")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Stop()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	frame, err := s.WaitForFrame(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("WaitForFrame failed: %v", err)
	}
	if frame.Stride != 16 {
		t.Errorf("Expected stride 16, got %d", frame.Stride)
	}
}

func TestStart_Failure(t *testing.T) {
	cfg := DefaultFakeConfig()
	cfg.StartErr = errors.New("no stream")
	s := NewSession(NewFakeDevice(cfg, nil))
	defer s.Stop()

	err := s.Start(context.Background())
	if !errors.Is(err, ErrStreamStartFailed) {
		t.Errorf("Expected ErrStreamStartFailed, got %v", err)
	}
}

func TestWaitForFrame_NotStarted(t *testing.T) {
	s := NewSession(NewFakeDevice(DefaultFakeConfig(), nil))
	defer s.Stop()

	if _, err := s.WaitForFrame(context.Background(), time.Second); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted, got %v", err)
	}
}

func TestWaitForFrame_DeliversPattern(t *testing.T) {
	s, _ := startedSession(t, FakeConfig{Width: 4, Height: 3})

	frame, err := s.WaitForFrame(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("WaitForFrame failed: %v", err)
	}

	if frame.Width != 4 || frame.Height != 3 || frame.Stride != 12 || frame.Format != FormatRGB8 {
		t.Errorf("Unexpected geometry: %+v", frame)
	}
	if frame.Seq != 1 {
		t.Errorf("Seq: expected 1, got %d", frame.Seq)
	}

	buf, err := frame.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	// pixel (2, 1)
	px := buf[1*12+2*3:]
	if px[0] != 2 || px[1] != 1 || px[2] != 1 {
		t.Errorf("Pixel (2,1): got %v", px[:3])
	}
}

func TestWaitForFrame_LeaseEndsOnNextWait(t *testing.T) {
	s, _ := startedSession(t, FakeConfig{Width: 2, Height: 2})

	first, err := s.WaitForFrame(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("WaitForFrame failed: %v", err)
	}

	second, err := s.WaitForFrame(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("WaitForFrame failed: %v", err)
	}

	if !first.Released() {
		t.Error("First frame still leased after the next wait")
	}
	if _, err := first.Bytes(); !errors.Is(err, ErrFrameReleased) {
		t.Errorf("Expected ErrFrameReleased, got %v", err)
	}
	if second.Seq != 2 {
		t.Errorf("Seq: expected 2, got %d", second.Seq)
	}
	if _, err := second.Bytes(); err != nil {
		t.Errorf("Current frame unreadable: %v", err)
	}
}

func TestWaitForFrame_Timeout(t *testing.T) {
	s, dev := startedSession(t, FakeConfig{Width: 2, Height: 2, Stall: true})

	for i := 0; i < 2; i++ {
		_, err := s.WaitForFrame(context.Background(), 20*time.Millisecond)
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("Expected ErrTimeout, got %v", err)
		}

		var acqErr *AcquisitionError
		if !errors.As(err, &acqErr) || acqErr.Status != StatusTimeout {
			t.Fatalf("Expected AcquisitionError with StatusTimeout, got %v", err)
		}
	}

	if dev.Reads() != 1 {
		t.Errorf("Pending read should be reused after timeout, got %d reads", dev.Reads())
	}
}

func TestWaitForFrame_DeviceLost(t *testing.T) {
	s, _ := startedSession(t, FakeConfig{Width: 2, Height: 2, FailAfter: 1})

	if _, err := s.WaitForFrame(context.Background(), time.Second); err != nil {
		t.Fatalf("First wait failed: %v", err)
	}

	_, err := s.WaitForFrame(context.Background(), time.Second)
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("Expected AcquisitionError, got %v", err)
	}
	if acqErr.Status != StatusDeviceLost {
		t.Errorf("Status: expected device_lost, got %s", acqErr.Status)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("Device fault must not match ErrTimeout")
	}
}

func TestWaitForFrame_ContextCancelled(t *testing.T) {
	s, _ := startedSession(t, FakeConfig{Width: 2, Height: 2, Stall: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.WaitForFrame(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestStop_Idempotent(t *testing.T) {
	dev := NewFakeDevice(FakeConfig{Width: 2, Height: 2}, nil)
	s := NewSession(dev)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	frame, err := s.WaitForFrame(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("WaitForFrame failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.Stop(); err != nil {
			t.Errorf("Stop %d failed: %v", i, err)
		}
	}

	if dev.Closes() != 1 {
		t.Errorf("Expected one device close, got %d", dev.Closes())
	}
	if !frame.Released() {
		t.Error("Outstanding lease not ended by Stop")
	}
	if _, err := s.WaitForFrame(context.Background(), time.Second); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
}

func TestStop_InterruptsStalledRead(t *testing.T) {
	dev := NewFakeDevice(FakeConfig{Width: 2, Height: 2, Stall: true}, nil)
	s := NewSession(dev, WithStopGrace(time.Second))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := s.WaitForFrame(context.Background(), 10*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a stalled read")
	}

	if dev.Closes() != 1 {
		t.Errorf("Expected one device close, got %d", dev.Closes())
	}
}

func TestAcquisitionError_Is(t *testing.T) {
	tests := []struct {
		status      WaitStatus
		wantTimeout bool
	}{
		{StatusTimeout, true},
		{StatusAbort, false},
		{StatusDeviceLost, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			err := error(&AcquisitionError{Status: tt.status})
			if !errors.Is(err, ErrAcquisitionFailed) {
				t.Error("Expected match on ErrAcquisitionFailed")
			}
			if errors.Is(err, ErrTimeout) != tt.wantTimeout {
				t.Errorf("errors.Is(ErrTimeout) = %v, want %v", !tt.wantTimeout, tt.wantTimeout)
			}
		})
	}
}

func TestSchemes(t *testing.T) {
	found := false
	for _, s := range Schemes() {
		if s == "fake" {
			found = true
		}
	}
	if !found {
		t.Error("fake scheme not registered")
	}
}

func TestRegister_RoutesScheme(t *testing.T) {
	var got string
	Register("Bench", func(descriptor string, logger *slog.Logger) (Device, error) {
		got = descriptor
		return NewFakeDevice(FakeConfig{Width: 8, Height: 4}, logger), nil
	})

	s, err := Open("bench://rig-a")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Stop()

	if got != "bench://rig-a" {
		t.Errorf("Creator saw %q", got)
	}
	if w, h := s.Size(); w != 8 || h != 4 {
		t.Errorf("Expected 8x4, got %dx%d", w, h)
	}

	found := false
	for _, scheme := range Schemes() {
		if scheme == "bench" {
			found = true
		}
	}
	if !found {
		t.Error("Registered scheme should be listed lowercased")
	}
}
