package zenohclient

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-camera-bridge/pkg/msgs"
)

// Putter sends a payload on a key expression. *Client implements it.
type Putter interface {
	Put(topic string, payload []byte) error
}

// CameraPublisher assigns headers and publishes images and camera info on
// their topics.
type CameraPublisher struct {
	out    Putter
	topics *Topics
	logger *slog.Logger
	now    func() time.Time

	seq atomic.Uint32

	imagesSent atomic.Int64
	infosSent  atomic.Int64
	failures   atomic.Int64
}

// PublisherOption configures a CameraPublisher.
type PublisherOption func(*CameraPublisher)

// WithClock replaces time.Now for header stamps.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *CameraPublisher) {
		p.now = now
	}
}

// NewCameraPublisher publishes through out on the given topics.
func NewCameraPublisher(out Putter, topics *Topics, logger *slog.Logger, opts ...PublisherOption) *CameraPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &CameraPublisher{
		out:    out,
		topics: topics,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewCameraPublisher publishes on the client's topics.
func (c *Client) NewCameraPublisher(opts ...PublisherOption) *CameraPublisher {
	return NewCameraPublisher(c, c.topics, c.logger, opts...)
}

// NewHeader returns the next header. Sequence numbers start at 0 and the
// stamp is taken now; callers share one header between an image and its
// camera info.
func (p *CameraPublisher) NewHeader(frameID string) msgs.Header {
	return msgs.Header{
		Seq:     p.seq.Add(1) - 1,
		Stamp:   p.now(),
		FrameID: frameID,
	}
}

// PublishImage encodes and sends img on the image topic.
func (p *CameraPublisher) PublishImage(img *msgs.Image) error {
	if err := img.Validate(); err != nil {
		p.failures.Add(1)
		return err
	}
	if err := p.out.Put(p.topics.ImageRaw(), img.Encode()); err != nil {
		p.failures.Add(1)
		return err
	}
	p.imagesSent.Add(1)
	return nil
}

// PublishCameraInfo encodes and sends info on the camera info topic.
func (p *CameraPublisher) PublishCameraInfo(info *msgs.CameraInfo) error {
	data, err := info.Encode()
	if err != nil {
		p.failures.Add(1)
		return err
	}
	if err := p.out.Put(p.topics.CameraInfo(), data); err != nil {
		p.failures.Add(1)
		return fmt.Errorf("camera info: %w", err)
	}
	p.infosSent.Add(1)
	return nil
}

// Stats returns publisher statistics.
func (p *CameraPublisher) Stats() PublisherStats {
	return PublisherStats{
		ImagesSent:      p.imagesSent.Load(),
		CameraInfosSent: p.infosSent.Load(),
		Failures:        p.failures.Load(),
	}
}

// PublisherStats contains publisher statistics.
type PublisherStats struct {
	ImagesSent      int64 `json:"images_sent"`
	CameraInfosSent int64 `json:"camera_infos_sent"`
	Failures        int64 `json:"failures"`
}
