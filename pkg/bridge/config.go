// Package bridge runs the acquisition loop: wait for a frame, convert,
// crop and scale it, then publish the image followed by its camera info.
package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-camera-bridge/pkg/msgs"
)

// Config holds publisher loop settings.
type Config struct {
	// FrameID is stamped into every header.
	FrameID string `yaml:"frame_id" json:"frame_id"`

	// WaitTimeout bounds a single wait for a frame.
	WaitTimeout time.Duration `yaml:"wait_timeout" json:"wait_timeout"`

	// TimeoutRetries is how many consecutive timeouts are tolerated.
	// 0 makes the first timeout fatal.
	TimeoutRetries int `yaml:"timeout_retries" json:"timeout_retries"`

	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FrameID:        "camera",
		WaitTimeout:    10 * time.Second,
		TimeoutRetries: 0,
		RetryBackoff:   500 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.FrameID == "" {
		errs = append(errs, fmt.Errorf("frame_id is required"))
	}
	if len(c.FrameID) > msgs.MaxStringLen {
		errs = append(errs, fmt.Errorf("frame_id must be at most %d bytes, got %d", msgs.MaxStringLen, len(c.FrameID)))
	}
	if c.WaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("wait_timeout must be positive, got %s", c.WaitTimeout))
	}
	if c.TimeoutRetries < 0 {
		errs = append(errs, fmt.Errorf("timeout_retries must be non-negative, got %d", c.TimeoutRetries))
	}
	if c.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("retry_backoff must be non-negative, got %s", c.RetryBackoff))
	}
	return errors.Join(errs...)
}
