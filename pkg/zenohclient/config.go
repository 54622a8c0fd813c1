// Package zenohclient publishes camera images and calibration over Zenoh.
//
// This package handles:
//   - Session management with retry on connect
//   - Header assignment shared by an image and its camera info
//   - Image and camera info encoding on their key expressions
//   - Image subscription for diagnostics
package zenohclient

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds Zenoh client configuration.
type Config struct {
	// Endpoint is the Zenoh router endpoint.
	// Examples: "tcp/localhost:7447", "tcp/192.168.68.83:7447"
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Mode is the Zenoh session mode.
	// Options: "client", "peer"
	Mode string `yaml:"mode" json:"mode"`

	// Prefix is the key expression prefix for both topics.
	// Default: "jai_camera"
	Prefix string `yaml:"prefix" json:"prefix"`

	// ImageTopic is appended to Prefix for images.
	ImageTopic string `yaml:"image_topic" json:"image_topic"`

	// CameraInfoTopic is appended to Prefix for calibration.
	CameraInfoTopic string `yaml:"camera_info_topic" json:"camera_info_topic"`

	// ReconnectInterval is the wait between connection attempts.
	ReconnectInterval time.Duration `yaml:"reconnect_interval" json:"reconnect_interval"`

	// MaxReconnectAttempts caps connection attempts. 0 means unlimited.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:             "tcp/localhost:7447",
		Mode:                 "client",
		Prefix:               "jai_camera",
		ImageTopic:           TopicImageRaw,
		CameraInfoTopic:      TopicCameraInfo,
		ReconnectInterval:    2 * time.Second,
		MaxReconnectAttempts: 5,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Mode != "client" && c.Mode != "peer" {
		errs = append(errs, fmt.Errorf("mode must be 'client' or 'peer', got '%s'", c.Mode))
	}
	if c.Mode == "client" && c.Endpoint == "" {
		errs = append(errs, fmt.Errorf("endpoint is required in client mode"))
	}
	for _, k := range []struct{ name, value string }{
		{"prefix", c.Prefix},
		{"image_topic", c.ImageTopic},
		{"camera_info_topic", c.CameraInfoTopic},
	} {
		if err := checkKeyExpr(k.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k.name, err))
		}
	}
	if c.ImageTopic != "" && c.ImageTopic == c.CameraInfoTopic {
		errs = append(errs, fmt.Errorf("image_topic and camera_info_topic must differ"))
	}
	if c.ReconnectInterval < 0 {
		errs = append(errs, fmt.Errorf("reconnect_interval must be non-negative"))
	}
	return errors.Join(errs...)
}

func checkKeyExpr(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("key expression is required")
	case strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/"):
		return fmt.Errorf("key expression %q must not start or end with '/'", s)
	case strings.Contains(s, "//"):
		return fmt.Errorf("key expression %q has an empty chunk", s)
	case strings.ContainsAny(s, "*$?#"):
		return fmt.Errorf("key expression %q must not contain wildcards", s)
	}
	return nil
}
