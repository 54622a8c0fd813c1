// Package config assembles camera-bridge configuration from defaults, an
// optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-camera-bridge/pkg/bridge"
	"github.com/teslashibe/go-camera-bridge/pkg/imageproc"
	"github.com/teslashibe/go-camera-bridge/pkg/web"
	"github.com/teslashibe/go-camera-bridge/pkg/zenohclient"
)

// DefaultDevice is the first OpenCV capture device.
const DefaultDevice = "0"

// DeviceConfig selects the capture device.
type DeviceConfig struct {
	// Descriptor is a device index, a video URL, or fake://?width=...
	Descriptor string `yaml:"descriptor" json:"descriptor"`

	// StopGrace bounds how long Stop waits for an in-flight read.
	StopGrace time.Duration `yaml:"stop_grace" json:"stop_grace"`

	// AllowPadded lets the converter compact padded rows instead of failing.
	AllowPadded bool `yaml:"allow_padded" json:"allow_padded"`
}

// CalibrationConfig names the camera and where its calibration lives.
type CalibrationConfig struct {
	CameraName string `yaml:"camera_name" json:"camera_name"`

	// URL is file:///..., package://..., or empty for the default
	// ${ROS_HOME}/camera_info/${NAME}.yaml.
	URL string `yaml:"url" json:"url"`

	// ROSHome overrides $ROS_HOME when set.
	ROSHome string `yaml:"ros_home" json:"ros_home"`
}

// Config is the complete bridge configuration.
type Config struct {
	Device      DeviceConfig       `yaml:"device" json:"device"`
	Calibration CalibrationConfig  `yaml:"calibration" json:"calibration"`
	Image       imageproc.Config   `yaml:"image" json:"image"`
	Bridge      bridge.Config      `yaml:"bridge" json:"bridge"`
	Zenoh       zenohclient.Config `yaml:"zenoh" json:"zenoh"`
	Web         web.Config         `yaml:"web" json:"web"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// Echo subscribes to the image topic and logs every received image.
	Echo bool `yaml:"echo" json:"echo"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			Descriptor: DefaultDevice,
			StopGrace:  2 * time.Second,
		},
		Calibration: CalibrationConfig{
			CameraName: "camera",
		},
		Image:    imageproc.DefaultConfig(),
		Bridge:   bridge.DefaultConfig(),
		Zenoh:    zenohclient.DefaultConfig(),
		Web:      web.DefaultConfig(),
		LogLevel: "info",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Device.Descriptor == "" {
		errs = append(errs, errors.New("device.descriptor is required"))
	}
	if c.Device.StopGrace < 0 {
		errs = append(errs, fmt.Errorf("device.stop_grace must be non-negative, got %s", c.Device.StopGrace))
	}
	if c.Calibration.CameraName == "" {
		errs = append(errs, errors.New("calibration.camera_name is required"))
	}

	for _, section := range []struct {
		name string
		err  error
	}{
		{"image", c.Image.Validate()},
		{"bridge", c.Bridge.Validate()},
		{"zenoh", c.Zenoh.Validate()},
		{"web", c.Web.Validate()},
	} {
		if section.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section.name, section.err))
		}
	}
	return errors.Join(errs...)
}
