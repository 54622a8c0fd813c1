package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables read by ApplyEnv.
const (
	EnvCameraName    = "CAMERA_NAME"
	EnvCameraInfoURL = "CAMERA_INFO_URL"
	EnvCameraDevice  = "CAMERA_DEVICE"
	EnvZenohEndpoint = "ZENOH_ENDPOINT"
	EnvStatusPort    = "STATUS_PORT"
	EnvLogLevel      = "LOG_LEVEL"
)

// ApplyEnv overrides fields from the environment. Unset variables leave
// the field alone.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str(EnvCameraName, &c.Calibration.CameraName)
	str(EnvCameraDevice, &c.Device.Descriptor)
	str(EnvZenohEndpoint, &c.Zenoh.Endpoint)
	str(EnvLogLevel, &c.LogLevel)

	// An empty URL is meaningful: it selects the default location.
	if v, ok := lookup(EnvCameraInfoURL); ok {
		c.Calibration.URL = v
	}

	if v, ok := lookup(EnvStatusPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStatusPort, err)
		}
		c.Web.Port = port
	}
	return nil
}
