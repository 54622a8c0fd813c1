package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.Device.Descriptor != "0" {
		t.Errorf("Expected device 0, got %q", cfg.Device.Descriptor)
	}
	if cfg.Bridge.FrameID != "camera" {
		t.Errorf("Expected frame_id camera, got %q", cfg.Bridge.FrameID)
	}
	if cfg.Zenoh.Prefix != "jai_camera" {
		t.Errorf("Expected prefix jai_camera, got %q", cfg.Zenoh.Prefix)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	content := `
device:
  descriptor: "fake://?width=1936&height=1216"
calibration:
  camera_name: cam0
  url: file:///tmp/cam0.yaml
image:
  crop: {x: 195, y: 0, width: 1546, height: 1216}
  scale: 0.5
  interpolation: area
bridge:
  wait_timeout: 3s
  timeout_retries: 2
zenoh:
  prefix: lab/jai
web:
  port: 0
echo: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Loaded config invalid: %v", err)
	}

	if cfg.Device.Descriptor != "fake://?width=1936&height=1216" {
		t.Errorf("descriptor = %q", cfg.Device.Descriptor)
	}
	if cfg.Calibration.CameraName != "cam0" {
		t.Errorf("camera_name = %q", cfg.Calibration.CameraName)
	}
	if cfg.Image.Scale != 0.5 || cfg.Image.Interpolation != "area" {
		t.Errorf("image = %+v", cfg.Image)
	}
	if cfg.Bridge.WaitTimeout != 3*time.Second || cfg.Bridge.TimeoutRetries != 2 {
		t.Errorf("bridge = %+v", cfg.Bridge)
	}
	if cfg.Zenoh.Prefix != "lab/jai" {
		t.Errorf("prefix = %q", cfg.Zenoh.Prefix)
	}
	if cfg.Web.Enabled() {
		t.Error("web should be disabled by port 0")
	}
	if !cfg.Echo {
		t.Error("echo should be set")
	}

	// Fields absent from the file keep their defaults.
	if cfg.Bridge.FrameID != "camera" {
		t.Errorf("frame_id = %q, want default", cfg.Bridge.FrameID)
	}
	if cfg.Zenoh.ImageTopic != "image_raw" {
		t.Errorf("image_topic = %q, want default", cfg.Zenoh.ImageTopic)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("device: [unterminated"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("Expected parse error")
	}

	cfg, err := Load("")
	if err != nil || cfg.Device.Descriptor != DefaultDevice {
		t.Errorf("Load(\"\") = %+v, %v", cfg.Device, err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvCameraName:    "cam0",
		EnvCameraInfoURL: "",
		EnvCameraDevice:  "2",
		EnvZenohEndpoint: "tcp/10.0.0.5:7447",
		EnvStatusPort:    "9090",
		EnvLogLevel:      "debug",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.Calibration.URL = "file:///from/file.yaml"
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}

	if cfg.Calibration.CameraName != "cam0" {
		t.Errorf("camera_name = %q", cfg.Calibration.CameraName)
	}
	if cfg.Calibration.URL != "" {
		t.Errorf("An empty CAMERA_INFO_URL should clear the url, got %q", cfg.Calibration.URL)
	}
	if cfg.Device.Descriptor != "2" || cfg.Zenoh.Endpoint != "tcp/10.0.0.5:7447" {
		t.Errorf("device/endpoint = %q/%q", cfg.Device.Descriptor, cfg.Zenoh.Endpoint)
	}
	if cfg.Web.Port != 9090 || cfg.LogLevel != "debug" {
		t.Errorf("port/level = %d/%q", cfg.Web.Port, cfg.LogLevel)
	}
}

func TestApplyEnv_BadPort(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == EnvStatusPort {
			return "eighty", true
		}
		return "", false
	})
	if err == nil || !strings.Contains(err.Error(), EnvStatusPort) {
		t.Errorf("Expected STATUS_PORT error, got %v", err)
	}
}

func TestValidate_Aggregates(t *testing.T) {
	cfg := Default()
	cfg.Device.Descriptor = ""
	cfg.Image.Scale = 0
	cfg.Bridge.WaitTimeout = 0
	cfg.Zenoh.Mode = "router"
	cfg.Web.Port = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"device.descriptor", "image:", "bridge:", "zenoh:", "web:"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Error missing %q: %v", want, err)
		}
	}
}
