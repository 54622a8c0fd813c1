// camera-bridge acquires frames from a camera, crops and scales them, and
// publishes each image with its calibration over Zenoh.
//
// Usage:
//
//	go run ./cmd/camera-bridge -device 0 -camera-name cam0 \
//	    -camera-info-url file:///etc/camera/cam0.yaml
//
// Without OpenCV, build with -tags nocv and use a synthetic device:
//
//	go run -tags nocv ./cmd/camera-bridge -device 'fake://?width=1936&height=1216&fps=30'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/teslashibe/go-camera-bridge/internal/config"
	"github.com/teslashibe/go-camera-bridge/internal/log"
	"github.com/teslashibe/go-camera-bridge/pkg/acquisition"
	"github.com/teslashibe/go-camera-bridge/pkg/bridge"
	"github.com/teslashibe/go-camera-bridge/pkg/calibration"
	"github.com/teslashibe/go-camera-bridge/pkg/convert"
	"github.com/teslashibe/go-camera-bridge/pkg/imageproc"
	"github.com/teslashibe/go-camera-bridge/pkg/msgs"
	"github.com/teslashibe/go-camera-bridge/pkg/web"
	"github.com/teslashibe/go-camera-bridge/pkg/zenohclient"
)

var (
	configPath    = flag.String("config", "", "YAML config file")
	device        = flag.String("device", config.DefaultDevice, "Capture device index, video URL or fake://")
	cameraName    = flag.String("camera-name", "camera", "Camera name used for calibration lookup")
	cameraInfoURL = flag.String("camera-info-url", "", "Calibration URL (file:// or package://); empty uses ROS_HOME")
	frameID       = flag.String("frame-id", "camera", "frame_id stamped on every header")
	scale         = flag.Float64("scale", 1.0, "Output scale factor applied after cropping")
	endpoint      = flag.String("endpoint", "tcp/localhost:7447", "Zenoh endpoint")
	prefix        = flag.String("prefix", "jai_camera", "Zenoh topic prefix")
	statusPort    = flag.Int("status-port", 8080, "Status server port, 0 disables")
	logLevel      = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	echo          = flag.Bool("echo", false, "Subscribe to the image topic and log received images")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.L().Error("camera bridge failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	// Flags given explicitly win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device.Descriptor = *device
		case "camera-name":
			cfg.Calibration.CameraName = *cameraName
		case "camera-info-url":
			cfg.Calibration.URL = *cameraInfoURL
		case "frame-id":
			cfg.Bridge.FrameID = *frameID
		case "scale":
			cfg.Image.Scale = *scale
		case "endpoint":
			cfg.Zenoh.Endpoint = *endpoint
		case "prefix":
			cfg.Zenoh.Prefix = *prefix
		case "status-port":
			cfg.Web.Port = *statusPort
		case "log-level":
			cfg.LogLevel = *logLevel
		case "echo":
			cfg.Echo = *echo
		}
	})

	return cfg, cfg.Validate()
}

func run() error {
	cfg, err := loadConfig()
	log.Init(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	runID := uuid.New().String()
	logger := log.With("run_id", runID, "device", cfg.Device.Descriptor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := calibration.NewStore(
		calibration.WithLogger(logger),
		calibration.WithROSHome(cfg.Calibration.ROSHome),
	)
	rec := store.Setup(cfg.Calibration.CameraName, cfg.Calibration.URL)
	logger.Info("calibration ready",
		"camera_name", rec.CameraName,
		"url", rec.URL,
		"calibrated", rec.Calibrated,
	)

	proc, err := imageproc.New(cfg.Image)
	if err != nil {
		return err
	}
	outW, outH := proc.OutputSize()
	logger.Info("image pipeline configured",
		"crop", proc.Config().Crop.String(),
		"scale", proc.Config().Scale,
		"output_width", outW,
		"output_height", outH,
		"backend", proc.Backend(),
	)

	client, err := zenohclient.New(cfg.Zenoh, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.ConnectWithRetry(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("zenoh: %w", err)
	}
	publisher := client.NewCameraPublisher()

	if cfg.Echo {
		sub, err := client.SubscribeImages(func(img *msgs.Image) {
			logger.Info("received an image",
				"frame_seq", img.Header.Seq,
				"width", img.Width,
				"height", img.Height,
			)
		})
		if err != nil {
			return fmt.Errorf("echo subscriber: %w", err)
		}
		defer sub.Close()
	}

	session, err := acquisition.Open(cfg.Device.Descriptor,
		acquisition.WithLogger(logger),
		acquisition.WithStopGrace(cfg.Device.StopGrace),
	)
	if err != nil {
		return err
	}

	b, err := bridge.New(cfg.Bridge, bridge.Deps{
		Camera:      session,
		Converter:   convert.New(convert.Options{AllowPadded: cfg.Device.AllowPadded}),
		Processor:   proc,
		Calibration: store,
		Publisher:   publisher,
	}, logger)
	if err != nil {
		stopCamera(session, logger)
		return err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	webErr := make(chan error, 1)
	if cfg.Web.Enabled() {
		srv := web.NewServer(cfg.Web, runID, cfg.Device.Descriptor, web.Sources{
			Bridge:      b.Stats,
			Calibration: store.Calibration,
			Transport:   client.Stats,
			Publisher:   publisher.Stats,
		}, logger)
		b.OnPublished(srv.PublishEvent)

		go func() {
			if err := srv.ListenAndServe(runCtx); err != nil {
				webErr <- err
				cancelRun()
			}
		}()
	}

	logger.Info("camera bridge running",
		"image_topic", client.Topics().ImageRaw(),
		"camera_info_topic", client.Topics().CameraInfo(),
	)

	if err := b.Run(runCtx); err != nil {
		return err
	}

	st := b.Stats()
	logger.Info("camera bridge stopped",
		"frames_published", st.FramesPublished,
		"publish_errors", st.PublishErrors,
		"uptime", st.Uptime,
	)

	select {
	case err := <-webErr:
		return fmt.Errorf("status server: %w", err)
	default:
	}
	return nil
}

// stopCamera stops a camera the bridge never took ownership of.
func stopCamera(cam interface{ Stop() error }, logger *slog.Logger) {
	if err := cam.Stop(); err != nil {
		logger.Warn("camera stop failed", "error", err)
	}
}
