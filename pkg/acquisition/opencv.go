//go:build !nocv

package acquisition

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// OpenCVDevice reads frames through gocv.VideoCapture. The descriptor is a
// device index, a device path, a file or a GStreamer pipeline (for GenICam
// cameras, an aravissrc pipeline ending in appsink).
type OpenCVDevice struct {
	descriptor string
	logger     *slog.Logger

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	raw    gocv.Mat
	rgb    gocv.Mat
	width  int
	height int
	closed bool
}

func init() {
	Register("gst", newGStreamerDevice)
}

// newOpenCVDevice opens a device index, path or URL with OpenCV's default
// backend selection.
func newOpenCVDevice(descriptor string, logger *slog.Logger) (Device, error) {
	var source interface{} = descriptor
	if idx, err := strconv.Atoi(descriptor); err == nil {
		source = idx
	}

	vc, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("open video capture: %w", err)
	}
	return newCaptureDevice(vc, descriptor, logger)
}

// newGStreamerDevice opens gst://<pipeline> through OpenCV's GStreamer
// backend. The pipeline must end in appsink.
func newGStreamerDevice(descriptor string, logger *slog.Logger) (Device, error) {
	_, pipeline, _ := strings.Cut(descriptor, "://")
	if strings.TrimSpace(pipeline) == "" {
		return nil, errors.New("empty gstreamer pipeline")
	}

	vc, err := gocv.OpenVideoCaptureWithAPI(pipeline, gocv.VideoCaptureGstreamer)
	if err != nil {
		return nil, fmt.Errorf("open gstreamer pipeline: %w", err)
	}
	return newCaptureDevice(vc, descriptor, logger)
}

func newCaptureDevice(vc *gocv.VideoCapture, descriptor string, logger *slog.Logger) (Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video capture %q not opened", descriptor)
	}

	d := &OpenCVDevice{
		descriptor: descriptor,
		logger:     logger,
		vc:         vc,
		raw:        gocv.NewMat(),
		rgb:        gocv.NewMat(),
		width:      int(vc.Get(gocv.VideoCaptureFrameWidth)),
		height:     int(vc.Get(gocv.VideoCaptureFrameHeight)),
	}

	logger.Debug("opencv capture opened", "device", descriptor, "width", d.width, "height", d.height)
	return d, nil
}

// Size returns the capture dimensions.
func (d *OpenCVDevice) Size() (int, int) {
	return d.width, d.height
}

// Start is a no-op; a VideoCapture streams from open.
func (d *OpenCVDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("capture closed")
	}
	return nil
}

// Read grabs and decodes the next frame, converting it to rgb8.
func (d *OpenCVDevice) Read() (RawFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return RawFrame{}, &AcquisitionError{Status: StatusAbort, Err: errors.New("capture closed")}
	}
	if ok := d.vc.Read(&d.raw); !ok || d.raw.Empty() {
		return RawFrame{}, &AcquisitionError{Status: StatusDeviceLost, Err: fmt.Errorf("read from %q returned no frame", d.descriptor)}
	}

	if d.raw.Channels() != 3 {
		return RawFrame{}, &AcquisitionError{Status: StatusDeviceLost, Err: fmt.Errorf("unexpected %d channel frame", d.raw.Channels())}
	}

	gocv.CvtColor(d.raw, &d.rgb, gocv.ColorBGRToRGB)

	return RawFrame{
		Data:   d.rgb.ToBytes(),
		Width:  d.rgb.Cols(),
		Height: d.rgb.Rows(),
		Stride: d.rgb.Step(),
		Format: FormatRGB8,
	}, nil
}

// Close releases the capture and its buffers.
func (d *OpenCVDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	d.raw.Close()
	d.rgb.Close()
	return d.vc.Close()
}
