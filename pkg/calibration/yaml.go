package calibration

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-camera-bridge/pkg/msgs"
)

type yamlMatrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Data []float64 `yaml:"data"`
}

func (m *yamlMatrix) check(name string, rows, cols int) error {
	if m.Rows != rows || m.Cols != cols {
		return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrMalformed, name, m.Rows, m.Cols, rows, cols)
	}
	if len(m.Data) != rows*cols {
		return fmt.Errorf("%w: %s has %d values, want %d", ErrMalformed, name, len(m.Data), rows*cols)
	}
	return nil
}

// yamlCalibration is the camera_calibration_parsers document layout.
type yamlCalibration struct {
	ImageWidth             int         `yaml:"image_width"`
	ImageHeight            int         `yaml:"image_height"`
	CameraName             string      `yaml:"camera_name"`
	CameraMatrix           *yamlMatrix `yaml:"camera_matrix"`
	DistortionModel        string      `yaml:"distortion_model"`
	DistortionCoefficients *yamlMatrix `yaml:"distortion_coefficients"`
	RectificationMatrix    *yamlMatrix `yaml:"rectification_matrix"`
	ProjectionMatrix       *yamlMatrix `yaml:"projection_matrix"`
	BinningX               int         `yaml:"binning_x,omitempty"`
	BinningY               int         `yaml:"binning_y,omitempty"`
}

// Document is a parsed calibration file.
type Document struct {
	CameraName string
	Info       msgs.CameraInfo

	// DefaultedModel is set when the file had no distortion_model and
	// plumb_bob was assumed.
	DefaultedModel bool
}

// ParseYAML parses a camera_calibration_parsers YAML document. K and R must
// be 3x3 and P 3x4.
func ParseYAML(data []byte) (*Document, error) {
	var doc yamlCalibration
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if doc.CameraMatrix == nil || doc.RectificationMatrix == nil || doc.ProjectionMatrix == nil || doc.DistortionCoefficients == nil {
		return nil, fmt.Errorf("%w: missing matrix", ErrMalformed)
	}
	if err := doc.CameraMatrix.check("camera_matrix", 3, 3); err != nil {
		return nil, err
	}
	if err := doc.RectificationMatrix.check("rectification_matrix", 3, 3); err != nil {
		return nil, err
	}
	if err := doc.ProjectionMatrix.check("projection_matrix", 3, 4); err != nil {
		return nil, err
	}
	d := doc.DistortionCoefficients
	if len(d.Data) != d.Rows*d.Cols {
		return nil, fmt.Errorf("%w: distortion_coefficients has %d values, declared %dx%d", ErrMalformed, len(d.Data), d.Rows, d.Cols)
	}

	out := &Document{CameraName: doc.CameraName}
	info := &out.Info
	info.Width = doc.ImageWidth
	info.Height = doc.ImageHeight
	info.DistortionModel = doc.DistortionModel
	if info.DistortionModel == "" {
		info.DistortionModel = msgs.DistortionPlumbBob
		out.DefaultedModel = true
	}
	info.D = append([]float64{}, d.Data...)
	copy(info.K[:], doc.CameraMatrix.Data)
	copy(info.R[:], doc.RectificationMatrix.Data)
	copy(info.P[:], doc.ProjectionMatrix.Data)
	info.BinningX = doc.BinningX
	info.BinningY = doc.BinningY

	return out, nil
}

// MarshalYAML renders info in the same layout ParseYAML reads.
func MarshalYAML(cameraName string, info msgs.CameraInfo) ([]byte, error) {
	doc := yamlCalibration{
		ImageWidth:             info.Width,
		ImageHeight:            info.Height,
		CameraName:             cameraName,
		CameraMatrix:           &yamlMatrix{Rows: 3, Cols: 3, Data: info.K[:]},
		DistortionModel:        info.DistortionModel,
		DistortionCoefficients: &yamlMatrix{Rows: 1, Cols: len(info.D), Data: info.D},
		RectificationMatrix:    &yamlMatrix{Rows: 3, Cols: 3, Data: info.R[:]},
		ProjectionMatrix:       &yamlMatrix{Rows: 3, Cols: 4, Data: info.P[:]},
		BinningX:               info.BinningX,
		BinningY:               info.BinningY,
	}
	if doc.DistortionCoefficients.Data == nil {
		doc.DistortionCoefficients.Data = []float64{}
	}
	return yaml.Marshal(&doc)
}
