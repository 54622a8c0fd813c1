package msgs

import (
	"encoding/json"
	"fmt"
)

// Distortion model names understood by downstream rectification.
const (
	DistortionPlumbBob     = "plumb_bob"
	DistortionRationalPoly = "rational_polynomial"
	DistortionEquidistant  = "equidistant"
)

// RegionOfInterest is the sub-window of the full sensor the image covers.
type RegionOfInterest struct {
	XOffset   int  `json:"x_offset"`
	YOffset   int  `json:"y_offset"`
	Height    int  `json:"height"`
	Width     int  `json:"width"`
	DoRectify bool `json:"do_rectify"`
}

// CameraInfo holds the intrinsic and extrinsic calibration published
// alongside every image.
//
// K is the 3x3 intrinsic matrix, R the 3x3 rectification matrix and P the
// 3x4 projection matrix, all row-major. A zero K[0] means uncalibrated.
type CameraInfo struct {
	Header          Header           `json:"header"`
	Height          int              `json:"height"`
	Width           int              `json:"width"`
	DistortionModel string           `json:"distortion_model"`
	D               []float64        `json:"d"`
	K               [9]float64       `json:"k"`
	R               [9]float64       `json:"r"`
	P               [12]float64      `json:"p"`
	BinningX        int              `json:"binning_x"`
	BinningY        int              `json:"binning_y"`
	ROI             RegionOfInterest `json:"roi"`
}

// IsCalibrated reports whether the intrinsics have been filled in.
func (c *CameraInfo) IsCalibrated() bool {
	return c.K[0] != 0
}

// Clone returns a deep copy.
func (c CameraInfo) Clone() CameraInfo {
	if c.D != nil {
		c.D = append([]float64(nil), c.D...)
	}
	return c
}

// Encode serializes the camera info as JSON.
func (c *CameraInfo) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode camera info: %w", err)
	}
	return data, nil
}

// DecodeCameraInfo parses a JSON camera info payload.
func DecodeCameraInfo(data []byte) (*CameraInfo, error) {
	var info CameraInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode camera info: %w", err)
	}
	return &info, nil
}
