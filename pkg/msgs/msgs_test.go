package msgs

import (
	"strings"
	"testing"
	"time"
)

func TestImage_EncodeDecode(t *testing.T) {
	original := NewRGB8(2, 2, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	original.Header = Header{
		Seq:     42,
		Stamp:   time.Unix(1700000000, 123456789),
		FrameID: "camera",
	}

	encoded := original.Encode()

	var decoded Image
	if err := decoded.Decode(encoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Header.Seq != 42 || decoded.Header.FrameID != "camera" {
		t.Errorf("Header: got %+v", decoded.Header)
	}
	if !decoded.Header.Stamp.Equal(original.Header.Stamp) {
		t.Errorf("Stamp: expected %v, got %v", original.Header.Stamp, decoded.Header.Stamp)
	}
	if decoded.Width != 2 || decoded.Height != 2 || decoded.Step != 6 {
		t.Errorf("Geometry: got %dx%d step %d", decoded.Width, decoded.Height, decoded.Step)
	}
	if decoded.Encoding != EncodingRGB8 {
		t.Errorf("Encoding: got %q", decoded.Encoding)
	}
	if string(decoded.Data) != string(original.Data) {
		t.Errorf("Data mismatch")
	}
	if err := decoded.Validate(); err != nil {
		t.Errorf("Decoded image invalid: %v", err)
	}
}

func TestImage_DecodeErrors(t *testing.T) {
	valid := NewRGB8(1, 1, []byte{1, 2, 3}).Encode()

	tests := []struct {
		name string
		data []byte
	}{
		{"too_short", []byte{1, 2, 3}},
		{"truncated_payload", valid[:len(valid)-1]},
		{"truncated_strings", valid[:imageFixedHeader+1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var img Image
			if err := img.Decode(tt.data); err == nil {
				t.Error("Expected decode error, got nil")
			}
		})
	}
}

func TestImage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		img     *Image
		wantErr bool
	}{
		{"packed", NewRGB8(2, 1, make([]byte, 6)), false},
		{"short_buffer", NewRGB8(2, 2, make([]byte, 6)), true},
		{"zero_width", NewRGB8(0, 2, nil), true},
		{"short_step", &Image{Width: 2, Height: 1, Encoding: EncodingRGB8, Step: 5, Data: make([]byte, 5)}, true},
		{"frame_id_too_long", withFrameID(NewRGB8(1, 1, make([]byte, 3)), strings.Repeat("f", MaxStringLen+1)), true},
		{"frame_id_at_limit", withFrameID(NewRGB8(1, 1, make([]byte, 3)), strings.Repeat("f", MaxStringLen)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.img.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func withFrameID(img *Image, id string) *Image {
	img.Header.FrameID = id
	return img
}

func TestImage_EncodeDecodeLongestFrameID(t *testing.T) {
	img := withFrameID(NewRGB8(1, 1, []byte{1, 2, 3}), strings.Repeat("f", MaxStringLen))

	var decoded Image
	if err := decoded.Decode(img.Encode()); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Header.FrameID != img.Header.FrameID || decoded.Encoding != EncodingRGB8 {
		t.Errorf("Round trip lost strings: frame id %d bytes, encoding %q", len(decoded.Header.FrameID), decoded.Encoding)
	}
}

func TestImage_CloneIsIndependent(t *testing.T) {
	img := NewRGB8(1, 1, []byte{1, 2, 3})
	clone := img.Clone()
	clone.Data[0] = 99

	if img.Data[0] != 1 {
		t.Error("Clone shares its buffer with the original")
	}
}

func TestCameraInfo_Calibrated(t *testing.T) {
	var info CameraInfo
	if info.IsCalibrated() {
		t.Error("Zero camera info should be uncalibrated")
	}

	info.K[0] = 1200
	if !info.IsCalibrated() {
		t.Error("Camera info with fx set should be calibrated")
	}
}

func TestCameraInfo_EncodeDecode(t *testing.T) {
	info := CameraInfo{
		Header:          Header{Seq: 7, FrameID: "camera"},
		Width:           1546,
		Height:          1216,
		DistortionModel: DistortionPlumbBob,
		D:               []float64{-0.1, 0.01, 0, 0, 0},
		K:               [9]float64{1200, 0, 773, 0, 1200, 608, 0, 0, 1},
	}

	data, err := info.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeCameraInfo(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Header.Seq != 7 || decoded.Width != 1546 || decoded.Height != 1216 {
		t.Errorf("Unexpected decoded info: %+v", decoded)
	}
	if !decoded.IsCalibrated() {
		t.Error("Decoded info lost its intrinsics")
	}
}

func TestCameraInfo_CloneCopiesDistortion(t *testing.T) {
	info := CameraInfo{D: []float64{1, 2}}
	clone := info.Clone()
	clone.D[0] = 5

	if info.D[0] != 1 {
		t.Error("Clone shares distortion coefficients with the original")
	}
}
