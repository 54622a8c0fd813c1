package convert

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-camera-bridge/pkg/acquisition"
)

func seqBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestToImage_CopiesExactBytes(t *testing.T) {
	sizes := []struct{ w, h int }{
		{1, 1},
		{4, 3},
		{1546, 1216},
	}

	c := New(Options{})
	for _, sz := range sizes {
		buf := seqBytes(sz.w * 3 * sz.h)
		frame, _ := acquisition.NewFrame(buf, sz.w, sz.h, sz.w*3, acquisition.FormatRGB8, 1)

		img, err := c.ToImage(frame)
		if err != nil {
			t.Fatalf("%dx%d: ToImage failed: %v", sz.w, sz.h, err)
		}
		if len(img.Data) != sz.w*3*sz.h {
			t.Errorf("%dx%d: expected %d bytes, got %d", sz.w, sz.h, sz.w*3*sz.h, len(img.Data))
		}
		if img.Step != frame.Stride {
			t.Errorf("%dx%d: Step %d, want %d", sz.w, sz.h, img.Step, frame.Stride)
		}
		if img.Encoding != "rgb8" || img.IsBigEndian {
			t.Errorf("%dx%d: unexpected encoding %q bigendian=%v", sz.w, sz.h, img.Encoding, img.IsBigEndian)
		}
		if err := img.Validate(); err != nil {
			t.Errorf("%dx%d: %v", sz.w, sz.h, err)
		}
	}
}

func TestToImage_OwnsBuffer(t *testing.T) {
	buf := seqBytes(12)
	frame, lease := acquisition.NewFrame(buf, 2, 2, 6, acquisition.FormatRGB8, 1)

	img, err := New(Options{}).ToImage(frame)
	if err != nil {
		t.Fatalf("ToImage failed: %v", err)
	}

	buf[0] = 200
	lease.Release()

	if img.Data[0] != 0 {
		t.Error("Image aliases the frame buffer")
	}
}

func TestToImage_Errors(t *testing.T) {
	released, lease := acquisition.NewFrame(seqBytes(12), 2, 2, 6, acquisition.FormatRGB8, 1)
	lease.Release()

	mono, _ := acquisition.NewFrame(seqBytes(4), 2, 2, 2, acquisition.FormatMono8, 1)
	padded, _ := acquisition.NewFrame(seqBytes(16), 2, 2, 8, acquisition.FormatRGB8, 1)
	narrow, _ := acquisition.NewFrame(seqBytes(8), 2, 2, 4, acquisition.FormatRGB8, 1)
	short, _ := acquisition.NewFrame(seqBytes(10), 2, 2, 6, acquisition.FormatRGB8, 1)
	empty, _ := acquisition.NewFrame(nil, 0, 2, 0, acquisition.FormatRGB8, 1)

	tests := []struct {
		name  string
		frame *acquisition.Frame
		want  error
	}{
		{"released", released, acquisition.ErrFrameReleased},
		{"mono", mono, ErrUnsupportedFormat},
		{"padded", padded, ErrStrideMismatch},
		{"narrow_stride", narrow, ErrStrideMismatch},
		{"short_buffer", short, ErrShortBuffer},
		{"zero_width", empty, ErrInvalidFrame},
		{"nil", nil, ErrInvalidFrame},
	}

	c := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ToImage(tt.frame)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestToImage_AllowPadded(t *testing.T) {
	// 2x2 with 2 bytes of padding per row
	buf := []byte{
		1, 2, 3, 4, 5, 6, 0xEE, 0xEE,
		7, 8, 9, 10, 11, 12, 0xEE, 0xEE,
	}
	frame, _ := acquisition.NewFrame(buf, 2, 2, 8, acquisition.FormatRGB8, 1)

	img, err := New(Options{AllowPadded: true}).ToImage(frame)
	if err != nil {
		t.Fatalf("ToImage failed: %v", err)
	}

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if string(img.Data) != string(want) {
		t.Errorf("Data: expected %v, got %v", want, img.Data)
	}
	if img.Step != 6 {
		t.Errorf("Step: expected 6, got %d", img.Step)
	}
}
