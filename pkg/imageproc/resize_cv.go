//go:build !nocv

package imageproc

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const backendName = "gocv"

func interpolationFlag(name string) gocv.InterpolationFlags {
	switch name {
	case InterpNearest:
		return gocv.InterpolationNearestNeighbor
	case InterpArea:
		return gocv.InterpolationArea
	case InterpCubic:
		return gocv.InterpolationCubic
	default:
		return gocv.InterpolationLinear
	}
}

// resize scales a packed rgb8 buffer to outW x outH.
func resize(data []byte, w, h, outW, outH int, interp string) ([]byte, error) {
	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	if err != nil {
		return nil, fmt.Errorf("wrap buffer: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	gocv.Resize(src, &dst, image.Pt(outW, outH), 0, 0, interpolationFlag(interp))

	if dst.Cols() != outW || dst.Rows() != outH {
		return nil, fmt.Errorf("resize produced %dx%d, want %dx%d", dst.Cols(), dst.Rows(), outW, outH)
	}
	return dst.ToBytes(), nil
}
