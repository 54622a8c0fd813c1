//go:build nocv

package imageproc

import (
	"image"

	"github.com/disintegration/imaging"
)

const backendName = "imaging"

func resampleFilter(name string) imaging.ResampleFilter {
	switch name {
	case InterpNearest:
		return imaging.NearestNeighbor
	case InterpArea:
		return imaging.Box
	case InterpCubic:
		return imaging.CatmullRom
	default:
		return imaging.Linear
	}
}

// resize scales a packed rgb8 buffer to outW x outH.
func resize(data []byte, w, h, outW, outH int, interp string) ([]byte, error) {
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i+2 < len(data); i, j = i+3, j+4 {
		src.Pix[j] = data[i]
		src.Pix[j+1] = data[i+1]
		src.Pix[j+2] = data[i+2]
		src.Pix[j+3] = 0xFF
	}

	dst := imaging.Resize(src, outW, outH, resampleFilter(interp))

	out := make([]byte, outW*outH*3)
	for y := 0; y < outH; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < outW; x++ {
			o := (y*outW + x) * 3
			out[o] = row[x*4]
			out[o+1] = row[x*4+1]
			out[o+2] = row[x*4+2]
		}
	}
	return out, nil
}
