package imageproc

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-camera-bridge/pkg/msgs"
)

// Processor applies a fixed crop then a fixed scale.
type Processor struct {
	cfg  Config
	outW int
	outH int
}

// New validates cfg and creates a processor.
func New(cfg Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Processor{
		cfg:  cfg,
		outW: scaled(cfg.Crop.Width, cfg.Scale),
		outH: scaled(cfg.Crop.Height, cfg.Scale),
	}, nil
}

func scaled(n int, scale float64) int {
	v := int(math.Round(float64(n) * scale))
	if v < 1 {
		return 1
	}
	return v
}

// Config returns the processor configuration.
func (p *Processor) Config() Config {
	return p.cfg
}

// Backend names the resize implementation compiled in.
func (p *Processor) Backend() string {
	return backendName
}

// OutputSize returns the dimensions every processed image will have.
func (p *Processor) OutputSize() (width, height int) {
	return p.outW, p.outH
}

// CheckBounds reports whether the crop fits a width x height source.
func (p *Processor) CheckBounds(width, height int) error {
	if !p.cfg.Crop.Fits(width, height) {
		return &CropOutOfBoundsError{Crop: p.cfg.Crop, SourceWidth: width, SourceHeight: height}
	}
	return nil
}

// Process returns a new cropped and rescaled image carrying img's header.
// img is not modified.
func (p *Processor) Process(img *msgs.Image) (*msgs.Image, error) {
	if img.Encoding != msgs.EncodingRGB8 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, img.Encoding)
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if err := p.CheckBounds(img.Width, img.Height); err != nil {
		return nil, err
	}

	cropped := crop(img, p.cfg.Crop)

	data := cropped
	if p.outW != p.cfg.Crop.Width || p.outH != p.cfg.Crop.Height {
		var err error
		data, err = resize(cropped, p.cfg.Crop.Width, p.cfg.Crop.Height, p.outW, p.outH, p.cfg.Interpolation)
		if err != nil {
			return nil, fmt.Errorf("resize: %w", err)
		}
	}

	out := msgs.NewRGB8(p.outW, p.outH, data)
	out.Header = img.Header
	return out, nil
}

// crop copies r out of img into a tightly packed buffer. r must fit.
func crop(img *msgs.Image, r Rect) []byte {
	row := r.Width * msgs.BytesPerPixelRGB8
	out := make([]byte, row*r.Height)
	for y := 0; y < r.Height; y++ {
		src := (r.Y+y)*img.Step + r.X*msgs.BytesPerPixelRGB8
		copy(out[y*row:(y+1)*row], img.Data[src:src+row])
	}
	return out
}
