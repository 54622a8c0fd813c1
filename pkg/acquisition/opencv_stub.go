//go:build nocv

package acquisition

import (
	"errors"
	"log/slog"
)

func newOpenCVDevice(descriptor string, logger *slog.Logger) (Device, error) {
	return nil, errors.New("opencv backend not available (built with nocv)")
}
