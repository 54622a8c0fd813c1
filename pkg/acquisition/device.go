// Package acquisition opens camera devices and hands out frames as leased
// views over the device buffer.
package acquisition

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// RawFrame is what a device returns from a single read.
type RawFrame struct {
	Data   []byte
	Width  int
	Height int
	Stride int
	Format PixelFormat
}

// Device is a camera backend. Read blocks until the next frame arrives and
// reports faults as *AcquisitionError. The session never calls Close while
// a Read is in flight.
type Device interface {
	// Size returns the frame dimensions reported after open.
	Size() (width, height int)

	// Start begins streaming.
	Start() error

	// Read blocks for the next frame.
	Read() (RawFrame, error)

	// Close releases the device.
	Close() error
}

// Interrupter is implemented by devices that can abort a blocked Read
// without closing.
type Interrupter interface {
	Interrupt()
}

// DeviceCreator builds a device from a descriptor.
type DeviceCreator func(descriptor string, logger *slog.Logger) (Device, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]DeviceCreator{
		"fake": newFakeDeviceFromDescriptor,
	}
)

// Register adds a creator for descriptors of the form "<scheme>://...".
func Register(scheme string, creator DeviceCreator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(scheme)] = creator
}

// Schemes returns the registered descriptor schemes.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	schemes := make([]string, 0, len(registry))
	for s := range registry {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// creatorFor picks the creator for a descriptor. Descriptors without a
// registered scheme go to the OpenCV backend.
func creatorFor(descriptor string) DeviceCreator {
	if scheme, _, ok := strings.Cut(descriptor, "://"); ok {
		registryMu.RLock()
		creator, found := registry[strings.ToLower(scheme)]
		registryMu.RUnlock()
		if found {
			return creator
		}
	}
	return newOpenCVDevice
}

// Open opens the device named by descriptor and wraps it in a session.
func Open(descriptor string, opts ...Option) (*Session, error) {
	s := newSession(opts...)

	dev, err := creatorFor(descriptor)(descriptor, s.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceOpenFailed, descriptor, err)
	}

	s.dev = dev
	s.descriptor = descriptor

	w, h := dev.Size()
	s.logger.Info("camera opened", "device", descriptor, "width", w, "height", h)
	return s, nil
}
