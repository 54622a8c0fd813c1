package calibration

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrURLInvalid is returned for calibration URLs with an unsupported syntax.
	ErrURLInvalid = errors.New("calibration: URL syntax not supported")

	// ErrNotFound is returned when a well-formed URL holds no usable calibration.
	ErrNotFound = errors.New("calibration: no calibration data at URL")

	// ErrPackageNotFound is returned when a package:// URL names an unknown package.
	ErrPackageNotFound = errors.New("calibration: package not found")

	// ErrMalformed is returned when a calibration document cannot be parsed.
	ErrMalformed = errors.New("calibration: malformed calibration document")
)
