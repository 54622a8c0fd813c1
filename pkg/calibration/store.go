// Package calibration loads camera intrinsics from calibration URLs and
// keeps the record the publisher attaches to every image.
//
// URLs follow the camera_info_manager conventions:
//
//	""                        ${ROS_HOME}/camera_info/${NAME}.yaml
//	file:///abs/path.yaml     a local file
//	package://pkg/path.yaml   a file inside a package on ROS_PACKAGE_PATH
//
// ${NAME} and ${ROS_HOME} are substituted before parsing and schemes are
// case-insensitive.
package calibration

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/teslashibe/go-camera-bridge/pkg/msgs"
)

// LoadResult is the outcome of LoadFromURL.
type LoadResult int

const (
	Loaded LoadResult = iota
	NotFound
	Invalid
)

// String returns the result name.
func (r LoadResult) String() string {
	switch r {
	case Loaded:
		return "loaded"
	case NotFound:
		return "not_found"
	default:
		return "invalid"
	}
}

// State tracks the store's lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateNameSet
	StateLoaded
	StateUnloaded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateNameSet:
		return "name_set"
	case StateLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// Record is the calibration attached to published images.
type Record struct {
	CameraName string          `json:"camera_name"`
	URL        string          `json:"url"`
	Info       msgs.CameraInfo `json:"info"`
	Calibrated bool            `json:"calibrated"`
}

// Option configures a Store.
type Option func(*Store)

// WithROSHome overrides DefaultROSHome.
func WithROSHome(dir string) Option {
	return func(s *Store) {
		s.rosHome = dir
	}
}

// WithPackagePath overrides DefaultPackagePath.
func WithPackagePath(roots []string) Option {
	return func(s *Store) {
		s.packagePath = roots
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store holds one camera's calibration record.
type Store struct {
	rosHome     string
	packagePath []string
	logger      *slog.Logger

	mu      sync.RWMutex
	name    string
	record  Record
	state   State
	lastErr error
}

// NewStore creates an empty, uncalibrated store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rosHome == "" {
		s.rosHome = DefaultROSHome()
	}
	if s.packagePath == nil {
		s.packagePath = DefaultPackagePath()
	}
	return s
}

// ValidName reports whether name is non-empty and only [A-Za-z0-9_].
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}

// SetCameraName stores name and reports whether it is valid. An invalid
// name is kept for log messages.
func (s *Store) SetCameraName(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.name = name
	s.record.CameraName = name
	if s.state == StateUninitialized {
		s.state = StateNameSet
	}
	return ValidName(name)
}

// CameraName returns the stored name.
func (s *Store) CameraName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// ValidateURL reports whether url has a supported syntax.
func (s *Store) ValidateURL(url string) bool {
	return classify(substitute(url, s.CameraName(), s.rosHome)) != URLInvalid
}

// ResolvePath returns the file a URL refers to.
func (s *Store) ResolvePath(url string) (string, URLKind, error) {
	name := s.CameraName()
	resolved := substitute(url, name, s.rosHome)
	kind := classify(resolved)

	switch kind {
	case URLEmpty:
		return filepath.Join(s.rosHome, "camera_info", name+".yaml"), kind, nil
	case URLFile:
		return resolved[len(schemeFile):], kind, nil
	case URLPackage:
		pkg, rel := splitPackage(resolved)
		dir, err := findPackage(pkg, s.packagePath)
		if err != nil {
			return "", kind, err
		}
		return filepath.Join(dir, filepath.FromSlash(rel)), kind, nil
	default:
		return "", kind, fmt.Errorf("%w: %q", ErrURLInvalid, url)
	}
}

// LoadFromURL loads the calibration at url.
//
// An unsupported URL returns Invalid and leaves the record untouched. A
// supported URL without usable data returns NotFound and resets the record
// to uncalibrated defaults.
func (s *Store) LoadFromURL(url string) (LoadResult, error) {
	path, kind, err := s.ResolvePath(url)
	if kind == URLInvalid {
		s.logger.Debug("calibration url rejected", "url", url)
		return Invalid, err
	}
	if err != nil {
		return s.unload(url, fmt.Errorf("%w: %w", ErrNotFound, err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s.unload(url, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err))
	}

	doc, err := ParseYAML(data)
	if err != nil {
		return s.unload(url, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.DefaultedModel {
		s.logger.Warn("calibration file has no distortion_model, assuming plumb_bob", "path", path)
	}
	if doc.CameraName != s.name {
		s.logger.Warn("calibration file is for another camera",
			"camera_name", s.name,
			"file_camera_name", doc.CameraName,
			"path", path,
		)
	}

	s.record = Record{
		CameraName: s.name,
		URL:        url,
		Info:       doc.Info,
		Calibrated: doc.Info.IsCalibrated(),
	}
	s.state = StateLoaded
	s.lastErr = nil

	s.logger.Info("calibration loaded",
		"camera_name", s.name,
		"path", path,
		"calibrated", s.record.Calibrated,
	)
	return Loaded, nil
}

func (s *Store) unload(url string, err error) (LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record = Record{CameraName: s.name, URL: url}
	s.state = StateUnloaded
	s.lastErr = err
	return NotFound, err
}

// Calibration returns a copy of the current record.
func (s *Store) Calibration() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.record
	r.Info = r.Info.Clone()
	return r
}

// State returns the lifecycle state and, when unloaded, the reason.
func (s *Store) State() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.lastErr
}

// Setup runs the startup sequence: set the name, validate the URL and load
// it, logging each problem without failing.
func (s *Store) Setup(name, url string) Record {
	if !s.SetCameraName(name) {
		s.logger.Warn("camera name not valid for calibration store", "camera_name", name)
	}

	result, err := s.LoadFromURL(url)
	switch result {
	case Invalid:
		s.logger.Error("calibration url syntax is not supported", "camera_name", name, "url", url)
	case NotFound:
		s.logger.Warn("calibration url does not contain calibration data", "camera_name", name, "url", url, "error", err)
	case Loaded:
		if !s.Calibration().Calibrated {
			s.logger.Warn("camera is not calibrated, using default values", "camera_name", name)
		}
	}

	return s.Calibration()
}
