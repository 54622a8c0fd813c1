package calibration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// URLKind classifies a calibration URL.
type URLKind int

const (
	URLEmpty URLKind = iota
	URLFile
	URLPackage
	URLInvalid
)

// String returns the kind name.
func (k URLKind) String() string {
	switch k {
	case URLEmpty:
		return "empty"
	case URLFile:
		return "file"
	case URLPackage:
		return "package"
	default:
		return "invalid"
	}
}

const (
	schemeFile    = "file://"
	schemePackage = "package://"
)

// DefaultROSHome returns $ROS_HOME, falling back to $HOME/.ros.
func DefaultROSHome() string {
	if home := os.Getenv("ROS_HOME"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".ros")
	}
	return ".ros"
}

// DefaultPackagePath splits $ROS_PACKAGE_PATH.
func DefaultPackagePath() []string {
	return filepath.SplitList(os.Getenv("ROS_PACKAGE_PATH"))
}

// substitute expands ${NAME} and ${ROS_HOME}. Unknown variables are kept
// verbatim.
func substitute(raw, name, rosHome string) string {
	r := strings.NewReplacer("${NAME}", name, "${ROS_HOME}", rosHome)
	return r.Replace(raw)
}

// classify reports the kind of an already substituted URL.
func classify(url string) URLKind {
	if url == "" {
		return URLEmpty
	}
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "file:///"):
		return URLFile
	case strings.HasPrefix(lower, schemePackage):
		rest := url[len(schemePackage):]
		slash := strings.IndexByte(rest, '/')
		if slash <= 0 || slash == len(rest)-1 {
			return URLInvalid
		}
		return URLPackage
	default:
		return URLInvalid
	}
}

// splitPackage returns the package name and the path within it.
func splitPackage(url string) (pkg, rel string) {
	rest := url[len(schemePackage):]
	pkg, rel, _ = strings.Cut(rest, "/")
	return pkg, rel
}

// findPackage looks for a directory named pkg under each search root.
func findPackage(pkg string, roots []string) (string, error) {
	for _, root := range roots {
		if root == "" {
			continue
		}
		candidate := filepath.Join(root, pkg)
		if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrPackageNotFound, pkg)
}
