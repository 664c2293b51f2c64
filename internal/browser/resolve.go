package browser

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-rod/rod/lib/launcher"
)

// ErrBinaryNotFound is returned when no usable browser executable exists.
var ErrBinaryNotFound = errors.New("browser executable not found")

// LookPathFunc finds a system browser. It matches launcher.LookPath.
type LookPathFunc func() (string, bool)

// Resolver picks the browser binary: an explicit path if configured,
// otherwise the first system install rod knows about.
type Resolver struct {
	lookPath LookPathFunc
}

// NewResolver creates a Resolver backed by rod's launcher.LookPath.
func NewResolver() *Resolver {
	return &Resolver{lookPath: launcher.LookPath}
}

// NewResolverWithLookPath creates a Resolver with a custom system lookup.
func NewResolverWithLookPath(fn LookPathFunc) *Resolver {
	return &Resolver{lookPath: fn}
}

// Resolve returns the binary to launch. A configured path that does not exist
// is an error rather than a silent fallback.
func (r *Resolver) Resolve(configured string) (string, error) {
	if configured != "" {
		info, err := os.Stat(configured)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, configured)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrBinaryNotFound, configured)
		}
		return configured, nil
	}

	if r.lookPath != nil {
		if path, ok := r.lookPath(); ok && path != "" {
			return path, nil
		}
	}
	return "", ErrBinaryNotFound
}
