//go:build !linux && !windows && !darwin && !freebsd && !openbsd && !netbsd

package prober

import (
	"context"
	"errors"
)

var errUnsupported = errors.New("process enumeration not supported on this platform")

type unsupportedLister struct{}

func platformLister() Lister { return unsupportedLister{} }

func (unsupportedLister) List(context.Context) ([]ProcessInfo, error) {
	return nil, errUnsupported
}
