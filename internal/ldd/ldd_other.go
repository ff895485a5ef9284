//go:build !freebsd && !linux

package ldd

import (
	"runtime"

	"github.com/pkg/errors"
)

// Ldd is only available on Linux and FreeBSD, where u-root's ldd
// implementation works. On other systems use the otool or macho
// inspector.
type Ldd struct{}

func (l *Ldd) References(path string) ([]string, error) {
	return nil, errors.Errorf("The ldd inspector is not supported on %s", runtime.GOOS)
}
