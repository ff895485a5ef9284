//go:build unix

package installname

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// checkWritable fails early with a clear message instead of leaving it
// to install_name_tool, which reports a generic "can't open file".
func checkWritable(path string) error {
	err := unix.Access(path, unix.W_OK)
	if err != nil {
		return errors.Wrapf(err, "Cannot rewrite %s", path)
	}
	return nil
}
