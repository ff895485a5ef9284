package fileutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Exists returns whether the given file or directory exists. Broken
// symlinks are reported as not existing.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.WithStack(err)
}

// IsRegularFile reports whether path resolves (following symlinks) to
// a regular file. Any error is treated as "no".
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// IsRegularNonSymlink reports whether path itself is a regular file,
// without following symlinks.
func IsRegularNonSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// CanonicalPath resolves all symlinks in path and returns an absolute,
// cleaned path. Two paths referring to the same file through different
// symlinks have the same canonical path.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return resolved, nil
}

// IsBelow reports whether path equals dir or lies below it. Both paths
// are compared component-wise, so "/opt/local/libexec" is not below
// "/opt/local/lib".
func IsBelow(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)
	if path == dir {
		return true
	}
	if dir == string(filepath.Separator) {
		return filepath.IsAbs(path)
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// ForceRemoveAll removes the given path and everything below it. It
// doesn't fail if the path doesn't exist.
func ForceRemoveAll(path string) error {
	err := os.RemoveAll(path)
	return errors.WithStack(err)
}

// SameContent reports whether the two files have identical content.
func SameContent(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, errors.WithStack(err)
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, errors.WithStack(err)
	}
	defer fb.Close()

	const chunk = 64 * 1024
	ba := make([]byte, chunk)
	bb := make([]byte, chunk)
	for {
		na, errA := io.ReadFull(fa, ba)
		nb, errB := io.ReadFull(fb, bb)
		if !bytes.Equal(ba[:na], bb[:nb]) {
			return false, nil
		}
		doneA := errA == io.EOF || errA == io.ErrUnexpectedEOF
		doneB := errB == io.EOF || errB == io.ErrUnexpectedEOF
		if doneA || doneB {
			return doneA && doneB, nil
		}
		if errA != nil {
			return false, errors.WithStack(errA)
		}
		if errB != nil {
			return false, errors.WithStack(errB)
		}
	}
}
