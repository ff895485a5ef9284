package bundle

import (
	"path/filepath"
	"strings"
)

// Layout describes where the parts of the packed bundle live.
type Layout struct {
	// OutputDir is the bundle root, a copy of the build's dist directory.
	OutputDir string
	// AppName is the name of the primary application bundle below
	// OutputDir, e.g. "VirtualBox.app".
	AppName string
	// LibsSubdir is the directory of the vendored libraries, relative
	// to the application bundle.
	LibsSubdir string
}

func (l *Layout) AppDir() string {
	return filepath.Join(l.OutputDir, l.AppName)
}

func (l *Layout) LibsDir() string {
	return filepath.Join(l.AppDir(), l.LibsSubdir)
}

// RelativePrefix is the load path prefix under which executables in
// Contents/MacOS find the vendored libraries.
func (l *Layout) RelativePrefix() string {
	return "@executable_path/../" + filepath.Base(l.LibsSubdir) + "/"
}

// RelativeRef returns the reference to the vendored library name.
func (l *Layout) RelativeRef(name string) string {
	return l.RelativePrefix() + name
}

// vendoredName returns the library name if ref is a reference in the
// relative form RelativeRef produces.
func (l *Layout) vendoredName(ref string) (string, bool) {
	name, ok := strings.CutPrefix(ref, l.RelativePrefix())
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
