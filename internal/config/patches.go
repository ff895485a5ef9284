package config

import (
	"fmt"
	"path"
)

// FrameworkPatch is a single load-path rewrite applied to a framework
// binary inside the application bundle before dependencies are walked.
type FrameworkPatch struct {
	// Old is the reference as recorded in the binary.
	Old string `mapstructure:"old" yaml:"old"`
	// New is the reference it is replaced with.
	New string `mapstructure:"new" yaml:"new"`
	// Target is the binary to patch, relative to the application bundle.
	Target string `mapstructure:"target" yaml:"target"`
}

func (p FrameworkPatch) String() string {
	return fmt.Sprintf("%s: %s -> %s", p.Target, p.Old, p.New)
}

// DefaultToolkitVersion is the semver constraint of the UI toolkit
// whose bundle layout DefaultFrameworkPatches was written against.
const DefaultToolkitVersion = "5.x"

const qtLibDir = "/opt/local/libexec/qt5/lib"

// macdeployqt leaves these cross-framework references pointing at the
// MacPorts Qt install instead of @rpath. The table only matches the Qt 5
// framework layout (Versions/5) and has to be revised for any other
// toolkit version.
var DefaultFrameworkPatches = qtFrameworkPatches(map[string][]string{
	"QtMacExtras":    {"QtGui", "QtCore"},
	"QtGui":          {"QtCore"},
	"QtWidgets":      {"QtGui", "QtCore"},
	"QtPrintSupport": {"QtWidgets", "QtGui", "QtCore"},
	"QtOpenGL":       {"QtWidgets", "QtGui", "QtCore"},
})

var qtFrameworkOrder = []string{"QtMacExtras", "QtGui", "QtWidgets", "QtPrintSupport", "QtOpenGL"}

func qtFrameworkBinary(name string) string {
	return path.Join(name+".framework", "Versions", "5", name)
}

func qtFrameworkPatches(deps map[string][]string) []FrameworkPatch {
	var patches []FrameworkPatch
	for _, target := range qtFrameworkOrder {
		for _, dep := range deps[target] {
			patches = append(patches, FrameworkPatch{
				Old:    path.Join(qtLibDir, qtFrameworkBinary(dep)),
				New:    path.Join("@rpath", qtFrameworkBinary(dep)),
				Target: path.Join("Contents", "Frameworks", qtFrameworkBinary(target)),
			})
		}
	}
	return patches
}

// DefaultLocalConfig holds the LocalConfig.kmk directives written into
// the build directory before configure runs.
var DefaultLocalConfig = []string{
	"VBOX_WITH_DARWIN_R0_DARWIN_IMAGE_VERIFICATION =",
	"VBOX_WITH_TESTSUITE =",
	"VBOX_WITH_TESTCASES =",
	"kBuildGlobalDefaults_LD_DEBUG =",
}

// DefaultConfigureFlags are passed to VirtualBox's configure script in
// addition to the path flags derived from the configuration.
var DefaultConfigureFlags = []string{
	"--disable-hardening",
	"--disable-java",
	"--disable-python",
	"--disable-docs",
}
