package e2e

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MasterScott/LLDBagility/internal/cmd/root"
	"github.com/MasterScott/LLDBagility/internal/config"
	"github.com/MasterScott/LLDBagility/pkg/log"
)

// The fake tools below stand in for the Xcode command line tools and
// macdeployqt. Binaries are text files starting with a "#refs" line,
// followed by one load path per line. The first load path of a
// library is its install name, like in the output of `otool -L`.

const fakeOtool = `#!/bin/sh
file="$2"
if [ "$(head -n 1 "$file")" != "#refs" ]; then
	echo "$file: is not an object file"
	exit 1
fi
echo "$file:"
tail -n +2 "$file" | while IFS= read -r ref; do
	printf '\t%s (compatibility version 1.0.0, current version 1.0.0)\n' "$ref"
done
`

const fakeInstallNameTool = `#!/bin/sh
set -e
tmp="$(mktemp)"
case "$1" in
-change)
	target="$4"
	awk -v old="$2" -v new="$3" '$0 == old { $0 = new } { print }' "$target" > "$tmp"
	;;
-id)
	target="$3"
	awk -v id="$2" 'NR == 2 { $0 = id } { print }' "$target" > "$tmp"
	;;
*)
	echo "install_name_tool: unsupported option $1" >&2
	exit 1
	;;
esac
cat "$tmp" > "$target"
rm -f "$tmp"
`

// The fake deployment tool copies the QtCore framework into the bundle.
const fakeDeployTool = `#!/bin/sh
if [ "$1" = "-version" ]; then
	echo "macdeployqt 5.15.11"
	exit 0
fi
mkdir -p "$1/Contents/Frameworks/QtCore.framework/Versions/5"
cp "%s" "$1/Contents/Frameworks/QtCore.framework/Versions/5/QtCore"
`

// The fake configure script creates an env.sh which provides kmk as a
// shell function. kmk writes the VirtualBox binary into the dist
// directory.
const fakeConfigure = `#!/bin/sh
out=""
for arg in "$@"; do
	case "$arg" in
	--out-path=*) out="${arg#--out-path=}" ;;
	esac
done
echo "configure $*"
mkdir -p "$out"
cat > "$out/env.sh" <<'EOF'
kmk() {
	mkdir -p "$PATH_OUT/dist/VirtualBox.app/Contents/MacOS"
	printf '#refs\n@rpath/VBoxRT.dylib\n' > "$PATH_OUT/dist/VirtualBox.app/Contents/MacOS/VirtualBox"
	echo "kmk: done"
}
EOF
echo "PATH_OUT='$out'; export PATH_OUT" >> "$out/env.sh"
`

// Fixture is a temporary home directory with a vendor prefix, a
// framework install, a VirtualBox source tree and a finished build,
// plus a config file pointing vboxpack at all of them.
type Fixture struct {
	Root      string
	Home      string
	Prefix    string
	QtDir     string
	SourceDir string
	BuildDir  string
	OutputDir string
	ToolsDir  string
}

const (
	AppName    = "VirtualBox.app"
	DistSubdir = "dist"
)

// NewFixture creates the fixture and installs the fake tools in PATH.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("the fake tools are shell scripts")
	}

	rootDir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	f := &Fixture{
		Root:      rootDir,
		Home:      filepath.Join(rootDir, "home"),
		Prefix:    filepath.Join(rootDir, "opt", "local", "lib"),
		QtDir:     filepath.Join(rootDir, "opt", "local", "libexec", "qt5"),
		SourceDir: filepath.Join(rootDir, "src"),
		BuildDir:  filepath.Join(rootDir, "build"),
		OutputDir: filepath.Join(rootDir, "out"),
		ToolsDir:  filepath.Join(rootDir, "tools"),
	}
	require.NoError(t, os.MkdirAll(f.Home, 0o755))
	t.Setenv("HOME", f.Home)

	f.writeTool(t, "otool", fakeOtool)
	f.writeTool(t, "install_name_tool", fakeInstallNameTool)
	f.writeTool(t, "macdeployqt", strings.Replace(fakeDeployTool, "%s", f.QtCore(), 1))
	t.Setenv("PATH", f.ToolsDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	f.writeConfig(t)
	f.writeLibraries(t)
	f.writeDist(t)
	f.WriteFile(t, filepath.Join(f.SourceDir, "configure"), fakeConfigure, 0o755)
	return f
}

func (f *Fixture) writeTool(t *testing.T, name, script string) {
	f.WriteFile(t, filepath.Join(f.ToolsDir, name), script, 0o755)
}

func (f *Fixture) writeConfig(t *testing.T) {
	cfg := map[string]any{
		"source-dir":         f.SourceDir,
		"build-dir":          f.BuildDir,
		"dist-subdir":        DistSubdir,
		"output-dir":         f.OutputDir,
		"app-name":           AppName,
		"vendor-prefixes":    []string{f.Prefix},
		"framework-prefixes": []string{f.QtDir},
		"deploy-tool":        filepath.Join(f.ToolsDir, "macdeployqt"),
		"inspector":          config.InspectorOtool,
		"framework-patches": []config.FrameworkPatch{{
			Old:    f.QtCore(),
			New:    "@rpath/QtCore.framework/Versions/5/QtCore",
			Target: "Contents/Frameworks/QtGui.framework/Versions/5/QtGui",
		}},
		"configure-flags": []string{"--disable-hardening"},
		"local-config":    []string{"VBOX_WITH_TESTSUITE ="},
	}
	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	f.WriteFile(t, filepath.Join(f.Home, config.ConfigFileName), string(out), 0o644)
}

// Lib returns the path of a library in the vendor prefix.
func (f *Fixture) Lib(name string) string {
	return filepath.Join(f.Prefix, name)
}

// QtCore returns the path of the QtCore framework binary of the
// framework install.
func (f *Fixture) QtCore() string {
	return filepath.Join(f.QtDir, "lib", "QtCore.framework", "Versions", "5", "QtCore")
}

// AppDir returns the application bundle in the output directory.
func (f *Fixture) AppDir() string {
	return filepath.Join(f.OutputDir, AppName)
}

func (f *Fixture) distAppDir() string {
	return filepath.Join(f.BuildDir, DistSubdir, AppName)
}

// libz is a dependency of libpng and libxml2 and reached twice.
func (f *Fixture) writeLibraries(t *testing.T) {
	f.WriteBinary(t, f.Lib("libz.1.dylib"), f.Lib("libz.1.dylib"), "/usr/lib/libSystem.B.dylib")
	f.WriteBinary(t, f.Lib("libpng16.16.dylib"), f.Lib("libpng16.16.dylib"), f.Lib("libz.1.dylib"))
	f.WriteBinary(t, f.Lib("libxml2.2.dylib"), f.Lib("libxml2.2.dylib"), f.Lib("libz.1.dylib"))
	f.WriteBinary(t, f.QtCore(), f.QtCore())
}

func (f *Fixture) writeDist(t *testing.T) {
	app := f.distAppDir()
	f.WriteBinary(t, filepath.Join(app, "Contents", "MacOS", "VirtualBox"),
		"@rpath/VBoxRT.dylib",
		f.Lib("libpng16.16.dylib"),
		"@rpath/QtCore.framework/Versions/5/QtCore")
	f.WriteBinary(t, filepath.Join(app, "Contents", "MacOS", "VBoxRT.dylib"),
		"@rpath/VBoxRT.dylib",
		f.Lib("libxml2.2.dylib"))
	f.WriteBinary(t, filepath.Join(app, "Contents", "Frameworks", "QtGui.framework", "Versions", "5", "QtGui"),
		"@rpath/QtGui.framework/Versions/5/QtGui",
		f.QtCore())
	f.WriteFile(t, filepath.Join(app, "Contents", "Info.plist"), "<plist/>\n", 0o644)
}

// WriteBinary writes a fake binary with the given load paths.
func (f *Fixture) WriteBinary(t *testing.T, path string, refs ...string) {
	f.WriteFile(t, path, "#refs\n"+strings.Join(refs, "\n")+"\n", 0o755)
}

func (f *Fixture) WriteFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
}

// Command runs vboxpack with the given arguments in the fixture.
func (f *Fixture) Command(t *testing.T, args ...string) *CommandOutput {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	var stdout, stderr bytes.Buffer
	origOutput := log.Output
	log.Output = &stderr
	defer func() { log.Output = origOutput }()

	exitCode := root.ExecuteArgs(args, &stdout, &stderr)
	t.Logf("vboxpack %s\nstdout:\n%s\nstderr:\n%s", strings.Join(args, " "), stdout.String(), stderr.String())

	return &CommandOutput{
		t:        t,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Workdir:  os.DirFS(f.Root),
	}
}

type TestCase struct {
	Description string
	Command     string
	Args        []string
	// Setup is called with the fresh fixture before the command runs.
	Setup    func(t *testing.T, f *Fixture)
	SkipOnOS string
	Assert   func(t *testing.T, output CommandOutput)
}

// RunTests runs every test case as a subtest in its own fixture.
func RunTests(t *testing.T, testCases []TestCase) {
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.Description, func(t *testing.T) {
			if tc.SkipOnOS == runtime.GOOS {
				t.Skipf("skipping on %s", runtime.GOOS)
			}
			f := NewFixture(t)
			if tc.Setup != nil {
				tc.Setup(t, f)
			}
			output := f.Command(t, append([]string{tc.Command}, tc.Args...)...)
			tc.Assert(t, *output)
		})
	}
}
