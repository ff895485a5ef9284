package ldd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterScott/LLDBagility/internal/cmdutils"
	"github.com/MasterScott/LLDBagility/internal/config"
)

// fakeOtool writes a script which behaves like `otool -L` for files
// starting with a "#refs" line: it prints the file name as header and
// every following line as a reference. Other files are rejected the
// way otool rejects non-object files.
func fakeOtool(t *testing.T) string {
	script := `#!/bin/sh
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
	path := filepath.Join(t.TempDir(), "otool")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeBinary(t *testing.T, path string, refs ...string) {
	content := "#refs\n"
	for _, ref := range refs {
		content += ref + "\n"
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
}

func TestOtoolReferences(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "prefix", "libfoo.1.dylib")
	writeBinary(t, existing)
	stale := filepath.Join(dir, "prefix", "libgone.3.dylib")

	app := filepath.Join(dir, "App")
	writeBinary(t, app, "@rpath/QtCore.framework/Versions/5/QtCore", existing, stale, "/usr/lib/libSystem.B.dylib")

	otool := &Otool{Path: fakeOtool(t)}
	refs, err := otool.References(app)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"@rpath/QtCore.framework/Versions/5/QtCore",
		existing,
		stale,
		"/usr/lib/libSystem.B.dylib",
	}, refs)

	// Relative and stale references are filtered out
	deps, err := Dependencies(otool, app)
	require.NoError(t, err)
	assert.Contains(t, deps, existing)
	assert.NotContains(t, deps, stale)
	assert.NotContains(t, deps, "@rpath/QtCore.framework/Versions/5/QtCore")
}

func TestOtoolNonBinaryHasNoReferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Info.plist")
	require.NoError(t, os.WriteFile(path, []byte("<plist/>"), 0o644))

	refs, err := (&Otool{Path: fakeOtool(t)}).References(path)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestOtoolMissingToolIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "App")
	writeBinary(t, path)

	otool := &Otool{Path: filepath.Join(t.TempDir(), "does-not-exist")}
	_, err := otool.References(path)
	require.Error(t, err)
	var execErr *cmdutils.ExecError
	assert.True(t, errors.As(err, &execErr))
}

func TestMachONonBinaryHasNoReferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README")
	require.NoError(t, os.WriteFile(path, []byte("not a mach-o file"), 0o644))

	refs, err := (&MachO{}).References(path)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestNewInspector(t *testing.T) {
	for _, kind := range []string{config.InspectorOtool, config.InspectorMachO, config.InspectorLdd} {
		inspector, err := NewInspector(kind)
		require.NoError(t, err)
		assert.NotNil(t, inspector)
	}
	_, err := NewInspector("objdump")
	assert.Error(t, err)
}
