package dependencies

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDeployToolVersion(t *testing.T) {
	tests := []struct {
		output  string
		version string
	}{
		{output: "macdeployqt 5.15.11\n", version: "5.15.11"},
		{output: "Qt 5.9\n", version: "5.9.0"},
		{output: "macdeployqt version 6.5.3\n", version: "6.5.3"},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			version, err := extractVersion(tt.output, deployToolRegex, DeployTool)
			require.NoError(t, err)
			assert.Equal(t, tt.version, version.String())
		})
	}

	_, err := extractVersion("usage: macdeployqt app-bundle [options]", deployToolRegex, DeployTool)
	assert.Error(t, err)
}

func fakeDeployTool(t *testing.T, output string) string {
	path := filepath.Join(t.TempDir(), "macdeployqt")
	script := "#!/bin/sh\necho '" + output + "'\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestCheckToolkitVersion(t *testing.T) {
	qt5 := fakeDeployTool(t, "macdeployqt 5.15.11")
	qt6 := fakeDeployTool(t, "macdeployqt 6.5.3")

	assert.NoError(t, CheckToolkitVersion(qt5, "5.x"))

	err := CheckToolkitVersion(qt6, "5.x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires 5.x")

	assert.Error(t, CheckToolkitVersion(qt5, "not a constraint"))
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "otool"), []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir)

	assert.NoError(t, Check(Otool))
	err := Check(Otool, InstallNameTool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "install_name_tool not found")
}
