package root

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterScott/LLDBagility/pkg/log"
)

func TestExecuteArgsClosesLogFileOnError(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	origOutput := log.Output
	log.Output = &stderr
	t.Cleanup(func() { log.Output = origOutput })

	logFile := filepath.Join(t.TempDir(), "vboxpack.log")
	exitCode := ExecuteArgs([]string{"pack", "--log-file", logFile, "--collision-policy", "last-write-wins"}, &stdout, &stderr)
	assert.Equal(t, 2, exitCode)

	// Nothing is mirrored into the file after the command returned
	log.Info("after the run")

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Unsupported collision policy")
	assert.NotContains(t, string(content), "after the run")
}

func TestExecuteArgsExitCodes(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	origOutput := log.Output
	log.Output = &stderr
	t.Cleanup(func() { log.Output = origOutput })

	assert.Equal(t, 0, ExecuteArgs([]string{"--help"}, &stdout, &stderr))
	assert.Equal(t, 2, ExecuteArgs([]string{"pack", "--no-such-flag"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage:")
}
