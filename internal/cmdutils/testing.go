package cmdutils

import (
	"bytes"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/MasterScott/LLDBagility/pkg/log"
)

// ExecuteCommand runs cmd with the given arguments and returns what it
// printed to stdout and what was logged. Viper state is reset before
// and after the run so commands don't see each other's flag bindings.
func ExecuteCommand(t *testing.T, cmd *cobra.Command, in io.Reader, args ...string) (string, string, error) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	outBuf := bytes.Buffer{}
	errBuf := bytes.Buffer{}

	origOutput := log.Output
	log.Output = &errBuf
	t.Cleanup(func() { log.Output = origOutput })

	cmd.SetIn(in)
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true

	err := cmd.Execute()

	output, readErr := io.ReadAll(&outBuf)
	require.NoError(t, readErr)
	stdErr, readErr := io.ReadAll(&errBuf)
	require.NoError(t, readErr)

	return string(output), string(stdErr), err
}
