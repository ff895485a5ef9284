package e2e

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/stretchr/testify/require"
)

// CommandOutput is the result of a vboxpack run. Paths passed to the
// file assertions are relative to the fixture root.
type CommandOutput struct {
	t        require.TestingT
	Stdout   string
	Stderr   string
	ExitCode int
	Workdir  fs.FS
}

func (co *CommandOutput) Success() *CommandOutput {
	require.EqualValues(co.t, 0, co.ExitCode, "stderr:\n%s", co.Stderr)
	return co
}

func (co *CommandOutput) Failed() *CommandOutput {
	require.NotEqualValues(co.t, 0, co.ExitCode)
	return co
}

func (co *CommandOutput) ExitCodeIs(code int) *CommandOutput {
	require.EqualValues(co.t, code, co.ExitCode, "stderr:\n%s", co.Stderr)
	return co
}

func (co *CommandOutput) OutputContains(expected string) *CommandOutput {
	if !strings.Contains(co.Stdout, expected) {
		require.FailNow(co.t, fmt.Sprintf("stdout does not contain %q", expected))
	}
	return co
}

func (co *CommandOutput) OutputNotContains(expected string) *CommandOutput {
	if strings.Contains(co.Stdout, expected) {
		require.FailNow(co.t, fmt.Sprintf("stdout contains %q", expected))
	}
	return co
}

func (co *CommandOutput) ErrorContains(expected string) *CommandOutput {
	if !strings.Contains(co.Stderr, expected) {
		require.FailNow(co.t, fmt.Sprintf("stderr does not contain %q", expected))
	}
	return co
}

func (co *CommandOutput) NoOutput() *CommandOutput {
	require.Empty(co.t, co.Stdout)
	return co
}

func (co *CommandOutput) FileExists(path string) *CommandOutput {
	stat, err := fs.Stat(co.Workdir, path)
	require.NotErrorIs(co.t, err, os.ErrNotExist)
	require.NoError(co.t, err)
	require.False(co.t, stat.IsDir())
	return co
}

func (co *CommandOutput) FileNotExists(path string) *CommandOutput {
	_, err := fs.Stat(co.Workdir, path)
	require.ErrorIs(co.t, err, os.ErrNotExist)
	return co
}

func (co *CommandOutput) FileContains(path string, texts []string) *CommandOutput {
	content := co.readFile(path)
	for _, text := range texts {
		require.Contains(co.t, content, text, "file %q does not contain %q", path, text)
	}
	return co
}

func (co *CommandOutput) FileNotContains(path string, texts []string) *CommandOutput {
	content := co.readFile(path)
	for _, text := range texts {
		require.NotContains(co.t, content, text, "file %q contains %q", path, text)
	}
	return co
}

// Vendored checks that the library with the given name was copied into
// the libs directory of the packed bundle and carries its relative
// install name.
func (co *CommandOutput) Vendored(names ...string) *CommandOutput {
	for _, name := range names {
		co.FileContains(path.Join(LibsDir, name), []string{RelativeRef(name)})
	}
	return co
}

// Relinked checks that the binary at path, relative to the packed
// bundle, references each of the libraries through the libs directory.
func (co *CommandOutput) Relinked(binary string, names ...string) *CommandOutput {
	var refs []string
	for _, name := range names {
		refs = append(refs, RelativeRef(name))
	}
	return co.FileContains(path.Join("out", AppName, binary), refs)
}

func (co *CommandOutput) readFile(path string) string {
	co.FileExists(path)
	bytes, err := fs.ReadFile(co.Workdir, path)
	require.NoError(co.t, err)
	return string(bytes)
}

// LibsDir is the libs directory of the packed bundle relative to the
// fixture root.
var LibsDir = path.Join("out", AppName, "Contents", "libs")

// RelativeRef returns the load path of a vendored library.
func RelativeRef(name string) string {
	return "@executable_path/../libs/" + name
}
