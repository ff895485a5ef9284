package kbuild

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/internal/cmdutils"
	"github.com/MasterScott/LLDBagility/pkg/log"
	"github.com/MasterScott/LLDBagility/util/fileutil"
)

const ScriptName = "build.sh"

// Number of stderr lines attached to the error of a failed build. The
// complete output has already been streamed to Stderr.
const stderrTailLines = 50

type BuilderOptions struct {
	// SourceDir is the VirtualBox source tree containing ./configure.
	SourceDir string
	// BuildDir is passed to configure as --out-path. It is deleted and
	// recreated by every build.
	BuildDir string
	// DistSubdir is the location of the dist directory below BuildDir.
	DistSubdir string

	QtDir      string
	OpenSSLDir string
	XcodeDir   string

	// LocalConfig are the lines of LocalConfig.kmk.
	LocalConfig    []string
	ConfigureFlags []string

	Stdout io.Writer
	Stderr io.Writer
}

func (opts *BuilderOptions) Validate() error {
	if opts.SourceDir == "" {
		return errors.New("SourceDir is not set")
	}
	if opts.BuildDir == "" {
		return errors.New("BuildDir is not set")
	}
	_, err := os.Stat(filepath.Join(opts.SourceDir, "configure"))
	if err != nil {
		return errors.Wrapf(err, "%s is not a VirtualBox source tree", opts.SourceDir)
	}
	sourceDir, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return errors.WithStack(err)
	}
	buildDir, err := filepath.Abs(opts.BuildDir)
	if err != nil {
		return errors.WithStack(err)
	}
	if fileutil.IsBelow(sourceDir, buildDir) {
		return errors.Errorf("Build directory %s contains the source directory, it would be deleted", opts.BuildDir)
	}
	return nil
}

type Builder struct {
	*BuilderOptions
}

type BuildResult struct {
	BuildDir string
	DistDir  string
	Duration time.Duration
}

func NewBuilder(opts *BuilderOptions) (*Builder, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Builder{BuilderOptions: opts}, nil
}

// Build runs configure and kmk from a clean build directory.
func (b *Builder) Build() (*BuildResult, error) {
	start := time.Now()

	err := fileutil.ForceRemoveAll(b.BuildDir)
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(b.BuildDir, 0o755)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	scriptPath := filepath.Join(b.BuildDir, ScriptName)
	err = os.WriteFile(scriptPath, []byte(b.Script()), 0o644)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var stderr bytes.Buffer
	cmd := exec.Command("/usr/bin/env", "bash", scriptPath)
	cmd.Dir = b.SourceDir
	cmd.Stdout = b.Stdout
	cmd.Stderr = io.MultiWriter(b.Stderr, &stderr)

	log.Debugf("Working directory: %s", cmd.Dir)
	log.Debugf("Command: %s", cmd.String())
	err = cmd.Run()
	if err != nil {
		return nil, cmdutils.WrapExecErrorWithStderr(errors.WithStack(err), cmd, tail(stderr.String(), stderrTailLines))
	}

	return &BuildResult{
		BuildDir: b.BuildDir,
		DistDir:  filepath.Join(b.BuildDir, b.DistSubdir),
		Duration: time.Since(start),
	}, nil
}

// Script returns the shell script which writes LocalConfig.kmk,
// configures the source tree and builds it.
func (b *Builder) Script() string {
	var s strings.Builder

	fmt.Fprintf(&s, "set -e\n\n")
	fmt.Fprintf(&s, "cat > %s <<'EOF'\n", shellescape.Quote(filepath.Join(b.BuildDir, "LocalConfig.kmk")))
	for _, line := range b.LocalConfig {
		fmt.Fprintln(&s, line)
	}
	fmt.Fprintf(&s, "EOF\n\n")

	args := append([]string{"./configure"}, b.ConfigureFlags...)
	if b.QtDir != "" {
		args = append(args, "--with-qt-dir="+b.QtDir)
	}
	if b.OpenSSLDir != "" {
		args = append(args, "--with-openssl-dir="+b.OpenSSLDir)
	}
	if b.XcodeDir != "" {
		args = append(args, "--with-xcode-dir="+b.XcodeDir)
	}
	args = append(args, "--out-path="+b.BuildDir)
	fmt.Fprintf(&s, "%s\n\n", shellescape.QuoteCommand(args))

	fmt.Fprintf(&s, "source %s\n", shellescape.Quote(filepath.Join(b.BuildDir, "env.sh")))
	fmt.Fprintf(&s, "kmk\n")
	return s.String()
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
