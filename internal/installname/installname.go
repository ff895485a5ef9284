package installname

import (
	"bytes"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/internal/cmdutils"
	"github.com/MasterScott/LLDBagility/pkg/log"
)

// Rewriter mutates the load commands of a binary in place.
type Rewriter interface {
	// Change replaces the dependency reference old with new in target.
	Change(old, new, target string) error
	// SetID sets the install name of the shared library target.
	SetID(id, target string) error
}

// Tool rewrites load commands with `install_name_tool`.
type Tool struct {
	// Path of the install_name_tool executable, looked up in PATH if
	// empty.
	Path string
}

func (t *Tool) command() string {
	if t.Path != "" {
		return t.Path
	}
	return "install_name_tool"
}

func (t *Tool) Change(old, new, target string) error {
	return t.run(target, "-change", old, new, target)
}

func (t *Tool) SetID(id, target string) error {
	return t.run(target, "-id", id, target)
}

func (t *Tool) run(target string, args ...string) error {
	err := checkWritable(target)
	if err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.Command(t.command(), args...)
	cmd.Stderr = &stderr
	log.Debugf("Command: %s", cmd.String())

	err = cmd.Run()
	if err != nil {
		return cmdutils.WrapExecError(errors.WithStack(err), cmd)
	}
	return nil
}
