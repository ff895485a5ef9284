package bundle

import (
	"io"
	"os"
	"os/exec"

	"github.com/otiai10/copy"
	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/internal/cmdutils"
	"github.com/MasterScott/LLDBagility/pkg/dependencies"
	"github.com/MasterScott/LLDBagility/pkg/log"
	"github.com/MasterScott/LLDBagility/util/fileutil"
)

// PrepareOutput replaces outputDir with a fresh copy of the build's
// dist directory. Symlinks are copied as symlinks, which keeps the
// Versions/Current links of embedded frameworks intact.
func PrepareOutput(distDir, outputDir string) error {
	exists, err := fileutil.Exists(distDir)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Errorf("Build output %s does not exist, run the build first", distDir)
	}

	err = fileutil.ForceRemoveAll(outputDir)
	if err != nil {
		return err
	}
	log.Debugf("Copying %s to %s", distDir, outputDir)
	err = copy.Copy(distDir, outputDir, copy.Options{
		OnSymlink: func(string) copy.SymlinkAction { return copy.Shallow },
	})
	return errors.WithStack(err)
}

// Deployer runs the UI toolkit's deployment tool, which copies the
// toolkit frameworks into the application bundle.
type Deployer struct {
	// Path of the deployment tool. Deployment is skipped if empty.
	Path string
	// ToolkitVersion is the semver constraint the tool's version must
	// satisfy, not checked if empty.
	ToolkitVersion string

	Stdout io.Writer
	Stderr io.Writer
}

func (d *Deployer) Deploy(appDir string) error {
	if d.Path == "" {
		log.Debug("No deployment tool configured")
		return nil
	}
	if d.ToolkitVersion != "" {
		err := dependencies.CheckToolkitVersion(d.Path, d.ToolkitVersion)
		if err != nil {
			return err
		}
	}

	cmd := exec.Command(d.Path, appDir)
	cmd.Stdout = d.Stdout
	cmd.Stderr = d.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	log.Debugf("Command: %s", cmd.String())
	err := cmd.Run()
	if err != nil {
		return cmdutils.WrapExecError(errors.WithStack(err), cmd)
	}
	return nil
}
