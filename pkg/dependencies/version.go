package dependencies

import (
	"bytes"
	"fmt"
	"os/exec"
	"regexp"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/internal/cmdutils"
	"github.com/MasterScott/LLDBagility/pkg/log"
)

// Key names an external tool the build or pack steps depend on.
type Key string

const (
	Otool           Key = "otool"
	InstallNameTool Key = "install_name_tool"
	DeployTool      Key = "macdeployqt"
	Bash            Key = "bash"
)

/*
Note: the "patch" part of the semver is optional, so that an output
like 5.15 is accepted as well as 5.15.2
*/
var deployToolRegex = regexp.MustCompile(`(?m)(?:macdeployqt|Qt)\s+(?:version\s+)?(?P<version>\d+\.\d+(\.\d+)?)`)

func extractVersion(output string, re *regexp.Regexp, key Key) (*semver.Version, error) {
	result := re.FindStringSubmatch(output)
	if len(result) <= 1 {
		return nil, fmt.Errorf("no matching version found for %s", key)
	}

	version, err := semver.NewVersion(result[1])
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return version, nil
}

// takes a command + args and parses the output for a semver
func getVersionFromCommand(cmdPath string, args []string, re *regexp.Regexp, key Key) (*semver.Version, error) {
	output := bytes.Buffer{}
	cmd := exec.Command(cmdPath, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	err := cmd.Run()
	if err != nil {
		return nil, cmdutils.WrapExecError(errors.WithStack(err), cmd)
	}
	return extractVersion(output.String(), re, key)
}

// DeployToolVersion returns the toolkit version reported by the
// framework deployment tool at path.
func DeployToolVersion(path string) (*semver.Version, error) {
	version, err := getVersionFromCommand(path, []string{"-version"}, deployToolRegex, DeployTool)
	if err != nil {
		return nil, err
	}
	log.Debugf("Found %s version %s: %s", DeployTool, version, path)
	return version, nil
}

// CheckToolkitVersion fails if the version of the deployment tool at
// path doesn't satisfy the semver constraint the framework patch table
// was written for.
func CheckToolkitVersion(path, constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(err, "Invalid toolkit version constraint %q", constraint)
	}
	version, err := DeployToolVersion(path)
	if err != nil {
		return err
	}
	if !c.Check(version) {
		return errors.Errorf("%s reports toolkit version %s, but the framework patch table requires %s",
			path, version, constraint)
	}
	return nil
}

// Check fails if one of the given tools is not found in PATH.
func Check(keys ...Key) error {
	for _, key := range keys {
		path, err := exec.LookPath(string(key))
		if err != nil {
			return errors.Errorf("%s not found in PATH, it is required to pack the bundle", key)
		}
		log.Debugf("Found %s: %s", key, path)
	}
	return nil
}
