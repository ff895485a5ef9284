package ldd

import (
	"bufio"
	"bytes"
	"os/exec"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/internal/cmdutils"
	"github.com/MasterScott/LLDBagility/pkg/log"
)

// Each reference line of `otool -L` looks like
//
//	/opt/local/lib/libz.1.dylib (compatibility version 1.0.0, current version 1.2.13)
//
// The path may itself contain spaces, so we split on the last
// parenthesised metadata field instead of the first space.
var otoolReferenceRegex = regexp.MustCompile(`^\s*(.+?)\s+\([^()]*\)\s*$`)

// Otool reads references with the `otool -L` command of the Xcode
// command line tools.
type Otool struct {
	// Path of the otool executable, looked up in PATH if empty.
	Path string
}

func (o *Otool) command() string {
	if o.Path != "" {
		return o.Path
	}
	return "otool"
}

func (o *Otool) References(path string) ([]string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(o.command(), "-L", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// otool exits with an error for files which are not object
			// files, which is the case for most files in a bundle.
			log.Debugf("Skipping %s: %s", path, strings.TrimSpace(stdout.String()+stderr.String()))
			return nil, nil
		}
		return nil, cmdutils.WrapExecError(errors.WithStack(err), cmd)
	}

	return parseOtoolOutput(stdout.String()), nil
}

// parseOtoolOutput extracts the references from the output of
// `otool -L`. The first line names the inspected file and universal
// binaries add one "(architecture ...):" header per slice; references
// recorded in several slices are only returned once.
func parseOtoolOutput(output string) []string {
	var refs []string
	seen := map[string]bool{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			continue
		}
		if strings.TrimSpace(line) == "" || strings.HasSuffix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, " ") {
			m := otoolReferenceRegex.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			ref := m[1]
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	return refs
}
