package ldd

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/internal/config"
	"github.com/MasterScott/LLDBagility/util/fileutil"
)

// Inspector reads the dynamic-library references recorded in a binary.
type Inspector interface {
	// References returns the load paths recorded in the binary at path,
	// in the order they are recorded. Files which are not binaries of
	// the inspected format yield an empty slice and no error.
	References(path string) ([]string, error)
}

// NewInspector returns the Inspector for the given backend name.
func NewInspector(kind string) (Inspector, error) {
	var inspector Inspector
	switch kind {
	case config.InspectorOtool:
		inspector = &Otool{}
	case config.InspectorMachO:
		inspector = &MachO{}
	case config.InspectorLdd:
		inspector = &Ldd{}
	default:
		return nil, errors.Errorf("Unsupported inspector \"%s\"", kind)
	}
	return inspector, nil
}

// Dependencies returns the references of the binary at path which are
// absolute paths of regular files that currently exist. References
// relative to @rpath, @executable_path or @loader_path and stale paths
// which no longer resolve on this machine are dropped.
func Dependencies(inspector Inspector, path string) ([]string, error) {
	refs, err := inspector.References(path)
	if err != nil {
		return nil, err
	}
	return ExistingFiles(refs), nil
}

// ExistingFiles filters refs down to absolute paths of existing regular
// files.
func ExistingFiles(refs []string) []string {
	var deps []string
	for _, ref := range refs {
		if filepath.IsAbs(ref) && fileutil.IsRegularFile(ref) {
			deps = append(deps, ref)
		}
	}
	return deps
}
