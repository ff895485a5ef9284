package ldd

import (
	"github.com/blacktop/go-macho"

	"github.com/MasterScott/LLDBagility/pkg/log"
)

// MachO reads references by parsing the load commands of Mach-O files
// directly. It doesn't need the Xcode command line tools, so it also
// works when inspecting a bundle on a machine other than the build host.
type MachO struct{}

func (m *MachO) References(path string) ([]string, error) {
	f, err := macho.Open(path)
	if err == nil {
		defer f.Close()
		return importedLibraries([]*macho.File{f}, path), nil
	}

	fat, fatErr := macho.OpenFat(path)
	if fatErr != nil {
		log.Debugf("Skipping %s: %v", path, err)
		return nil, nil
	}
	defer fat.Close()

	var files []*macho.File
	for _, arch := range fat.Arches {
		files = append(files, arch.File)
	}
	return importedLibraries(files, path), nil
}

// importedLibraries merges the dylib load commands of all slices of a
// binary, keeping the order of first appearance.
func importedLibraries(files []*macho.File, path string) []string {
	var refs []string
	seen := map[string]bool{}
	for _, f := range files {
		for _, lib := range f.ImportedLibraries() {
			if !seen[lib] {
				seen[lib] = true
				refs = append(refs, lib)
			}
		}
	}
	return refs
}
