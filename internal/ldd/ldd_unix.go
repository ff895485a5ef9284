//go:build freebsd || linux

package ldd

import (
	"github.com/u-root/u-root/pkg/ldd"

	"github.com/MasterScott/LLDBagility/pkg/log"
)

// Ldd lists the shared libraries of ELF binaries. It lets the
// dependency walk run on a Linux host, e.g. to preview which libraries
// a dist folder pulls in from a prefix.
type Ldd struct{}

func (l *Ldd) References(path string) ([]string, error) {
	// ldd provides the complete list of dynamic dependencies of a dynamically linked file.
	// The walker still follows them one by one, which is harmless.
	dependencies, err := ldd.List([]string{path})
	if err != nil {
		log.Debugf("Skipping %s: %v", path, err)
		return nil, nil
	}

	var refs []string
	for _, dep := range dependencies {
		if dep != path {
			refs = append(refs, dep)
		}
	}
	return refs, nil
}
