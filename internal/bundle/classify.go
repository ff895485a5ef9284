package bundle

import (
	"path/filepath"

	"github.com/MasterScott/LLDBagility/util/fileutil"
)

// Class is the outcome of classifying a dependency reference.
type Class int

const (
	// Ignore marks references which are neither vendored nor rewritten:
	// system libraries and references which are already relative.
	Ignore Class = iota
	// Vendor marks libraries from a package manager prefix which have to
	// be copied into the bundle.
	Vendor
	// FrameworkManaged marks libraries of the UI toolkit, which are
	// relocated by its own deployment tool and the framework pre-patch.
	FrameworkManaged
)

func (c Class) String() string {
	switch c {
	case Vendor:
		return "vendor"
	case FrameworkManaged:
		return "framework"
	default:
		return "ignore"
	}
}

// Classifier decides what happens to a dependency reference. The same
// Classifier must be used by the Walker and the Relinker so that the
// set of vendored libraries and the set of rewritten references agree.
type Classifier struct {
	VendorPrefixes    []string
	FrameworkPrefixes []string
}

func (c *Classifier) Classify(ref string) Class {
	if !filepath.IsAbs(ref) {
		return Ignore
	}
	for _, prefix := range c.FrameworkPrefixes {
		if fileutil.IsBelow(ref, prefix) {
			return FrameworkManaged
		}
	}
	for _, prefix := range c.VendorPrefixes {
		if fileutil.IsBelow(ref, prefix) {
			return Vendor
		}
	}
	return Ignore
}
