package bundle

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/internal/installname"
	"github.com/MasterScott/LLDBagility/internal/ldd"
	"github.com/MasterScott/LLDBagility/pkg/log"
	"github.com/MasterScott/LLDBagility/util/fileutil"
)

// Relinker rewrites the references of the binaries in a bundle so that
// vendored libraries are loaded from the libs directory.
type Relinker struct {
	Inspector  ldd.Inspector
	Classifier *Classifier
	Rewriter   installname.Rewriter
	Layout     *Layout
}

// Finding is a reference which still points at a vendor prefix, or
// which points into the libs directory at a library that isn't there.
type Finding struct {
	File string `json:"file" yaml:"file"`
	Ref  string `json:"ref" yaml:"ref"`
	// Missing is set for references into the libs directory.
	Missing bool `json:"missing,omitempty" yaml:"missing,omitempty"`
}

func (f Finding) String() string {
	if f.Missing {
		return fmt.Sprintf("%s: %s (not in the libs directory)", f.File, f.Ref)
	}
	return fmt.Sprintf("%s: %s", f.File, f.Ref)
}

// RewritePass rewrites every Vendor-classified reference of every file
// below root, including the vendored libraries themselves, and repairs
// relative references which use an alias of a vendored library. It
// returns the number of rewrites. A second pass over the same bundle
// rewrites nothing.
func (r *Relinker) RewritePass(root string, index *Index) (int, error) {
	files, err := listFiles(root)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, file := range files {
		refs, err := r.Inspector.References(file)
		if err != nil {
			return count, err
		}
		for _, ref := range refs {
			newRef, err := r.replacement(file, ref, index)
			if err != nil {
				return count, err
			}
			if newRef == "" || newRef == ref {
				continue
			}
			log.Debugf("%s: %s -> %s", file, ref, newRef)
			err = r.Rewriter.Change(ref, newRef, file)
			if err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// replacement returns the reference ref of file should be rewritten
// to, or an empty string if it is left as is.
func (r *Relinker) replacement(file, ref string, index *Index) (string, error) {
	if r.Classifier.Classify(ref) == Vendor {
		if !fileutil.IsRegularFile(ref) {
			log.Debugf("%s: not rewriting missing dependency %s", file, ref)
			return "", nil
		}
		canonical, err := fileutil.CanonicalPath(ref)
		if err != nil {
			return "", err
		}
		name, ok := index.Name(canonical)
		if !ok {
			return "", errors.Errorf("%s references %s, which was not vendored", file, ref)
		}
		return r.Layout.RelativeRef(name), nil
	}

	name, ok := r.Layout.vendoredName(ref)
	if !ok || fileutil.IsRegularFile(filepath.Join(r.Layout.LibsDir(), name)) {
		return "", nil
	}
	target, ok := index.Alias(name)
	if !ok {
		log.Warnf("%s references %s, which is not in %s", file, ref, r.Layout.LibsDir())
		return "", nil
	}
	return r.Layout.RelativeRef(target), nil
}

// Verify returns every reference below root which is still
// Vendor-classified and resolves to an existing file, and every
// reference into the libs directory whose library is missing there.
// The result is empty for a correctly packed bundle.
func (r *Relinker) Verify(root string) ([]Finding, error) {
	files, err := listFiles(root)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, file := range files {
		refs, err := r.Inspector.References(file)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if name, ok := r.Layout.vendoredName(ref); ok {
				if !fileutil.IsRegularFile(filepath.Join(r.Layout.LibsDir(), name)) {
					findings = append(findings, Finding{File: file, Ref: ref, Missing: true})
				}
				continue
			}
			if r.Classifier.Classify(ref) == Vendor && len(ldd.ExistingFiles([]string{ref})) == 1 {
				findings = append(findings, Finding{File: file, Ref: ref})
			}
		}
	}
	return findings, nil
}
