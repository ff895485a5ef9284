package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"
	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/internal/config"
	"github.com/MasterScott/LLDBagility/internal/installname"
	"github.com/MasterScott/LLDBagility/pkg/log"
	"github.com/MasterScott/LLDBagility/util/fileutil"
)

// VendoredFileMode is the mode of every library in the libs directory.
const VendoredFileMode = 0o644

// Library is a library copied into the libs directory.
type Library struct {
	Name   string `json:"name" yaml:"name"`
	Source string `json:"source" yaml:"source"`
	// Refs are the recorded paths under which binaries reference it.
	Refs []string `json:"refs" yaml:"refs"`
}

// Index maps vendored libraries to the name of their copy in the libs
// directory. Libraries are identified by their canonical path, so
// different recorded paths of the same file (e.g. libz.1.dylib and
// libz.dylib, both symlinks to libz.1.3.dylib) share one copy.
type Index struct {
	Libraries []*Library `json:"libraries" yaml:"libraries"`
	// Retained are names of libraries kept from a previous run.
	Retained []string `json:"retained,omitempty" yaml:"retained,omitempty"`

	names   map[string]string
	aliases map[string]string
	// stems maps a library stem to the vendored names which have it.
	stems map[string][]string
}

func newIndex() *Index {
	return &Index{
		names:   map[string]string{},
		aliases: map[string]string{},
		stems:   map[string][]string{},
	}
}

// Name returns the vendored name of the library with the given
// canonical path.
func (i *Index) Name(canonical string) (string, bool) {
	if i == nil {
		return "", false
	}
	name, ok := i.names[canonical]
	return name, ok
}

// Alias returns the vendored name a library is known under by another
// name, for example its unversioned name. Names which are not
// registered aliases resolve through their stem, if exactly one
// vendored library has that stem: libz.1 resolves to libz.1.3.dylib.
func (i *Index) Alias(name string) (string, bool) {
	if i == nil {
		return "", false
	}
	if target, ok := i.aliases[name]; ok {
		return target, true
	}
	candidates := i.stems[libraryStem(name)]
	if len(candidates) != 1 || candidates[0] == name {
		return "", false
	}
	return candidates[0], true
}

func (i *Index) addStem(name string) {
	stem := libraryStem(name)
	for _, n := range i.stems[stem] {
		if n == name {
			return
		}
	}
	i.stems[stem] = append(i.stems[stem], name)
}

func (i *Index) addAlias(alias, name string) {
	if alias == name {
		return
	}
	if _, ok := i.aliases[alias]; ok {
		return
	}
	i.aliases[alias] = name
}

// Vendorer copies the libraries found by the Walker into the libs
// directory.
type Vendorer struct {
	Layout   *Layout
	Rewriter installname.Rewriter
	// CollisionPolicy decides what happens if two different libraries
	// have the same file name, see config.CollisionPolicyError and
	// config.CollisionPolicySuffix.
	CollisionPolicy string
}

// Vendor recreates the libs directory and fills it with the libraries
// of the walk result. Retained libraries are kept, unless a freshly
// vendored library has the same name, in which case the fresh copy
// replaces it.
func (v *Vendorer) Vendor(result *WalkResult) (*Index, error) {
	index, err := v.buildIndex(result.Vendor)
	if err != nil {
		return nil, err
	}

	libsDir := v.Layout.LibsDir()
	stagingDir, err := os.MkdirTemp("", "vboxpack-libs-")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer fileutil.ForceRemoveAll(stagingDir)

	fresh := map[string]bool{}
	for _, lib := range index.Libraries {
		fresh[lib.Name] = true
	}
	for _, name := range result.Retained {
		if fresh[name] {
			log.Debugf("Replacing %s from a previous run", name)
			continue
		}
		err = copy.Copy(filepath.Join(libsDir, name), filepath.Join(stagingDir, name))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		index.Retained = append(index.Retained, name)
		index.addStem(name)
	}

	err = fileutil.ForceRemoveAll(libsDir)
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(libsDir, 0o755)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, name := range index.Retained {
		err = os.Rename(filepath.Join(stagingDir, name), filepath.Join(libsDir, name))
		if err != nil {
			// The staging directory may be on another file system
			err = copy.Copy(filepath.Join(stagingDir, name), filepath.Join(libsDir, name))
			if err != nil {
				return nil, errors.WithStack(err)
			}
		}
	}

	for _, lib := range index.Libraries {
		dest := filepath.Join(libsDir, lib.Name)
		log.Debugf("Vendoring %s as %s", lib.Source, lib.Name)
		err = copy.Copy(lib.Source, dest)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to copy %s", lib.Source)
		}
		err = os.Chmod(dest, VendoredFileMode)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		// The copy keeps the install name of its source until it is
		// set here, later passes would try to rewrite it otherwise.
		err = v.Rewriter.SetID(v.Layout.RelativeRef(lib.Name), dest)
		if err != nil {
			return nil, err
		}
	}

	return index, nil
}

func (v *Vendorer) buildIndex(paths []string) (*Index, error) {
	index := newIndex()
	byCanonical := map[string]*Library{}
	sources := map[string]string{}

	for _, path := range paths {
		canonical, err := fileutil.CanonicalPath(path)
		if err != nil {
			log.Warnf("Not vendoring %s, it no longer exists", path)
			continue
		}
		if lib, ok := byCanonical[canonical]; ok {
			lib.Refs = append(lib.Refs, path)
			continue
		}

		name := filepath.Base(path)
		if other, taken := sources[name]; taken {
			same, err := fileutil.SameContent(other, canonical)
			if err != nil {
				return nil, err
			}
			if same {
				// Identical copies in different places need only one copy
				lib := byCanonical[other]
				lib.Refs = append(lib.Refs, path)
				byCanonical[canonical] = lib
				index.names[canonical] = name
				continue
			}
			switch v.CollisionPolicy {
			case config.CollisionPolicySuffix:
				renamed := suffixedName(name, canonical)
				log.Warnf("%s and %s are both named %s, vendoring the latter as %s", other, canonical, name, renamed)
				name = renamed
			default:
				return nil, errors.Errorf("Library name collision: %s and %s would both be vendored as %s", other, canonical, name)
			}
		}

		lib := &Library{Name: name, Source: canonical, Refs: []string{path}}
		byCanonical[canonical] = lib
		sources[name] = canonical
		index.names[canonical] = name
		index.Libraries = append(index.Libraries, lib)
	}

	// Aliases are registered after all names are assigned, so an alias
	// never shadows the name of another vendored library.
	for _, lib := range index.Libraries {
		index.addStem(lib.Name)
		candidates := []string{filepath.Base(lib.Source)}
		for _, ref := range lib.Refs {
			candidates = append(candidates, filepath.Base(ref))
		}
		for _, candidate := range candidates {
			candidates = append(candidates, unversionedName(candidate))
		}
		for _, alias := range candidates {
			if _, taken := sources[alias]; taken {
				continue
			}
			index.addAlias(alias, lib.Name)
		}
	}
	return index, nil
}

// suffixedName disambiguates a library name with a hash of its source.
func suffixedName(name, canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + hex.EncodeToString(sum[:])[:8] + ext
}

// libraryStem returns the part of a library name before the first dot,
// which libz, libz.1, libz.1.dylib and libz.1.3.dylib have in common.
func libraryStem(name string) string {
	stem, _, _ := strings.Cut(name, ".")
	return stem
}

// unversionedName strips the version from a library name, so that
// libz.1.dylib and libz.1.3.dylib become libz.dylib.
func unversionedName(name string) string {
	ext := filepath.Ext(name)
	stem, _, _ := strings.Cut(strings.TrimSuffix(name, ext), ".")
	return stem + ext
}
