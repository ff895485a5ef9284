package bundle

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MasterScott/LLDBagility/internal/bundle/bundletest"
	"github.com/MasterScott/LLDBagility/internal/config"
)

// fixture is a fake build machine: a vendor prefix, a toolkit prefix,
// a system library directory and an output bundle.
type fixture struct {
	t         *testing.T
	dir       string
	prefix    string
	toolkit   string
	system    string
	layout    *Layout
	inspector *bundletest.Inspector
	rewriter  *bundletest.Rewriter
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	f := &fixture{
		t:       t,
		dir:     dir,
		prefix:  filepath.Join(dir, "opt", "local", "lib"),
		toolkit: filepath.Join(dir, "opt", "local", "libexec", "qt5"),
		system:  filepath.Join(dir, "usr", "lib"),
		layout: &Layout{
			OutputDir:  filepath.Join(dir, "out"),
			AppName:    "VirtualBox.app",
			LibsSubdir: filepath.Join("Contents", "libs"),
		},
		inspector: &bundletest.Inspector{},
		rewriter:  &bundletest.Rewriter{},
	}
	require.NoError(t, os.MkdirAll(f.layout.AppDir(), 0o755))
	return f
}

func (f *fixture) classifier() *Classifier {
	return &Classifier{
		VendorPrefixes:    []string{f.prefix},
		FrameworkPrefixes: []string{f.toolkit},
	}
}

// lib writes a fake library into the vendor prefix and returns its path.
func (f *fixture) lib(name string, deps ...string) string {
	path := filepath.Join(f.prefix, name)
	bundletest.WriteBinary(f.t, path, path, deps...)
	return path
}

// app writes a fake binary into the application bundle.
func (f *fixture) app(rel string, deps ...string) string {
	path := filepath.Join(f.layout.AppDir(), rel)
	bundletest.WriteBinary(f.t, path, "", deps...)
	return path
}

func (f *fixture) pipeline() *Pipeline {
	return &Pipeline{
		Layout:          f.layout,
		Classifier:      f.classifier(),
		Inspector:       f.inspector,
		Rewriter:        f.rewriter,
		Jobs:            1,
		CollisionPolicy: config.CollisionPolicyError,
		Output:          io.Discard,
	}
}

func (f *fixture) walker() *Walker {
	return &Walker{
		Inspector:  f.inspector,
		Classifier: f.classifier(),
		Layout:     f.layout,
		Jobs:       1,
	}
}

func (f *fixture) relinker() *Relinker {
	return &Relinker{
		Inspector:  f.inspector,
		Classifier: f.classifier(),
		Rewriter:   f.rewriter,
		Layout:     f.layout,
	}
}

// libs returns the names of the files in the libs directory.
func (f *fixture) libs() []string {
	entries, err := os.ReadDir(f.layout.LibsDir())
	require.NoError(f.t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// snapshot returns the content of every file below the output dir.
func (f *fixture) snapshot() map[string]string {
	files, err := listFiles(f.layout.OutputDir)
	require.NoError(f.t, err)
	s := map[string]string{}
	for _, file := range files {
		content, err := os.ReadFile(file)
		require.NoError(f.t, err)
		s[file] = string(content)
	}
	return s
}
