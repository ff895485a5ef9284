// Package bundletest provides a fake binary format for testing the
// bundle pipeline on any platform. A fake binary is a text file:
//
//	#fakebin
//	id @rpath/libfoo.dylib
//	dep /opt/local/lib/libbar.1.dylib
//
// Inspector reads the id and dep lines the way `otool -L` lists them
// and Rewriter edits them the way `install_name_tool` does.
package bundletest

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const header = "#fakebin"

// WriteBinary writes a fake binary with the given install id (may be
// empty) and dependency references.
func WriteBinary(t *testing.T, path, id string, deps ...string) {
	t.Helper()
	lines := []string{header}
	if id != "" {
		lines = append(lines, "id "+id)
	}
	for _, dep := range deps {
		lines = append(lines, "dep "+dep)
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o755))
}

func readLines(path string) ([]string, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	if len(lines) == 0 || lines[0] != header {
		return nil, false, nil
	}
	return lines[1:], true, nil
}

func writeLines(path string, lines []string) error {
	content := strings.Join(append([]string{header}, lines...), "\n") + "\n"
	info, err := os.Stat(path)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, []byte(content), info.Mode().Perm()))
}

// Deps returns the dep lines of the fake binary at path.
func Deps(t *testing.T, path string) []string {
	t.Helper()
	lines, ok, err := readLines(path)
	require.NoError(t, err)
	require.True(t, ok, "%s is not a fake binary", path)
	var deps []string
	for _, line := range lines {
		if dep, found := strings.CutPrefix(line, "dep "); found {
			deps = append(deps, dep)
		}
	}
	return deps
}

// ID returns the install id of the fake binary at path.
func ID(t *testing.T, path string) string {
	t.Helper()
	lines, ok, err := readLines(path)
	require.NoError(t, err)
	require.True(t, ok, "%s is not a fake binary", path)
	for _, line := range lines {
		if id, found := strings.CutPrefix(line, "id "); found {
			return id
		}
	}
	return ""
}

// Inspector lists the references of fake binaries. Other files have
// no references.
type Inspector struct {
	mu    sync.Mutex
	calls map[string]int
}

func (i *Inspector) References(path string) ([]string, error) {
	i.mu.Lock()
	if i.calls == nil {
		i.calls = map[string]int{}
	}
	i.calls[path]++
	i.mu.Unlock()

	lines, ok, err := readLines(path)
	if err != nil || !ok {
		return nil, nil
	}
	var refs []string
	for _, line := range lines {
		_, ref, found := strings.Cut(line, " ")
		if found {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Calls returns how often the file at path was inspected.
func (i *Inspector) Calls(path string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls[path]
}

// Inspected returns the number of distinct inspected paths.
func (i *Inspector) Inspected() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.calls)
}

// Change records a single rewrite.
type Change struct {
	Old, New, Target string
}

// Rewriter edits fake binaries. Like install_name_tool it fails if the
// reference to change is not recorded in the target.
type Rewriter struct {
	mu      sync.Mutex
	Changes []Change
	IDs     []Change
}

func (r *Rewriter) Change(old, new, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines, ok, err := readLines(target)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("%s is not a fake binary", target)
	}
	found := false
	for i, line := range lines {
		if line == "dep "+old {
			lines[i] = "dep " + new
			found = true
		}
	}
	if !found {
		return errors.Errorf("%s does not reference %s", target, old)
	}
	r.Changes = append(r.Changes, Change{Old: old, New: new, Target: target})
	return writeLines(target, lines)
}

func (r *Rewriter) SetID(id, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines, ok, err := readLines(target)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("%s is not a fake binary", target)
	}
	replaced := false
	for i, line := range lines {
		if strings.HasPrefix(line, "id ") {
			lines[i] = "id " + id
			replaced = true
		}
	}
	if !replaced {
		lines = append([]string{"id " + id}, lines...)
	}
	r.IDs = append(r.IDs, Change{New: id, Target: target})
	return writeLines(target, lines)
}

// Invocations returns the total number of Change and SetID calls.
func (r *Rewriter) Invocations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Changes) + len(r.IDs)
}
