package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterScott/LLDBagility/internal/bundle/bundletest"
	"github.com/MasterScott/LLDBagility/internal/config"
)

type failingRewriter struct{}

func (failingRewriter) Change(old, new, target string) error {
	return errors.Errorf("%s: can't open file", target)
}

func (failingRewriter) SetID(id, target string) error {
	return nil
}

func TestRewritePass(t *testing.T) {
	f := newFixture(t)
	bar := f.lib("libbar.2.dylib")
	foo := f.lib("libfoo.1.dylib", bar, "/usr/lib/libSystem.B.dylib")
	qt := filepath.Join(f.toolkit, "lib", "QtCore.framework", "Versions", "5", "QtCore")
	bundletest.WriteBinary(t, qt, qt)
	app := f.app("Contents/MacOS/App", foo, qt, "@rpath/VBoxRT.dylib")

	index, err := f.vendorer(config.CollisionPolicyError).Vendor(&WalkResult{Vendor: []string{bar, foo}})
	require.NoError(t, err)

	count, err := f.relinker().RewritePass(f.layout.OutputDir, index)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"@executable_path/../libs/libfoo.1.dylib", qt, "@rpath/VBoxRT.dylib"}, bundletest.Deps(t, app))
	assert.Equal(t,
		[]string{"@executable_path/../libs/libbar.2.dylib", "/usr/lib/libSystem.B.dylib"},
		bundletest.Deps(t, filepath.Join(f.layout.LibsDir(), "libfoo.1.dylib")))
	// Only files in the bundle are rewritten
	assert.Equal(t, []string{bar, "/usr/lib/libSystem.B.dylib"}, bundletest.Deps(t, foo))

	changes := len(f.rewriter.Changes)
	count, err = f.relinker().RewritePass(f.layout.OutputDir, index)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Len(t, f.rewriter.Changes, changes)
}

func TestRewritePassFailsForUnvendoredDependency(t *testing.T) {
	f := newFixture(t)
	foo := f.lib("libfoo.1.dylib")
	f.app("Contents/MacOS/App", foo)

	_, err := f.relinker().RewritePass(f.layout.OutputDir, newIndex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not vendored")
}

func TestRewritePassSkipsMissingDependencies(t *testing.T) {
	f := newFixture(t)
	gone := filepath.Join(f.prefix, "libgone.dylib")
	app := f.app("Contents/MacOS/App", gone)

	count, err := f.relinker().RewritePass(f.layout.OutputDir, newIndex())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, []string{gone}, bundletest.Deps(t, app))
}

func TestRewritePassRepairsAliases(t *testing.T) {
	f := newFixture(t)
	f.lib("libz.1.3.dylib")
	link := filepath.Join(f.prefix, "libz.1.dylib")
	require.NoError(t, os.Symlink("libz.1.3.dylib", link))
	f.app("Contents/MacOS/App", link)
	widgets := f.app("Contents/Frameworks/QtWidgets.framework/Versions/5/QtWidgets",
		"@executable_path/../libs/libz.dylib",
		"@executable_path/../libs/libunknown.dylib")

	index, err := f.vendorer(config.CollisionPolicyError).Vendor(&WalkResult{Vendor: []string{link}})
	require.NoError(t, err)

	count, err := f.relinker().RewritePass(f.layout.OutputDir, index)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t,
		[]string{"@executable_path/../libs/libz.1.dylib", "@executable_path/../libs/libunknown.dylib"},
		bundletest.Deps(t, widgets))
}

func TestRewritePassRepairsVersionOnlyReference(t *testing.T) {
	f := newFixture(t)
	f.lib("libz.1.3.dylib")
	link := filepath.Join(f.prefix, "libz.dylib")
	require.NoError(t, os.Symlink("libz.1.3.dylib", link))
	f.app("Contents/MacOS/App", link)
	// macdeployqt leaves this reference in QtWidgets
	widgets := f.app("Contents/Frameworks/QtWidgets.framework/Versions/5/QtWidgets",
		"@executable_path/../libs/libz.1")

	index, err := f.vendorer(config.CollisionPolicyError).Vendor(&WalkResult{Vendor: []string{link}})
	require.NoError(t, err)

	_, err = f.relinker().RewritePass(f.layout.OutputDir, index)
	require.NoError(t, err)
	assert.Equal(t, []string{"@executable_path/../libs/libz.dylib"}, bundletest.Deps(t, widgets))

	findings, err := f.relinker().Verify(f.layout.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestRewritePassLeavesAmbiguousStem(t *testing.T) {
	f := newFixture(t)
	old := f.lib("libssl.1.0.dylib")
	current := f.lib("libssl.1.1.dylib")
	f.app("Contents/MacOS/App", old, current)
	widgets := f.app("Contents/Frameworks/QtNetwork.framework/Versions/5/QtNetwork",
		"@executable_path/../libs/libssl.1")

	index, err := f.vendorer(config.CollisionPolicyError).Vendor(&WalkResult{Vendor: []string{old, current}})
	require.NoError(t, err)

	_, err = f.relinker().RewritePass(f.layout.OutputDir, index)
	require.NoError(t, err)
	assert.Equal(t, []string{"@executable_path/../libs/libssl.1"}, bundletest.Deps(t, widgets))

	findings, err := f.relinker().Verify(f.layout.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, []Finding{{File: widgets, Ref: "@executable_path/../libs/libssl.1", Missing: true}}, findings)
}

func TestRewritePassFailure(t *testing.T) {
	f := newFixture(t)
	foo := f.lib("libfoo.1.dylib")
	f.app("Contents/MacOS/App", foo)

	index, err := f.vendorer(config.CollisionPolicyError).Vendor(&WalkResult{Vendor: []string{foo}})
	require.NoError(t, err)

	r := f.relinker()
	r.Rewriter = failingRewriter{}
	_, err = r.RewritePass(f.layout.OutputDir, index)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't open file")
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	foo := f.lib("libfoo.1.dylib")
	gone := filepath.Join(f.prefix, "libgone.dylib")
	app := f.app("Contents/MacOS/App", foo, gone, "/usr/lib/libSystem.B.dylib")

	findings, err := f.relinker().Verify(f.layout.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, []Finding{{File: app, Ref: foo}}, findings)

	index, err := f.vendorer(config.CollisionPolicyError).Vendor(&WalkResult{Vendor: []string{foo}})
	require.NoError(t, err)
	_, err = f.relinker().RewritePass(f.layout.OutputDir, index)
	require.NoError(t, err)

	findings, err = f.relinker().Verify(f.layout.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestVerifyReportsMissingVendoredLibraries(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.layout.LibsDir(), 0o755))
	bundletest.WriteBinary(t, filepath.Join(f.layout.LibsDir(), "libfoo.1.dylib"), "@executable_path/../libs/libfoo.1.dylib")
	app := f.app("Contents/MacOS/App",
		"@executable_path/../libs/libfoo.1.dylib",
		"@executable_path/../libs/libgone.dylib",
		"@rpath/VBoxRT.dylib")

	findings, err := f.relinker().Verify(f.layout.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, []Finding{{File: app, Ref: "@executable_path/../libs/libgone.dylib", Missing: true}}, findings)
}
