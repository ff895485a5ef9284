package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterScott/LLDBagility/internal/bundle/bundletest"
	"github.com/MasterScott/LLDBagility/internal/config"
	"github.com/MasterScott/LLDBagility/util/fileutil"
)

func TestPipelineTransitiveDependencies(t *testing.T) {
	f := newFixture(t)
	bar := f.lib("libbar.2.dylib")
	foo := f.lib("libfoo.1.dylib", bar)
	app := f.app("Contents/MacOS/App", foo)

	report, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"libbar.2.dylib", "libfoo.1.dylib"}, f.libs())
	assert.Equal(t, []string{"@executable_path/../libs/libfoo.1.dylib"}, bundletest.Deps(t, app))
	assert.Equal(t,
		[]string{"@executable_path/../libs/libbar.2.dylib"},
		bundletest.Deps(t, filepath.Join(f.layout.LibsDir(), "libfoo.1.dylib")))
	assert.Equal(t, 2, report.Rewritten)
}

func TestPipelineSharedDependency(t *testing.T) {
	f := newFixture(t)
	shared := f.lib("libshared.dylib")
	a := f.app("Contents/MacOS/A", shared)
	b := f.app("Contents/Resources/B", shared)

	_, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"libshared.dylib"}, f.libs())
	assert.Equal(t, []string{"@executable_path/../libs/libshared.dylib"}, bundletest.Deps(t, a))
	assert.Equal(t, []string{"@executable_path/../libs/libshared.dylib"}, bundletest.Deps(t, b))
}

func TestPipelineMissingDependency(t *testing.T) {
	f := newFixture(t)
	gone := filepath.Join(f.prefix, "libgone.dylib")
	app := f.app("Contents/MacOS/App", gone)

	report, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.libs())
	assert.Equal(t, []string{gone}, bundletest.Deps(t, app))
	assert.Equal(t, 0, report.Rewritten)
	assert.Equal(t, 0, f.rewriter.Invocations())
}

func TestPipelineCycle(t *testing.T) {
	f := newFixture(t)
	x := filepath.Join(f.prefix, "libx.dylib")
	y := filepath.Join(f.prefix, "liby.dylib")
	bundletest.WriteBinary(t, x, x, y)
	bundletest.WriteBinary(t, y, y, x)
	f.app("Contents/MacOS/App", x)

	_, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"libx.dylib", "liby.dylib"}, f.libs())
	assert.Equal(t,
		[]string{"@executable_path/../libs/liby.dylib"},
		bundletest.Deps(t, filepath.Join(f.layout.LibsDir(), "libx.dylib")))
	assert.Equal(t,
		[]string{"@executable_path/../libs/libx.dylib"},
		bundletest.Deps(t, filepath.Join(f.layout.LibsDir(), "liby.dylib")))
}

func TestPipelineRerunChangesNothing(t *testing.T) {
	f := newFixture(t)
	bar := f.lib("libbar.2.dylib")
	foo := f.lib("libfoo.1.dylib", bar)
	f.app("Contents/MacOS/App", foo)
	patches := f.qtPatches()[:1]
	f.app(patches[0].Target, patches[0].Old, foo)

	p := f.pipeline()
	p.Patches = patches
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	before := f.snapshot()
	libsBefore := f.libs()

	rewriter := &bundletest.Rewriter{}
	p.Rewriter = rewriter
	p.Inspector = &bundletest.Inspector{}
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, rewriter.Invocations())
	assert.Equal(t, 0, report.Patched)
	assert.Equal(t, 0, report.Rewritten)
	assert.Equal(t, libsBefore, f.libs())
	assert.Equal(t, before, f.snapshot())
	assert.Equal(t, []string{"libbar.2.dylib", "libfoo.1.dylib"}, report.Index.Retained)
}

func TestPipelineProperties(t *testing.T) {
	f := newFixture(t)
	// A mix of everything: diamond, cycle, symlinked versions, system
	// libraries in between and toolkit frameworks
	d := f.lib("libd.dylib")
	b := f.lib("libb.dylib", d)
	c := f.lib("libc.dylib", d)
	x := filepath.Join(f.prefix, "libx.dylib")
	y := filepath.Join(f.prefix, "liby.dylib")
	bundletest.WriteBinary(t, x, x, y, b)
	bundletest.WriteBinary(t, y, y, x)
	z := filepath.Join(f.prefix, "libz.1.dylib")
	bundletest.WriteBinary(t, filepath.Join(f.prefix, "libz.1.3.dylib"), z)
	require.NoError(t, os.Symlink("libz.1.3.dylib", z))
	sys := filepath.Join(f.system, "libsys.dylib")
	bundletest.WriteBinary(t, sys, sys, c)
	qt := filepath.Join(f.toolkit, "lib", "QtCore.framework", "Versions", "5", "QtCore")
	bundletest.WriteBinary(t, qt, qt, z)

	f.app("Contents/MacOS/VirtualBox", x, qt, "@rpath/VBoxRT.dylib")
	f.app("Contents/MacOS/VBoxManage", sys, z)
	f.app("Contents/MacOS/VBoxRT.dylib", z, filepath.Join(f.prefix, "libgone.dylib"))
	require.NoError(t, os.WriteFile(filepath.Join(f.layout.AppDir(), "Contents", "Info.plist"), []byte("<plist/>"), 0o644))

	p := f.pipeline()
	p.Jobs = 3
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	// Completeness: every Vendor path found has a copy in libs
	for _, path := range report.Walk.Vendor {
		name, ok := report.Index.Name(canonical(t, path))
		require.True(t, ok, path)
		assert.FileExists(t, filepath.Join(f.layout.LibsDir(), name))
	}
	// No dangling copies: every copy has an existing source
	assert.Len(t, f.libs(), len(report.Index.Libraries))
	for _, lib := range report.Index.Libraries {
		assert.True(t, fileutil.IsRegularFile(lib.Source), lib.Source)
	}
	assert.Equal(t, []string{"libb.dylib", "libc.dylib", "libd.dylib", "libx.dylib", "liby.dylib", "libz.1.dylib"}, f.libs())

	// Post-condition: nothing refers to the vendor prefix anymore
	findings, err := f.relinker().Verify(f.layout.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, findings)

	// Idempotence
	count, err := f.relinker().RewritePass(f.layout.OutputDir, report.Index)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPipelineCollisionFails(t *testing.T) {
	f := newFixture(t)
	first := f.lib("libdup.dylib")
	otherPrefix := filepath.Join(f.dir, "other", "lib")
	second := filepath.Join(otherPrefix, "libdup.dylib")
	bundletest.WriteBinary(t, second, second)
	f.app("Contents/MacOS/A", first)
	f.app("Contents/MacOS/B", second)

	p := f.pipeline()
	p.Classifier.VendorPrefixes = append(p.Classifier.VendorPrefixes, otherPrefix)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision")

	p.CollisionPolicy = config.CollisionPolicySuffix
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.libs(), 2)
}

func TestPipelineFailsOnRewriteError(t *testing.T) {
	f := newFixture(t)
	foo := f.lib("libfoo.1.dylib")
	f.app("Contents/MacOS/App", foo)

	p := f.pipeline()
	p.Rewriter = failingRewriter{}
	_, err := p.Run(context.Background())
	require.Error(t, err)
}

func TestPipelineRepairsVersionOnlyReference(t *testing.T) {
	f := newFixture(t)
	f.lib("libz.1.3.dylib")
	link := filepath.Join(f.prefix, "libz.dylib")
	require.NoError(t, os.Symlink("libz.1.3.dylib", link))
	f.app("Contents/MacOS/App", link)
	widgets := f.app("Contents/Frameworks/QtWidgets.framework/Versions/5/QtWidgets",
		"@executable_path/../libs/libz.1")

	_, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)
	// The install name of libz.1.3.dylib is recorded, too, and sorts first
	assert.Equal(t, []string{"libz.1.3.dylib"}, f.libs())
	assert.Equal(t, []string{"@executable_path/../libs/libz.1.3.dylib"}, bundletest.Deps(t, widgets))
}

func TestPipelineFailsOnDanglingLibsReference(t *testing.T) {
	f := newFixture(t)
	foo := f.lib("libfoo.1.dylib")
	f.app("Contents/MacOS/App", foo)
	f.app("Contents/Frameworks/QtWidgets.framework/Versions/5/QtWidgets",
		"@executable_path/../libs/libunknown.dylib")

	_, err := f.pipeline().Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "@executable_path/../libs/libunknown.dylib (not in the libs directory)")
}
