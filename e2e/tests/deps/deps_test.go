package deps_test

import (
	"testing"

	"github.com/MasterScott/LLDBagility/e2e"
)

func TestDepsOfBuildOutput(t *testing.T) {
	f := e2e.NewFixture(t)
	output := f.Command(t, "deps", f.BuildDir)
	output.Success().
		OutputContains(f.Lib("libpng16.16.dylib")).
		OutputContains(f.Lib("libxml2.2.dylib")).
		OutputContains(f.Lib("libz.1.dylib")).
		OutputNotContains(f.QtCore())
}

func TestDepsOfPackedBundleIsEmpty(t *testing.T) {
	f := e2e.NewFixture(t)
	f.Command(t, "pack").Success()

	output := f.Command(t, "deps")
	output.Success().NoOutput().ErrorContains("Already vendored")
}

func TestDepsJSON(t *testing.T) {
	f := e2e.NewFixture(t)
	output := f.Command(t, "deps", "--json", f.BuildDir)
	output.Success().
		OutputContains(`"vendor"`).
		OutputContains(f.Lib("libz.1.dylib"))
}
