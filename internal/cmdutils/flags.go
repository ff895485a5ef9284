package cmdutils

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AddFlags executes the specified "AddFlag" functions and returns a
// function which binds all added flags to viper.
func AddFlags(cmd *cobra.Command, funcs ...func(cmd *cobra.Command) func()) func() {
	var bindFlagFuncs []func()
	for _, f := range funcs {
		bindFlagFuncs = append(bindFlagFuncs, f(cmd))
	}
	return func() {
		for _, bindFlags := range bindFlagFuncs {
			bindFlags()
		}
	}
}

func bindFunc(cmd *cobra.Command, key string) func() {
	return func() {
		ViperMustBindPFlag(key, cmd.Flags().Lookup(key))
	}
}

// ViperMustBindPFlag binds a flag to a viper key and panics on error,
// which can only happen if the flag doesn't exist.
func ViperMustBindPFlag(key string, flag *pflag.Flag) {
	err := viper.BindPFlag(key, flag)
	if err != nil {
		panic(err)
	}
}

func AddBuildDirFlag(cmd *cobra.Command) func() {
	cmd.Flags().String("build-dir", "",
		"Output directory of the VirtualBox build (default ~/LLDBagility-vbox-build).")
	return bindFunc(cmd, "build-dir")
}

func AddSourceDirFlag(cmd *cobra.Command) func() {
	cmd.Flags().String("source-dir", "",
		"VirtualBox source checkout in which configure and kmk are run (default: working directory).")
	return bindFunc(cmd, "source-dir")
}

func AddOutputDirFlag(cmd *cobra.Command) func() {
	cmd.Flags().StringP("output-dir", "o", "",
		"Directory the redistributable bundle is written to (default ~/LLDBagility-out-vbox).")
	return bindFunc(cmd, "output-dir")
}

func AddAppNameFlag(cmd *cobra.Command) func() {
	cmd.Flags().String("app-name", "",
		"Name of the primary application bundle inside the output directory.")
	return bindFunc(cmd, "app-name")
}

func AddInspectorFlag(cmd *cobra.Command) func() {
	cmd.Flags().String("inspector", "",
		"Backend used to read recorded library references: otool, macho or ldd.")
	return bindFunc(cmd, "inspector")
}

func AddJobsFlag(cmd *cobra.Command) func() {
	cmd.Flags().IntP("jobs", "j", 0,
		"Number of binaries inspected concurrently while walking dependencies.")
	return bindFunc(cmd, "jobs")
}

func AddCollisionPolicyFlag(cmd *cobra.Command) func() {
	cmd.Flags().String("collision-policy", "",
		"What to do when two different libraries share a file name: error or suffix.")
	return bindFunc(cmd, "collision-policy")
}

func AddDeployToolFlag(cmd *cobra.Command) func() {
	cmd.Flags().String("deploy-tool", "",
		"Framework deployment tool run on the application bundle before patching. Empty disables it.")
	return bindFunc(cmd, "deploy-tool")
}

func AddNotifyFlag(cmd *cobra.Command) func() {
	cmd.Flags().Bool("notify", false,
		"Show a desktop notification when the command has finished.")
	return bindFunc(cmd, "notify")
}

func AddManifestFlag(cmd *cobra.Command) func() {
	cmd.Flags().String("manifest", "",
		"Write a YAML manifest of the vendored libraries to this file.")
	return bindFunc(cmd, "manifest")
}

func AddInPlaceFlag(cmd *cobra.Command) func() {
	cmd.Flags().Bool("in-place", false,
		"Pack the existing output directory instead of a fresh copy of the build output.")
	return bindFunc(cmd, "in-place")
}

func AddJSONFlag(cmd *cobra.Command) func() {
	cmd.Flags().Bool("json", false, "Print the result as JSON.")
	return bindFunc(cmd, "json")
}

func AddVendorPrefixesFlag(cmd *cobra.Command) func() {
	cmd.Flags().StringSlice("vendor-prefixes", nil,
		"Package manager library directories whose libraries are copied into the bundle.")
	return bindFunc(cmd, "vendor-prefixes")
}

func AddFrameworkPrefixesFlag(cmd *cobra.Command) func() {
	cmd.Flags().StringSlice("framework-prefixes", nil,
		"Directories of the UI toolkit, whose frameworks are handled by the deployment tool.")
	return bindFunc(cmd, "framework-prefixes")
}
