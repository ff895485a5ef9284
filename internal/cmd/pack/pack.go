package pack

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MasterScott/LLDBagility/internal/bundle"
	"github.com/MasterScott/LLDBagility/internal/cmdutils"
	"github.com/MasterScott/LLDBagility/internal/cmdutils/logging"
	"github.com/MasterScott/LLDBagility/internal/config"
	"github.com/MasterScott/LLDBagility/internal/installname"
	"github.com/MasterScott/LLDBagility/internal/ldd"
	"github.com/MasterScott/LLDBagility/pkg/dependencies"
	"github.com/MasterScott/LLDBagility/pkg/log"
	"github.com/MasterScott/LLDBagility/util/fileutil"
)

type options struct {
	BuildDir          string                  `mapstructure:"build-dir"`
	DistSubdir        string                  `mapstructure:"dist-subdir"`
	OutputDir         string                  `mapstructure:"output-dir"`
	AppName           string                  `mapstructure:"app-name"`
	LibsSubdir        string                  `mapstructure:"libs-subdir"`
	VendorPrefixes    []string                `mapstructure:"vendor-prefixes"`
	FrameworkPrefixes []string                `mapstructure:"framework-prefixes"`
	DeployTool        string                  `mapstructure:"deploy-tool"`
	ToolkitVersion    string                  `mapstructure:"toolkit-version"`
	Patches           []config.FrameworkPatch `mapstructure:"framework-patches"`
	Inspector         string                  `mapstructure:"inspector"`
	Jobs              int                     `mapstructure:"jobs"`
	CollisionPolicy   string                  `mapstructure:"collision-policy"`
	InPlace           bool                    `mapstructure:"in-place"`
	Manifest          string                  `mapstructure:"manifest"`

	stdout    io.Writer
	stderr    io.Writer
	inspector ldd.Inspector
	rewriter  installname.Rewriter
}

func (opts *options) validate() error {
	err := config.ValidateInspector(opts.Inspector)
	if err != nil {
		return err
	}
	err = config.ValidateCollisionPolicy(opts.CollisionPolicy)
	if err != nil {
		return err
	}
	if opts.Jobs < 1 {
		return cmdutils.WrapIncorrectUsageError(errors.Errorf("Invalid number of jobs %d, must be at least 1", opts.Jobs))
	}
	if opts.AppName == "" || opts.OutputDir == "" {
		return cmdutils.WrapIncorrectUsageError(errors.New("Output directory and app name must be set"))
	}
	if len(opts.VendorPrefixes) == 0 {
		return cmdutils.WrapIncorrectUsageError(errors.New("At least one vendor prefix must be set"))
	}
	return nil
}

type packCmd struct {
	*cobra.Command
	opts *options
}

// manifest is the content of the file written with --manifest.
type manifest struct {
	App       string            `yaml:"app"`
	Libraries []*bundle.Library `yaml:"libraries"`
	Retained  []string          `yaml:"retained,omitempty"`
	Patched   int               `yaml:"patched"`
	Rewritten int               `yaml:"rewritten"`
}

func New() *cobra.Command {
	return newWithOptions(&options{})
}

func newWithOptions(opts *options) *cobra.Command {
	var bindFlags func()

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Make the VirtualBox bundle self-contained",
		Long: `This command copies the build output into the output directory and makes
the application bundle self-contained:

  1. The toolkit deployment tool copies the Qt frameworks into the bundle.
  2. References the deployment tool left pointing at the Qt install are
     patched according to the framework patch table.
  3. All libraries from the vendor prefixes which the bundle depends on,
     directly or transitively, are copied into Contents/libs.
  4. All references to them are rewritten to @executable_path/../libs.

With --in-place the existing output directory is packed again instead of
a fresh copy of the build output. Packing an already packed bundle
doesn't change it.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind viper keys to flags. We can't do this in the New
			// function, because that would re-bind viper keys which
			// were bound to the flags of other commands before.
			bindFlags()
			err := config.SetDefaults()
			if err != nil {
				return err
			}
			err = config.ParseConfig(opts)
			if err != nil {
				return err
			}
			if opts.stdout == nil {
				opts.stdout = cmd.OutOrStdout()
			}
			if opts.stderr == nil {
				opts.stderr = cmd.ErrOrStderr()
			}
			return opts.validate()
		},
		RunE: func(c *cobra.Command, args []string) error {
			cmd := packCmd{Command: c, opts: opts}
			return cmd.run()
		},
	}

	bindFlags = cmdutils.AddFlags(cmd,
		cmdutils.AddBuildDirFlag,
		cmdutils.AddOutputDirFlag,
		cmdutils.AddAppNameFlag,
		cmdutils.AddInspectorFlag,
		cmdutils.AddJobsFlag,
		cmdutils.AddCollisionPolicyFlag,
		cmdutils.AddDeployToolFlag,
		cmdutils.AddVendorPrefixesFlag,
		cmdutils.AddFrameworkPrefixesFlag,
		cmdutils.AddInPlaceFlag,
		cmdutils.AddManifestFlag,
	)

	return cmd
}

func (c *packCmd) run() error {
	err := c.setupTools()
	if err != nil {
		return err
	}

	unlock, err := cmdutils.LockDir(c.opts.OutputDir)
	if err != nil {
		return err
	}
	defer unlock()

	layout := &bundle.Layout{
		OutputDir:  c.opts.OutputDir,
		AppName:    c.opts.AppName,
		LibsSubdir: c.opts.LibsSubdir,
	}

	if c.opts.InPlace {
		exists, err := fileutil.Exists(layout.AppDir())
		if err != nil {
			return err
		}
		if !exists {
			return errors.Errorf("%s does not exist, run 'vboxpack pack' without --in-place first", layout.AppDir())
		}
	} else {
		err = c.prepare(layout)
		if err != nil {
			return err
		}
	}

	pipeline := &bundle.Pipeline{
		Layout: layout,
		Classifier: &bundle.Classifier{
			VendorPrefixes:    c.opts.VendorPrefixes,
			FrameworkPrefixes: c.opts.FrameworkPrefixes,
		},
		Inspector:       c.opts.inspector,
		Rewriter:        c.opts.rewriter,
		Patches:         c.opts.Patches,
		Jobs:            c.opts.Jobs,
		CollisionPolicy: c.opts.CollisionPolicy,
		Output:          c.opts.stderr,
	}
	report, err := pipeline.Run(c.Context())
	if err != nil {
		return err
	}

	if c.opts.Manifest != "" {
		err = c.writeManifest(layout, report)
		if err != nil {
			return err
		}
	}

	log.Successf("Packed %s", layout.AppDir())
	return nil
}

// setupTools creates the inspector and rewriter unless they were
// injected, and checks that the external tools they need exist.
func (c *packCmd) setupTools() error {
	var required []dependencies.Key
	if c.opts.inspector == nil {
		inspector, err := ldd.NewInspector(c.opts.Inspector)
		if err != nil {
			return err
		}
		c.opts.inspector = inspector
		if c.opts.Inspector == config.InspectorOtool {
			required = append(required, dependencies.Otool)
		}
	}
	if c.opts.rewriter == nil {
		c.opts.rewriter = &installname.Tool{}
		required = append(required, dependencies.InstallNameTool)
	}
	return dependencies.Check(required...)
}

func (c *packCmd) prepare(layout *bundle.Layout) error {
	distDir := filepath.Join(c.opts.BuildDir, c.opts.DistSubdir)
	printer := logging.NewStagePrinter(c.opts.stderr, "Copying build output")
	err := bundle.PrepareOutput(distDir, layout.OutputDir)
	if err != nil {
		printer.StopOnError("Copying build output failed")
		return err
	}
	printer.StopOnSuccess("Copied " + distDir)

	deployer := &bundle.Deployer{
		Path:           c.opts.DeployTool,
		ToolkitVersion: c.opts.ToolkitVersion,
		Stdout:         c.opts.stdout,
		Stderr:         c.opts.stderr,
	}
	if deployer.Path == "" {
		return nil
	}
	log.Infof("Deploying frameworks with %s", deployer.Path)
	return deployer.Deploy(layout.AppDir())
}

func (c *packCmd) writeManifest(layout *bundle.Layout, report *bundle.Report) error {
	m := &manifest{
		App:       layout.AppDir(),
		Libraries: report.Index.Libraries,
		Retained:  report.Index.Retained,
		Patched:   report.Patched,
		Rewritten: report.Rewritten,
	}
	out, err := yaml.Marshal(m)
	if err != nil {
		return errors.WithStack(err)
	}
	err = os.WriteFile(c.opts.Manifest, out, 0o644)
	if err != nil {
		return errors.WithStack(err)
	}
	log.Infof("Wrote manifest %s", c.opts.Manifest)
	return nil
}
