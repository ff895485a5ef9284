package deps

import (
	"fmt"

	"github.com/hokaccha/go-prettyjson"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/MasterScott/LLDBagility/internal/bundle"
	"github.com/MasterScott/LLDBagility/internal/cmdutils"
	"github.com/MasterScott/LLDBagility/internal/cmdutils/logging"
	"github.com/MasterScott/LLDBagility/internal/config"
	"github.com/MasterScott/LLDBagility/internal/ldd"
	"github.com/MasterScott/LLDBagility/pkg/log"
)

type options struct {
	OutputDir         string   `mapstructure:"output-dir"`
	AppName           string   `mapstructure:"app-name"`
	LibsSubdir        string   `mapstructure:"libs-subdir"`
	VendorPrefixes    []string `mapstructure:"vendor-prefixes"`
	FrameworkPrefixes []string `mapstructure:"framework-prefixes"`
	Inspector         string   `mapstructure:"inspector"`
	Jobs              int      `mapstructure:"jobs"`
	JSON              bool     `mapstructure:"json"`

	Dir string

	inspector ldd.Inspector
}

func (opts *options) validate() error {
	err := config.ValidateInspector(opts.Inspector)
	if err != nil {
		return err
	}
	if opts.Jobs < 1 {
		return cmdutils.WrapIncorrectUsageError(errors.Errorf("Invalid number of jobs %d, must be at least 1", opts.Jobs))
	}
	return nil
}

type depsCmd struct {
	*cobra.Command
	opts *options
}

func New() *cobra.Command {
	return newWithOptions(&options{})
}

func newWithOptions(opts *options) *cobra.Command {
	var bindFlags func()

	cmd := &cobra.Command{
		Use:   "deps [dir]",
		Short: "List the libraries a bundle needs from the vendor prefixes",
		Long: `This command walks the dependencies of every file in dir (default: the
output directory) without changing anything and lists the libraries from
the vendor prefixes which 'vboxpack pack' would copy into the bundle.

Any directory can be inspected, e.g. the dist directory of a build.`,
		Args: cobra.MaximumNArgs(1),
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
			opts.Dir = opts.OutputDir
			if len(args) == 1 {
				opts.Dir = args[0]
			}
			return opts.validate()
		},
		RunE: func(c *cobra.Command, args []string) error {
			cmd := depsCmd{Command: c, opts: opts}
			return cmd.run()
		},
	}

	bindFlags = cmdutils.AddFlags(cmd,
		cmdutils.AddOutputDirFlag,
		cmdutils.AddInspectorFlag,
		cmdutils.AddJobsFlag,
		cmdutils.AddVendorPrefixesFlag,
		cmdutils.AddFrameworkPrefixesFlag,
		cmdutils.AddJSONFlag,
	)

	return cmd
}

func (c *depsCmd) run() error {
	if c.opts.inspector == nil {
		inspector, err := ldd.NewInspector(c.opts.Inspector)
		if err != nil {
			return err
		}
		c.opts.inspector = inspector
	}

	walker := &bundle.Walker{
		Inspector: c.opts.inspector,
		Classifier: &bundle.Classifier{
			VendorPrefixes:    c.opts.VendorPrefixes,
			FrameworkPrefixes: c.opts.FrameworkPrefixes,
		},
		Layout: &bundle.Layout{
			OutputDir:  c.opts.Dir,
			AppName:    c.opts.AppName,
			LibsSubdir: c.opts.LibsSubdir,
		},
		Jobs: c.opts.Jobs,
	}

	printer := logging.NewStagePrinter(c.ErrOrStderr(), "Finding dependencies")
	result, err := walker.Walk(c.Context(), c.opts.Dir)
	if err != nil {
		printer.StopOnError("Finding dependencies failed")
		return err
	}
	printer.StopOnSuccess(fmt.Sprintf("Found %d dependencies in %d files", len(result.Vendor), result.Visited))

	if c.opts.JSON {
		out, err := prettyjson.Marshal(result)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = fmt.Fprintln(c.OutOrStdout(), string(out))
		return errors.WithStack(err)
	}

	for _, path := range result.Vendor {
		_, err = fmt.Fprintln(c.OutOrStdout(), path)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	if len(result.Retained) > 0 {
		log.Infof("Already vendored: %v", result.Retained)
	}
	return nil
}
