package build

import (
	"fmt"
	"io"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/spf13/cobra"

	"github.com/MasterScott/LLDBagility/internal/build/kbuild"
	"github.com/MasterScott/LLDBagility/internal/cmdutils"
	"github.com/MasterScott/LLDBagility/internal/config"
	"github.com/MasterScott/LLDBagility/pkg/log"
)

type options struct {
	SourceDir      string   `mapstructure:"source-dir"`
	BuildDir       string   `mapstructure:"build-dir"`
	DistSubdir     string   `mapstructure:"dist-subdir"`
	QtDir          string   `mapstructure:"qt-dir"`
	OpenSSLDir     string   `mapstructure:"openssl-dir"`
	XcodeDir       string   `mapstructure:"xcode-dir"`
	LocalConfig    []string `mapstructure:"local-config"`
	ConfigureFlags []string `mapstructure:"configure-flags"`
	Notify         bool     `mapstructure:"notify"`

	stdout io.Writer
	stderr io.Writer
	notify func(title, message string) error
}

type buildCmd struct {
	*cobra.Command
	opts *options
}

func New() *cobra.Command {
	return newWithOptions(&options{})
}

func newWithOptions(opts *options) *cobra.Command {
	var bindFlags func()

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build VirtualBox with the fixed configuration",
		Long: `This command configures and builds VirtualBox from the source tree in
the working directory (or --source-dir).

The build directory is deleted and recreated, LocalConfig.kmk is written
into it, then configure and kmk are run. The result in
<build-dir>/darwin.amd64/release/dist is the input of 'vboxpack pack'.`,
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
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			cmd := buildCmd{Command: c, opts: opts}
			return cmd.run()
		},
	}

	bindFlags = cmdutils.AddFlags(cmd,
		cmdutils.AddSourceDirFlag,
		cmdutils.AddBuildDirFlag,
		cmdutils.AddNotifyFlag,
	)

	return cmd
}

func (c *buildCmd) run() error {
	unlock, err := cmdutils.LockDir(c.opts.BuildDir)
	if err != nil {
		return err
	}
	defer unlock()

	builder, err := kbuild.NewBuilder(&kbuild.BuilderOptions{
		SourceDir:      c.opts.SourceDir,
		BuildDir:       c.opts.BuildDir,
		DistSubdir:     c.opts.DistSubdir,
		QtDir:          c.opts.QtDir,
		OpenSSLDir:     c.opts.OpenSSLDir,
		XcodeDir:       c.opts.XcodeDir,
		LocalConfig:    c.opts.LocalConfig,
		ConfigureFlags: c.opts.ConfigureFlags,
		Stdout:         c.opts.stdout,
		Stderr:         c.opts.stderr,
	})
	if err != nil {
		return cmdutils.WrapIncorrectUsageError(err)
	}

	log.Infof("Building VirtualBox in %s", c.opts.BuildDir)
	result, err := builder.Build()
	if err != nil {
		c.sendNotification("VirtualBox build failed")
		return err
	}

	msg := fmt.Sprintf("Done in %s", result.Duration.Round(time.Second))
	log.Success(msg)
	log.Infof("Build output: %s", result.DistDir)
	c.sendNotification("VirtualBox build finished. " + msg)
	return nil
}

func (c *buildCmd) sendNotification(msg string) {
	if !c.opts.Notify {
		return
	}
	notify := c.opts.notify
	if notify == nil {
		notify = func(title, message string) error {
			return beeep.Notify(title, message, "")
		}
	}
	err := notify("vboxpack", msg)
	if err != nil {
		log.Debugf("Failed to send notification: %v", err)
	}
}
