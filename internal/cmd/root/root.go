package root

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	buildCmd "github.com/MasterScott/LLDBagility/internal/cmd/build"
	depsCmd "github.com/MasterScott/LLDBagility/internal/cmd/deps"
	packCmd "github.com/MasterScott/LLDBagility/internal/cmd/pack"
	"github.com/MasterScott/LLDBagility/internal/cmdutils"
	"github.com/MasterScott/LLDBagility/internal/config"
	"github.com/MasterScott/LLDBagility/pkg/log"
)

func New() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "vboxpack",
		Short: "Build VirtualBox and pack it into a self-contained macOS bundle",
		Long: `vboxpack builds VirtualBox with a fixed configuration and turns the
build output into a redistributable application bundle: every library
loaded from the MacPorts prefix is copied into the bundle and all
references to it are rewritten relative to the executable.

All commands work without flags. Settings can be changed in
~/.vboxpack.yaml, via VBOXPACK_* environment variables or via flags.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind the global flags here, so that they take precedence
			// over the config file parsed below.
			cmdutils.ViperMustBindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose"))
			cmdutils.ViperMustBindPFlag("log-file", cmd.Root().PersistentFlags().Lookup("log-file"))

			err := config.Init(configFile)
			if err != nil {
				return err
			}

			if viper.GetBool("verbose") {
				log.EnableDebugOutput()
			}
			if logFile := viper.GetString("log-file"); logFile != "" {
				log.SetLogFile(logFile, viper.GetInt("log-max-size"))
				log.Debugf("Logging to %s", logFile)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Config file (default ~/"+config.ConfigFileName+").")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show more verbose output.")
	rootCmd.PersistentFlags().String("log-file", "", "Also write all log messages to this file.")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return cmdutils.WrapIncorrectUsageError(err)
	})

	rootCmd.AddCommand(buildCmd.New())
	rootCmd.AddCommand(packCmd.New())
	rootCmd.AddCommand(depsCmd.New())

	return rootCmd
}

// Execute runs the root command with the process arguments and
// returns the exit code.
func Execute() int {
	return ExecuteArgs(os.Args[1:], os.Stdout, os.Stderr)
}

// ExecuteArgs runs the root command with the given arguments and
// returns the exit code. Usage errors exit with 2, failed external
// tools with their own exit code.
func ExecuteArgs(args []string, stdout, stderr io.Writer) int {
	// Post-run hooks are skipped for failed commands, so the log file
	// is closed here.
	defer func() {
		if err := log.CloseLogFile(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to close log file: %v\n", err)
		}
	}()

	rootCmd := New()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	cmd, err := rootCmd.ExecuteC()
	if err == nil {
		return 0
	}
	log.Error(err)

	var usageErr *cmdutils.IncorrectUsageError
	if errors.As(err, &usageErr) {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "\n%s", cmd.UsageString())
		return 2
	}

	var execErr *cmdutils.ExecError
	if errors.As(err, &execErr) && execErr.ExitCode() > 0 {
		return execErr.ExitCode()
	}
	return 1
}
