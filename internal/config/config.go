package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/MasterScott/LLDBagility/internal/cmdutils"
	"github.com/MasterScott/LLDBagility/pkg/log"
)

const (
	EnvPrefix      = "VBOXPACK"
	ConfigFileName = ".vboxpack.yaml"

	InspectorOtool = "otool"
	InspectorMachO = "macho"
	InspectorLdd   = "ldd"

	CollisionPolicyError  = "error"
	CollisionPolicySuffix = "suffix"
)

var supportedInspectors = []string{InspectorOtool, InspectorMachO, InspectorLdd}

var supportedCollisionPolicies = []string{CollisionPolicyError, CollisionPolicySuffix}

// SetDefaults registers the default value of every configuration key.
// All default paths live below the home directory of the invoking
// user, so running a command without flags or config file reproduces
// the fixed layout the build and pack steps expect.
func SetDefaults() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return errors.WithStack(err)
	}

	viper.SetDefault("source-dir", ".")
	viper.SetDefault("build-dir", filepath.Join(home, "LLDBagility-vbox-build"))
	viper.SetDefault("dist-subdir", filepath.Join("darwin.amd64", "release", "dist"))
	viper.SetDefault("output-dir", filepath.Join(home, "LLDBagility-out-vbox"))
	viper.SetDefault("app-name", "VirtualBox.app")
	viper.SetDefault("libs-subdir", filepath.Join("Contents", "libs"))

	viper.SetDefault("qt-dir", "/opt/local/libexec/qt5")
	viper.SetDefault("openssl-dir", "/usr/local/opt/openssl")
	viper.SetDefault("xcode-dir", "tools/darwin.amd64/xcode/v6.2/x.app")
	viper.SetDefault("local-config", DefaultLocalConfig)
	viper.SetDefault("configure-flags", DefaultConfigureFlags)

	viper.SetDefault("vendor-prefixes", []string{"/opt/local/lib"})
	viper.SetDefault("framework-prefixes", []string{"/opt/local/libexec/qt5"})
	viper.SetDefault("deploy-tool", "/opt/local/libexec/qt5/bin/macdeployqt")
	viper.SetDefault("framework-patches", DefaultFrameworkPatches)
	viper.SetDefault("toolkit-version", DefaultToolkitVersion)

	viper.SetDefault("inspector", InspectorOtool)
	viper.SetDefault("jobs", 1)
	viper.SetDefault("collision-policy", CollisionPolicyError)

	viper.SetDefault("log-max-size", 10)

	return nil
}

// Init prepares viper: defaults, environment variables with the
// VBOXPACK_ prefix and the optional config file. configFile may be
// empty, in which case ~/.vboxpack.yaml is used if it exists.
func Init(configFile string) error {
	err := SetDefaults()
	if err != nil {
		return err
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.WithStack(err)
		}
		configFile = filepath.Join(home, ConfigFileName)
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			log.Debugf("No config file found at %s", configFile)
			return nil
		}
	}

	viper.SetConfigFile(configFile)
	viper.SetConfigType("yaml")
	err = viper.ReadInConfig()
	if err != nil {
		return errors.WithMessagef(err, "Failed to parse %s", configFile)
	}
	log.Debugf("Using config file %s", viper.ConfigFileUsed())
	return nil
}

// ParseConfig decodes the current viper settings into opts, which must
// be a pointer to a struct with mapstructure tags.
func ParseConfig(opts any) error {
	err := viper.Unmarshal(opts, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			expandHomeHook,
		)
	})
	return errors.WithStack(err)
}

// expandHomeHook expands a leading "~/" in string values, so paths in
// the config file can be written relative to the home directory.
func expandHomeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s := data.(string)
	if !strings.HasPrefix(s, "~/") {
		return data, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return filepath.Join(home, s[2:]), nil
}

func ValidateInspector(inspector string) error {
	for _, i := range supportedInspectors {
		if i == inspector {
			return nil
		}
	}
	return cmdutils.WrapIncorrectUsageError(errors.Errorf(
		"Unsupported inspector %q, must be one of %s", inspector, strings.Join(supportedInspectors, ", ")))
}

func ValidateCollisionPolicy(policy string) error {
	for _, p := range supportedCollisionPolicies {
		if p == policy {
			return nil
		}
	}
	return cmdutils.WrapIncorrectUsageError(errors.Errorf(
		"Unsupported collision policy %q, must be one of %s", policy, strings.Join(supportedCollisionPolicies, ", ")))
}
