package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/keg/internal/config"
	"github.com/ZebulonRouseFrantzich/keg/internal/logger"
	"github.com/ZebulonRouseFrantzich/keg/internal/platform"
	"github.com/ZebulonRouseFrantzich/keg/internal/version"
)

// app carries state shared by the subcommands.
type app struct {
	v          *viper.Viper
	configFile string
	verbose    bool
	settings   *config.Settings

	detector   platform.Detector
	httpClient *http.Client

	stdout io.Writer
	stderr io.Writer
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		v:        config.New(),
		detector: platform.NewDetector(),
		stdout:   stdout,
		stderr:   stderr,
	}
}

// flagBindings maps persistent flags onto setting keys.
var flagBindings = map[string]string{
	"root":      config.KeyRoot,
	"bin-dir":   config.KeyBinDir,
	"cache-dir": config.KeyCacheDir,
	"timeout":   config.KeyTimeout,
	"retries":   config.KeyRetries,
	"log-level": config.KeyLogLevel,
	"progress":  config.KeyProgress,
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keg",
		Short: "Install single-binary packages from declarative descriptors",
		Long: `keg installs a package described by a Lua or YAML descriptor.

It picks the artifact matching this machine, downloads it, verifies its
SHA-256 digest, places the executable in the bin directory and runs a
post-install smoke test.

Exit codes:
  0  success
  1  unexpected error
  2  invalid descriptor, configuration or usage
  3  no artifact for this platform
  4  download failed
  5  integrity check failed
  6  placement failed
  7  post-install check failed (binary left installed)`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{err: fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())}
			}
			return cmd.Help()
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/keg/config.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "show full error details")
	flags.String("root", "", "keg data directory")
	flags.String("bin-dir", "", "directory receiving installed executables")
	flags.String("cache-dir", "", "download cache directory")
	flags.Duration("timeout", 0, "time limit for downloading an artifact")
	flags.Int("retries", 0, "download retries")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("progress", true, "show a download progress bar")
	bindFlags(a.v, flags)

	cmd.AddCommand(newInstallCmd(a), newResolveCmd(a), newReceiptCmd(a))
	version.AttachCobraVersionCommand(cmd)

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagBindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// setup loads settings and configures logging before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	settings, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.settings = settings

	level, _ := logger.ParseLogLevel(settings.LogLevel)
	logger.SetLevel(level)
	logger.SetLogger(logger.New(nil, a.stderr))

	ctx := logger.WithName(cmd.Context(), "keg")
	if settings.ConfigFile != "" {
		logger.DebugKV(ctx, "Loaded config", "file", settings.ConfigFile)
	}
	cmd.SetContext(ctx)
	return nil
}

// usageArgs wraps a cobra argument validator so its failures map to the
// usage exit code.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}
