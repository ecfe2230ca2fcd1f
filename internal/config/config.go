package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/keg/internal/installer"
	"github.com/ZebulonRouseFrantzich/keg/internal/logger"
)

const (
	// AppName is the application name.
	AppName = "keg"
	// EnvPrefix prefixes every environment override, e.g. KEG_BIN_DIR.
	EnvPrefix = "KEG"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"
	// ConfigDirEnv overrides the directory searched for the config file.
	ConfigDirEnv = "KEG_CONFIG_DIR"
)

// Setting keys. The same names are used in the config file, as flag
// bindings, and (upper-cased, KEG_ prefixed) as environment variables.
const (
	KeyRoot         = "root"
	KeyBinDir       = "bin_dir"
	KeyCacheDir     = "cache_dir"
	KeyReceiptsDir  = "receipts_dir"
	KeyTimeout      = "timeout"
	KeyRetries      = "retries"
	KeyRetryBackoff = "retry_backoff"
	KeyCheckTimeout = "check_timeout"
	KeyKeyring      = "keyring"
	KeyTrustedRoot  = "trusted_root"
	KeyLogLevel     = "log_level"
	KeyProgress     = "progress"
)

const defaultLogLevel = "info"

// Settings is the resolved configuration.
type Settings struct {
	Root        string
	BinDir      string
	CacheDir    string
	ReceiptsDir string

	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	CheckTimeout time.Duration

	Keyring     string
	TrustedRoot string

	LogLevel string
	Progress bool

	// ConfigFile is the file the settings were read from, empty when only
	// defaults and the environment were used.
	ConfigFile string
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

// ConfigDir returns the directory searched for config.yaml. KEG_CONFIG_DIR
// wins; otherwise Windows uses %APPDATA% and everything else
// $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir reads better than Dir at call sites.
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, nil
	}

	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// DefaultRoot returns the data directory used when root is not configured:
// $XDG_DATA_HOME/keg, or ~/.local/share/keg.
func DefaultRoot() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", AppName), nil
}

// New returns a viper instance with keg's defaults and environment binding.
// Callers bind their flags into it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyRoot, "")
	v.SetDefault(KeyBinDir, "")
	v.SetDefault(KeyCacheDir, "")
	v.SetDefault(KeyReceiptsDir, "")
	v.SetDefault(KeyTimeout, installer.DefaultTimeout)
	v.SetDefault(KeyRetries, installer.DefaultRetries)
	v.SetDefault(KeyRetryBackoff, installer.DefaultBackoff)
	v.SetDefault(KeyCheckTimeout, installer.DefaultCheckTimeout)
	v.SetDefault(KeyKeyring, "")
	v.SetDefault(KeyTrustedRoot, "")
	v.SetDefault(KeyLogLevel, defaultLogLevel)
	v.SetDefault(KeyProgress, true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file into v and resolves the settings. An explicit
// configFile must exist; otherwise a missing config.yaml in ConfigDir is not
// an error.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType(ConfigFileExt)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(ConfigFileName)
		v.SetConfigType(ConfigFileExt)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	s := &Settings{
		Root:         v.GetString(KeyRoot),
		BinDir:       v.GetString(KeyBinDir),
		CacheDir:     v.GetString(KeyCacheDir),
		ReceiptsDir:  v.GetString(KeyReceiptsDir),
		Timeout:      v.GetDuration(KeyTimeout),
		Retries:      v.GetInt(KeyRetries),
		RetryBackoff: v.GetDuration(KeyRetryBackoff),
		CheckTimeout: v.GetDuration(KeyCheckTimeout),
		Keyring:      v.GetString(KeyKeyring),
		TrustedRoot:  v.GetString(KeyTrustedRoot),
		LogLevel:     strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		Progress:     v.GetBool(KeyProgress),
		ConfigFile:   v.ConfigFileUsed(),
	}

	if err := s.resolvePaths(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) resolvePaths() error {
	var err error
	if s.Root == "" {
		if s.Root, err = DefaultRoot(); err != nil {
			return err
		}
	}
	if s.Root, err = absPath(s.Root); err != nil {
		return &ValidationError{Field: KeyRoot, Message: err.Error()}
	}

	derived := []struct {
		field string
		value *string
		sub   string
	}{
		{KeyBinDir, &s.BinDir, "bin"},
		{KeyCacheDir, &s.CacheDir, "cache"},
		{KeyReceiptsDir, &s.ReceiptsDir, "receipts"},
	}
	for _, d := range derived {
		if *d.value == "" {
			*d.value = filepath.Join(s.Root, d.sub)
			continue
		}
		if *d.value, err = absPath(*d.value); err != nil {
			return &ValidationError{Field: d.field, Message: err.Error()}
		}
	}

	for _, f := range []struct {
		field string
		value *string
	}{{KeyKeyring, &s.Keyring}, {KeyTrustedRoot, &s.TrustedRoot}} {
		if *f.value == "" {
			continue
		}
		if *f.value, err = absPath(*f.value); err != nil {
			return &ValidationError{Field: f.field, Message: err.Error()}
		}
	}
	return nil
}

// Validate checks value ranges. Paths are not required to exist.
func (s *Settings) Validate() error {
	if s.Timeout <= 0 {
		return &ValidationError{Field: KeyTimeout, Message: "must be positive"}
	}
	if s.Retries < 1 {
		return &ValidationError{Field: KeyRetries, Message: "must be at least 1"}
	}
	if s.RetryBackoff < 0 {
		return &ValidationError{Field: KeyRetryBackoff, Message: "must not be negative"}
	}
	if s.CheckTimeout <= 0 {
		return &ValidationError{Field: KeyCheckTimeout, Message: "must be positive"}
	}
	if _, ok := logger.ParseLogLevel(s.LogLevel); !ok {
		return &ValidationError{Field: KeyLogLevel, Message: fmt.Sprintf("unknown level %q", s.LogLevel)}
	}
	return nil
}

// InstallerConfig maps the settings onto an installer configuration.
func (s *Settings) InstallerConfig() installer.Config {
	return installer.Config{
		BinDir:       s.BinDir,
		CacheDir:     s.CacheDir,
		ReceiptsDir:  s.ReceiptsDir,
		Timeout:      s.Timeout,
		Retries:      s.Retries,
		RetryBackoff: s.RetryBackoff,
		CheckTimeout: s.CheckTimeout,
		Keyring:      s.Keyring,
		TrustedRoot:  s.TrustedRoot,
	}
}

func absPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return filepath.Abs(path)
}
