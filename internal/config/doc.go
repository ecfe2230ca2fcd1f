// Package config loads keg's settings.
//
// Settings come from, in increasing precedence: built-in defaults, the YAML
// config file ($XDG_CONFIG_HOME/keg/config.yaml or --config), KEG_*
// environment variables, and command-line flags bound into the same viper
// instance. Directory settings left empty are derived from root.
package config
