// Package config loads yaml configuration sections with viper and
// hot-reloads them on file change.
package config

// Config is one named configuration section, loaded from <name>.yaml.
type Config interface {
	GetName() string
	Validate() error
}

// ConfigChangeListener is notified after a section is reloaded and
// validated. Listeners receive every section and filter by name.
type ConfigChangeListener interface {
	OnConfigChanged(configName string, newConfig, oldConfig Config) error
}
