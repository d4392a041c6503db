package log

import (
	"errors"

	"github.com/rs/zerolog"
)

// Level is a zerolog level; config files spell it "debug", "info", ...
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// LogCfg is the "logger" configuration section.
type LogCfg struct {
	// LogPath is the target file when FileAppender is on. Parent
	// directories are created on demand.
	LogPath string `mapstructure:"path"`

	// LogLevel is the minimum level written. It is hot-reloadable.
	LogLevel Level `mapstructure:"level"`

	FileAppender    bool `mapstructure:"fileAppender"`
	ConsoleAppender bool `mapstructure:"consoleAppender"`

	// NoColor disables ANSI colors on the console appender.
	NoColor bool `mapstructure:"noColor"`

	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`
}

// GetName ...
func (cfg *LogCfg) GetName() string {
	return "logger"
}

// Validate ...
func (cfg *LogCfg) Validate() error {
	if cfg.FileAppender && cfg.LogPath == "" {
		return errors.New("logger: fileAppender requires path")
	}
	if cfg.LogLevel < zerolog.TraceLevel || cfg.LogLevel > zerolog.Disabled {
		return errors.New("logger: invalid level")
	}
	return nil
}

// DefaultLogCfg returns a console-only configuration at info level.
func DefaultLogCfg() *LogCfg {
	return &LogCfg{
		LogPath:         "./hearth.log",
		LogLevel:        InfoLevel,
		ConsoleAppender: true,
	}
}
