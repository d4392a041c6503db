package log

import (
	"sync/atomic"

	"github.com/lcx/hearth/config"
)

// Logger is the leveled event API shared by GameLogger and its derivations.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
}

var _ Logger = (*GameLogger)(nil)

var _defaultLogger atomic.Pointer[GameLogger]

func init() {
	_defaultLogger.Store(NewLogger(nil))
}

// Default returns the package-level logger.
func Default() *GameLogger {
	return _defaultLogger.Load()
}

// SetDefaultLogger replaces the package-level logger.
func SetDefaultLogger(logger *GameLogger) {
	if logger != nil {
		_defaultLogger.Store(logger)
	}
}

// WithSide derives a side-tagged logger from the package-level logger.
func WithSide(side string) *GameLogger {
	return Default().WithSide(side)
}

// InitializeWithConfigManager loads the "logger" section and installs the
// resulting logger as the default. The logger follows hot reloads.
func InitializeWithConfigManager(configManager config.ConfigManager) error {
	if configManager == nil {
		return nil
	}
	logCfg := DefaultLogCfg()
	if err := configManager.LoadConfig(logCfg.GetName(), logCfg); err != nil {
		return err
	}
	SetDefaultLogger(NewLoggerWithConfigManager(logCfg, configManager))
	return nil
}

// Initialize uses the singleton ConfigManager.
func Initialize() error {
	return InitializeWithConfigManager(config.GetInstance())
}

// Debug creates a debug-level event on the default logger.
func Debug() *LogEvent { return Default().Debug() }

// Info creates an info-level event on the default logger.
func Info() *LogEvent { return Default().Info() }

// Warn creates a warn-level event on the default logger.
func Warn() *LogEvent { return Default().Warn() }

// Error creates an error-level event on the default logger.
func Error() *LogEvent { return Default().Error() }

// Fatal creates a fatal event on the default logger; Msg exits the process.
func Fatal() *LogEvent { return Default().Fatal() }
