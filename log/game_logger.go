package log

import (
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/lcx/hearth/config"
	"github.com/rs/zerolog"
)

// LogEvent is a pending log line. A nil *LogEvent is a no-op, so callers
// never need to check whether a level is enabled.
type LogEvent = zerolog.Event

// GameLogger writes structured logs to the configured appenders.
//
// Loggers derived with WithSide or With share the level of their parent, so
// a hot-reloaded level reaches every derived logger.
//
//	logger := NewLogger(&LogCfg{LogLevel: InfoLevel, ConsoleAppender: true})
//	logger.Info().Str("addr", addr).Int("providers", 2).Msg("server started")
type GameLogger struct {
	zl    zerolog.Logger
	level *atomic.Int32
	file  *os.File
}

// NewLogger creates a GameLogger from cfg. A nil cfg uses DefaultLogCfg.
// A file appender that cannot be opened is reported on stderr and skipped.
func NewLogger(cfg *LogCfg) *GameLogger {
	if cfg == nil {
		cfg = DefaultLogCfg()
	}

	var (
		writers []io.Writer
		file    *os.File
	)
	if cfg.ConsoleAppender {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		})
	}
	if cfg.FileAppender {
		f, err := openLogFile(cfg.LogPath)
		if err != nil {
			_, _ = os.Stderr.WriteString("log: file appender disabled: " + err.Error() + "\n")
		} else {
			file = f
			writers = append(writers, f)
		}
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	logger := newGameLogger(out, cfg.LogLevel, cfg.EnabledCallerInfo)
	logger.file = file
	return logger
}

// NewLoggerWithWriter creates a GameLogger writing JSON lines to w.
func NewLoggerWithWriter(w io.Writer, level Level) *GameLogger {
	return newGameLogger(w, level, false)
}

// NewLoggerWithConfigManager creates a GameLogger that follows hot reloads
// of the "logger" section.
func NewLoggerWithConfigManager(cfg *LogCfg, configManager config.ConfigManager) *GameLogger {
	logger := NewLogger(cfg)
	if configManager != nil {
		configManager.AddChangeListener(logger)
	}
	return logger
}

func newGameLogger(w io.Writer, level Level, caller bool) *GameLogger {
	ctx := zerolog.New(w).With().Timestamp()
	if caller {
		ctx = ctx.Caller()
	}
	lv := &atomic.Int32{}
	lv.Store(int32(level))
	return &GameLogger{zl: ctx.Logger(), level: lv}
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// WithSide returns a logger that tags every line with side=client|server.
func (x *GameLogger) WithSide(side string) *GameLogger {
	return x.With("side", side)
}

// With returns a logger that tags every line with key=value.
func (x *GameLogger) With(key, value string) *GameLogger {
	return &GameLogger{
		zl:    x.zl.With().Str(key, value).Logger(),
		level: x.level,
		file:  x.file,
	}
}

// Level returns the current minimum level.
func (x *GameLogger) Level() Level {
	return Level(x.level.Load())
}

// SetLevel changes the minimum level of x and every logger derived from it.
func (x *GameLogger) SetLevel(level Level) {
	x.level.Store(int32(level))
}

func (x *GameLogger) event(level Level) *LogEvent {
	if level < x.Level() {
		return nil
	}
	return x.zl.WithLevel(level)
}

// Debug ...
func (x *GameLogger) Debug() *LogEvent { return x.event(DebugLevel) }

// Info ...
func (x *GameLogger) Info() *LogEvent { return x.event(InfoLevel) }

// Warn ...
func (x *GameLogger) Warn() *LogEvent { return x.event(WarnLevel) }

// Error ...
func (x *GameLogger) Error() *LogEvent { return x.event(ErrorLevel) }

// Fatal logs and then exits the process once Msg is called.
func (x *GameLogger) Fatal() *LogEvent { return x.zl.Fatal() }

// Close releases the file appender, if any.
func (x *GameLogger) Close() error {
	if x.file == nil {
		return nil
	}
	return x.file.Close()
}

// OnConfigChanged applies a reloaded "logger" section. Only the level is
// applied live; appender changes take effect on restart.
func (x *GameLogger) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != x.GetConfigName() {
		return nil
	}
	newLogCfg, ok := newConfig.(*LogCfg)
	if !ok {
		return nil
	}
	if newLogCfg.LogLevel != x.Level() {
		x.Info().Str("from", x.Level().String()).Str("to", newLogCfg.LogLevel.String()).Msg("log level changed")
		x.SetLevel(newLogCfg.LogLevel)
	}
	return nil
}

// GetConfigName ...
func (x *GameLogger) GetConfigName() string {
	return "logger"
}
