package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lcx/hearth/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, WarnLevel)

	logger.Debug().Msg("debug")
	logger.Info().Msg("info")
	logger.Warn().Int("n", 1).Msg("warn")
	logger.Error().Str("k", "v").Msg("error")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}
	if lines[0]["level"] != "warn" || lines[0]["message"] != "warn" {
		t.Errorf("unexpected first line %v", lines[0])
	}
	if lines[1]["k"] != "v" {
		t.Errorf("expected field k=v, got %v", lines[1])
	}
}

func TestWithSide(t *testing.T) {
	var buf bytes.Buffer
	root := NewLoggerWithWriter(&buf, DebugLevel)
	server := root.WithSide("server")
	client := root.WithSide("client")

	server.Info().Msg("from server")
	client.Info().Msg("from client")
	root.Info().Msg("untagged")

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0]["side"] != "server" {
		t.Errorf("expected side=server, got %v", lines[0]["side"])
	}
	if lines[1]["side"] != "client" {
		t.Errorf("expected side=client, got %v", lines[1]["side"])
	}
	if _, ok := lines[2]["side"]; ok {
		t.Errorf("root logger should not carry a side: %v", lines[2])
	}
}

func TestDerivedLoggerSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := NewLoggerWithWriter(&buf, InfoLevel)
	child := root.WithSide("client")

	child.Debug().Msg("hidden")
	root.SetLevel(DebugLevel)
	child.Debug().Msg("shown")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["message"] != "shown" {
		t.Fatalf("expected only the post-change line, got %s", buf.String())
	}
}

func TestOnConfigChanged(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, InfoLevel)

	// 其他配置的变更不影响日志
	if err := logger.OnConfigChanged("server", &LogCfg{LogLevel: ErrorLevel}, nil); err != nil {
		t.Fatal(err)
	}
	if logger.Level() != InfoLevel {
		t.Fatalf("level changed by foreign section: %v", logger.Level())
	}

	if err := logger.OnConfigChanged("logger", &LogCfg{LogLevel: ErrorLevel}, &LogCfg{LogLevel: InfoLevel}); err != nil {
		t.Fatal(err)
	}
	if logger.Level() != ErrorLevel {
		t.Fatalf("expected error level, got %v", logger.Level())
	}
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hearth.log")
	logger := NewLogger(&LogCfg{
		LogLevel:     InfoLevel,
		FileAppender: true,
		LogPath:      path,
	})
	logger.Info().Str("action", "login").Msg("player logged in")
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file failed: %v", err)
	}
	if !strings.Contains(string(data), "player logged in") {
		t.Fatalf("expected log line in file, got %q", data)
	}
}

func TestLogCfgValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogCfg
		wantErr bool
	}{
		{"default", *DefaultLogCfg(), false},
		{"file without path", LogCfg{FileAppender: true}, true},
		{"bad level", LogCfg{LogLevel: Level(42)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInitializeWithConfigManager(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "logger.yaml"), []byte("level: warn\nconsoleAppender: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cm := config.NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)

	prev := Default()
	defer SetDefaultLogger(prev)

	if err := InitializeWithConfigManager(cm); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if Default().Level() != WarnLevel {
		t.Errorf("expected warn level from yaml, got %v", Default().Level())
	}
	if Default() == prev {
		t.Error("default logger was not replaced")
	}
}

func TestPackageLevelNilSafe(t *testing.T) {
	prev := Default()
	defer SetDefaultLogger(prev)

	var buf bytes.Buffer
	SetDefaultLogger(NewLoggerWithWriter(&buf, ErrorLevel))
	Debug().Str("k", "v").Msg("dropped")
	Info().Msg("dropped")
	Warn().Msg("dropped")
	Error().Msg("kept")
	WithSide("server").Error().Msg("kept too")

	if n := len(decodeLines(t, &buf)); n != 2 {
		t.Fatalf("expected 2 lines, got %d", n)
	}
	SetDefaultLogger(nil)
	if Default() == nil {
		t.Fatal("nil must not replace the default logger")
	}
}
