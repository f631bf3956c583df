package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"warning level", "warning", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Info", "Info", slog.LevelInfo},
		{"invalid level", "invalid", slog.LevelInfo}, // defaults to info
		{"empty string", "", slog.LevelInfo},          // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != slog.LevelInfo {
		t.Errorf("Default level = %v, want %v", cfg.Level, slog.LevelInfo)
	}
	if cfg.FilePath != "" {
		t.Errorf("Default FilePath = %q, want empty", cfg.FilePath)
	}
	if cfg.MaxSize != 100 {
		t.Errorf("Default MaxSize = %d, want 100", cfg.MaxSize)
	}
	if cfg.MaxBackups != 5 {
		t.Errorf("Default MaxBackups = %d, want 5", cfg.MaxBackups)
	}
	if !cfg.Console {
		t.Errorf("Default Console = %v, want true", cfg.Console)
	}
	if cfg.Output != nil {
		t.Errorf("Default Output = %v, want nil", cfg.Output)
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		var buf bytes.Buffer
		logger, closer, err := NewLogger(Config{
			Level:   slog.LevelInfo,
			Console: true,
			Output:  &buf,
		})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer closer.Close()

		logger.Debug("hidden")
		logger.Info("page extracted", "links", 3)

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("Debug record written at info level: %q", out)
		}
		if !strings.Contains(out, "msg=\"page extracted\"") || !strings.Contains(out, "links=3") {
			t.Errorf("Console output = %q, want a text record", out)
		}
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "test.log")

		logger, closer, err := NewLogger(Config{
			Level:      slog.LevelDebug,
			FilePath:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			Console:    false,
		})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.Debug("test message", "link", "https://yande.re/post")
		if err := closer.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		content, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("Log file was not created at %s: %v", logFile, err)
		}
		var record map[string]any
		if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
			t.Fatalf("Log file does not hold JSON: %v", err)
		}
		if record["msg"] != "test message" || record["link"] != "https://yande.re/post" {
			t.Errorf("Unexpected record %v", record)
		}
	})

	t.Run("both console and file", func(t *testing.T) {
		var buf bytes.Buffer
		logFile := filepath.Join(t.TempDir(), "test.log")

		logger, closer, err := NewLogger(Config{
			Level:      slog.LevelInfo,
			FilePath:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			Console:    true,
			Output:     &buf,
		})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.With("run_id", "abc").Info("both")
		_ = closer.Close()

		if !strings.Contains(buf.String(), "run_id=abc") {
			t.Errorf("Console output = %q, want the run_id attribute", buf.String())
		}
		content, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("Failed to read log file: %v", err)
		}
		if !strings.Contains(string(content), `"run_id":"abc"`) {
			t.Errorf("File output = %q, want the run_id attribute", content)
		}
	})

	t.Run("no outputs configured defaults to console", func(t *testing.T) {
		var buf bytes.Buffer
		logger, _, err := NewLogger(Config{
			Level:   slog.LevelInfo,
			Console: false,
			Output:  &buf,
		})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.Info("fallback")
		if !strings.Contains(buf.String(), "fallback") {
			t.Errorf("Expected console fallback, got %q", buf.String())
		}
	})
}

func TestSetDefault(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	logFile := filepath.Join(t.TempDir(), "test.log")

	closer, err := SetDefault(Config{
		Level:      slog.LevelDebug,
		FilePath:   logFile,
		MaxSize:    10,
		MaxBackups: 3,
		Console:    false,
	})
	if err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	defer closer.Close()

	slog.Info("test message from default logger")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Log file was not created at %s: %v", logFile, err)
	}
	if !strings.Contains(string(content), "test message from default logger") {
		t.Errorf("Default logger did not write to the file: %q", content)
	}
}
