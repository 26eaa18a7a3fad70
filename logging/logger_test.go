package logging

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"testing"
)

func TestLineFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test", &buf)

	logger.Info("Sync started")

	output := buf.String()
	// 2024-03-15T14:05:52Z [test] INFO Sync started
	pattern := `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z \[test\] INFO Sync started\n$`
	matched, err := regexp.MatchString(pattern, output)
	if err != nil {
		t.Fatalf("regex error: %v", err)
	}
	if !matched {
		t.Errorf("output %q does not match %s", output, pattern)
	}
}

func TestSourceTag(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("ekklesia", &buf)

	logger.Info("Server started")

	if !strings.Contains(buf.String(), "[ekklesia]") {
		t.Errorf("source tag missing from output: %s", buf.String())
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		levelStr string
		logFunc  func(*slog.Logger, string)
	}{
		{"DEBUG", func(l *slog.Logger, m string) { l.Debug(m) }},
		{"INFO", func(l *slog.Logger, m string) { l.Info(m) }},
		{"WARN", func(l *slog.Logger, m string) { l.Warn(m) }},
		{"ERROR", func(l *slog.Logger, m string) { l.Error(m) }},
	}

	for _, tt := range tests {
		t.Run(tt.levelStr, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithLevel("test", &buf, slog.LevelDebug)

			tt.logFunc(logger, "message")

			if !strings.Contains(buf.String(), tt.levelStr) {
				t.Errorf("level %s missing from output: %s", tt.levelStr, buf.String())
			}
		})
	}
}

func TestAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test", &buf)

	logger.Info("Sync finished", "inserted", 12, "skipped", 3)

	output := buf.String()
	if !strings.Contains(output, "inserted=12") {
		t.Errorf("inserted=12 missing from output: %s", output)
	}
	if !strings.Contains(output, "skipped=3") {
		t.Errorf("skipped=3 missing from output: %s", output)
	}
}

func TestWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test", &buf)

	logger.With("church", "c1").WithGroup("sheet").Info("fetched", "rows", 40)

	output := buf.String()
	if !strings.Contains(output, "church=c1") {
		t.Errorf("carried attr missing from output: %s", output)
	}
	if !strings.Contains(output, "sheet.rows=40") {
		t.Errorf("grouped attr missing from output: %s", output)
	}
}

func TestTimestampIsUTC(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test", &buf)

	logger.Info("message")

	timestamp := strings.Split(buf.String(), " ")[0]
	if !strings.HasSuffix(timestamp, "Z") {
		t.Errorf("timestamp %s should end with Z", timestamp)
	}
}

func TestInitSetsDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("myservice", &buf)

	slog.Info("message from default logger")

	output := buf.String()
	if !strings.Contains(output, "message from default logger") {
		t.Errorf("message missing from output: %s", output)
	}
	if !strings.Contains(output, "[myservice]") {
		t.Errorf("source tag missing from output: %s", output)
	}
}

func TestDefaultLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test", &buf)

	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Errorf("DEBUG should be filtered at the default level, got: %s", buf.String())
	}

	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("INFO should be logged at the default level")
	}
}
