package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger_WritesJSONToRotatingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "api")

	log, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	log.Info("check_round_finished", zap.String("target_id", "abc"))
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "sitewatch.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "check_round_finished") {
		t.Fatalf("message missing from log file: %q", line)
	}
	if !strings.Contains(line, `"target_id":"abc"`) {
		t.Fatalf("field missing from log file: %q", line)
	}
	if !strings.Contains(line, `"ts"`) {
		t.Fatalf("timestamp key missing from log file: %q", line)
	}
}

func TestNewLogger_DebugIsFiltered(t *testing.T) {
	dir := t.TempDir()

	log, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	log.Debug("noise")
	_ = log.Sync()

	if data, err := os.ReadFile(filepath.Join(dir, "sitewatch.log")); err == nil {
		if strings.Contains(string(data), "noise") {
			t.Fatalf("debug entry should not be written: %q", string(data))
		}
	}
}
