package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		wantError bool
	}{
		{"default", DefaultConfig(), false},
		{"debug", DebugConfig(), false},
		{"bad level", &Config{Level: "loud", Format: TextFormat, Output: StderrOutput}, true},
		{"bad format", &Config{Level: InfoLevel, Format: "xml", Output: StderrOutput}, true},
		{"file without path", &Config{Level: InfoLevel, Format: TextFormat, Output: FileOutput}, true},
		{"writer overrides output", &Config{Level: InfoLevel, Format: TextFormat, Writer: &bytes.Buffer{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestWithFieldsCarryThrough(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&Config{Level: DebugLevel, Format: JSONFormat, Writer: &buf, DisableTimestamp: true})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	log.WithComponent("stock").WithFields(Fields{"po_number": "1001"}).Info("checked")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["component"] != "stock" {
		t.Errorf("expected component field, got %v", entry["component"])
	}
	if entry["po_number"] != "1001" {
		t.Errorf("expected po_number field, got %v", entry["po_number"])
	}
	if entry["msg"] != "checked" {
		t.Errorf("expected msg 'checked', got %v", entry["msg"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&Config{Level: WarnLevel, Format: TextFormat, Writer: &buf})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	log.Info("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn line should be written")
	}
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewLogger(&Config{Level: InfoLevel, Format: TextFormat, Writer: &buf})

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewProgressTracker(ProgressConfig{
		Operation:   "reconcile_po_lines",
		Total:       4,
		LogInterval: time.Second,
		Logger:      log,
		Now:         func() time.Time { return clock },
	})

	tracker.Increment()
	clock = clock.Add(2 * time.Second)
	tracker.Increment()

	stats := tracker.Stats()
	if stats.Current != 2 {
		t.Errorf("expected 2 processed, got %d", stats.Current)
	}
	if stats.Percentage != 50 {
		t.Errorf("expected 50%%, got %.1f", stats.Percentage)
	}
	if stats.Rate != 1 {
		t.Errorf("expected rate 1/sec, got %.2f", stats.Rate)
	}
	if !strings.Contains(buf.String(), "Progress update") {
		t.Error("expected a progress update after the interval elapsed")
	}
}
