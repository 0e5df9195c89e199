package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Format: "JSON", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.WithField("phase", "survey").Debug("started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry %q: %v", buf.String(), err)
	}
	if entry["phase"] != "survey" || entry["msg"] != "started" || entry["level"] != "debug" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNewDefaults(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %v, want info", log.GetLevel())
	}
	log.Debug("hidden")
	log.Info("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") {
		t.Fatalf("output = %q", out)
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	tests := []Config{
		{Level: "loud"},
		{Format: "xml"},
	}
	for _, cfg := range tests {
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) error = nil, want error", cfg)
		}
	}
}
