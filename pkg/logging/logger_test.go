// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, c := range cases {
		if got := c.level.String(); got != c.want {
			t.Errorf("Level(%d).String() = %q, want %q", c.level, got, c.want)
		}
	}
}

// =============================================================================
// Config Tests — covers what cmd/forcegate wires (Service, JSON, Error), plus Quiet
// =============================================================================

func TestNew_DefaultConfig(t *testing.T) {
	logger := New(Config{})
	if logger == nil || logger.slog == nil {
		t.Fatal("New() returned a logger with no handler")
	}
	defer logger.Close()
}

func TestNew_WithServiceAndJSON(t *testing.T) {
	logger := New(Config{Service: "forcegate", JSON: true, Quiet: true})
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.config.Service != "forcegate" {
		t.Errorf("Service = %v, want forcegate", logger.config.Service)
	}
	defer logger.Close()
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default() returned nil")
	}
	if logger.config.Level != LevelInfo || logger.config.Service != "aleutian" {
		t.Errorf("Default() config = %+v, want Level=Info Service=aleutian", logger.config)
	}
	defer logger.Close()
}

// =============================================================================
// Logger Method Tests
// =============================================================================

func TestLogger_LevelFiltering(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelWarn, Exporter: exporter, Quiet: true})
	defer logger.Close()

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept")

	time.Sleep(50 * time.Millisecond)
	if got := len(exporter.Entries()); got != 2 {
		t.Fatalf("expected 2 entries at Warn+ after filtering, got %d", got)
	}
}

func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewWriterExporter(&buf)
	logger := New(Config{Service: "forcegate", Exporter: exporter, Quiet: true})
	defer logger.Close()

	logger.Error("gateway build failed", "error", "boom")

	time.Sleep(50 * time.Millisecond)
	if !strings.Contains(buf.String(), "gateway build failed") {
		t.Errorf("writer exporter missing logged message, got %q", buf.String())
	}
}

func TestLogger_With(t *testing.T) {
	logger := New(Config{Quiet: true})
	defer logger.Close()

	child := logger.With("request_id", "r1")
	if child == nil || child.slog == nil {
		t.Fatal("With() must return a usable logger")
	}
	if child.config.Service != logger.config.Service {
		t.Error("With() should preserve the parent's config")
	}
}

func TestLogger_Close_NoResources(t *testing.T) {
	logger := New(Config{Quiet: true})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() with no file/exporter should not error, got %v", err)
	}
}

func TestLogger_Close_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{LogDir: tmpDir, Service: "test", Quiet: true})
	if logger.file == nil {
		t.Fatal("logger.file should be set when LogDir is configured")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() with a file should not error, got %v", err)
	}
}

func TestNew_WithLogDir_WritesFile(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{LogDir: tmpDir, Service: "test", Quiet: true})
	defer logger.Close()

	logger.Info("hello")

	files, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("reading log dir: %v", err)
	}
	if len(files) != 1 || !strings.HasPrefix(files[0].Name(), "test_") {
		t.Fatalf("expected one test_*.log file, got %v", files)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	got := expandPath("~/logs")
	want := filepath.Join(home, "logs")
	if got != want {
		t.Errorf("expandPath(~/logs) = %q, want %q", got, want)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath should leave absolute paths unchanged, got %q", got)
	}
}

// =============================================================================
// Built-in Exporter Tests
// =============================================================================

func TestBufferedExporter_Export(t *testing.T) {
	e := NewBufferedExporter()
	_ = e.Export(nil, LogEntry{Message: "m1"})
	_ = e.Export(nil, LogEntry{Message: "m2"})

	entries := e.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	entries[0].Message = "mutated"
	if e.Entries()[0].Message == "mutated" {
		t.Error("Entries() must return a copy, not the internal buffer")
	}
}

func TestWriterExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterExporter(&buf)
	if err := e.Export(nil, LogEntry{Message: "hi", Level: LevelInfo}); err != nil {
		t.Fatalf("Export() returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "hi") {
		t.Errorf("expected buffer to contain the message, got %q", buf.String())
	}
}
