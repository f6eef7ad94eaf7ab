package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "sales-report"
version = "0.1.0"

[run]
program = "build/main.dcb"
export = "/tmp/out.db"

[engine]
stack-size = 4096
frame-capacity = 128
max-frames = 500
trace = true

[log]
verbosity = 2
file = "logs/datacode.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "sales-report" {
		t.Errorf("project name = %q, want sales-report", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if got, want := m.ProgramPath(), filepath.Join(m.Dir, "build", "main.dcb"); got != want {
		t.Errorf("ProgramPath = %q, want %q", got, want)
	}
	if m.ExportPath() != "/tmp/out.db" {
		t.Errorf("ExportPath = %q, want /tmp/out.db", m.ExportPath())
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if f := m.LogFile(); f == nil || *f != filepath.Join(m.Dir, "logs", "datacode.log") {
		t.Errorf("LogFile = %v", f)
	}

	cfg := m.EngineConfig()
	if cfg.StackSize != 4096 || cfg.FrameCapacity != 128 || cfg.MaxFrames != 500 || !cfg.Trace {
		t.Errorf("EngineConfig = %+v", cfg)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.EngineConfig()
	if cfg.StackSize != 1024 || cfg.FrameCapacity != 64 {
		t.Errorf("default capacities = %d, %d; want 1024, 64", cfg.StackSize, cfg.FrameCapacity)
	}
	if cfg.MaxFrames != 0 || cfg.Trace {
		t.Errorf("default limits = %+v", cfg)
	}
	if m.ProgramPath() != "" || m.ExportPath() != "" || m.LogFile() != nil {
		t.Error("unset paths should be empty")
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[project\nname = 1"},
		{"wrong type", "[engine]\nstack-size = \"big\""},
		{"negative max frames", "[engine]\nmax-frames = -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			if _, err := Load(dir); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected an error for a missing manifest")
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no datacode.toml exists")
	}
}
