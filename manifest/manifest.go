// Package manifest handles datacode.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/datacode/vm"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "datacode.toml"

// Manifest represents a datacode.toml project configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	Run     RunConfig    `toml:"run"`
	Engine  EngineConfig `toml:"engine"`
	Log     LogConfig    `toml:"log"`

	// Dir is the directory containing the datacode.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// RunConfig names the artifact to run and where to export its globals.
type RunConfig struct {
	Program string `toml:"program"`
	Export  string `toml:"export"`
}

// EngineConfig tunes the interpreter.
type EngineConfig struct {
	StackSize     int  `toml:"stack-size"`
	FrameCapacity int  `toml:"frame-capacity"`
	MaxFrames     int  `toml:"max-frames"`
	Trace         bool `toml:"trace"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses a datacode.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Engine.MaxFrames < 0 {
		return nil, fmt.Errorf("%s: engine max-frames must not be negative", path)
	}

	// Defaults
	defaults := vm.DefaultConfig()
	if m.Engine.StackSize <= 0 {
		m.Engine.StackSize = defaults.StackSize
	}
	if m.Engine.FrameCapacity <= 0 {
		m.Engine.FrameCapacity = defaults.FrameCapacity
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a datacode.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EngineConfig converts the [engine] table to an interpreter configuration.
func (m *Manifest) EngineConfig() vm.Config {
	return vm.Config{
		StackSize:     m.Engine.StackSize,
		FrameCapacity: m.Engine.FrameCapacity,
		MaxFrames:     m.Engine.MaxFrames,
		Trace:         m.Engine.Trace,
	}
}

// ProgramPath returns the absolute path of the configured program, or "".
func (m *Manifest) ProgramPath() string {
	return m.resolve(m.Run.Program)
}

// ExportPath returns the absolute path of the configured export database, or "".
func (m *Manifest) ExportPath() string {
	return m.resolve(m.Run.Export)
}

// LogFile returns the absolute path of the configured log file, or nil to
// log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.resolve(m.Log.File)
	return &path
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
