// Package manifest handles som.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project file looked up by FindAndLoad.
const FileName = "som.toml"

// Manifest represents a som.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	ClassPath    ClassPath             `toml:"classpath"`
	Run          Run                   `toml:"run"`
	Dependencies map[string]Dependency `toml:"dependencies"`

	// Dir is the directory containing the som.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ClassPath configures where classes are looked up.
type ClassPath struct {
	Dirs []string `toml:"dirs"`

	// Core selects the embedded core library as the last classpath root.
	// Unset means true.
	Core *bool `toml:"core"`
}

// Run names the class executed when no class is given on the command line.
type Run struct {
	Class string   `toml:"class"`
	Args  []string `toml:"args"`
	Dump  bool     `toml:"dump"`
}

// Dependency is another class library whose classpath is appended to ours.
type Dependency struct {
	Git  string `toml:"git"`
	Tag  string `toml:"tag"`
	Path string `toml:"path"`
}

// Load parses a som.toml file from the given directory.
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

	// Defaults
	if len(m.ClassPath.Dirs) == 0 {
		m.ClassPath.Dirs = []string{"."}
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a som.toml file,
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

// ClassPathDirs returns absolute paths for the configured classpath
// directories.
func (m *Manifest) ClassPathDirs() []string {
	var paths []string
	for _, d := range m.ClassPath.Dirs {
		if filepath.IsAbs(d) {
			paths = append(paths, d)
			continue
		}
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// UseCore reports whether the embedded core library should be searched.
func (m *Manifest) UseCore() bool {
	return m.ClassPath.Core == nil || *m.ClassPath.Core
}

// DepsDir returns the path to the .som/deps directory.
func (m *Manifest) DepsDir() string {
	return filepath.Join(m.Dir, ".som", "deps")
}
