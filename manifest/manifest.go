// Package manifest handles bcverify.toml project configuration and the
// TOML class definition files it points at.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "bcverify.toml"

// Manifest represents a bcverify.toml configuration.
type Manifest struct {
	Classpath Classpath `toml:"classpath"`
	Verifier  Verifier  `toml:"verifier"`
	Log       Log       `toml:"log"`

	// Dir is the directory containing the bcverify.toml file (set at load time).
	Dir string `toml:"-"`
}

// Classpath configures where class hierarchy data comes from.
type Classpath struct {
	Database string   `toml:"database"`
	Classes  []string `toml:"classes"`
}

// Verifier configures verification runs.
type Verifier struct {
	DumpFrames   bool  `toml:"dump-frames"`
	Workers      int   `toml:"workers"`
	CacheResults *bool `toml:"cache-results"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no bcverify.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Verifier.CacheResults == nil {
		on := true
		m.Verifier.CacheResults = &on
	}
}

// Load parses a bcverify.toml file from the given directory.
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

	if m.Verifier.Workers < 0 {
		return nil, fmt.Errorf("%s: verifier.workers must not be negative", path)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a bcverify.toml file,
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

// DatabasePath returns the absolute path of the class database, or "" if
// none is configured.
func (m *Manifest) DatabasePath() string {
	if m.Classpath.Database == "" {
		return ""
	}
	return m.resolve(m.Classpath.Database)
}

// ClassFilePaths returns absolute paths for the configured class files.
func (m *Manifest) ClassFilePaths() []string {
	var paths []string
	for _, c := range m.Classpath.Classes {
		paths = append(paths, m.resolve(c))
	}
	return paths
}

// LogFile returns the log file path, or nil to log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.resolve(m.Log.File)
	return &path
}

// CacheResults reports whether verdicts are cached in the class database.
func (m *Manifest) CacheResults() bool {
	return m.Verifier.CacheResults != nil && *m.Verifier.CacheResults && m.Classpath.Database != ""
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
