// Package manifest handles clasp.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the manifest file.
const FileName = "clasp.toml"

// Manifest represents a clasp.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Domain       Domain                `toml:"domain"`
	Archives     []Archive             `toml:"archive"`
	Dependencies map[string]Dependency `toml:"dependencies"`
	Log          Log                   `toml:"log"`
	Loader       Loader                `toml:"loader"`

	// Dir is the directory containing the clasp.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Domain selects where archives are loaded. Archives in the global domain
// get the VM's native method and class tables; archives in a child domain
// never do.
type Domain struct {
	Global bool `toml:"global"`
}

// Archive is one bytecode archive to load. Path may be a glob; it is
// relative to the manifest directory.
type Archive struct {
	Path string `toml:"path"`
	Name string `toml:"name"`
}

// Dependency is another project whose archives load before this one's.
type Dependency struct {
	Path string `toml:"path"`
}

// Log configures the CLI's log backend.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Loader tunes how archives are processed.
type Loader struct {
	// StopOnError aborts at the first archive that fails instead of
	// reporting every problem.
	StopOnError bool `toml:"stop-on-error"`
	// RunScripts runs each script initializer after linking.
	RunScripts bool `toml:"run-scripts"`
}

// Load parses a clasp.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return parse(dir, path, data)
}

func parse(dir, path string, data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(m.Dir)
	}
	if len(m.Archives) == 0 {
		m.Archives = []Archive{{Path: filepath.Join("build", "*.abc")}}
	}
	for i := range m.Archives {
		if m.Archives[i].Path == "" {
			return nil, fmt.Errorf("%s: archive %d has no path", path, i+1)
		}
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a clasp.toml file,
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

// LogFile returns the absolute log file path, or nil to log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}

// ArchiveName returns the label an archive is reported under: its
// configured name, or the file name without extension.
func ArchiveName(a Archive, path string) string {
	if a.Name != "" {
		return a.Name
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
