package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
version = "0.1.0"

[domain]
global = true

[[archive]]
path = "build/main.abc"
name = "main"

[[archive]]
path = "build/extra/*.abc"

[dependencies]
runtime = { path = "../runtime" }

[log]
verbosity = 2
file = "clasp.log"

[loader]
stop-on-error = true
run-scripts = true
`)

	m, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "demo", m.Project.Name)
	assert.Equal(t, "0.1.0", m.Project.Version)
	assert.True(t, m.Domain.Global)
	require.Len(t, m.Archives, 2)
	assert.Equal(t, Archive{Path: "build/main.abc", Name: "main"}, m.Archives[0])
	assert.Equal(t, "../runtime", m.Dependencies["runtime"].Path)
	assert.Equal(t, 2, m.Log.Verbosity)
	assert.True(t, m.Loader.StopOnError)
	assert.True(t, m.Loader.RunScripts)

	logFile := m.LogFile()
	require.NotNil(t, logFile)
	assert.Equal(t, filepath.Join(m.Dir, "clasp.log"), *logFile)
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "minimal")
	writeManifest(t, dir, "")

	m, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "minimal", m.Project.Name, "project name defaults to the directory")
	assert.False(t, m.Domain.Global)
	assert.Equal(t, []Archive{{Path: filepath.Join("build", "*.abc")}}, m.Archives)
	assert.Nil(t, m.LogFile())
}

func TestLoadManifestRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "typo"

[loader]
stop_on_error = true
`)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loader.stop_on_error")
}

func TestLoadManifestArchiveWithoutPath(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[[archive]]
name = "orphan"
`)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no path")
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(subDir, 0o755))
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	m, err := FindAndLoad(subDir)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "found-project", m.Project.Name)
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "main", ArchiveName(Archive{}, "/x/build/main.abc"))
	assert.Equal(t, "custom", ArchiveName(Archive{Name: "custom"}, "/x/build/main.abc"))
}
