package cli

import (
	"os"
	"path/filepath"
)

// AppName names the per-user directories.
const AppName = "loopscribe"

// Paths locates per-user files. Empty fields are filled from the
// operating system defaults by NewPaths.
type Paths struct {
	// ConfigDir holds config.yaml.
	ConfigDir string

	// CacheDir holds downloaded models and the model catalog cache.
	CacheDir string

	// DataDir holds archived chunks.
	DataDir string
}

// NewPaths resolves the default directories: os.UserConfigDir and
// os.UserCacheDir, each with AppName appended. Data lives next to the cache.
func NewPaths() (*Paths, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		ConfigDir: filepath.Join(cfg, AppName),
		CacheDir:  filepath.Join(cache, AppName),
		DataDir:   filepath.Join(cache, AppName, "data"),
	}, nil
}

// ConfigFile returns ConfigDir/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// ModelsDir returns the directory downloaded models are stored in.
func (p *Paths) ModelsDir() string {
	return filepath.Join(p.CacheDir, "models")
}

// CatalogDir returns the badger directory of the model catalog cache.
func (p *Paths) CatalogDir() string {
	return filepath.Join(p.CacheDir, "catalog")
}

// ArchiveDir returns the default local chunk archive.
func (p *Paths) ArchiveDir() string {
	return filepath.Join(p.DataDir, "chunks")
}

// Ensure creates dir and its parents.
func Ensure(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
