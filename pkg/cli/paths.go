package cli

import (
	"os"
	"path/filepath"
)

// Paths locates the per-app directories under ~/.riptide.
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

// BaseDir returns ~/.riptide.
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns ~/.riptide/<app>.
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns ~/.riptide/<app>/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// JournalDir returns ~/.riptide/<app>/journal, the default location of
// recorded runs.
func (p *Paths) JournalDir() string {
	return filepath.Join(p.AppDir(), "journal")
}

// EnsureJournalDir creates the journal directory if it doesn't exist
func (p *Paths) EnsureJournalDir() (string, error) {
	dir := p.JournalDir()
	return dir, os.MkdirAll(dir, 0755)
}
