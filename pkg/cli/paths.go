package cli

import (
	"os"
	"path/filepath"
)

// Paths locates the per-app directories under ~/.maafw.
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths returns the paths of appName below the user's home directory.
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

// BaseDir returns ~/.maafw.
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns ~/.maafw/<app>.
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// HistoryDir returns the default badger directory of a profile.
func (p *Paths) HistoryDir(profile string) string {
	return filepath.Join(p.AppDir(), "history", profile)
}

// ArtifactDir returns the default local artifact root of a profile.
func (p *Paths) ArtifactDir(profile string) string {
	return filepath.Join(p.AppDir(), "artifacts", profile)
}

// LogDir returns the default library log directory.
func (p *Paths) LogDir() string {
	return filepath.Join(p.AppDir(), "logs")
}
