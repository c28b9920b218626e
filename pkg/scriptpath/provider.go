// Package scriptpath assigns script files to the script-valued properties of
// workflow components.
package scriptpath

import (
	"fmt"
	"os"
	"path/filepath"
)

// PathProvider locates the directories script files live in.
type PathProvider interface {
	// WorkingDirectory is the project root.
	WorkingDirectory() string
	// ScriptsDirectory is the root of all script files.
	ScriptsDirectory() string
	// ScopedDirectory is the directory for a slash-separated scope below the
	// scripts directory.
	ScopedDirectory(scope string) string
}

// OSProvider is a PathProvider over the local filesystem.
type OSProvider struct {
	workingDir string
	scriptsDir string
}

// NewOSProvider creates a provider. An empty workingDir uses the process
// working directory; a relative scriptsDir is taken relative to workingDir.
func NewOSProvider(workingDir, scriptsDir string) (*OSProvider, error) {
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		workingDir = wd
	}
	abs, err := filepath.Abs(workingDir)
	if err != nil {
		return nil, fmt.Errorf("invalid working directory %s: %w", workingDir, err)
	}
	if scriptsDir == "" {
		scriptsDir = "scripts"
	}
	if !filepath.IsAbs(scriptsDir) {
		scriptsDir = filepath.Join(abs, scriptsDir)
	}
	return &OSProvider{workingDir: abs, scriptsDir: filepath.Clean(scriptsDir)}, nil
}

func (p *OSProvider) WorkingDirectory() string { return p.workingDir }

func (p *OSProvider) ScriptsDirectory() string { return p.scriptsDir }

func (p *OSProvider) ScopedDirectory(scope string) string {
	if scope == "" {
		return p.scriptsDir
	}
	return filepath.Join(p.scriptsDir, filepath.FromSlash(scope))
}
