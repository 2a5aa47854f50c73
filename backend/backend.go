package backend

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/spf13/afero"
)

// Backend is the read-only storage the server serves files from.
type Backend struct {
	Fs   afero.Fs
	Root string
	Home string
}

// New opens the document root on the operating system filesystem. homeDir
// overrides the invoking user's home directory used for "~" requests.
func New(rootDir, homeDir string) (*Backend, error) {
	return NewWithFs(afero.NewReadOnlyFs(afero.NewOsFs()), rootDir, homeDir)
}

// NewWithFs is New over an arbitrary filesystem.
func NewWithFs(fs afero.Fs, rootDir, homeDir string) (*Backend, error) {
	if rootDir == "" {
		return nil, errors.New("root directory is required")
	}
	info, err := fs.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("cannot use root directory %s: %w", rootDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", rootDir)
	}

	if homeDir == "" {
		homeDir, err = currentHome()
		if err != nil {
			return nil, err
		}
	}

	return &Backend{
		Fs:   fs,
		Root: filepath.Clean(rootDir),
		Home: filepath.Clean(homeDir),
	}, nil
}

func currentHome() (string, error) {
	if u, err := user.Current(); err == nil && u.HomeDir != "" {
		return u.HomeDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return home, nil
}
