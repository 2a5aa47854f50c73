package handler

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	// IndexFile is served in place of a directory that contains it.
	IndexFile = "index.html"
	// UserSubdir is the per-user document tree under the home directory.
	UserSubdir = "myhttpd"
)

// Resolution describes where a request URI points.
type Resolution struct {
	Path  string
	Size  int64
	IsDir bool
	Found bool
}

// Resolver turns request URIs into filesystem paths under a document root,
// or under <home>/myhttpd for "~" URIs.
type Resolver struct {
	fs   afero.Fs
	root string
	home string
}

// NewResolver builds a resolver. home is the user's home directory; the
// per-user subdirectory is appended here.
func NewResolver(fs afero.Fs, root, home string) *Resolver {
	return &Resolver{
		fs:   fs,
		root: root,
		home: filepath.Join(home, UserSubdir),
	}
}

// Normalize maps a raw URI to a filesystem path without touching the
// filesystem. Dot segments are cleaned so the result stays under its base.
func (r *Resolver) Normalize(rawURI string) (string, error) {
	if rawURI == "" {
		return "", ErrInvalidPath
	}
	var base, rest string
	switch rawURI[0] {
	case '~':
		base, rest = r.home, rawURI[1:]
	case '/':
		base, rest = r.root, rawURI
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rawURI)
	}
	cleaned := path.Clean("/" + rest)
	if cleaned == "/" {
		return base, nil
	}
	return filepath.Join(base, filepath.FromSlash(cleaned)), nil
}

// Resolve normalizes rawURI and looks it up. A missing target is not an
// error: it comes back with Found unset. Directories resolve to their index
// file when one exists.
func (r *Resolver) Resolve(rawURI string) (Resolution, error) {
	p, err := r.Normalize(rawURI)
	if err != nil {
		return Resolution{}, err
	}

	info, err := r.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Resolution{Path: p}, nil
		}
		return Resolution{Path: p}, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	if !info.IsDir() {
		return Resolution{Path: p, Size: info.Size(), Found: true}, nil
	}

	dir := p
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	index := dir + IndexFile
	if indexInfo, err := r.fs.Stat(index); err == nil && !indexInfo.IsDir() {
		return Resolution{Path: index, Size: indexInfo.Size(), Found: true}, nil
	}
	return Resolution{Path: dir, Size: info.Size(), IsDir: true, Found: true}, nil
}
