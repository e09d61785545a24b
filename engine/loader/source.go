package loader

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
)

// Source supplies raw asset bytes by name. Names are slash separated and relative to the source root.
type Source interface {
	// Open returns the full content of the named asset.
	Open(name string) ([]byte, error)

	// List returns every asset name the source holds, sorted.
	List() ([]string, error)
}

// fsSource reads assets from an fs.FS.
type fsSource struct {
	fsys fs.FS
}

var _ Source = &fsSource{}

// NewFSSource creates a Source backed by fsys, such as an embed.FS or fstest.MapFS.
//
// Parameters:
//   - fsys: the file system holding the assets
//
// Returns:
//   - Source: the source
func NewFSSource(fsys fs.FS) Source {
	return &fsSource{fsys: fsys}
}

// NewDirSource creates a Source reading the directory tree rooted at dir.
//
// Parameters:
//   - dir: the content directory
//
// Returns:
//   - Source: the source
func NewDirSource(dir string) Source {
	return &fsSource{fsys: os.DirFS(dir)}
}

func (s *fsSource) Open(name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (s *fsSource) List() ([]string, error) {
	var names []string
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			names = append(names, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
