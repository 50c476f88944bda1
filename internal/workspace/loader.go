// Package workspace finds the Markdown documents a chat session works with.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// File is a document read from the workspace. Name is relative to the
// workspace directory and uses forward slashes.
type File struct {
	Name    string
	Path    string
	Content string
}

// Loader reads every file under Dir matching one of Patterns.
type Loader struct {
	Dir      string
	Patterns []string
}

// Load returns the matching files sorted by name, which is the order they
// should be ingested in.
func (l Loader) Load(ctx context.Context) ([]File, error) {
	names, err := l.match()
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := l.read(name)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Matches reports whether a workspace-relative name matches any pattern.
func (l Loader) Matches(name string) bool {
	name = filepath.ToSlash(name)
	for _, p := range l.Patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (l Loader) match() ([]string, error) {
	fsys := os.DirFS(l.Dir)
	seen := make(map[string]struct{})
	var names []string
	for _, p := range l.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid workspace pattern %q", p)
		}
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q in %s: %w", p, l.Dir, err)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			names = append(names, m)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (l Loader) read(name string) (File, error) {
	path := filepath.Join(l.Dir, filepath.FromSlash(name))
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return File{Name: name, Path: path, Content: string(data)}, nil
}
