// Package resolve locates build inputs by name across a short, ordered list
// of candidate directories.
package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"tractor.dev/toolkit-go/engine/fs/fsutil"
)

// Strategy is one way of turning a name into a path. Resolve returns ok
// false when the strategy has no match; err is reserved for I/O failures.
// String names the directory the strategy searches.
type Strategy interface {
	Resolve(name string) (p string, ok bool, err error)
	String() string
}

// Exact matches dir/name byte for byte.
type Exact struct {
	FS  fs.FS
	Dir string
}

func (s Exact) Resolve(name string) (string, bool, error) {
	p := path.Join(s.Dir, name)
	ok, err := fsutil.Exists(s.FS, p)
	if err != nil || !ok {
		return "", false, err
	}
	if isdir, err := fsutil.DirExists(s.FS, p); err != nil || isdir {
		return "", false, err
	}
	return p, true, nil
}

func (s Exact) String() string {
	return s.Dir
}

// Fold matches the base name case-insensitively against the entries of
// dir, in directory order.
type Fold struct {
	FS  fs.FS
	Dir string
}

func (s Fold) Resolve(name string) (string, bool, error) {
	dir := path.Join(s.Dir, path.Dir(name))
	base := path.Base(name)
	entries, err := fs.ReadDir(s.FS, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), base) {
			return path.Join(dir, e.Name()), true, nil
		}
	}
	return "", false, nil
}

func (s Fold) String() string {
	return s.Dir
}

// Match is a resolved input.
type Match struct {
	Name string
	// Path is the OS path of the match, joined onto the resolver root.
	Path     string
	Strategy Strategy
}

// NotFoundError reports a name no strategy could resolve.
type NotFoundError struct {
	Name  string
	Tried []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find %s (looked in %s)", e.Name, strings.Join(e.Tried, ", "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == fs.ErrNotExist
}

// Resolver tries its strategies in order; the first match wins.
type Resolver struct {
	Root       string
	Strategies []Strategy
}

// Default returns a resolver rooted at root that, for each dir in order,
// tries an exact match before a case-insensitive one.
func Default(root string, dirs ...string) *Resolver {
	fsys := os.DirFS(root)
	r := &Resolver{Root: root}
	for _, dir := range dirs {
		dir = path.Clean(filepath.ToSlash(dir))
		r.Strategies = append(r.Strategies, Exact{FS: fsys, Dir: dir}, Fold{FS: fsys, Dir: dir})
	}
	return r
}

func (r *Resolver) Resolve(name string) (*Match, error) {
	clean := path.Clean(filepath.ToSlash(name))
	if !fs.ValidPath(clean) {
		return nil, fmt.Errorf("resolve %s: %w", name, fs.ErrInvalid)
	}
	var tried []string
	for _, s := range r.Strategies {
		p, ok, err := s.Resolve(clean)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", name, err)
		}
		if ok {
			return &Match{
				Name:     name,
				Path:     filepath.Join(r.Root, filepath.FromSlash(p)),
				Strategy: s,
			}, nil
		}
		tried = appendUnique(tried, s.String())
	}
	return nil, &NotFoundError{Name: name, Tried: tried}
}

// ResolveAll resolves every name. When any are missing the returned error
// joins one *NotFoundError per missing name.
func (r *Resolver) ResolveAll(names ...string) ([]*Match, error) {
	var (
		matches []*Match
		errs    []error
	)
	for _, name := range names {
		m, err := r.Resolve(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		matches = append(matches, m)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return matches, nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
