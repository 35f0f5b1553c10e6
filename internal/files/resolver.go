package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidRoot = errors.New("document root is not a directory")
	ErrInvalidGlob = errors.New("invalid deny pattern")
)

// File is a resolved, regular file under the document root.
type File struct {
	Path        string // absolute path on disk
	Name        string // slash-separated path relative to the root
	Size        int64
	ContentType string
}

// Resolver maps request targets to files under a document root.
type Resolver struct {
	root        string
	defaultFile string
	deny        []string

	mu      sync.RWMutex
	cache   map[string]statResult
	caching bool
}

type statResult struct {
	info os.FileInfo
	err  error
}

// NewResolver checks root and compiles deny patterns. Patterns are
// doublestar globs matched against the slash-separated path relative to
// root, e.g. "**/.*" or "private/**".
func NewResolver(root, defaultFile string, deny []string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoot, abs)
	}

	for _, pattern := range deny {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidGlob, pattern)
		}
	}

	if defaultFile == "" {
		defaultFile = "index.html"
	}

	return &Resolver{
		root:        abs,
		defaultFile: defaultFile,
		deny:        deny,
		cache:       make(map[string]statResult),
	}, nil
}

// Root returns the absolute document root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve maps a request target to a file. Query strings are ignored and
// the path is cleaned so it cannot leave the root. Directories resolve to
// the default file.
func (r *Resolver) Resolve(target string) (File, error) {
	if i := strings.IndexAny(target, "?#"); i != -1 {
		target = target[:i]
	}

	wantDir := strings.HasSuffix(target, "/")
	name := strings.TrimPrefix(path.Clean("/"+target), "/")

	if !wantDir {
		info, err := r.stat(name)
		if err != nil {
			return File{}, fmt.Errorf("%w: %s", ErrNotFound, target)
		}
		if !info.IsDir() {
			return r.file(name, info, target)
		}
	}

	name = path.Join(name, r.defaultFile)
	info, err := r.stat(name)
	if err != nil || info.IsDir() {
		return File{}, fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	return r.file(name, info, target)
}

func (r *Resolver) file(name string, info os.FileInfo, target string) (File, error) {
	if !info.Mode().IsRegular() || r.denied(name) {
		return File{}, fmt.Errorf("%w: %s", ErrNotFound, target)
	}

	return File{
		Path:        r.abs(name),
		Name:        name,
		Size:        info.Size(),
		ContentType: contentType(name),
	}, nil
}

// Open opens a resolved file for reading. Unreadable files count as
// missing.
func (r *Resolver) Open(f File) (io.ReadCloser, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fh, nil
}

func (r *Resolver) denied(name string) bool {
	for _, pattern := range r.deny {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (r *Resolver) abs(name string) string {
	if name == "" {
		return r.root
	}
	return filepath.Join(r.root, filepath.FromSlash(name))
}

// stat consults the cache while a watcher keeps it fresh.
func (r *Resolver) stat(name string) (os.FileInfo, error) {
	full := r.abs(name)

	r.mu.RLock()
	caching := r.caching
	res, ok := r.cache[full]
	r.mu.RUnlock()
	if ok {
		return res.info, res.err
	}

	info, err := os.Stat(full)
	if caching {
		r.mu.Lock()
		if r.caching {
			r.cache[full] = statResult{info: info, err: err}
		}
		r.mu.Unlock()
	}
	return info, err
}

// invalidate drops every cached stat.
func (r *Resolver) invalidate() {
	r.mu.Lock()
	clear(r.cache)
	r.mu.Unlock()
}

func (r *Resolver) setCaching(on bool) {
	r.mu.Lock()
	r.caching = on
	clear(r.cache)
	r.mu.Unlock()
}

// cached reports how many stat results are held.
func (r *Resolver) cached() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// directories lists root and every directory below it.
func (r *Resolver) directories() ([]string, error) {
	return subdirectories(r.root)
}

// subdirectories returns dir and all directories beneath it.
func subdirectories(dir string) ([]string, error) {
	dirs := []string{dir}
	err := doublestar.GlobWalk(os.DirFS(dir), "**", func(p string, d fs.DirEntry) error {
		if d.IsDir() && p != "." && p != "" {
			dirs = append(dirs, filepath.Join(dir, filepath.FromSlash(p)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}
