package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/httpd/internal/logger"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func testRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "index.html", "<h1>home</h1>\n")
	writeFile(t, root, "style.css", "body{}")
	writeFile(t, root, "docs/index.html", "docs")
	writeFile(t, root, "docs/readme", "plain")
	writeFile(t, root, ".env", "SECRET=1")
	writeFile(t, root, "private/key.pem", "key")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	return root
}

func TestResolve(t *testing.T) {
	root := testRoot(t)
	r, err := NewResolver(root, "", []string{"**/.*", "private/**"})
	require.NoError(t, err)

	tests := []struct {
		target string
		name   string
		size   int64
		ctype  string
	}{
		{"/", "index.html", 14, "text/html; charset=utf-8"},
		{"/index.html", "index.html", 14, "text/html; charset=utf-8"},
		{"/style.css", "style.css", 6, "text/css; charset=utf-8"},
		{"/docs", "docs/index.html", 4, "text/html; charset=utf-8"},
		{"/docs/", "docs/index.html", 4, "text/html; charset=utf-8"},
		{"/docs/readme", "docs/readme", 5, "application/octet-stream"},
		{"/index.html?v=2", "index.html", 14, "text/html; charset=utf-8"},
		{"/docs/../style.css", "style.css", 6, "text/css; charset=utf-8"},
		{"/../../style.css", "style.css", 6, "text/css; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			f, err := r.Resolve(tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.name, f.Name)
			assert.Equal(t, tt.size, f.Size)
			assert.Equal(t, tt.ctype, f.ContentType)
			assert.Equal(t, filepath.Join(r.Root(), filepath.FromSlash(tt.name)), f.Path)
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	root := testRoot(t)
	r, err := NewResolver(root, "index.html", []string{"**/.*", "private/**"})
	require.NoError(t, err)

	for _, target := range []string{
		"/missing.html",
		"/empty",
		"/empty/",
		"/style.css/",
		"/.env",
		"/private/key.pem",
		"/docs/readme/extra",
	} {
		_, err := r.Resolve(target)
		assert.ErrorIs(t, err, ErrNotFound, target)
	}
}

func TestResolveCustomDefaultFile(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, "home.htm", "home")

	r, err := NewResolver(root, "home.htm", nil)
	require.NoError(t, err)

	f, err := r.Resolve("/")
	require.NoError(t, err)
	assert.Equal(t, "home.htm", f.Name)

	_, err = r.Resolve("/docs/")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewResolverErrors(t *testing.T) {
	root := testRoot(t)

	_, err := NewResolver(filepath.Join(root, "nope"), "", nil)
	assert.ErrorIs(t, err, ErrInvalidRoot)

	_, err = NewResolver(filepath.Join(root, "style.css"), "", nil)
	assert.ErrorIs(t, err, ErrInvalidRoot)

	_, err = NewResolver(root, "", []string{"[unclosed"})
	assert.ErrorIs(t, err, ErrInvalidGlob)
}

func TestOpen(t *testing.T) {
	r, err := NewResolver(testRoot(t), "", nil)
	require.NoError(t, err)

	f, err := r.Resolve("/style.css")
	require.NoError(t, err)

	rc, err := r.Open(f)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))

	require.NoError(t, os.Remove(f.Path))
	_, err = r.Open(f)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoCachingWithoutWatch(t *testing.T) {
	root := testRoot(t)
	r, err := NewResolver(root, "", nil)
	require.NoError(t, err)

	_, err = r.Resolve("/new.txt")
	require.ErrorIs(t, err, ErrNotFound)

	writeFile(t, root, "new.txt", "new")
	_, err = r.Resolve("/new.txt")
	require.NoError(t, err)
	assert.Zero(t, r.cached())
}

func TestDirectories(t *testing.T) {
	root := testRoot(t)
	r, err := NewResolver(root, "", nil)
	require.NoError(t, err)

	dirs, err := r.directories()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		r.Root(),
		filepath.Join(r.Root(), "docs"),
		filepath.Join(r.Root(), "private"),
		filepath.Join(r.Root(), "empty"),
	}, dirs)
}

func startWatch(t *testing.T, r *Resolver) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, logger.NullLogger{}) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		assert.False(t, r.Watching())
	})
	require.Eventually(t, r.Watching, 2*time.Second, 10*time.Millisecond)
}

func TestWatchInvalidatesCache(t *testing.T) {
	root := testRoot(t)
	r, err := NewResolver(root, "", nil)
	require.NoError(t, err)
	startWatch(t, r)

	_, err = r.Resolve("/later.txt")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotZero(t, r.cached())

	writeFile(t, root, "later.txt", "hello")
	assert.Eventually(t, func() bool {
		f, err := r.Resolve("/later.txt")
		return err == nil && f.Size == 5
	}, 2*time.Second, 10*time.Millisecond)

	writeFile(t, root, "later.txt", "hello again")
	assert.Eventually(t, func() bool {
		f, err := r.Resolve("/later.txt")
		return err == nil && f.Size == 11
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchFollowsNewDirectories(t *testing.T) {
	root := testRoot(t)
	r, err := NewResolver(root, "", nil)
	require.NoError(t, err)
	startWatch(t, r)

	require.NoError(t, os.Mkdir(filepath.Join(root, "blog"), 0o755))
	_, err = r.Resolve("/blog/post.html")
	require.ErrorIs(t, err, ErrNotFound)

	writeFile(t, root, "blog/post.html", "post")
	assert.Eventually(t, func() bool {
		_, err := r.Resolve("/blog/post.html")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
