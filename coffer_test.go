package forge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssetCacheGetReadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	assert.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	ac, err := NewAssetCache(1<<20, nil)
	assert.NoError(t, err)
	defer ac.Close()

	b, contentType, err := ac.Get(path)
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(b))
	assert.NotEmpty(t, contentType)

	b2, _, err := ac.Get(path)
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(b2))
}

func TestAssetCacheGetMissingFile(t *testing.T) {
	ac, err := NewAssetCache(1<<20, nil)
	assert.NoError(t, err)
	defer ac.Close()

	_, _, err = ac.Get(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestAssetCacheInvalidatesOnModification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	assert.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	ac, err := NewAssetCache(1<<20, nil)
	assert.NoError(t, err)
	defer ac.Close()

	b, _, err := ac.Get(path)
	assert.NoError(t, err)
	assert.Equal(t, "v1", string(b))

	time.Sleep(10 * time.Millisecond)
	assert.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	b2, _, err := ac.Get(path)
	assert.NoError(t, err)
	assert.Equal(t, "v2", string(b2))
}

func TestAssetCacheAppliesMinifier(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	assert.NoError(t, os.WriteFile(path, []byte("<html>   <body>  hi  </body> </html>"), 0o644))

	ac, err := NewAssetCache(1<<20, NewMinifier())
	assert.NoError(t, err)
	defer ac.Close()

	b, _, err := ac.Get(path)
	assert.NoError(t, err)
	assert.Less(t, len(b), len("<html>   <body>  hi  </body> </html>"))
}
