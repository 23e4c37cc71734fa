package forge

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/aofei/mimesniffer"
	"github.com/fsnotify/fsnotify"
)

// AssetCache is a binary asset file manager that uses a fixed in-memory
// cache to cut disk I/O on repeat requests for the same static file,
// invalidating an entry as soon as the underlying file changes on
// disk. It is independent of the path-safety resolver: callers pass an
// already-resolved, already-validated absolute path.
type AssetCache struct {
	assets  sync.Map // absolute path -> *asset
	cache   *fastcache.Cache
	watcher *fsnotify.Watcher
	minify  *Minifier
}

// NewAssetCache returns an AssetCache backed by maxBytes of in-memory
// cache. minifier may be nil to disable minification.
func NewAssetCache(maxBytes int, minifier *Minifier) (*AssetCache, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("forge: building asset cache watcher: %w", err)
	}

	ac := &AssetCache{
		cache:   fastcache.New(maxBytes),
		watcher: watcher,
		minify:  minifier,
	}

	go ac.watchLoop()

	return ac, nil
}

func (ac *AssetCache) watchLoop() {
	for {
		select {
		case e, ok := <-ac.watcher.Events:
			if !ok {
				return
			}
			ac.invalidate(e.Name)
		case _, ok := <-ac.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (ac *AssetCache) invalidate(name string) {
	if v, ok := ac.assets.Load(name); ok {
		a := v.(*asset)
		ac.assets.Delete(name)
		ac.cache.Del(a.checksum[:])
	}
}

// Close stops the underlying filesystem watcher.
func (ac *AssetCache) Close() error {
	return ac.watcher.Close()
}

// asset is one cached file's metadata; its bytes live in the fastcache
// instance, keyed by a content checksum so the same bytes are never
// duplicated across two paths.
type asset struct {
	name        string
	contentType string
	modTime     time.Time
	minified    bool
	checksum    [sha256.Size]byte
}

// Get returns the bytes and content type for the absolute path name,
// reading and caching it on first access. It re-reads from disk if
// the file's mtime has advanced past what was cached.
func (ac *AssetCache) Get(name string) ([]byte, string, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, "", err
	}

	if v, ok := ac.assets.Load(name); ok {
		a := v.(*asset)
		if !fi.ModTime().After(a.modTime) {
			if b := ac.cache.Get(nil, a.checksum[:]); b != nil {
				return b, a.contentType, nil
			}
		}
		ac.invalidate(name)
	}

	b, err := os.ReadFile(name)
	if err != nil {
		return nil, "", err
	}

	contentType := mimesniffer.Sniff(b)

	if ac.minify != nil {
		if minified, ok, mErr := ac.minify.Minify(contentType, b); mErr == nil && ok {
			b = minified
		}
	}

	sum := sha256.Sum256(b)
	ac.cache.Set(sum[:], b)
	ac.assets.Store(name, &asset{
		name:        name,
		contentType: contentType,
		modTime:     fi.ModTime(),
		checksum:    sum,
	})

	if err := ac.watcher.Add(name); err != nil {
		// Watching is best-effort: a cache that can't be invalidated
		// on edit is still a correct cache, just a slightly stale one
		// until a future restart.
		return b, contentType, nil
	}

	return b, contentType, nil
}
