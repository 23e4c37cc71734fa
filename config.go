package forge

import (
	"fmt"
	"runtime"

	"gopkg.in/ini.v1"
)

// Config is the typed view over the recognized configuration keys,
// plus a raw handle for anything a plugin wants by its own key. It is
// a value passed into NewServer, not a process-wide singleton, which
// keeps tests trivial to parameterize and removes hidden coupling
// between plugins.
type Config struct {
	Port          uint16
	DocRoot       string
	ThreadCount   int
	QueueSize     int
	UploadDir     string
	MaxUploadSize int64
	AuthToken     string
	DefaultFile   string

	store *ini.File
}

// DefaultConfig returns the baseline defaults, with ThreadCount set to
// the host's logical CPU count.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	return Config{
		Port:        8080,
		DocRoot:     "public",
		ThreadCount: threads,
		QueueSize:   threads * 8,
		DefaultFile: "index.html",
	}
}

// LoadConfig parses a KEY=VALUE config file: UTF-8 text,
// "#" starts a line comment, keys case-sensitive. The grammar is
// exactly gopkg.in/ini.v1's default (unnamed) section, so the store is
// a typed facade over a real parser rather than a hand-rolled
// key=value splitter. Unknown keys are preserved (readable via Raw)
// but otherwise ignored.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()

	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
	}, path)
	if err != nil {
		return c, fmt.Errorf("forge: loading config %s: %w", path, err)
	}
	c.store = f

	sec := f.Section("")

	if k, err := sec.GetKey("PORT"); err == nil {
		if v, err := k.Uint(); err == nil {
			c.Port = uint16(v)
		}
	}
	if k, err := sec.GetKey("DOC_ROOT"); err == nil {
		c.DocRoot = k.String()
	}
	if k, err := sec.GetKey("THREAD_COUNT"); err == nil {
		if v, err := k.Int(); err == nil {
			c.ThreadCount = v
			c.QueueSize = v * 8
		}
	}
	if k, err := sec.GetKey("QUEUE_SIZE"); err == nil {
		if v, err := k.Int(); err == nil {
			c.QueueSize = v
		}
	}
	if k, err := sec.GetKey("UPLOAD_DIR"); err == nil {
		c.UploadDir = k.String()
	}
	if k, err := sec.GetKey("MAX_UPLOAD_SIZE"); err == nil {
		if v, err := k.Int64(); err == nil {
			c.MaxUploadSize = v
		}
	}
	if k, err := sec.GetKey("AUTH_TOKEN"); err == nil {
		c.AuthToken = k.String()
	}
	if k, err := sec.GetKey("DEFAULT_FILE"); err == nil {
		c.DefaultFile = k.String()
	}

	return c, nil
}

// Raw returns an unrecognized key's raw string value, for plugins that
// define their own config keys. It returns "" if the key or the
// backing store is absent (e.g. DefaultConfig with no file loaded).
func (c Config) Raw(key string) string {
	if c.store == nil {
		return ""
	}
	return c.store.Section("").Key(key).String()
}
