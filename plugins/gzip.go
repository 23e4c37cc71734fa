package plugins

import (
	"bytes"
	"compress/gzip"
	"strconv"
	"strings"

	"github.com/forgehttp/forge"
)

// Gzip compresses a buffered response body when the client advertises
// Accept-Encoding: gzip, replacing Content-Length with the compressed
// length.
type Gzip struct {
	Base

	Level int
}

// NewGzip returns a Gzip plugin at the default compression level.
func NewGzip() *Gzip {
	return &Gzip{
		Base: NewBase(forge.PluginDescriptor{
			Name: "gzip", Priority: 900, Enabled: true,
		}),
		Level: gzip.DefaultCompression,
	}
}

func (p *Gzip) RegisterMiddleware(s *forge.Server) error {
	s.Use(func(c *forge.Context, next forge.Next) error {
		if err := next(); err != nil {
			return err
		}

		c.Response.AddHeader("Vary", "Accept-Encoding")
		accept, _ := c.Header("Accept-Encoding")
		if !strings.Contains(accept, "gzip") || len(c.Response.Body) == 0 {
			return nil
		}
		if c.Response.Headers.Has("Content-Encoding") {
			return nil
		}

		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, p.Level)
		if err != nil {
			return nil
		}
		if _, err := w.Write(c.Response.Body); err != nil {
			return nil
		}
		if err := w.Close(); err != nil {
			return nil
		}

		c.Response.Body = buf.Bytes()
		c.SetHeader("Content-Encoding", "gzip")
		c.SetHeader("Content-Length", strconv.Itoa(buf.Len()))
		return nil
	})
	return nil
}
