package forge

import (
	"bytes"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"
)

// Minifier minifies static assets by MIME type. It is entirely
// optional infrastructure a static-file plugin may use before caching
// a file's bytes; the core never invokes it on request/response
// bodies.
type Minifier struct {
	m        *minify.M
	handlers map[string]bool
}

// NewMinifier returns a Minifier wired for the common web MIME types.
func NewMinifier() *Minifier {
	m := minify.New()
	handlers := map[string]bool{
		"text/html":              true,
		"text/css":               true,
		"text/javascript":        true,
		"application/javascript": true,
		"application/json":       true,
		"text/xml":               true,
		"image/svg+xml":          true,
	}
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", json.Minify)
	m.AddFunc("text/xml", xml.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	return &Minifier{m: m, handlers: handlers}
}

// Minify runs b through the registered minifier for mimeType. It
// returns b unchanged (ok=false) if mimeType has no registered
// minifier, rather than treating that as an error — most assets are
// simply passed through.
func (mi *Minifier) Minify(mimeType string, b []byte) (out []byte, ok bool, err error) {
	if ss := strings.Split(mimeType, ";"); len(ss) > 1 {
		mimeType = strings.TrimSpace(ss[0])
	}
	if !mi.handlers[mimeType] {
		return b, false, nil
	}
	var buf bytes.Buffer
	if err := mi.m.Minify(mimeType, &buf, bytes.NewReader(b)); err != nil {
		return b, false, err
	}
	return buf.Bytes(), true, nil
}
