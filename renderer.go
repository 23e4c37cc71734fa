package forge

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Renderer renders named html/template templates into a Context's
// response body — a supplement to JSON/HTML/Text/MsgPack for handlers
// that want server-side page rendering.
type Renderer struct {
	Root     string
	Ext      string
	Minified bool
	Watched  bool

	LeftDelim, RightDelim string

	template *template.Template
	funcMap  template.FuncMap
	minifier *Minifier
	watcher  *fsnotify.Watcher
}

// NewRenderer returns a Renderer sourcing *.html files from root.
func NewRenderer(root string) *Renderer {
	return &Renderer{
		Root:       root,
		Ext:        ".html",
		LeftDelim:  "{{",
		RightDelim: "}}",
		funcMap: template.FuncMap{
			"strlen":  strlen,
			"strcat":  strcat,
			"substr":  substr,
			"timefmt": timefmt,
		},
	}
}

// Funcs registers a template function under name; must be called
// before ParseTemplates.
func (r *Renderer) Funcs(name string, fn interface{}) {
	r.funcMap[name] = fn
}

// ParseTemplates walks Root and parses every file matching Ext into
// one named template set. A missing Root is not an error — a server
// with no templates simply never calls Render.
func (r *Renderer) ParseTemplates() error {
	if _, err := os.Stat(r.Root); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if r.Minified {
		r.minifier = NewMinifier()
	}

	if r.Watched {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		r.watcher = w

		dirs, err := walkDirs(r.Root)
		if err != nil {
			return err
		}
		for _, dir := range dirs {
			if err := w.Add(dir); err != nil {
				return err
			}
		}
		go r.watchTemplates()
	}

	return r.parseTemplates()
}

// Render executes the named template with data into w.
func (r *Renderer) Render(w io.Writer, templateName string, data map[string]interface{}) error {
	if r.template == nil {
		return fmt.Errorf("forge: no templates parsed")
	}
	return r.template.ExecuteTemplate(w, templateName, data)
}

// RenderToContext renders templateName and writes it as the Context's
// HTML response.
func (c *Context) RenderToContext(r *Renderer, templateName string, data map[string]interface{}) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, templateName, data); err != nil {
		return err
	}
	c.HTML(buf.String())
	return nil
}

func (r *Renderer) parseTemplates() error {
	root := filepath.Clean(r.Root)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	dirs, err := walkDirs(root)
	if err != nil {
		return err
	}

	var filenames []string
	for _, dir := range dirs {
		fns, err := filepath.Glob(filepath.Join(dir, "*"+r.Ext))
		if err != nil {
			return err
		}
		filenames = append(filenames, fns...)
	}

	t := template.New("template")
	t.Funcs(r.funcMap)
	t.Delims(r.LeftDelim, r.RightDelim)

	for _, filename := range filenames {
		b, err := os.ReadFile(filename)
		if err != nil {
			return err
		}

		if r.minifier != nil {
			if minified, ok, mErr := r.minifier.Minify("text/html", b); mErr == nil && ok {
				b = minified
			}
		}

		start := 0
		if root != "." {
			start = len(root) + 1
		}
		name := filepath.ToSlash(filename[start:])
		if _, err := t.New(name).Parse(string(b)); err != nil {
			return err
		}
	}

	r.template = t
	return nil
}

func (r *Renderer) watchTemplates() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 && filepath.Ext(event.Name) != r.Ext {
				r.watcher.Add(event.Name)
			}
			r.parseTemplates()
		case _, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the template watcher, if one was started.
func (r *Renderer) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}

func walkDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

func strlen(s string) int {
	return len([]rune(s))
}

func strcat(s string, ss ...string) string {
	var b strings.Builder
	b.WriteString(s)
	for _, x := range ss {
		b.WriteString(x)
	}
	return b.String()
}

func substr(s string, i, j int) string {
	rs := []rune(s)
	return string(rs[i:j])
}

func timefmt(t time.Time, layout string) string {
	return t.Format(layout)
}
