package forge

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRendererParseAndRender(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "hello.html"), []byte("Hello, {{.Name}}!"), 0o644))

	r := NewRenderer(dir)
	assert.NoError(t, r.ParseTemplates())

	var buf bytes.Buffer
	err := r.Render(&buf, "hello.html", map[string]interface{}{"Name": "World"})
	assert.NoError(t, err)
	assert.Equal(t, "Hello, World!", buf.String())
}

func TestRendererMissingRootIsNotError(t *testing.T) {
	r := NewRenderer(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, r.ParseTemplates())

	var buf bytes.Buffer
	err := r.Render(&buf, "hello.html", nil)
	assert.Error(t, err)
}

func TestRendererFuncMapHelpers(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "t.html"), []byte("{{strlen .Name}}:{{strcat .Name \"!\"}}"), 0o644))

	r := NewRenderer(dir)
	assert.NoError(t, r.ParseTemplates())

	var buf bytes.Buffer
	err := r.Render(&buf, "t.html", map[string]interface{}{"Name": "hi"})
	assert.NoError(t, err)
	assert.Equal(t, "2:hi!", buf.String())
}

func TestRenderToContext(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte("<p>{{.Msg}}</p>"), 0o644))

	r := NewRenderer(dir)
	assert.NoError(t, r.ParseTemplates())

	c := NewContext(&Request{PathParams: map[string]string{}}, NewResponse())
	err := c.RenderToContext(r, "page.html", map[string]interface{}{"Msg": "hi"})
	assert.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(c.Response.Body))
}
