package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinifierMinifiesHTML(t *testing.T) {
	m := NewMinifier()
	out, ok, err := m.Minify("text/html", []byte("<html>   <body>  hi  </body> </html>"))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Less(t, len(out), len("<html>   <body>  hi  </body> </html>"))
}

func TestMinifierMinifiesHTMLWithCharsetSuffix(t *testing.T) {
	m := NewMinifier()
	_, ok, err := m.Minify("text/html; charset=utf-8", []byte("<p>  hi  </p>"))
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestMinifierPassesThroughUnknownMIME(t *testing.T) {
	m := NewMinifier()
	in := []byte("binary data")
	out, ok, err := m.Minify("application/octet-stream", in)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, in, out)
}
