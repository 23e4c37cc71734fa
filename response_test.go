package forge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseFluentBuilders(t *testing.T) {
	res := NewResponse().Status(201).Header("X-Foo", "bar").Text("hello")
	assert.Equal(t, 201, res.StatusCode)
	assert.Equal(t, "Created", res.StatusReason)
	assert.Equal(t, "bar", res.Headers.First("X-Foo"))
	assert.Equal(t, "text/plain", res.Headers.First("Content-Type"))
	assert.Equal(t, []byte("hello"), res.Body)
}

func TestResponseRedirectDefaultCode(t *testing.T) {
	res := NewResponse().Redirect("/login", 0)
	assert.Equal(t, 302, res.StatusCode)
	assert.Equal(t, "/login", res.Headers.First("Location"))
}

func TestResponseSerialize(t *testing.T) {
	res := NewResponse().Status(200).Text("hi")
	out := string(res.serialize())

	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, out, "Content-Length: 2\r\n")
	assert.Contains(t, out, "Connection: close\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\nhi"))
}

func TestResponseReset(t *testing.T) {
	res := NewResponse().Status(500).Text("oops")
	res.reset()

	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "", res.StatusReason)
	assert.Nil(t, res.Body)
	assert.Nil(t, res.Stream)
	assert.Equal(t, 0, res.Headers.Len())
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Not Found", StatusText(404))
	assert.Equal(t, "", StatusText(999))
}
