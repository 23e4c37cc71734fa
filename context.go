package forge

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"
	"github.com/vmihailenco/msgpack/v5"
)

// Context is the per-request bundle handed to middleware and
// handlers: a borrow of the Request, a mutable borrow of the Response,
// the path parameters the router extracted, and a typed scratch map
// for passing values between middleware and downstream handlers.
//
// A Context exists only for the lifetime of one worker task; it is
// never shared across tasks.
type Context struct {
	Request  *Request
	Response *Response

	state map[string]interface{}

	// stream records the StreamFunc a handler passed to
	// Context.TakeOverSocket. TakeOverSocket also sets Response.Stream
	// directly, and that is the field the worker reads.
	stream StreamFunc
}

// NewContext pairs req and res into a fresh Context with an empty
// scratch map.
func NewContext(req *Request, res *Response) *Context {
	return &Context{
		Request:  req,
		Response: res,
		state:    make(map[string]interface{}),
	}
}

// reset rewires c to a new request/response pair and clears its
// scratch state, so a pooled Context can be reused instead of
// reallocated per connection.
func (c *Context) reset(req *Request, res *Response) {
	c.Request = req
	c.Response = res
	c.stream = nil
	if c.state == nil || len(c.state) > 0 {
		c.state = make(map[string]interface{})
	}
}

// Param returns a path parameter extracted by the router.
func (c *Context) Param(name string) (string, bool) {
	return c.Request.Param(name)
}

// Query returns a query-string parameter.
func (c *Context) Query(name string) (string, bool) {
	return c.Request.Query(name)
}

// Header returns a request header, case-insensitive.
func (c *Context) Header(name string) (string, bool) {
	return c.Request.Header(name)
}

// Cookies returns the cookies the client sent.
func (c *Context) Cookies() []*Cookie {
	v, _ := c.Request.Header("Cookie")
	return ParseCookies(v)
}

// Status sets the response status code, chainable.
func (c *Context) Status(code int) *Context {
	c.Response.Status(code)
	return c
}

// SetHeader sets a response header, chainable.
func (c *Context) SetHeader(name, value string) *Context {
	c.Response.Header(name, value)
	return c
}

// SetCookie appends a Set-Cookie response header, chainable.
func (c *Context) SetCookie(cookie *Cookie) *Context {
	c.Response.AddHeader("Set-Cookie", cookie.String())
	return c
}

// Body sets the raw response body, chainable.
func (c *Context) Body(b []byte) *Context {
	c.Response.BodyBytes(b)
	return c
}

// JSON marshals v and writes it as an application/json response.
func (c *Context) JSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Response.Headers.Set("Content-Type", "application/json")
	c.Response.BodyBytes(b)
	return nil
}

// MsgPack marshals v with MessagePack and writes it as an
// application/msgpack response — a binary sibling to JSON for clients
// that prefer a compact wire format.
func (c *Context) MsgPack(v interface{}) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	c.Response.Headers.Set("Content-Type", "application/msgpack")
	c.Response.BodyBytes(b)
	return nil
}

// HTML writes an HTML response.
func (c *Context) HTML(html string) {
	c.Response.HTML(html)
}

// Text writes a plain-text response.
func (c *Context) Text(text string) {
	c.Response.Text(text)
}

// Redirect writes a redirect response (default status 302).
func (c *Context) Redirect(url string, code int) {
	c.Response.Redirect(url, code)
}

// Set stores a value in the per-request scratch map, for middleware to
// pass data (e.g. an authenticated user) to downstream handlers.
func (c *Context) Set(key string, value interface{}) {
	c.state[key] = value
}

// Get retrieves a value of type T from the scratch map. It returns
// false, never panics, if the key is absent or holds a different type.
func Get[T any](c *Context, key string) (T, bool) {
	var zero T
	raw, ok := c.state[key]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// BindState decodes the scratch entry at key into out (a pointer to a
// struct) using field-name matching, for when middleware stashes a
// loosely-typed map (e.g. parsed JWT claims) instead of a concrete
// type. It never fails hard either: a missing key is a no-op.
func (c *Context) BindState(key string, out interface{}) error {
	raw, ok := c.state[key]
	if !ok {
		return nil
	}
	return mapstructure.Decode(raw, out)
}

// TakeOverSocket marks this Context's Response as a stream
// continuation: the worker will hand the raw connection to fn instead
// of serializing a buffered Response.
func (c *Context) TakeOverSocket(fn StreamFunc) {
	c.stream = fn
	c.Response.Stream = fn
}
