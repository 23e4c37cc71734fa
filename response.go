package forge

import (
	"fmt"
	"strconv"
)

// Response is the mutable-until-serialized half of a request/response
// pair. A handler builds it through Context's fluent methods; the
// worker serializes it exactly once.
type Response struct {
	StatusCode   int
	StatusReason string
	Headers      *Headers
	Body         []byte

	// Stream, when non-nil, means the handler took ownership of the
	// socket. The worker must not serialize this Response; it hands the
	// raw connection to Stream instead. See stream.go.
	Stream StreamFunc
}

// NewResponse returns a Response defaulted to 200 OK with empty
// headers
func NewResponse() *Response {
	return &Response{
		StatusCode: 200,
		Headers:    NewHeaders(),
	}
}

// reset restores res to a fresh, poolable state: 200 OK, empty
// headers, no body, no stream.
func (res *Response) reset() {
	res.StatusCode = 200
	res.StatusReason = ""
	res.Headers = NewHeaders()
	res.Body = nil
	res.Stream = nil
}

// Status sets the status code (and its default reason phrase),
// chainable.
func (res *Response) Status(code int) *Response {
	res.StatusCode = code
	res.StatusReason = StatusText(code)
	return res
}

// Header sets a response header (last-wins), chainable.
func (res *Response) Header(name, value string) *Response {
	res.Headers.Set(name, value)
	return res
}

// AddHeader appends a response header without overwriting an existing
// one of the same name.
func (res *Response) AddHeader(name, value string) *Response {
	res.Headers.Add(name, value)
	return res
}

// BodyBytes sets the response body, chainable.
func (res *Response) BodyBytes(b []byte) *Response {
	res.Body = b
	return res
}

// Text sets Content-Type: text/plain and the body.
func (res *Response) Text(s string) *Response {
	res.Headers.Set("Content-Type", "text/plain")
	res.Body = []byte(s)
	return res
}

// HTML sets Content-Type: text/html and the body.
func (res *Response) HTML(s string) *Response {
	res.Headers.Set("Content-Type", "text/html")
	res.Body = []byte(s)
	return res
}

// JSON sets Content-Type: application/json and the body verbatim —
// Context.JSON does the marshaling before calling this.
func (res *Response) JSON(s string) *Response {
	res.Headers.Set("Content-Type", "application/json")
	res.Body = []byte(s)
	return res
}

// Redirect sets a Location header and a redirect status (default 302).
func (res *Response) Redirect(url string, code int) *Response {
	if code == 0 {
		code = 302
	}
	res.Status(code)
	res.Headers.Set("Location", url)
	return res
}

// serialize produces the wire-format byte sequence of res: status
// line, headers, blank line, body. It adds Content-Length if absent
// and a body is present, and always adds Connection: close (the core
// never keeps a connection alive).
func (res *Response) serialize() []byte {
	if res.StatusReason == "" {
		res.StatusReason = StatusText(res.StatusCode)
	}

	if len(res.Body) > 0 && !res.Headers.Has("Content-Length") {
		res.Headers.Set("Content-Length", strconv.Itoa(len(res.Body)))
	}
	if !res.Headers.Has("Connection") {
		res.Headers.Set("Connection", "close")
	}

	buf := make([]byte, 0, 256+len(res.Body))
	buf = append(buf, fmt.Sprintf("HTTP/1.1 %d %s\r\n", res.StatusCode, res.StatusReason)...)
	res.Headers.Each(func(name, value string) {
		buf = append(buf, name...)
		buf = append(buf, ':', ' ')
		buf = append(buf, value...)
		buf = append(buf, '\r', '\n')
	})
	buf = append(buf, '\r', '\n')
	buf = append(buf, res.Body...)
	return buf
}

// statusTexts covers the codes this module produces or expects a
// handler to set; anything else falls back to "".
var statusTexts = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	413: "Payload Too Large",
	415: "Unsupported Media Type",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// StatusText returns the standard reason phrase for code, or "" if
// this module has no entry for it.
func StatusText(code int) string {
	return statusTexts[code]
}
